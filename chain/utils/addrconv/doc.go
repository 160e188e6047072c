/*
Package addrconv converts native addresses to bytes across chain families.

Each family package provides an AddressConverter. This package selects one by the family of
the chain config, so callers convert any registry address without a family switch.

# Basic Usage

	reg := registry.MustLoad(registry.Mainnet)
	cfg, err := reg.Resolve("ethereum")
	if err != nil {
		log.Fatal(err)
	}

	raw, err := addrconv.ToBytes(cfg, "0x742d35Cc6634C0532925a3b8D4c8C1B8c4c8C1B8")
	// 20 bytes

	universal, err := addrconv.ToUniversal(cfg, "0x742d35Cc6634C0532925a3b8D4c8C1B8c4c8C1B8")
	// the same bytes left padded to 32

# Supported Chain Families

	EVM:
	  - Address format: 0x prefixed hex (20 bytes)
	  - Sample: "0x742d35Cc6634C0532925a3b8D4c8C1B8c4c8C1B8"

	Solana:
	  - Address format: base58 (32 bytes)
	  - Sample: "11111111111111111111111111111112"

	Cosmos:
	  - Address format: bech32 with the chain's prefix (20 or 32 bytes)

	Algorand:
	  - Address format: base32 with checksum (32 bytes)

	Aptos:
	  - Address format: 0x prefixed hex, variable length (32 bytes normalized)
	  - Samples: "0x1", "0x0000...0001"

	NEAR:
	  - Address format: account id (sha256 of the id, 32 bytes)
	  - Sample: "contract.portalbridge.near"

Chains of the other family have no converter.
*/
package addrconv
