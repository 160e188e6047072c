package cosmos

import (
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// DecodeAddress decodes a bech32 address of cfg. The human readable part must be the chain's
// registered prefix.
func DecodeAddress(cfg registry.ChainConfig, address string) ([]byte, error) {
	hrp, data, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return nil, &chain.InvalidAddressError{Chain: cfg.Name, Family: registry.FamilyCosmos, Address: address, Err: err}
	}
	if hrp != cfg.Metadata.Bech32Prefix {
		return nil, &chain.InvalidAddressError{
			Chain: cfg.Name, Family: registry.FamilyCosmos, Address: address,
			Err: fmt.Errorf("prefix %q, want %q", hrp, cfg.Metadata.Bech32Prefix),
		}
	}
	if len(data) == 0 || len(data) > 32 {
		return nil, &chain.InvalidAddressError{
			Chain: cfg.Name, Family: registry.FamilyCosmos, Address: address,
			Err: fmt.Errorf("decoded length %d out of range", len(data)),
		}
	}

	return data, nil
}

// AddressConverter implements address conversion for Cosmos chains.
type AddressConverter struct{}

// ConvertToBytes decodes a bech32 address to its 20 or 32 bytes.
func (AddressConverter) ConvertToBytes(cfg registry.ChainConfig, address string) ([]byte, error) {
	return DecodeAddress(cfg, address)
}

// Supports returns true if this converter supports the given chain family.
func (AddressConverter) Supports(family registry.Family) bool {
	return family == registry.FamilyCosmos
}
