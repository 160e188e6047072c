package solana

import (
	sollib "github.com/gagliardetto/solana-go"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// ParsePublicKey parses a base58 encoded account address of cfg.
func ParsePublicKey(cfg registry.ChainConfig, address string) (sollib.PublicKey, error) {
	pubkey, err := sollib.PublicKeyFromBase58(address)
	if err != nil {
		return sollib.PublicKey{}, &chain.InvalidAddressError{Chain: cfg.Name, Family: registry.FamilySolana, Address: address, Err: err}
	}

	return pubkey, nil
}

// AddressConverter implements address conversion for Solana chains.
type AddressConverter struct{}

// ConvertToBytes converts a base58 Solana address to its 32 bytes.
func (AddressConverter) ConvertToBytes(cfg registry.ChainConfig, address string) ([]byte, error) {
	pubkey, err := ParsePublicKey(cfg, address)
	if err != nil {
		return nil, err
	}

	return pubkey.Bytes(), nil
}

// Supports returns true if this converter supports the given chain family.
func (AddressConverter) Supports(family registry.Family) bool {
	return family == registry.FamilySolana
}
