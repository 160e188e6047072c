package aptos

import (
	aptoslib "github.com/aptos-labs/aptos-go-sdk"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// ParseAddress parses an Aptos account address of cfg. Addresses can be in various formats
// (short, long, with/without 0x prefix) but are normalized to 32 bytes.
func ParseAddress(cfg registry.ChainConfig, address string) (aptoslib.AccountAddress, error) {
	var addr aptoslib.AccountAddress
	if err := addr.ParseStringRelaxed(address); err != nil {
		return aptoslib.AccountAddress{}, &chain.InvalidAddressError{Chain: cfg.Name, Family: registry.FamilyAptos, Address: address, Err: err}
	}

	return addr, nil
}

// AddressConverter implements address conversion for Aptos chains.
type AddressConverter struct{}

// ConvertToBytes converts an Aptos address string to its 32 bytes.
func (AddressConverter) ConvertToBytes(cfg registry.ChainConfig, address string) ([]byte, error) {
	addr, err := ParseAddress(cfg, address)
	if err != nil {
		return nil, err
	}

	return addr[:], nil
}

// Supports returns true if this converter supports the given chain family.
func (AddressConverter) Supports(family registry.Family) bool {
	return family == registry.FamilyAptos
}
