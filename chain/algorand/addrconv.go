package algorand

import (
	"errors"
	"strconv"

	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

var errNotAppID = errors.New("not an application id")

// ParseAddress decodes a checksummed base32 Algorand address.
func ParseAddress(cfg registry.ChainConfig, address string) (types.Address, error) {
	addr, err := types.DecodeAddress(address)
	if err != nil {
		return types.Address{}, &chain.InvalidAddressError{Chain: cfg.Name, Family: registry.FamilyAlgorand, Address: address, Err: err}
	}

	return addr, nil
}

// ParseAppID parses a decimal application id.
func ParseAppID(cfg registry.ChainConfig, id string) (uint64, error) {
	appID, err := strconv.ParseUint(id, 10, 64)
	if err != nil || appID == 0 {
		return 0, &chain.InvalidAddressError{
			Chain: cfg.Name, Family: registry.FamilyAlgorand, Address: id,
			Err: errNotAppID,
		}
	}

	return appID, nil
}

// AddressConverter implements address conversion for Algorand.
type AddressConverter struct{}

// ConvertToBytes decodes an Algorand address to its 32 byte public key.
func (AddressConverter) ConvertToBytes(cfg registry.ChainConfig, address string) ([]byte, error) {
	addr, err := ParseAddress(cfg, address)
	if err != nil {
		return nil, err
	}

	return addr[:], nil
}

// Supports returns true if this converter supports the given chain family.
func (AddressConverter) Supports(family registry.Family) bool {
	return family == registry.FamilyAlgorand
}
