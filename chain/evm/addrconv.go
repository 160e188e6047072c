package evm

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

var errChecksum = errors.New("mixed case address fails the EIP-55 checksum")

// ParseAddress parses a 0x prefixed hex address. Mixed case input must carry a valid EIP-55
// checksum.
func ParseAddress(cfg registry.ChainConfig, address string) (common.Address, error) {
	if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
		return common.Address{}, &chain.InvalidAddressError{Chain: cfg.Name, Family: registry.FamilyEVM, Address: address}
	}

	addr := common.HexToAddress(address)
	body := address[2:]
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != address {
		return common.Address{}, &chain.InvalidAddressError{Chain: cfg.Name, Family: registry.FamilyEVM, Address: address, Err: errChecksum}
	}

	return addr, nil
}

// AddressConverter implements address conversion for EVM-compatible chains.
type AddressConverter struct{}

// ConvertToBytes converts an EVM address string to its 20 bytes.
func (AddressConverter) ConvertToBytes(cfg registry.ChainConfig, address string) ([]byte, error) {
	addr, err := ParseAddress(cfg, address)
	if err != nil {
		return nil, err
	}

	return addr.Bytes(), nil
}

// Supports returns true if this converter supports the given chain family.
func (AddressConverter) Supports(family registry.Family) bool {
	return family == registry.FamilyEVM
}
