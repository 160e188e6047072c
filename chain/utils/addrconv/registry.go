package addrconv

import (
	"sync"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/algorand"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/aptos"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/cosmos"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/evm"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/near"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/solana"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

var (
	defaultRegistryOnce sync.Once
	defaultRegistry     *addressConverterRegistry
)

func converters() *addressConverterRegistry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = newAddressConverterRegistry()
	})

	return defaultRegistry
}

// ToBytes converts an address native to cfg to bytes based on the chain family.
//
// Usage:
//
//	bytes, err := addrconv.ToBytes(cfg, "0x742d35Cc...")
func ToBytes(cfg registry.ChainConfig, address string) ([]byte, error) {
	return converters().convertAddress(cfg, address)
}

// ToUniversal converts an address native to cfg to its 32 byte universal form, the bytes of
// ToBytes left padded with zeros. It satisfies chain.UniversalAddressFunc.
func ToUniversal(cfg registry.ChainConfig, address string) ([32]byte, error) {
	b, err := ToBytes(cfg, address)
	if err != nil {
		return [32]byte{}, err
	}

	return chain.PadTo32(b)
}

var _ chain.UniversalAddressFunc = ToUniversal

// Supports reports whether a converter is registered for family.
func Supports(family registry.Family) bool {
	_, ok := converters().converters[family]
	return ok
}

// addressConverterRegistry manages address conversion strategies for different chain families.
type addressConverterRegistry struct {
	converters map[registry.Family]Converter
}

// newAddressConverterRegistry creates a new registry with all supported chain converters pre-registered.
func newAddressConverterRegistry() *addressConverterRegistry {
	r := &addressConverterRegistry{
		converters: make(map[registry.Family]Converter),
	}

	r.converters[registry.FamilyEVM] = evm.AddressConverter{}
	r.converters[registry.FamilySolana] = solana.AddressConverter{}
	r.converters[registry.FamilyCosmos] = cosmos.AddressConverter{}
	r.converters[registry.FamilyAlgorand] = algorand.AddressConverter{}
	r.converters[registry.FamilyAptos] = aptos.AddressConverter{}
	r.converters[registry.FamilyNear] = near.AddressConverter{}

	return r
}

// convertAddress converts an address using the converter of the chain's family.
func (r *addressConverterRegistry) convertAddress(cfg registry.ChainConfig, address string) ([]byte, error) {
	converter, exists := r.converters[cfg.Family]
	if !exists {
		return nil, &chain.UnsupportedFamilyError{Chain: cfg.Name, Family: cfg.Family}
	}

	return converter.ConvertToBytes(cfg, address)
}
