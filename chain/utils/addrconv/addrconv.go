package addrconv

import "github.com/wormhole-foundation/wormhole-connect-go/registry"

// Converter defines the strategy interface for address conversion.
// Each chain family implements this interface to provide its specific address conversion logic.
type Converter interface {
	// ConvertToBytes validates an address native to cfg and returns its wire bytes.
	ConvertToBytes(cfg registry.ChainConfig, address string) ([]byte, error)

	// Supports returns true if this converter supports the given chain family
	Supports(family registry.Family) bool
}
