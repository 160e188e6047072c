package registry

import (
	"fmt"

	chain_selectors "github.com/smartcontractkit/chain-selectors"
)

// selectorFamilies maps context families to chain-selectors family names. Families that are
// missing here are not indexed by chain-selectors.
var selectorFamilies = map[Family]string{
	FamilyEVM:    chain_selectors.FamilyEVM,
	FamilySolana: chain_selectors.FamilySolana,
	FamilyAptos:  chain_selectors.FamilyAptos,
}

// SelectorDetails returns the chain-selectors entry matching the chain's native chain id.
func (c ChainConfig) SelectorDetails() (chain_selectors.ChainDetails, error) {
	family, ok := selectorFamilies[c.Family]
	if !ok {
		return chain_selectors.ChainDetails{}, fmt.Errorf("chain %s: family %s has no chain selectors", c.Name, c.Family)
	}
	if c.Metadata.NativeChainID == "" {
		return chain_selectors.ChainDetails{}, fmt.Errorf("chain %s: native chain id is not set", c.Name)
	}

	return chain_selectors.GetChainDetailsByChainIDAndFamily(c.Metadata.NativeChainID, family)
}

// Selector returns the chain selector of the chain, if chain-selectors knows it.
func (c ChainConfig) Selector() (uint64, bool) {
	details, err := c.SelectorDetails()
	if err != nil {
		return 0, false
	}

	return details.ChainSelector, true
}
