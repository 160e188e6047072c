package registry

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Environment is a network universe. Chains from different environments are never mixed.
type Environment string

const (
	Mainnet Environment = "mainnet"
	Testnet Environment = "testnet"
)

// Validate reports whether e is a known environment.
func (e Environment) Validate() error {
	switch e {
	case Mainnet, Testnet:
		return nil
	default:
		return fmt.Errorf("unknown environment %q", string(e))
	}
}

// Family selects the chain context implementation that governs a chain.
type Family string

const (
	FamilyEVM      Family = "evm"
	FamilySolana   Family = "solana"
	FamilyCosmos   Family = "cosmos"
	FamilyAlgorand Family = "algorand"
	FamilyAptos    Family = "aptos"
	FamilyNear     Family = "near"
	// FamilyOther tags chains that exist in the protocol but have no context implementation.
	FamilyOther Family = "other"
)

// Families lists every family tag in declaration order.
var Families = []Family{
	FamilyEVM, FamilySolana, FamilyCosmos, FamilyAlgorand, FamilyAptos, FamilyNear, FamilyOther,
}

// Validate reports whether f is one of the declared family tags.
func (f Family) Validate() error {
	if slices.Contains(Families, f) {
		return nil
	}

	return fmt.Errorf("unknown context family %q", string(f))
}

// ChainName is the human readable unique key of a chain, e.g. "ethereum".
type ChainName string

// ChainID is the numeric protocol level chain id.
type ChainID uint16

// Contracts is the set of protocol contract addresses deployed on one chain. Any field may be
// empty when the contract is not deployed there.
type Contracts struct {
	Core        string `json:"core,omitempty" yaml:"core,omitempty"`
	TokenBridge string `json:"token_bridge,omitempty" yaml:"token_bridge,omitempty"`
	NFTBridge   string `json:"nft_bridge,omitempty" yaml:"nft_bridge,omitempty"`
}

// Contract names used in errors.
const (
	ContractCore        = "core"
	ContractTokenBridge = "token_bridge"
	ContractNFTBridge   = "nft_bridge"
)

// Get returns the address of the named contract.
func (c Contracts) Get(name string) string {
	switch name {
	case ContractCore:
		return c.Core
	case ContractTokenBridge:
		return c.TokenBridge
	case ContractNFTBridge:
		return c.NFTBridge
	default:
		return ""
	}
}

// IsEmpty reports whether no contract is deployed.
func (c Contracts) IsEmpty() bool {
	return c == Contracts{}
}

// Metadata holds display and family specific attributes of a chain.
type Metadata struct {
	DisplayName    string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	NativeSymbol   string `json:"native_symbol,omitempty" yaml:"native_symbol,omitempty"`
	NativeDecimals uint8  `json:"native_decimals,omitempty" yaml:"native_decimals,omitempty"`
	// NativeChainID is the chain's own network identifier: the EIP-155 id for EVM chains, the
	// genesis hash for Solana and the numeric chain id for Aptos.
	NativeChainID string `json:"native_chain_id,omitempty" yaml:"native_chain_id,omitempty"`
	// NativeDenom is the bank denom of the gas asset on Cosmos chains.
	NativeDenom  string `json:"native_denom,omitempty" yaml:"native_denom,omitempty"`
	Bech32Prefix string `json:"bech32_prefix,omitempty" yaml:"bech32_prefix,omitempty"`
	Explorer     string `json:"explorer,omitempty" yaml:"explorer,omitempty"`
}

// ChainConfig is the immutable record of one chain.
type ChainConfig struct {
	Name      ChainName `json:"name" yaml:"name"`
	ID        ChainID   `json:"id" yaml:"id"`
	Family    Family    `json:"family" yaml:"family"`
	RPC       string    `json:"rpc,omitempty" yaml:"rpc,omitempty"`
	Contracts Contracts `json:"contracts" yaml:"contracts"`
	Metadata  Metadata  `json:"metadata" yaml:"metadata"`
}

// String returns "<name> (<id>)".
func (c ChainConfig) String() string {
	return fmt.Sprintf("%s (%d)", c.Name, c.ID)
}

// EVMChainID parses the EIP-155 chain id of an EVM chain.
func (c ChainConfig) EVMChainID() (uint64, error) {
	if c.Family != FamilyEVM {
		return 0, fmt.Errorf("chain %s is not an evm chain", c.Name)
	}

	id, err := strconv.ParseUint(c.Metadata.NativeChainID, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("chain %s: invalid native chain id %q: %w", c.Name, c.Metadata.NativeChainID, err)
	}

	return id, nil
}

func (c ChainConfig) validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.ID == 0 {
		return errors.New("id is required")
	}
	if err := c.Family.Validate(); err != nil {
		return err
	}

	switch c.Family {
	case FamilyEVM:
		if _, err := strconv.ParseUint(c.Metadata.NativeChainID, 10, 64); err != nil {
			return errors.New("evm chains require a numeric native_chain_id")
		}
	case FamilyCosmos:
		if c.Metadata.Bech32Prefix == "" {
			return errors.New("cosmos chains require a bech32_prefix")
		}
	default:
	}

	return nil
}

// UnknownChainError is returned when a name or id matches no chain of the environment.
type UnknownChainError struct {
	Env   Environment
	Query string
}

func (e *UnknownChainError) Error() string {
	return fmt.Sprintf("unknown chain %q in %s", e.Query, e.Env)
}

// Registry resolves chain names and ids to chain configs within one environment.
type Registry struct {
	env      Environment
	byName   map[ChainName]ChainConfig
	byID     map[ChainID]ChainName
	guardian []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithGuardianHosts sets the default guardian API hosts for the environment.
func WithGuardianHosts(hosts ...string) Option {
	return func(r *Registry) {
		r.guardian = slices.Clone(hosts)
	}
}

// New builds a Registry from chain configs. Names are normalized to lower case. A duplicate
// name or id is an error, so that name and id resolution stays a bijection.
func New(env Environment, chains []ChainConfig, opts ...Option) (*Registry, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		env:    env,
		byName: make(map[ChainName]ChainConfig, len(chains)),
		byID:   make(map[ChainID]ChainName, len(chains)),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, c := range chains {
		c.Name = normalize(string(c.Name))
		if err := c.validate(); err != nil {
			return nil, fmt.Errorf("chain %q: %w", c.Name, err)
		}
		if _, ok := r.byName[c.Name]; ok {
			return nil, fmt.Errorf("duplicate chain name %q", c.Name)
		}
		if other, ok := r.byID[c.ID]; ok {
			return nil, fmt.Errorf("chain %q: id %d already used by %q", c.Name, c.ID, other)
		}

		r.byName[c.Name] = c
		r.byID[c.ID] = c.Name
	}

	return r, nil
}

// Environment returns the environment the registry was built for.
func (r *Registry) Environment() Environment {
	return r.env
}

// GuardianHosts returns the default guardian API hosts.
func (r *Registry) GuardianHosts() []string {
	return slices.Clone(r.guardian)
}

// Resolve looks a chain up by name or by decimal id.
func (r *Registry) Resolve(nameOrID string) (ChainConfig, error) {
	if id, err := strconv.ParseUint(strings.TrimSpace(nameOrID), 10, 16); err == nil {
		return r.ResolveID(ChainID(id))
	}

	c, ok := r.byName[normalize(nameOrID)]
	if !ok {
		return ChainConfig{}, &UnknownChainError{Env: r.env, Query: nameOrID}
	}

	return c, nil
}

// ResolveID looks a chain up by id.
func (r *Registry) ResolveID(id ChainID) (ChainConfig, error) {
	name, ok := r.byID[id]
	if !ok {
		return ChainConfig{}, &UnknownChainError{Env: r.env, Query: strconv.FormatUint(uint64(id), 10)}
	}

	return r.byName[name], nil
}

// Chains returns every chain ordered by id.
func (r *Registry) Chains() []ChainConfig {
	ids := slices.Sorted(maps.Keys(r.byID))
	out := make([]ChainConfig, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.byName[r.byID[id]])
	}

	return out
}

// ChainsByFamily returns the chains of one family ordered by id.
func (r *Registry) ChainsByFamily(f Family) []ChainConfig {
	var out []ChainConfig
	for _, c := range r.Chains() {
		if c.Family == f {
			out = append(out, c)
		}
	}

	return out
}

func normalize(name string) ChainName {
	return ChainName(strings.ToLower(strings.TrimSpace(name)))
}
