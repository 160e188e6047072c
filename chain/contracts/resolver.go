// Package contracts binds family specific contract handles to the addresses of the chain
// registry and the connections of a connection.Manager.
package contracts

import (
	"sync"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// Binder builds a contract value of type C for address on cfg. provider is the registered
// read connection, nil when the resolver does not require one. Binders are called on every
// accessor call and must not perform I/O.
type Binder[C any] func(cfg registry.ChainConfig, contract, address string, provider any) (C, error)

type options struct {
	requireProvider bool
}

// Option configures a Resolver.
type Option func(*options)

// WithoutProvider lets accessors bind contracts without a registered provider. Families that
// only build unsigned messages use it.
func WithoutProvider() Option {
	return func(o *options) {
		o.requireProvider = false
	}
}

// Resolver lazily creates one Handle per chain and caches it under the resolved chain name.
type Resolver[C any] struct {
	conns *connection.Manager
	bind  Binder[C]
	opts  options

	mu      sync.Mutex
	handles map[registry.ChainName]*Handle[C]
}

// NewResolver returns a Resolver for the chains known to conns.
func NewResolver[C any](conns *connection.Manager, bind Binder[C], opts ...Option) *Resolver[C] {
	o := options{requireProvider: true}
	for _, opt := range opts {
		opt(&o)
	}

	return &Resolver[C]{
		conns:   conns,
		bind:    bind,
		opts:    o,
		handles: make(map[registry.ChainName]*Handle[C]),
	}
}

// GetContracts returns the handle of a chain. The bool is false when the chain is unknown or
// has no contracts configured.
func (r *Resolver[C]) GetContracts(nameOrID string) (*Handle[C], bool) {
	h, err := r.MustGetContracts(nameOrID)
	if err != nil {
		return nil, false
	}

	return h, true
}

// MustGetContracts returns the handle of a chain, or MissingContractsError naming the chain
// when it has no contracts configured.
func (r *Resolver[C]) MustGetContracts(nameOrID string) (*Handle[C], error) {
	cfg, err := r.conns.Registry().Resolve(nameOrID)
	if err != nil {
		return nil, err
	}
	if cfg.Contracts.IsEmpty() {
		return nil, &chain.MissingContractsError{Chain: cfg.Name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[cfg.Name]
	if !ok {
		h = &Handle[C]{cfg: cfg, resolver: r}
		r.handles[cfg.Name] = h
	}

	return h, nil
}

// Handle exposes the contracts of one chain. It reads the connection manager on every access,
// so a provider registered after the handle was created is used.
type Handle[C any] struct {
	cfg      registry.ChainConfig
	resolver *Resolver[C]
}

// Chain returns the config of the chain the handle belongs to.
func (h *Handle[C]) Chain() registry.ChainConfig {
	return h.cfg
}

// Core returns the core messaging contract.
func (h *Handle[C]) Core() (C, error) { return h.get(registry.ContractCore) }

// Bridge returns the token bridge contract.
func (h *Handle[C]) Bridge() (C, error) { return h.get(registry.ContractTokenBridge) }

// NFTBridge returns the NFT bridge contract.
func (h *Handle[C]) NFTBridge() (C, error) { return h.get(registry.ContractNFTBridge) }

// TryCore probes Core without failing.
func (h *Handle[C]) TryCore() (C, bool) { return h.try(registry.ContractCore) }

// TryBridge probes Bridge without failing.
func (h *Handle[C]) TryBridge() (C, bool) { return h.try(registry.ContractTokenBridge) }

// TryNFTBridge probes NFTBridge without failing.
func (h *Handle[C]) TryNFTBridge() (C, bool) { return h.try(registry.ContractNFTBridge) }

func (h *Handle[C]) try(contract string) (C, bool) {
	c, err := h.get(contract)
	if err != nil {
		var zero C
		return zero, false
	}

	return c, true
}

func (h *Handle[C]) get(contract string) (C, error) {
	var zero C

	addr := h.cfg.Contracts.Get(contract)
	if addr == "" {
		return zero, &chain.MissingContractsError{Chain: h.cfg.Name, Contract: contract}
	}

	var provider any
	if h.resolver.opts.requireProvider {
		p, err := h.resolver.conns.MustProvider(string(h.cfg.Name))
		if err != nil {
			return zero, err
		}
		provider = p
	}

	return h.resolver.bind(h.cfg, contract, addr, provider)
}
