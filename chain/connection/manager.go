// Package connection holds the read and write connections registered for each chain.
package connection

import (
	"reflect"
	"sync"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

type entry struct {
	provider any
	signer   any
}

// Manager stores, per chain, an optional provider for reads and an optional signer for writes.
// Every lookup first resolves the chain through the registry, so names and ids are
// interchangeable. It is safe for concurrent use.
type Manager struct {
	reg *registry.Registry

	mu      sync.RWMutex
	entries map[registry.ChainName]*entry
}

// NewManager returns an empty Manager bound to reg.
func NewManager(reg *registry.Registry) *Manager {
	return &Manager{
		reg:     reg,
		entries: make(map[registry.ChainName]*entry),
	}
}

// Registry returns the registry the manager resolves chains with.
func (m *Manager) Registry() *registry.Registry {
	return m.reg
}

// RegisterProvider sets the read connection of a chain, replacing any previous provider.
func (m *Manager) RegisterProvider(nameOrID string, provider any) error {
	name, err := m.resolve(nameOrID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entryFor(name).provider = provider

	return nil
}

// RegisterSigner sets the write connection of a chain, replacing any previous signer.
func (m *Manager) RegisterSigner(nameOrID string, signer any) error {
	name, err := m.resolve(nameOrID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entryFor(name).signer = signer

	return nil
}

// UnregisterSigner removes the signer of a chain. The provider is kept.
func (m *Manager) UnregisterSigner(nameOrID string) error {
	name, err := m.resolve(nameOrID)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[name]; ok {
		e.signer = nil
	}

	return nil
}

// ClearSigners removes every registered signer. Providers are kept.
func (m *Manager) ClearSigners() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		e.signer = nil
	}
}

// Provider returns the registered provider of a chain. The bool is false when the chain has
// no provider or is unknown.
func (m *Manager) Provider(nameOrID string) (any, bool) {
	e, ok := m.lookup(nameOrID)
	if !ok || e.provider == nil {
		return nil, false
	}

	return e.provider, true
}

// Signer returns the registered signer of a chain.
func (m *Manager) Signer(nameOrID string) (any, bool) {
	e, ok := m.lookup(nameOrID)
	if !ok || e.signer == nil {
		return nil, false
	}

	return e.signer, true
}

// MustProvider returns the provider of a chain or a NoProviderError.
func (m *Manager) MustProvider(nameOrID string) (any, error) {
	name, err := m.resolve(nameOrID)
	if err != nil {
		return nil, err
	}

	p, ok := m.Provider(string(name))
	if !ok {
		return nil, &chain.NoProviderError{Chain: name}
	}

	return p, nil
}

// MustSigner returns the signer of a chain or a NoSignerError.
func (m *Manager) MustSigner(nameOrID string) (any, error) {
	name, err := m.resolve(nameOrID)
	if err != nil {
		return nil, err
	}

	s, ok := m.Signer(string(name))
	if !ok {
		return nil, &chain.NoSignerError{Chain: name}
	}

	return s, nil
}

// ProviderAs returns the provider of a chain asserted to T.
func ProviderAs[T any](m *Manager, nameOrID string) (T, error) {
	var zero T
	p, err := m.MustProvider(nameOrID)
	if err != nil {
		return zero, err
	}

	t, ok := p.(T)
	if !ok {
		c, _ := m.reg.Resolve(nameOrID)
		return zero, &chain.ConnectionTypeError{Chain: c.Name, Kind: "provider", Want: typeName[T](), Got: p}
	}

	return t, nil
}

// SignerAs returns the signer of a chain asserted to T.
func SignerAs[T any](m *Manager, nameOrID string) (T, error) {
	var zero T
	s, err := m.MustSigner(nameOrID)
	if err != nil {
		return zero, err
	}

	t, ok := s.(T)
	if !ok {
		c, _ := m.reg.Resolve(nameOrID)
		return zero, &chain.ConnectionTypeError{Chain: c.Name, Kind: "signer", Want: typeName[T](), Got: s}
	}

	return t, nil
}

func (m *Manager) resolve(nameOrID string) (registry.ChainName, error) {
	c, err := m.reg.Resolve(nameOrID)
	if err != nil {
		return "", err
	}

	return c.Name, nil
}

func (m *Manager) lookup(nameOrID string) (entry, bool) {
	name, err := m.resolve(nameOrID)
	if err != nil {
		return entry{}, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[name]
	if !ok {
		return entry{}, false
	}

	return *e, true
}

// entryFor returns the entry of name, creating it. Callers hold the write lock.
func (m *Manager) entryFor(name registry.ChainName) *entry {
	e, ok := m.entries[name]
	if !ok {
		e = &entry{}
		m.entries[name] = e
	}

	return e
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
