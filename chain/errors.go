package chain

import (
	"errors"
	"fmt"

	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

var (
	// ErrNotSupported is returned by operations a family cannot perform, such as payload
	// transfers on bridges without payload support.
	ErrNotSupported = errors.New("not supported")
	// ErrTokenIDRequired is returned when the Native sentinel is used where a token contract
	// is required.
	ErrTokenIDRequired = errors.New("token id required")
	// ErrPayloadRequired is returned by SendWithPayload when no payload was attached.
	ErrPayloadRequired = errors.New("payload required")
)

// UnknownChainError is returned when a chain name or id is not part of the environment.
type UnknownChainError = registry.UnknownChainError

// MissingContractsError is returned when a chain has no address for a required contract.
// Contract is empty when the chain has no contract record at all.
type MissingContractsError struct {
	Chain    registry.ChainName
	Contract string
}

func (e *MissingContractsError) Error() string {
	if e.Contract == "" {
		return fmt.Sprintf("no contracts configured for chain %s", e.Chain)
	}

	return fmt.Sprintf("contract %s not configured for chain %s", e.Contract, e.Chain)
}

// UnsupportedFamilyError is returned when a chain's family has no context implementation.
type UnsupportedFamilyError struct {
	Chain  registry.ChainName
	Family registry.Family
}

func (e *UnsupportedFamilyError) Error() string {
	return fmt.Sprintf("chain %s: context family %q is not supported", e.Chain, e.Family)
}

// NoProviderError is returned when a read connection is required but none is registered.
type NoProviderError struct {
	Chain registry.ChainName
}

func (e *NoProviderError) Error() string {
	return "no provider registered for chain " + string(e.Chain)
}

// NoSignerError is returned when a write connection is required but none is registered.
type NoSignerError struct {
	Chain registry.ChainName
}

func (e *NoSignerError) Error() string {
	return "no signer registered for chain " + string(e.Chain)
}

// ConnectionTypeError is returned when a registered connection does not implement the
// interface a family needs.
type ConnectionTypeError struct {
	Chain registry.ChainName
	Kind  string
	Want  string
	Got   any
}

func (e *ConnectionTypeError) Error() string {
	return fmt.Sprintf("chain %s: %s of type %T does not implement %s", e.Chain, e.Kind, e.Got, e.Want)
}

// InvalidAddressError is returned when an address is malformed for its chain's family.
type InvalidAddressError struct {
	Chain   registry.ChainName
	Family  registry.Family
	Address string
	Err     error
}

func (e *InvalidAddressError) Error() string {
	msg := fmt.Sprintf("invalid %s address %q for chain %s", e.Family, e.Address, e.Chain)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *InvalidAddressError) Unwrap() error {
	return e.Err
}

// InvalidAmountError is returned when an amount is not a non-negative integer string.
type InvalidAmountError struct {
	Field string
	Value string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid %s %q: must be a non-negative base-10 integer", e.Field, e.Value)
}

// NoSequenceFoundError is returned when a receipt carries no message emitted by the core
// contract.
type NoSequenceFoundError struct {
	Chain string
}

func (e *NoSequenceFoundError) Error() string {
	return "no sequence found in receipt for chain " + e.Chain
}
