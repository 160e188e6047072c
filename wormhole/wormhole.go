// Package wormhole dispatches transfers, sequence parsing and emitter derivation to the
// chain context of each family, and retrieves the resulting VAAs.
//
// A Context owns the connection manager shared by all family contexts. Register a provider
// and a signer per chain, then send:
//
//	wh, err := wormhole.New(registry.MustLoad(registry.Testnet))
//	if err != nil {
//		return err
//	}
//	if err = wh.RegisterProvider("ethereum", client); err != nil {
//		return err
//	}
//	if err = wh.RegisterSigner("ethereum", transactor); err != nil {
//		return err
//	}
//
//	receipt, err := wh.Send(ctx, chain.TransferRequest{
//		Token:     chain.Native,
//		Amount:    "1000000000000000",
//		FromChain: "ethereum",
//		ToChain:   "fuji",
//		ToAddress: "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
//	})
//	seq, err := wh.ParseSequenceFromLog(ctx, "ethereum", receipt)
//	emitter, err := wh.GetTokenBridgeEmitter("ethereum")
//	vaa, err := wh.GetSignedVAAWithRetry(ctx, "ethereum", emitter, seq, time.Second, 0)
package wormhole

import (
	"context"
	"errors"
	"time"

	"github.com/wormhole-foundation/wormhole-connect-go/attestation"
	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/algorand"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/aptos"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/cosmos"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/evm"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/near"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/solana"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/utils/addrconv"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// ErrNoTransport is returned by attestation lookups when no transport is configured and the
// registry has no guardian hosts.
var ErrNoTransport = errors.New("no attestation transport configured")

// Context is the entry point of all chain operations within one environment.
type Context struct {
	conns     *connection.Manager
	lggr      logger.Logger
	retriever *attestation.Retriever

	evm      *evm.Context
	solana   *solana.Context
	cosmos   *cosmos.Context
	algorand *algorand.Context
	aptos    *aptos.Context
	near     *near.Context
}

// New creates a Context over reg.
func New(reg *registry.Registry, opts ...Option) (*Context, error) {
	if reg == nil {
		return nil, errors.New("registry is required")
	}

	o := options{lggr: logger.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	if o.transport == nil && len(reg.GuardianHosts()) > 0 {
		rest, err := attestation.NewRESTTransport(reg.GuardianHosts())
		if err != nil {
			return nil, err
		}
		o.transport = rest
	}

	conns := connection.NewManager(reg)
	c := &Context{
		conns:    conns,
		lggr:     o.lggr.Named("wormhole"),
		evm:      evm.New(conns, addrconv.ToUniversal, o.lggr, o.evmOpts...),
		solana:   solana.New(conns, addrconv.ToUniversal, o.lggr, o.solanaOpts...),
		cosmos:   cosmos.New(conns, addrconv.ToUniversal, o.lggr, o.cosmosOpts...),
		algorand: algorand.New(conns, addrconv.ToUniversal, o.lggr),
		aptos:    aptos.New(conns, addrconv.ToUniversal, o.lggr, o.aptosOpts...),
		near:     near.New(conns, addrconv.ToUniversal, o.lggr),
	}
	if o.transport != nil {
		c.retriever = attestation.NewRetriever(o.transport, o.lggr, o.retrieverOpts...)
	}

	return c, nil
}

// Registry returns the chain registry.
func (c *Context) Registry() *registry.Registry {
	return c.conns.Registry()
}

// Connections returns the connection manager shared by the family contexts.
func (c *Context) Connections() *connection.Manager {
	return c.conns
}

// GetContext returns the family context of a chain.
func (c *Context) GetContext(chainName string) (chain.Context, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}

	return c.contextFor(cfg)
}

func (c *Context) contextFor(cfg registry.ChainConfig) (chain.Context, error) {
	switch cfg.Family {
	case registry.FamilyEVM:
		return c.evm, nil
	case registry.FamilySolana:
		return c.solana, nil
	case registry.FamilyCosmos:
		return c.cosmos, nil
	case registry.FamilyAlgorand:
		return c.algorand, nil
	case registry.FamilyAptos:
		return c.aptos, nil
	case registry.FamilyNear:
		return c.near, nil
	case registry.FamilyOther:
	}

	return nil, &chain.UnsupportedFamilyError{Chain: cfg.Name, Family: cfg.Family}
}

// Send validates req and submits it through the context of the source chain. Requests
// with a payload go through SendWithPayload of that context.
//
// Validation happens before any network call: both chains must resolve, the amounts must
// parse and the destination address must be valid for the destination family.
func (c *Context) Send(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	fc, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	c.lggr.Infow("Sending transfer", "from", req.FromChain, "to", req.ToChain, "token", req.Token.String(),
		"amount", req.Amount, "payload", len(req.Payload) > 0)

	if len(req.Payload) > 0 {
		return fc.SendWithPayload(ctx, req)
	}

	return fc.Send(ctx, req)
}

// SendWithPayload is Send for requests that must carry a payload.
func (c *Context) SendWithPayload(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	if len(req.Payload) == 0 {
		return nil, chain.ErrPayloadRequired
	}
	fc, err := c.validate(req)
	if err != nil {
		return nil, err
	}

	c.lggr.Infow("Sending transfer with payload", "from", req.FromChain, "to", req.ToChain,
		"token", req.Token.String(), "amount", req.Amount)

	return fc.SendWithPayload(ctx, req)
}

func (c *Context) validate(req chain.TransferRequest) (chain.Context, error) {
	reg := c.conns.Registry()
	from, err := reg.Resolve(req.FromChain)
	if err != nil {
		return nil, err
	}
	to, err := reg.Resolve(req.ToChain)
	if err != nil {
		return nil, err
	}
	if err = chain.ValidateAmount(req); err != nil {
		return nil, err
	}
	if _, err = addrconv.ToBytes(to, req.ToAddress); err != nil {
		return nil, err
	}

	return c.contextFor(from)
}

// ParseSequenceFromLog returns the first sequence the core contract of chainName emitted in
// receipt.
func (c *Context) ParseSequenceFromLog(ctx context.Context, chainName string, receipt chain.Receipt) (chain.Sequence, error) {
	fc, err := c.GetContext(chainName)
	if err != nil {
		return "", err
	}

	return fc.ParseSequenceFromLog(ctx, receipt, chainName)
}

// ParseSequencesFromLog returns every sequence the core contract of chainName emitted in
// receipt. It fails with chain.NoSequenceFoundError rather than returning an empty slice.
func (c *Context) ParseSequencesFromLog(ctx context.Context, chainName string, receipt chain.Receipt) ([]chain.Sequence, error) {
	fc, err := c.GetContext(chainName)
	if err != nil {
		return nil, err
	}

	return fc.ParseSequencesFromLog(ctx, receipt, chainName)
}

// GetEmitterAddress returns the 64 character hex emitter of a native address.
func (c *Context) GetEmitterAddress(chainName, address string) (string, error) {
	fc, err := c.GetContext(chainName)
	if err != nil {
		return "", err
	}

	return fc.GetEmitterAddress(chainName, address)
}

// GetTokenBridgeEmitter returns the emitter of the chain's token bridge.
func (c *Context) GetTokenBridgeEmitter(chainName string) (string, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return "", err
	}
	if cfg.Contracts.TokenBridge == "" {
		return "", &chain.MissingContractsError{Chain: cfg.Name, Contract: registry.ContractTokenBridge}
	}

	return c.GetEmitterAddress(string(cfg.Name), cfg.Contracts.TokenBridge)
}

// GetSignedVAAWithRetry polls the guardians for the VAA of emitterChain, emitterAddress and
// sequence. See attestation.Retriever.
func (c *Context) GetSignedVAAWithRetry(
	ctx context.Context, emitterChain, emitterAddress string, sequence chain.Sequence, interval time.Duration, maxAttempts uint,
) ([]byte, error) {
	if c.retriever == nil {
		return nil, ErrNoTransport
	}
	cfg, err := c.conns.Registry().Resolve(emitterChain)
	if err != nil {
		return nil, err
	}

	return c.retriever.GetSignedVAAWithRetry(ctx, cfg.ID, emitterAddress, sequence, interval, maxAttempts)
}

// RegisterProvider sets the read connection of a chain.
func (c *Context) RegisterProvider(chainName string, provider any) error {
	return c.conns.RegisterProvider(chainName, provider)
}

// RegisterSigner sets the write connection of a chain.
func (c *Context) RegisterSigner(chainName string, signer any) error {
	return c.conns.RegisterSigner(chainName, signer)
}

// UnregisterSigner removes the write connection of a chain.
func (c *Context) UnregisterSigner(chainName string) error {
	return c.conns.UnregisterSigner(chainName)
}

// ClearSigners removes every write connection.
func (c *Context) ClearSigners() {
	c.conns.ClearSigners()
}
