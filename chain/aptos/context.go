package aptos

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Masterminds/semver/v3"
	aptoslib "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/api"
	"github.com/aptos-labs/aptos-go-sdk/bcs"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/contracts"
	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const (
	transferModule   = "transfer_tokens"
	transferFunction = "transfer_tokens_entry"
	messageEvent     = "::state::WormholeMessage"
)

var (
	stepVersion = semver.MustParse("1.0.0")

	errCoinType = errors.New("coin type must be <address>::<module>::<name>")

	_ chain.Context = (*Context)(nil)
)

// Module is a deployed Wormhole package.
type Module struct {
	Name    string
	Address aptoslib.AccountAddress
	Client  Client
}

// Option configures a Context.
type Option func(*Context)

// WithNonceSource replaces the random source of message nonces.
func WithNonceSource(f func() uint32) Option {
	return func(c *Context) {
		c.nonce = f
	}
}

// Context implements chain.Context for Aptos.
type Context struct {
	conns     *connection.Manager
	modules   *contracts.Resolver[Module]
	universal chain.UniversalAddressFunc
	lggr      logger.Logger
	nonce     func() uint32
}

// New creates an Aptos context. universal encodes recipients of other families.
func New(conns *connection.Manager, universal chain.UniversalAddressFunc, lggr logger.Logger, opts ...Option) *Context {
	c := &Context{
		conns:     conns,
		modules:   contracts.NewResolver(conns, bindModule),
		universal: universal,
		lggr:      lggr.Named("aptos"),
		nonce:     rand.Uint32,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func bindModule(cfg registry.ChainConfig, name, address string, provider any) (Module, error) {
	client, ok := provider.(Client)
	if !ok {
		return Module{}, &chain.ConnectionTypeError{Chain: cfg.Name, Kind: "provider", Want: "aptos.Client", Got: provider}
	}
	addr, err := ParseAddress(cfg, address)
	if err != nil {
		return Module{}, fmt.Errorf("module %s: %w", name, err)
	}

	return Module{Name: name, Address: addr, Client: client}, nil
}

func (*Context) Family() registry.Family {
	return registry.FamilyAptos
}

// Send calls transfer_tokens_entry of the token bridge for the coin type of req.Token.
func (c *Context) Send(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	amount, err := chain.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	if !amount.IsUint64() {
		return nil, &chain.InvalidAmountError{Field: "amount", Value: req.Amount}
	}
	fee, err := chain.RelayerFee(req)
	if err != nil {
		return nil, err
	}
	if !fee.IsUint64() {
		return nil, &chain.InvalidAmountError{Field: "relayer_fee", Value: req.RelayerFee}
	}

	reg := c.conns.Registry()
	from, err := reg.Resolve(req.FromChain)
	if err != nil {
		return nil, err
	}
	to, err := reg.Resolve(req.ToChain)
	if err != nil {
		return nil, err
	}
	recipient, err := c.universal(to, req.ToAddress)
	if err != nil {
		return nil, err
	}
	coin, err := coinType(from, req.Token)
	if err != nil {
		return nil, err
	}

	handle, err := c.modules.MustGetContracts(string(from.Name))
	if err != nil {
		return nil, err
	}
	bridge, err := handle.Bridge()
	if err != nil {
		return nil, err
	}
	signer, err := connection.SignerAs[aptoslib.TransactionSigner](c.conns, string(from.Name))
	if err != nil {
		return nil, err
	}
	if req.FromAddress != "" {
		sender, err := ParseAddress(from, req.FromAddress)
		if err != nil {
			return nil, err
		}
		if addr := signer.AccountAddress(); sender != addr {
			return nil, fmt.Errorf("from address %s does not match signer %s", req.FromAddress, addr.String())
		}
	}

	payload, err := transferPayload(bridge.Address, coin, amount.Uint64(), uint64(to.ID), recipient, fee.Uint64(), uint64(c.nonce()))
	if err != nil {
		return nil, err
	}

	step := pipeline.NewStep("transfer", stepVersion, "call transfer_tokens_entry of the token bridge",
		func(context.Context) (*api.UserTransaction, error) {
			submitted, err := bridge.Client.BuildSignAndSubmitTransaction(signer, payload)
			if err != nil {
				return nil, fmt.Errorf("failed to submit transfer: %w", err)
			}
			tx, err := bridge.Client.WaitForTransaction(submitted.Hash)
			if err != nil {
				return nil, fmt.Errorf("failed to wait for transfer %s: %w", submitted.Hash, err)
			}
			if !tx.Success {
				return nil, fmt.Errorf("transfer %s failed: %s", tx.Hash, tx.VmStatus)
			}
			c.lggr.Infow("Confirmed transfer", "tx", tx.Hash, "version", tx.Version)

			return tx, nil
		})

	signerAddr := signer.AccountAddress()
	key := chain.PipelineKey(ctx, from, to, req, signerAddr.String())
	res, err := pipeline.Run(ctx, pipeline.NewBundle(c.lggr, pipeline.ReporterFromContext(ctx)), key, step)
	if err != nil {
		return nil, err
	}

	return pipeline.OutputAs[*api.UserTransaction](res)
}

// SendWithPayload is not supported by this context.
func (*Context) SendWithPayload(context.Context, chain.TransferRequest) (chain.Receipt, error) {
	return nil, fmt.Errorf("aptos payload transfers: %w", chain.ErrNotSupported)
}

// coinType parses the coin type of token. Tokens of other chains must be passed by their
// wrapped coin type.
func coinType(from registry.ChainConfig, token chain.TokenID) (aptoslib.TypeTag, error) {
	address := token.Address
	if token.IsNative() {
		address = NativeCoinType
	} else if token.Chain != "" && token.Chain != from.Name {
		return aptoslib.TypeTag{}, fmt.Errorf("token %s: pass the aptos coin type of foreign tokens: %w", token, chain.ErrNotSupported)
	}

	parts := strings.Split(address, "::")
	if len(parts) != 3 || parts[1] == "" || parts[2] == "" {
		return aptoslib.TypeTag{}, &chain.InvalidAddressError{
			Chain: from.Name, Family: registry.FamilyAptos, Address: address,
			Err: errCoinType,
		}
	}
	addr, err := ParseAddress(from, parts[0])
	if err != nil {
		return aptoslib.TypeTag{}, err
	}

	return aptoslib.TypeTag{Value: &aptoslib.StructTag{Address: addr, Module: parts[1], Name: parts[2]}}, nil
}

func transferPayload(
	bridge aptoslib.AccountAddress, coin aptoslib.TypeTag, amount, toChain uint64, recipient [32]byte, fee, nonce uint64,
) (aptoslib.TransactionPayload, error) {
	var args [][]byte
	for _, v := range []uint64{amount, toChain} {
		b, err := bcs.SerializeU64(v)
		if err != nil {
			return aptoslib.TransactionPayload{}, err
		}
		args = append(args, b)
	}
	b, err := bcs.SerializeBytes(recipient[:])
	if err != nil {
		return aptoslib.TransactionPayload{}, err
	}
	args = append(args, b)
	for _, v := range []uint64{fee, nonce} {
		b, err := bcs.SerializeU64(v)
		if err != nil {
			return aptoslib.TransactionPayload{}, err
		}
		args = append(args, b)
	}

	return aptoslib.TransactionPayload{Payload: &aptoslib.EntryFunction{
		Module:   aptoslib.ModuleId{Address: bridge, Name: transferModule},
		Function: transferFunction,
		ArgTypes: []aptoslib.TypeTag{coin},
		Args:     args,
	}}, nil
}

// ParseSequenceFromLog returns the first sequence of a WormholeMessage event.
func (c *Context) ParseSequenceFromLog(ctx context.Context, receipt chain.Receipt, chainName string) (chain.Sequence, error) {
	seqs, err := c.ParseSequencesFromLog(ctx, receipt, chainName)
	if err != nil {
		return "", err
	}

	return chain.FirstSequence(chainName, seqs)
}

// ParseSequencesFromLog returns the sequence field of every {core}::state::WormholeMessage
// event.
func (c *Context) ParseSequencesFromLog(_ context.Context, receipt chain.Receipt, chainName string) ([]chain.Sequence, error) {
	tx, ok := receipt.(*api.UserTransaction)
	if !ok || tx == nil {
		return nil, fmt.Errorf("expected *api.UserTransaction, got %T", receipt)
	}
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}
	if cfg.Contracts.Core == "" {
		return nil, &chain.MissingContractsError{Chain: cfg.Name, Contract: registry.ContractCore}
	}
	core, err := ParseAddress(cfg, cfg.Contracts.Core)
	if err != nil {
		return nil, err
	}

	var seqs []chain.Sequence
	for _, ev := range tx.Events {
		if ev == nil || !isMessageEvent(cfg, ev.Type, core) {
			continue
		}
		if seq, ok := ev.Data["sequence"]; ok {
			seqs = append(seqs, chain.Sequence(fmt.Sprint(seq)))
		}
	}
	if len(seqs) == 0 {
		return nil, &chain.NoSequenceFoundError{Chain: chainName}
	}

	return seqs, nil
}

func isMessageEvent(cfg registry.ChainConfig, eventType string, core aptoslib.AccountAddress) bool {
	module, found := strings.CutSuffix(eventType, messageEvent)
	if !found {
		return false
	}
	addr, err := ParseAddress(cfg, module)

	return err == nil && addr == core
}

// tokenBridgeEmitter is the id of the emitter capability the token bridge holds on the core
// contract. Aptos messages are emitted under capability ids, not account addresses.
const tokenBridgeEmitter = 1

// GetEmitterAddress returns the 32 byte emitter of address. The configured token bridge
// account maps to its emitter capability id; any other address is normalized to 32 bytes.
func (c *Context) GetEmitterAddress(chainName, address string) (string, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return "", err
	}
	addr, err := ParseAddress(cfg, address)
	if err != nil {
		return "", err
	}
	if cfg.Contracts.TokenBridge != "" {
		if bridge, berr := ParseAddress(cfg, cfg.Contracts.TokenBridge); berr == nil && bridge == addr {
			var emitter [32]byte
			binary.BigEndian.PutUint64(emitter[24:], tokenBridgeEmitter)

			return chain.EmitterHex(emitter), nil
		}
	}

	return chain.EmitterHex(addr), nil
}
