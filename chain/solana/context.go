// Package solana implements the chain context of the Solana family.
//
// The context expects a solana.RPCClient registered as provider and a solana-go PrivateKey
// registered as signer. Receipts are *rpc.GetTransactionResult.
package solana

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/Masterminds/semver/v3"
	sollib "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	solrpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/contracts"
	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const sequenceLogPrefix = "Program log: Sequence: "

var (
	stepVersion = semver.MustParse("1.0.0")

	_ chain.Context = (*Context)(nil)
)

// Program is a deployed Wormhole program.
type Program struct {
	Name   string
	ID     sollib.PublicKey
	Client RPCClient
}

// Option configures a Context.
type Option func(*Context)

// WithSendOpts applies opts to every transaction the context sends.
func WithSendOpts(opts ...SendOpt) Option {
	return func(c *Context) {
		c.sendOpts = append(c.sendOpts, opts...)
	}
}

// WithNonceSource replaces the random source of message nonces.
func WithNonceSource(f func() uint32) Option {
	return func(c *Context) {
		c.nonce = f
	}
}

// Context implements chain.Context for Solana.
type Context struct {
	conns     *connection.Manager
	programs  *contracts.Resolver[Program]
	universal chain.UniversalAddressFunc
	lggr      logger.Logger
	nonce     func() uint32
	sendOpts  []SendOpt
}

// New creates a Solana context. universal encodes recipients of other families.
func New(conns *connection.Manager, universal chain.UniversalAddressFunc, lggr logger.Logger, opts ...Option) *Context {
	c := &Context{
		conns:     conns,
		programs:  contracts.NewResolver(conns, bindProgram),
		universal: universal,
		lggr:      lggr.Named("solana"),
		nonce:     rand.Uint32,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func bindProgram(cfg registry.ChainConfig, name, address string, provider any) (Program, error) {
	client, ok := provider.(RPCClient)
	if !ok {
		return Program{}, &chain.ConnectionTypeError{Chain: cfg.Name, Kind: "provider", Want: "solana.RPCClient", Got: provider}
	}
	id, err := ParsePublicKey(cfg, address)
	if err != nil {
		return Program{}, fmt.Errorf("program %s: %w", name, err)
	}

	return Program{Name: name, ID: id, Client: client}, nil
}

func (*Context) Family() registry.Family {
	return registry.FamilySolana
}

// Send transfers an SPL token. Tokens native to Solana are locked in custody; wrapped tokens
// are burned. The native SOL sentinel returns chain.ErrTokenIDRequired, wrap SOL first.
func (c *Context) Send(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	if req.Token.IsNative() {
		return nil, chain.ErrTokenIDRequired
	}

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

	handle, err := c.programs.MustGetContracts(string(from.Name))
	if err != nil {
		return nil, err
	}
	core, err := handle.Core()
	if err != nil {
		return nil, err
	}
	bridge, err := handle.Bridge()
	if err != nil {
		return nil, err
	}
	payer, err := connection.SignerAs[sollib.PrivateKey](c.conns, string(from.Name))
	if err != nil {
		return nil, err
	}
	if req.FromAddress != "" && req.FromAddress != payer.PublicKey().String() {
		return nil, fmt.Errorf("from address %s does not match signer %s", req.FromAddress, payer.PublicKey())
	}

	mint, wrapped, err := c.mintOf(from, bridge.ID, req.Token)
	if err != nil {
		return nil, err
	}

	nonce := c.nonce()
	step := pipeline.NewStep("transfer", stepVersion, "approve and transfer through the token bridge",
		func(ctx context.Context) (*solrpc.GetTransactionResult, error) {
			ixs, message, err := c.transferInstructions(ctx, core, bridge, payer.PublicKey(), mint, wrapped, transferData{
				Nonce:         nonce,
				Amount:        amount.Uint64(),
				Fee:           fee.Uint64(),
				TargetAddress: recipient,
				TargetChain:   uint16(to.ID),
			})
			if err != nil {
				return nil, err
			}

			opts := append([]SendOpt{WithTxModifiers(AddSigners(message))}, c.sendOpts...)
			res, err := NewClient(bridge.Client, payer).SendAndConfirmTx(ctx, ixs, opts...)
			if err != nil {
				return nil, err
			}
			c.lggr.Infow("Confirmed transfer", "message", message.PublicKey())

			return res, nil
		})

	key := chain.PipelineKey(ctx, from, to, req, payer.PublicKey().String())
	res, err := pipeline.Run(ctx, pipeline.NewBundle(c.lggr, pipeline.ReporterFromContext(ctx)), key, step)
	if err != nil {
		return nil, err
	}

	return pipeline.OutputAs[*solrpc.GetTransactionResult](res)
}

// SendWithPayload is not supported by this context.
func (c *Context) SendWithPayload(context.Context, chain.TransferRequest) (chain.Receipt, error) {
	return nil, fmt.Errorf("solana payload transfers: %w", chain.ErrNotSupported)
}

// mintOf returns the mint to transfer and whether it is a wrapped asset of the token bridge.
func (c *Context) mintOf(from registry.ChainConfig, tokenBridge sollib.PublicKey, token chain.TokenID) (sollib.PublicKey, bool, error) {
	if token.Chain == "" || token.Chain == from.Name {
		mint, err := ParsePublicKey(from, token.Address)
		return mint, false, err
	}

	origin, err := c.conns.Registry().Resolve(string(token.Chain))
	if err != nil {
		return sollib.PublicKey{}, false, err
	}
	if origin.Name == from.Name {
		mint, err := ParsePublicKey(from, token.Address)
		return mint, false, err
	}
	original, err := c.universal(origin, token.Address)
	if err != nil {
		return sollib.PublicKey{}, false, err
	}
	mint, err := WrappedMint(tokenBridge, uint16(origin.ID), original)

	return mint, true, err
}

// transferInstructions returns the fee, approve and transfer instructions and the new message
// account that must sign them.
func (c *Context) transferInstructions(
	ctx context.Context, core, bridge Program, payer, mint sollib.PublicKey, wrapped bool, data transferData,
) ([]sollib.Instruction, sollib.PrivateKey, error) {
	accounts, err := deriveTransferAccounts(core.ID, bridge.ID)
	if err != nil {
		return nil, nil, err
	}
	from, _, err := sollib.FindAssociatedTokenAddress(payer, mint)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive token account: %w", err)
	}
	message, err := sollib.NewRandomPrivateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create message account: %w", err)
	}

	var ixs []sollib.Instruction

	fee, err := c.messageFee(ctx, core.Client, accounts.bridge)
	if err != nil {
		return nil, nil, err
	}
	if fee > 0 {
		ixs = append(ixs, system.NewTransferInstruction(fee, payer, accounts.feeCollector).Build())
	}

	ixs = append(ixs, token.NewApproveInstruction(data.Amount, from, accounts.authoritySigner, payer, nil).Build())

	params := transferParams{
		core:        core.ID,
		tokenBridge: bridge.ID,
		payer:       payer,
		from:        from,
		mint:        mint,
		message:     message.PublicKey(),
		accounts:    accounts,
		data:        data,
	}
	var transfer sollib.Instruction
	if wrapped {
		transfer, err = transferWrappedInstruction(params)
	} else {
		transfer, err = transferNativeInstruction(params)
	}
	if err != nil {
		return nil, nil, err
	}

	return append(ixs, transfer), message, nil
}

func (c *Context) messageFee(ctx context.Context, client RPCClient, bridge sollib.PublicKey) (uint64, error) {
	info, err := client.GetAccountInfo(ctx, bridge)
	if err != nil {
		return 0, fmt.Errorf("failed to read bridge account %s: %w", bridge, err)
	}
	if info == nil || info.Value == nil || info.Value.Data == nil {
		return 0, fmt.Errorf("bridge account %s has no data", bridge)
	}

	return decodeBridgeFee(info.Value.Data.GetBinary())
}

// ParseSequenceFromLog returns the first sequence logged by the core program.
func (c *Context) ParseSequenceFromLog(ctx context.Context, receipt chain.Receipt, chainName string) (chain.Sequence, error) {
	seqs, err := c.ParseSequencesFromLog(ctx, receipt, chainName)
	if err != nil {
		return "", err
	}

	return chain.FirstSequence(chainName, seqs)
}

// ParseSequencesFromLog returns every sequence logged by the core program.
func (c *Context) ParseSequencesFromLog(_ context.Context, receipt chain.Receipt, chainName string) ([]chain.Sequence, error) {
	res, ok := receipt.(*solrpc.GetTransactionResult)
	if !ok || res == nil {
		return nil, fmt.Errorf("expected *rpc.GetTransactionResult, got %T", receipt)
	}
	if _, err := c.conns.Registry().Resolve(chainName); err != nil {
		return nil, err
	}

	var seqs []chain.Sequence
	if res.Meta != nil {
		for _, msg := range res.Meta.LogMessages {
			if seq, found := strings.CutPrefix(msg, sequenceLogPrefix); found {
				seqs = append(seqs, chain.Sequence(strings.TrimSpace(seq)))
			}
		}
	}
	if len(seqs) == 0 {
		return nil, &chain.NoSequenceFoundError{Chain: chainName}
	}

	return seqs, nil
}

// GetEmitterAddress returns the emitter account derived from the program address.
func (c *Context) GetEmitterAddress(chainName, address string) (string, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return "", err
	}
	program, err := ParsePublicKey(cfg, address)
	if err != nil {
		return "", err
	}
	emitter, err := EmitterAddress(program)
	if err != nil {
		return "", err
	}

	return chain.EmitterHex([32]byte(emitter)), nil
}
