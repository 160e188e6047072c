package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/contracts"
	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

var stepVersion = semver.MustParse("1.0.0")

const eventLogMessagePublished = "LogMessagePublished"

var _ chain.Context = (*Context)(nil)

// Option configures a Context.
type Option func(*Context)

// WithNonceSource replaces the random source of message nonces.
func WithNonceSource(f func() uint32) Option {
	return func(c *Context) {
		c.nonce = f
	}
}

// Context implements chain.Context for EVM chains. Receipts are *types.Receipt.
type Context struct {
	conns     *connection.Manager
	contracts *contracts.Resolver[*Contract]
	universal chain.UniversalAddressFunc
	lggr      logger.Logger
	nonce     func() uint32
}

// New creates an EVM context. universal encodes recipients of other families.
func New(conns *connection.Manager, universal chain.UniversalAddressFunc, lggr logger.Logger, opts ...Option) *Context {
	c := &Context{
		conns:     conns,
		contracts: NewResolver(conns),
		universal: universal,
		lggr:      lggr.Named("evm"),
		nonce:     rand.Uint32,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Contracts returns the resolver of bound EVM contracts.
func (c *Context) Contracts() *contracts.Resolver[*Contract] {
	return c.contracts
}

func (*Context) Family() registry.Family {
	return registry.FamilyEVM
}

// Send transfers the native asset through wrapAndTransferETH, or approves and transfers an
// ERC20 token through transferTokens.
func (c *Context) Send(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	return c.send(ctx, req, nil)
}

// SendWithPayload is Send through the payload carrying variants of the token bridge.
func (c *Context) SendWithPayload(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	if len(req.Payload) == 0 {
		return nil, chain.ErrPayloadRequired
	}

	return c.send(ctx, req, req.Payload)
}

func (c *Context) send(ctx context.Context, req chain.TransferRequest, payload []byte) (*types.Receipt, error) {
	amount, err := chain.ParseAmount("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	fee, err := chain.RelayerFee(req)
	if err != nil {
		return nil, err
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

	handle, err := c.contracts.MustGetContracts(string(from.Name))
	if err != nil {
		return nil, err
	}
	bridge, err := handle.Bridge()
	if err != nil {
		return nil, err
	}
	signer, err := connection.SignerAs[*bind.TransactOpts](c.conns, string(from.Name))
	if err != nil {
		return nil, err
	}
	if req.FromAddress != "" {
		sender, perr := ParseAddress(from, req.FromAddress)
		if perr != nil {
			return nil, perr
		}
		if sender != signer.From {
			return nil, fmt.Errorf("from address %s does not match signer %s", sender.Hex(), signer.From.Hex())
		}
	}

	nonce := c.nonce()
	toID := uint16(to.ID)

	var steps []pipeline.Step
	if req.Token.IsNative() {
		steps = append(steps, pipeline.NewStep("transfer", stepVersion, "wrap and transfer the native asset",
			func(ctx context.Context) (*types.Receipt, error) {
				if payload != nil {
					return c.transact(ctx, bridge.BoundContract, bridge.Client, signer, amount,
						"wrapAndTransferETHWithPayload", toID, recipient, nonce, payload)
				}

				return c.transact(ctx, bridge.BoundContract, bridge.Client, signer, amount,
					"wrapAndTransferETH", toID, recipient, fee, nonce)
			}))
	} else {
		token, terr := c.localToken(ctx, from, bridge, req.Token)
		if terr != nil {
			return nil, terr
		}

		steps = append(steps,
			pipeline.NewStep("approve", stepVersion, "approve the token bridge to spend the amount",
				func(ctx context.Context) (*types.Receipt, error) {
					return c.approve(ctx, bridge, token, signer, amount)
				}),
			pipeline.NewStep("transfer", stepVersion, "transfer the token through the token bridge",
				func(ctx context.Context) (*types.Receipt, error) {
					if payload != nil {
						return c.transact(ctx, bridge.BoundContract, bridge.Client, signer, nil,
							"transferTokensWithPayload", token, amount, toID, recipient, nonce, payload)
					}

					return c.transact(ctx, bridge.BoundContract, bridge.Client, signer, nil,
						"transferTokens", token, amount, toID, recipient, fee, nonce)
				}),
		)
	}

	res, err := pipeline.Run(ctx, pipeline.NewBundle(c.lggr, pipeline.ReporterFromContext(ctx)),
		chain.PipelineKey(ctx, from, to, req, signer.From.Hex()), steps...)
	if err != nil {
		return nil, err
	}

	return pipeline.OutputAs[*types.Receipt](res)
}

// approve grants the bridge an allowance of amount unless it already holds one. It returns a
// nil receipt when no transaction was needed.
func (c *Context) approve(ctx context.Context, bridge *Contract, token common.Address, signer *bind.TransactOpts, amount *big.Int) (*types.Receipt, error) {
	erc20 := bind.NewBoundContract(token, ERC20ABI, bridge.Client, bridge.Client, bridge.Client)

	var out []any
	if err := erc20.Call(&bind.CallOpts{Context: ctx, From: signer.From}, &out, "allowance", signer.From, bridge.Address); err != nil {
		return nil, fmt.Errorf("failed to read allowance of %s: %w", token.Hex(), err)
	}
	if allowance, ok := out[0].(*big.Int); ok && allowance.Cmp(amount) >= 0 {
		c.lggr.Debugw("Allowance sufficient, skipping approve", "token", token.Hex(), "allowance", allowance)
		return nil, nil
	}

	return c.transact(ctx, erc20, bridge.Client, signer, nil, "approve", bridge.Address, amount)
}

func (c *Context) transact(
	ctx context.Context, contract *bind.BoundContract, client OnchainClient, signer *bind.TransactOpts,
	value *big.Int, method string, args ...any,
) (*types.Receipt, error) {
	opts := *signer
	opts.Context = ctx
	opts.Value = value

	tx, err := contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s: %w", method, dataErr(err))
	}
	c.lggr.Infow("Submitted transaction", "method", method, "tx", tx.Hash().Hex())

	receipt, err := waitMined(ctx, client, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for %s tx %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s tx %s reverted", method, tx.Hash().Hex())
	}

	return receipt, nil
}

// ForeignAsset returns the address on chainName of token. Tokens native to chainName are
// returned unchanged; others are looked up as wrapped assets of the token bridge.
func (c *Context) ForeignAsset(ctx context.Context, chainName string, token chain.TokenID) (common.Address, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return common.Address{}, err
	}
	handle, err := c.contracts.MustGetContracts(string(cfg.Name))
	if err != nil {
		return common.Address{}, err
	}
	bridge, err := handle.Bridge()
	if err != nil {
		return common.Address{}, err
	}

	return c.localToken(ctx, cfg, bridge, token)
}

func (c *Context) localToken(ctx context.Context, cfg registry.ChainConfig, bridge *Contract, token chain.TokenID) (common.Address, error) {
	if token.IsNative() {
		return common.Address{}, chain.ErrTokenIDRequired
	}

	origin := cfg
	if token.Chain != "" {
		var err error
		if origin, err = c.conns.Registry().Resolve(string(token.Chain)); err != nil {
			return common.Address{}, err
		}
	}
	if origin.Name == cfg.Name {
		return ParseAddress(cfg, token.Address)
	}

	original, err := c.universal(origin, token.Address)
	if err != nil {
		return common.Address{}, err
	}

	var out []any
	if err = bridge.Call(&bind.CallOpts{Context: ctx}, &out, "wrappedAsset", uint16(origin.ID), original); err != nil {
		return common.Address{}, fmt.Errorf("failed to look up wrapped asset of %s: %w", token, err)
	}
	wrapped, ok := out[0].(common.Address)
	if !ok || wrapped == (common.Address{}) {
		return common.Address{}, fmt.Errorf("token %s is not attested on %s", token, cfg.Name)
	}

	return wrapped, nil
}

// ParseSequenceFromLog returns the sequence of the first LogMessagePublished event emitted by
// the core contract of chainName.
func (c *Context) ParseSequenceFromLog(ctx context.Context, receipt chain.Receipt, chainName string) (chain.Sequence, error) {
	seqs, err := c.ParseSequencesFromLog(ctx, receipt, chainName)
	if err != nil {
		return "", err
	}

	return chain.FirstSequence(chainName, seqs)
}

// ParseSequencesFromLog returns the sequences of every LogMessagePublished event emitted by the
// core contract of chainName. Logs of other contracts are ignored.
func (c *Context) ParseSequencesFromLog(_ context.Context, receipt chain.Receipt, chainName string) ([]chain.Sequence, error) {
	r, ok := receipt.(*types.Receipt)
	if !ok || r == nil {
		return nil, fmt.Errorf("expected *types.Receipt, got %T", receipt)
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

	event := CoreABI.Events[eventLogMessagePublished]
	var seqs []chain.Sequence
	for _, l := range r.Logs {
		if l == nil || l.Address != core || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}

		values, err := CoreABI.Unpack(eventLogMessagePublished, l.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s in tx %s: %w", eventLogMessagePublished, r.TxHash.Hex(), err)
		}
		seq, ok := values[0].(uint64)
		if !ok {
			return nil, errors.New("sequence is not a uint64")
		}
		seqs = append(seqs, chain.Sequence(strconv.FormatUint(seq, 10)))
	}

	if len(seqs) == 0 {
		return nil, &chain.NoSequenceFoundError{Chain: chainName}
	}

	return seqs, nil
}

// GetEmitterAddress left pads the 20 byte address to 32 bytes.
func (c *Context) GetEmitterAddress(chainName, address string) (string, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return "", err
	}
	addr, err := ParseAddress(cfg, address)
	if err != nil {
		return "", err
	}
	padded, err := chain.PadTo32(addr.Bytes())
	if err != nil {
		return "", err
	}

	return chain.EmitterHex(padded), nil
}
