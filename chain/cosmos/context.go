// Package cosmos implements the chain context of CosmWasm chains running the Wormhole token
// bridge.
//
// Sends return the unsigned execute messages ([]sdk.Msg) for the caller to sign and broadcast
// with their own wallet, so no connection is required. Receipts are *sdk.TxResponse.
package cosmos

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"math/rand/v2"

	"cosmossdk.io/math"
	wasmtypes "github.com/CosmWasm/wasmd/x/wasm/types"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/tidwall/gjson"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/contracts"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const (
	wasmEventType        = "wasm"
	sequenceAttribute    = "message.sequence"
	contractAddressField = "_contract_address"
)

var (
	errSenderRequired = errors.New("sender address required")

	_ chain.Context = (*Context)(nil)
)

// Contract is a deployed Wormhole contract.
type Contract struct {
	Name    string
	Address string
}

// Option configures a Context.
type Option func(*Context)

// WithNonceSource replaces the random source of message nonces.
func WithNonceSource(f func() uint32) Option {
	return func(c *Context) {
		c.nonce = f
	}
}

// Context implements chain.Context for Cosmos chains.
type Context struct {
	conns     *connection.Manager
	contracts *contracts.Resolver[Contract]
	universal chain.UniversalAddressFunc
	lggr      logger.Logger
	nonce     func() uint32
}

// New creates a Cosmos context. universal encodes recipients of other families.
func New(conns *connection.Manager, universal chain.UniversalAddressFunc, lggr logger.Logger, opts ...Option) *Context {
	c := &Context{
		conns:     conns,
		contracts: contracts.NewResolver(conns, bindContract, contracts.WithoutProvider()),
		universal: universal,
		lggr:      lggr.Named("cosmos"),
		nonce:     rand.Uint32,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

func bindContract(cfg registry.ChainConfig, name, address string, _ any) (Contract, error) {
	if _, err := DecodeAddress(cfg, address); err != nil {
		return Contract{}, fmt.Errorf("contract %s: %w", name, err)
	}

	return Contract{Name: name, Address: address}, nil
}

func (*Context) Family() registry.Family {
	return registry.FamilyCosmos
}

// Send returns the messages of a token bridge transfer signed by req.FromAddress.
func (c *Context) Send(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	return c.send(ctx, req, nil)
}

// SendWithPayload returns the messages of a transfer with payload.
func (c *Context) SendWithPayload(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	if len(req.Payload) == 0 {
		return nil, chain.ErrPayloadRequired
	}

	return c.send(ctx, req, req.Payload)
}

func (c *Context) send(_ context.Context, req chain.TransferRequest, payload []byte) ([]sdk.Msg, error) {
	amount, err := parseUint128("amount", req.Amount)
	if err != nil {
		return nil, err
	}
	fee, err := chain.RelayerFee(req)
	if err != nil {
		return nil, err
	}
	if fee.BitLen() > 128 {
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
	if req.FromAddress == "" {
		return nil, &chain.InvalidAddressError{Chain: from.Name, Family: registry.FamilyCosmos, Err: errSenderRequired}
	}
	if _, err = DecodeAddress(from, req.FromAddress); err != nil {
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

	info, err := c.assetInfo(from, req.Token)
	if err != nil {
		return nil, err
	}

	transfer := &initiateTransfer{
		Asset:          asset{Amount: amount.String(), Info: info},
		RecipientChain: uint16(to.ID),
		Recipient:      recipient[:],
		Fee:            fee.String(),
		Nonce:          c.nonce(),
	}

	var msgs []sdk.Msg
	if info.NativeToken != nil {
		funds := sdk.NewCoins(sdk.NewCoin(info.NativeToken.Denom, math.NewIntFromBigInt(amount)))
		deposit, err := execute(req.FromAddress, bridge.Address, depositTokensMsg{}, funds)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, deposit)
	} else {
		allowance, err := execute(req.FromAddress, info.Token.ContractAddr, increaseAllowanceMsg{
			IncreaseAllowance: increaseAllowance{Spender: bridge.Address, Amount: amount.String()},
		}, sdk.NewCoins())
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, allowance)
	}

	body := initiateTransferMsg{InitiateTransfer: transfer}
	if len(payload) > 0 {
		transfer.Payload = payload
		body = initiateTransferMsg{WithPayload: transfer}
	}
	initiate, err := execute(req.FromAddress, bridge.Address, body, sdk.NewCoins())
	if err != nil {
		return nil, err
	}
	msgs = append(msgs, initiate)

	c.lggr.Debugw("Built transfer messages", "chain", from.Name, "token", req.Token, "messages", len(msgs))

	return msgs, nil
}

// assetInfo tells bank denoms from cw20 contracts. Tokens of other chains must be passed by
// their local cw20 address.
func (c *Context) assetInfo(from registry.ChainConfig, token chain.TokenID) (assetInfo, error) {
	if token.IsNative() {
		if err := sdk.ValidateDenom(from.Metadata.NativeDenom); err != nil {
			return assetInfo{}, fmt.Errorf("chain %s native denom: %w", from.Name, err)
		}

		return assetInfo{NativeToken: &nativeToken{Denom: from.Metadata.NativeDenom}}, nil
	}
	if token.Chain != "" && token.Chain != from.Name {
		return assetInfo{}, fmt.Errorf("token %s: pass the local cw20 address of foreign tokens: %w", token, chain.ErrNotSupported)
	}

	if _, err := DecodeAddress(from, token.Address); err == nil {
		return assetInfo{Token: &cw20Token{ContractAddr: token.Address}}, nil
	}
	if err := sdk.ValidateDenom(token.Address); err != nil {
		return assetInfo{}, &chain.InvalidAddressError{Chain: from.Name, Family: registry.FamilyCosmos, Address: token.Address, Err: err}
	}

	return assetInfo{NativeToken: &nativeToken{Denom: token.Address}}, nil
}

func execute(sender, contract string, msg any, funds sdk.Coins) (*wasmtypes.MsgExecuteContract, error) {
	b, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode execute message: %w", err)
	}

	return &wasmtypes.MsgExecuteContract{
		Sender:   sender,
		Contract: contract,
		Msg:      b,
		Funds:    funds,
	}, nil
}

func parseUint128(field, value string) (*big.Int, error) {
	n, err := chain.ParseAmount(field, value)
	if err != nil {
		return nil, err
	}
	if n.BitLen() > 128 {
		return nil, &chain.InvalidAmountError{Field: field, Value: value}
	}

	return n, nil
}

// ParseSequenceFromLog returns the first sequence emitted by the core contract.
func (c *Context) ParseSequenceFromLog(ctx context.Context, receipt chain.Receipt, chainName string) (chain.Sequence, error) {
	seqs, err := c.ParseSequencesFromLog(ctx, receipt, chainName)
	if err != nil {
		return "", err
	}

	return chain.FirstSequence(chainName, seqs)
}

// ParseSequencesFromLog reads message.sequence attributes of wasm events emitted by the core
// contract. Responses without events fall back to the JSON logs in RawLog.
func (c *Context) ParseSequencesFromLog(_ context.Context, receipt chain.Receipt, chainName string) ([]chain.Sequence, error) {
	res, ok := receipt.(*sdk.TxResponse)
	if !ok || res == nil {
		return nil, fmt.Errorf("expected *types.TxResponse, got %T", receipt)
	}
	handle, err := c.contracts.MustGetContracts(chainName)
	if err != nil {
		return nil, err
	}
	core, err := handle.Core()
	if err != nil {
		return nil, err
	}

	var seqs []chain.Sequence
	for _, ev := range res.Events {
		if ev.Type != wasmEventType {
			continue
		}
		attrs := make(map[string]string, len(ev.Attributes))
		for _, attr := range ev.Attributes {
			attrs[attr.Key] = attr.Value
		}
		if seq, found := coreSequence(attrs, core.Address); found {
			seqs = append(seqs, chain.Sequence(seq))
		}
	}
	if len(seqs) == 0 {
		seqs = rawLogSequences(res.RawLog, core.Address)
	}
	if len(seqs) == 0 {
		return nil, &chain.NoSequenceFoundError{Chain: chainName}
	}

	return seqs, nil
}

func coreSequence(attrs map[string]string, core string) (string, bool) {
	seq, found := attrs[sequenceAttribute]
	if !found {
		return "", false
	}
	if emitter, ok := attrs[contractAddressField]; ok && emitter != core {
		return "", false
	}

	return seq, true
}

// rawLogSequences scans logs of the form [{"events":[{"type":"wasm","attributes":[...]}]}].
func rawLogSequences(raw, core string) []chain.Sequence {
	if !gjson.Valid(raw) {
		return nil
	}

	var seqs []chain.Sequence
	gjson.Get(raw, "#.events|@flatten").ForEach(func(_, ev gjson.Result) bool {
		if ev.Get("type").String() != wasmEventType {
			return true
		}
		attrs := map[string]string{}
		ev.Get("attributes").ForEach(func(_, attr gjson.Result) bool {
			attrs[attr.Get("key").String()] = attr.Get("value").String()
			return true
		})
		if seq, found := coreSequence(attrs, core); found {
			seqs = append(seqs, chain.Sequence(seq))
		}

		return true
	})

	return seqs
}

// GetEmitterAddress returns the bech32 decoded address left padded to 32 bytes.
func (c *Context) GetEmitterAddress(chainName, address string) (string, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return "", err
	}
	b, err := DecodeAddress(cfg, address)
	if err != nil {
		return "", err
	}
	padded, err := chain.PadTo32(b)
	if err != nil {
		return "", err
	}

	return chain.EmitterHex(padded), nil
}
