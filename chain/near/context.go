// Package near implements the chain context of NEAR.
//
// The context expects a near.Client, such as *near.RPC, registered as provider and a
// near.KeyPair registered as signer. Contract addresses and tokens are account ids.
// Receipts are *near.Outcome.
package near

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/tidwall/gjson"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/contracts"
	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const (
	tgas = 1_000_000_000_000

	callGas     = 100 * tgas
	transferGas = 300 * tgas

	eventPrefix   = "EVENT_JSON:"
	eventStandard = "wormhole"
	eventPublish  = "publish"
)

var (
	stepVersion = semver.MustParse("1.0.0")
	oneYocto    = big.NewInt(1)

	_ chain.Context = (*Context)(nil)
)

// Contract is a deployed Wormhole contract.
type Contract struct {
	Name      string
	AccountID string
	Client    Client
}

// Context implements chain.Context for NEAR.
type Context struct {
	conns     *connection.Manager
	contracts *contracts.Resolver[Contract]
	universal chain.UniversalAddressFunc
	lggr      logger.Logger
}

// New creates a NEAR context. universal encodes recipients of other families.
// The bridge assigns no message nonce on NEAR.
func New(conns *connection.Manager, universal chain.UniversalAddressFunc, lggr logger.Logger) *Context {
	return &Context{
		conns:     conns,
		contracts: contracts.NewResolver(conns, bindContract),
		universal: universal,
		lggr:      lggr.Named("near"),
	}
}

func bindContract(cfg registry.ChainConfig, name, address string, provider any) (Contract, error) {
	client, ok := provider.(Client)
	if !ok {
		return Contract{}, &chain.ConnectionTypeError{Chain: cfg.Name, Kind: "provider", Want: "near.Client", Got: provider}
	}
	if err := ValidateAccountID(cfg, address); err != nil {
		return Contract{}, fmt.Errorf("contract %s: %w", name, err)
	}

	return Contract{Name: name, AccountID: address, Client: client}, nil
}

func (*Context) Family() registry.Family {
	return registry.FamilyNear
}

// Send transfers NEAR through send_transfer_near, or a fungible token through
// ft_transfer_call after registering the bridge with the token's storage.
func (c *Context) Send(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	return c.send(ctx, req, nil)
}

// SendWithPayload is Send with req.Payload forwarded to the bridge.
func (c *Context) SendWithPayload(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	if len(req.Payload) == 0 {
		return nil, chain.ErrPayloadRequired
	}

	return c.send(ctx, req, req.Payload)
}

// transferMessage is the bridge message of both transfer kinds.
type transferMessage struct {
	Receiver   string `json:"receiver"`
	Chain      uint16 `json:"chain"`
	Fee        string `json:"fee"`
	Payload    string `json:"payload"`
	MessageFee uint64 `json:"message_fee"`
}

func (c *Context) send(ctx context.Context, req chain.TransferRequest, payload []byte) (chain.Receipt, error) {
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
	if !req.Token.IsNative() {
		if req.Token.Chain != "" && req.Token.Chain != from.Name {
			return nil, fmt.Errorf("token %s: pass the near account of foreign tokens: %w", req.Token, chain.ErrNotSupported)
		}
		if err = ValidateAccountID(from, req.Token.Address); err != nil {
			return nil, err
		}
	}

	handle, err := c.contracts.MustGetContracts(string(from.Name))
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
	signer, err := connection.SignerAs[KeyPair](c.conns, string(from.Name))
	if err != nil {
		return nil, err
	}
	if req.FromAddress != "" && req.FromAddress != signer.AccountID {
		return nil, fmt.Errorf("from address %s does not match signer %s", req.FromAddress, signer.AccountID)
	}

	msg := transferMessage{
		Receiver: hex.EncodeToString(recipient[:]),
		Chain:    uint16(to.ID),
		Fee:      fee.String(),
		Payload:  hex.EncodeToString(payload),
	}
	var steps []pipeline.Step
	if req.Token.IsNative() {
		steps = append(steps, pipeline.NewStep("transfer", stepVersion, "call send_transfer_near of the token bridge",
			func(ctx context.Context) (*Outcome, error) {
				return c.transferNative(ctx, core, bridge, signer, amount, msg)
			}))
	} else {
		token := req.Token.Address
		steps = append(steps,
			pipeline.NewStep("storage", stepVersion, "register the token bridge with the token storage",
				func(ctx context.Context) (string, error) {
					return c.registerStorage(ctx, bridge, signer, token)
				}),
			pipeline.NewStep("transfer", stepVersion, "call ft_transfer_call of the token",
				func(ctx context.Context) (*Outcome, error) {
					return c.transferToken(ctx, core, bridge, signer, token, amount, msg)
				}),
		)
	}

	key := chain.PipelineKey(ctx, from, to, req, signer.AccountID)
	res, err := pipeline.Run(ctx, pipeline.NewBundle(c.lggr, pipeline.ReporterFromContext(ctx)), key, steps...)
	if err != nil {
		return nil, err
	}

	return pipeline.OutputAs[*Outcome](res)
}

func (c *Context) messageFee(ctx context.Context, core Contract) (uint64, error) {
	raw, err := core.Client.CallFunction(ctx, core.AccountID, "message_fee", struct{}{})
	if err != nil {
		return 0, fmt.Errorf("failed to read message fee: %w", err)
	}
	res := gjson.ParseBytes(raw)
	if res.Type != gjson.Number {
		return 0, fmt.Errorf("unexpected message fee %q", raw)
	}

	return res.Uint(), nil
}

func (c *Context) transferNative(ctx context.Context, core, bridge Contract, signer KeyPair, amount *big.Int, msg transferMessage) (*Outcome, error) {
	messageFee, err := c.messageFee(ctx, core)
	if err != nil {
		return nil, err
	}
	msg.MessageFee = messageFee
	args, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}

	deposit := new(big.Int).Add(amount, new(big.Int).SetUint64(messageFee))

	out, err := bridge.Client.SignAndSend(ctx, signer, bridge.AccountID, FunctionCall{
		MethodName: "send_transfer_near",
		Args:       args,
		Gas:        callGas,
		Deposit:    deposit,
	})
	if err != nil {
		return nil, err
	}
	c.lggr.Infow("Confirmed transfer", "tx", out.TransactionHash)

	return out, nil
}

// registerStorage returns the storage deposit transaction hash, or an empty hash when the
// bridge already holds a storage balance on the token.
func (c *Context) registerStorage(ctx context.Context, bridge Contract, signer KeyPair, token string) (string, error) {
	account := map[string]string{"account_id": bridge.AccountID}

	balance, err := bridge.Client.CallFunction(ctx, token, "storage_balance_of", account)
	if err != nil {
		return "", fmt.Errorf("failed to read storage balance of %s: %w", bridge.AccountID, err)
	}
	if res := gjson.ParseBytes(balance); res.Exists() && res.Type != gjson.Null {
		return "", nil
	}

	bounds, err := bridge.Client.CallFunction(ctx, token, "storage_balance_bounds", struct{}{})
	if err != nil {
		return "", fmt.Errorf("failed to read storage bounds of %s: %w", token, err)
	}
	minimum, ok := new(big.Int).SetString(gjson.GetBytes(bounds, "min").String(), 10)
	if !ok {
		return "", fmt.Errorf("unexpected storage bounds %s", bounds)
	}

	args, err := json.Marshal(map[string]any{"account_id": bridge.AccountID, "registration_only": true})
	if err != nil {
		return "", err
	}
	out, err := bridge.Client.SignAndSend(ctx, signer, token, FunctionCall{
		MethodName: "storage_deposit",
		Args:       args,
		Gas:        callGas,
		Deposit:    minimum,
	})
	if err != nil {
		return "", err
	}
	c.lggr.Infow("Registered storage", "token", token, "account", bridge.AccountID, "tx", out.TransactionHash)

	return out.TransactionHash, nil
}

func (c *Context) transferToken(
	ctx context.Context, core, bridge Contract, signer KeyPair, token string, amount *big.Int, msg transferMessage,
) (*Outcome, error) {
	messageFee, err := c.messageFee(ctx, core)
	if err != nil {
		return nil, err
	}
	msg.MessageFee = messageFee
	inner, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	args, err := json.Marshal(map[string]any{
		"receiver_id": bridge.AccountID,
		"amount":      amount.String(),
		"msg":         string(inner),
	})
	if err != nil {
		return nil, err
	}

	out, err := bridge.Client.SignAndSend(ctx, signer, token, FunctionCall{
		MethodName: "ft_transfer_call",
		Args:       args,
		Gas:        transferGas,
		Deposit:    oneYocto,
	})
	if err != nil {
		return nil, err
	}
	c.lggr.Infow("Confirmed transfer", "tx", out.TransactionHash, "token", token)

	return out, nil
}

// ParseSequenceFromLog returns the first sequence published by the core contract.
func (c *Context) ParseSequenceFromLog(ctx context.Context, receipt chain.Receipt, chainName string) (chain.Sequence, error) {
	seqs, err := c.ParseSequencesFromLog(ctx, receipt, chainName)
	if err != nil {
		return "", err
	}

	return chain.FirstSequence(chainName, seqs)
}

// ParseSequencesFromLog returns the seq field of every wormhole publish event logged by the
// core contract.
func (c *Context) ParseSequencesFromLog(_ context.Context, receipt chain.Receipt, chainName string) ([]chain.Sequence, error) {
	out, ok := receipt.(*Outcome)
	if !ok || out == nil {
		return nil, fmt.Errorf("expected *near.Outcome, got %T", receipt)
	}
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}
	if cfg.Contracts.Core == "" {
		return nil, &chain.MissingContractsError{Chain: cfg.Name, Contract: registry.ContractCore}
	}

	var seqs []chain.Sequence
	for _, log := range out.Logs {
		if log.ExecutorID != cfg.Contracts.Core {
			continue
		}
		event, found := strings.CutPrefix(log.Line, eventPrefix)
		if !found || !gjson.Valid(event) {
			continue
		}
		ev := gjson.Parse(event)
		if ev.Get("standard").String() != eventStandard || ev.Get("event").String() != eventPublish {
			continue
		}
		if seq := ev.Get("seq"); seq.Exists() {
			seqs = append(seqs, chain.Sequence(seq.String()))
		}
	}
	if len(seqs) == 0 {
		return nil, &chain.NoSequenceFoundError{Chain: chainName}
	}

	return seqs, nil
}

// GetEmitterAddress returns the sha256 of the account id.
func (c *Context) GetEmitterAddress(chainName, address string) (string, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return "", err
	}
	if err = ValidateAccountID(cfg, address); err != nil {
		return "", err
	}

	return chain.EmitterHex(AccountHash(address)), nil
}
