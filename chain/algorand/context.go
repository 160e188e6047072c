// Package algorand implements the chain context of Algorand.
//
// The context expects an algorand.Client registered as provider and a crypto.Account
// registered as signer. Contract addresses are decimal application ids. Receipts are
// models.PendingTransactionInfoResponse of the transfer application call.
package algorand

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/Masterminds/semver/v3"
	"github.com/algorand/go-algorand-sdk/v2/client/v2/common/models"
	"github.com/algorand/go-algorand-sdk/v2/crypto"
	"github.com/algorand/go-algorand-sdk/v2/transaction"
	"github.com/algorand/go-algorand-sdk/v2/types"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/contracts"
	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const (
	methodSendTransfer = "sendTransfer"
	// nativeAssetID is the asset id of ALGO in transfer arguments.
	nativeAssetID = 0
)

var (
	stepVersion = semver.MustParse("1.0.0")

	_ chain.Context = (*Context)(nil)
)

// App is a deployed Wormhole application.
type App struct {
	Name   string
	ID     uint64
	Client Client
}

// Address returns the escrow account of the application.
func (a App) Address() types.Address {
	return crypto.GetApplicationAddress(a.ID)
}

// Context implements chain.Context for Algorand.
type Context struct {
	conns     *connection.Manager
	apps      *contracts.Resolver[App]
	universal chain.UniversalAddressFunc
	lggr      logger.Logger
}

// New creates an Algorand context. universal encodes recipients of other families.
func New(conns *connection.Manager, universal chain.UniversalAddressFunc, lggr logger.Logger) *Context {
	return &Context{
		conns:     conns,
		apps:      contracts.NewResolver(conns, bindApp),
		universal: universal,
		lggr:      lggr.Named("algorand"),
	}
}

func bindApp(cfg registry.ChainConfig, name, address string, provider any) (App, error) {
	client, ok := provider.(Client)
	if !ok {
		return App{}, &chain.ConnectionTypeError{Chain: cfg.Name, Kind: "provider", Want: "algorand.Client", Got: provider}
	}
	id, err := ParseAppID(cfg, address)
	if err != nil {
		return App{}, fmt.Errorf("application %s: %w", name, err)
	}

	return App{Name: name, ID: id, Client: client}, nil
}

func (*Context) Family() registry.Family {
	return registry.FamilyAlgorand
}

// Send opts the sender into the token bridge when needed, then transfers in one group.
func (c *Context) Send(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	return c.send(ctx, req, nil)
}

// SendWithPayload is Send with req.Payload appended to the transfer call.
func (c *Context) SendWithPayload(ctx context.Context, req chain.TransferRequest) (chain.Receipt, error) {
	if len(req.Payload) == 0 {
		return nil, chain.ErrPayloadRequired
	}

	return c.send(ctx, req, req.Payload)
}

type transfer struct {
	assetID   uint64
	amount    uint64
	fee       uint64
	toChain   registry.ChainID
	recipient [32]byte
	payload   []byte
}

func (c *Context) send(ctx context.Context, req chain.TransferRequest, payload []byte) (chain.Receipt, error) {
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
	assetID, err := localAsset(from, req.Token)
	if err != nil {
		return nil, err
	}

	handle, err := c.apps.MustGetContracts(string(from.Name))
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
	account, err := connection.SignerAs[crypto.Account](c.conns, string(from.Name))
	if err != nil {
		return nil, err
	}
	sender := account.Address.String()
	if req.FromAddress != "" && req.FromAddress != sender {
		return nil, fmt.Errorf("from address %s does not match signer %s", req.FromAddress, sender)
	}

	t := transfer{
		assetID:   assetID,
		amount:    amount.Uint64(),
		fee:       fee.Uint64(),
		toChain:   to.ID,
		recipient: recipient,
		payload:   payload,
	}

	steps := []pipeline.Step{
		pipeline.NewStep("optin", stepVersion, "opt in to the token bridge application",
			func(ctx context.Context) (string, error) {
				return c.optIn(ctx, bridge, account)
			}),
		pipeline.NewStep("transfer", stepVersion, "transfer through the token bridge",
			func(ctx context.Context) (models.PendingTransactionInfoResponse, error) {
				return c.transfer(ctx, core, bridge, account, t)
			}),
	}

	key := chain.PipelineKey(ctx, from, to, req, sender)
	res, err := pipeline.Run(ctx, pipeline.NewBundle(c.lggr, pipeline.ReporterFromContext(ctx)), key, steps...)
	if err != nil {
		return nil, err
	}

	return pipeline.OutputAs[models.PendingTransactionInfoResponse](res)
}

// localAsset returns the asset id of token. Tokens that originate elsewhere must be passed by
// their Algorand asset id.
func localAsset(from registry.ChainConfig, token chain.TokenID) (uint64, error) {
	if token.IsNative() {
		return nativeAssetID, nil
	}
	if token.Chain != "" && token.Chain != from.Name {
		return 0, fmt.Errorf("token %s: pass the algorand asset id of foreign tokens: %w", token, chain.ErrNotSupported)
	}
	id, err := strconv.ParseUint(token.Address, 10, 64)
	if err != nil {
		return 0, &chain.InvalidAddressError{Chain: from.Name, Family: registry.FamilyAlgorand, Address: token.Address, Err: errNotAppID}
	}

	return id, nil
}

// optIn returns the opt in transaction id, or an empty id when the account already opted in.
func (c *Context) optIn(ctx context.Context, bridge App, account crypto.Account) (string, error) {
	sender := account.Address.String()
	opted, err := bridge.Client.IsOptedIn(ctx, sender, bridge.ID)
	if err != nil {
		return "", fmt.Errorf("failed to read account %s: %w", sender, err)
	}
	if opted {
		c.lggr.Debugw("Account already opted in", "account", sender, "app", bridge.ID)
		return "", nil
	}

	sp, err := bridge.Client.SuggestedParams(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get suggested params: %w", err)
	}
	tx, err := transaction.MakeApplicationOptInTx(bridge.ID, nil, nil, nil, nil, sp, account.Address, nil, types.Digest{}, [32]byte{}, types.ZeroAddress)
	if err != nil {
		return "", fmt.Errorf("failed to build opt in: %w", err)
	}
	txID, signed, err := crypto.SignTransaction(account.PrivateKey, tx)
	if err != nil {
		return "", fmt.Errorf("failed to sign opt in: %w", err)
	}
	if err = bridge.Client.SendRawTransactions(ctx, signed); err != nil {
		return "", fmt.Errorf("failed to send opt in: %w", err)
	}
	if _, err = bridge.Client.WaitForConfirmation(ctx, txID); err != nil {
		return "", fmt.Errorf("opt in %s not confirmed: %w", txID, err)
	}

	return txID, nil
}

func (c *Context) transfer(ctx context.Context, core, bridge App, account crypto.Account, t transfer) (models.PendingTransactionInfoResponse, error) {
	sp, err := bridge.Client.SuggestedParams(ctx)
	if err != nil {
		return models.PendingTransactionInfoResponse{}, fmt.Errorf("failed to get suggested params: %w", err)
	}

	sender := account.Address.String()
	escrow := bridge.Address().String()

	var deposit types.Transaction
	if t.assetID == nativeAssetID {
		deposit, err = transaction.MakePaymentTxn(sender, escrow, t.amount, nil, "", sp)
	} else {
		deposit, err = transaction.MakeAssetTransferTxn(sender, escrow, t.amount, nil, sp, "", t.assetID)
	}
	if err != nil {
		return models.PendingTransactionInfoResponse{}, fmt.Errorf("failed to build deposit: %w", err)
	}

	var assets []uint64
	if t.assetID != nativeAssetID {
		assets = []uint64{t.assetID}
	}
	call, err := transaction.MakeApplicationNoOpTx(bridge.ID, transferArgs(t), nil, []uint64{core.ID}, assets,
		sp, account.Address, nil, types.Digest{}, [32]byte{}, types.ZeroAddress)
	if err != nil {
		return models.PendingTransactionInfoResponse{}, fmt.Errorf("failed to build transfer call: %w", err)
	}

	group, err := transaction.AssignGroupID([]types.Transaction{deposit, call}, "")
	if err != nil {
		return models.PendingTransactionInfoResponse{}, fmt.Errorf("failed to group transactions: %w", err)
	}

	signed := make([][]byte, 0, len(group))
	var callID string
	for i, tx := range group {
		txID, stx, err := crypto.SignTransaction(account.PrivateKey, tx)
		if err != nil {
			return models.PendingTransactionInfoResponse{}, fmt.Errorf("failed to sign transaction %d: %w", i, err)
		}
		signed = append(signed, stx)
		callID = txID
	}

	if err = bridge.Client.SendRawTransactions(ctx, signed...); err != nil {
		return models.PendingTransactionInfoResponse{}, fmt.Errorf("failed to send transfer: %w", err)
	}
	info, err := bridge.Client.WaitForConfirmation(ctx, callID)
	if err != nil {
		return models.PendingTransactionInfoResponse{}, fmt.Errorf("transfer %s not confirmed: %w", callID, err)
	}
	c.lggr.Infow("Confirmed transfer", "tx", callID, "round", info.ConfirmedRound)

	return info, nil
}

// transferArgs encodes the sendTransfer call: method, asset, amount, recipient, recipient
// chain, fee and the optional payload. Integers are big-endian uint64.
func transferArgs(t transfer) [][]byte {
	args := [][]byte{
		[]byte(methodSendTransfer),
		be64(t.assetID),
		be64(t.amount),
		t.recipient[:],
		be64(uint64(t.toChain)),
		be64(t.fee),
	}
	if len(t.payload) > 0 {
		args = append(args, t.payload)
	}

	return args
}

func be64(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// ParseSequenceFromLog returns the first sequence logged by the core application.
func (c *Context) ParseSequenceFromLog(ctx context.Context, receipt chain.Receipt, chainName string) (chain.Sequence, error) {
	seqs, err := c.ParseSequencesFromLog(ctx, receipt, chainName)
	if err != nil {
		return "", err
	}

	return chain.FirstSequence(chainName, seqs)
}

// ParseSequencesFromLog returns the big-endian uint64 in the first log of every core
// application call of the receipt, inner transactions included.
func (c *Context) ParseSequencesFromLog(_ context.Context, receipt chain.Receipt, chainName string) ([]chain.Sequence, error) {
	var info models.PendingTransactionInfoResponse
	switch r := receipt.(type) {
	case models.PendingTransactionInfoResponse:
		info = r
	case *models.PendingTransactionInfoResponse:
		if r == nil {
			return nil, fmt.Errorf("expected models.PendingTransactionInfoResponse, got %T", receipt)
		}
		info = *r
	default:
		return nil, fmt.Errorf("expected models.PendingTransactionInfoResponse, got %T", receipt)
	}

	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}
	if cfg.Contracts.Core == "" {
		return nil, &chain.MissingContractsError{Chain: cfg.Name, Contract: registry.ContractCore}
	}
	coreID, err := ParseAppID(cfg, cfg.Contracts.Core)
	if err != nil {
		return nil, err
	}

	seqs := appendSequences(nil, models.PendingTransactionResponse(info), coreID)
	if len(seqs) == 0 {
		return nil, &chain.NoSequenceFoundError{Chain: chainName}
	}

	return seqs, nil
}

func appendSequences(seqs []chain.Sequence, info models.PendingTransactionResponse, coreID uint64) []chain.Sequence {
	if uint64(info.Transaction.Txn.ApplicationID) == coreID && len(info.Logs) > 0 && len(info.Logs[0]) >= 8 {
		seq := binary.BigEndian.Uint64(info.Logs[0][:8])
		seqs = append(seqs, chain.Sequence(strconv.FormatUint(seq, 10)))
	}
	for _, inner := range info.InnerTxns {
		seqs = appendSequences(seqs, inner, coreID)
	}

	return seqs
}

// GetEmitterAddress returns the escrow address of the application id, which is
// sha512_256("appID" || be64(id)).
func (c *Context) GetEmitterAddress(chainName, address string) (string, error) {
	cfg, err := c.conns.Registry().Resolve(chainName)
	if err != nil {
		return "", err
	}
	appID, err := ParseAppID(cfg, address)
	if err != nil {
		return "", err
	}

	return chain.EmitterHex(crypto.GetApplicationAddress(appID)), nil
}
