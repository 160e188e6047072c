package near

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/mr-tron/base58"
	"github.com/tidwall/gjson"

	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultQueryAttempts = 3
	finalityFinal        = "final"
)

// Client is the node surface the context needs. *RPC implements it.
type Client interface {
	// CallFunction runs a view method and returns its raw result.
	CallFunction(ctx context.Context, contract, method string, args any) ([]byte, error)
	// SignAndSend signs a transaction of actions to receiver and waits for its outcome.
	SignAndSend(ctx context.Context, signer KeyPair, receiver string, actions ...Action) (*Outcome, error)
}

// Log is one log line and the account whose receipt emitted it.
type Log struct {
	ExecutorID string
	Line       string
}

// Outcome is the final execution outcome of a transaction.
type Outcome struct {
	TransactionHash string
	// Logs of the transaction and of all its receipts, in execution order.
	Logs []Log
	// SuccessValue is the base64 decoded return value of the transaction.
	SuccessValue []byte
}

// RPCError is the error object of a JSON-RPC response.
type RPCError struct {
	Name    string
	Cause   string
	Message string
	Data    string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("near rpc %s/%s: %s %s", e.Name, e.Cause, e.Message, e.Data)
}

// RPC is a JSON-RPC client of a NEAR node.
type RPC struct {
	url  string
	http *http.Client
	lggr logger.Logger
	id   atomic.Uint64
}

var _ Client = (*RPC)(nil)

// RPCOption configures an RPC client.
type RPCOption func(*RPC)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) RPCOption {
	return func(r *RPC) {
		r.http = c
	}
}

// NewRPC creates a client of the node at url.
func NewRPC(url string, lggr logger.Logger, opts ...RPCOption) *RPC {
	r := &RPC{
		url:  url,
		http: &http.Client{Timeout: defaultTimeout},
		lggr: lggr.Named("near-rpc"),
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      string `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// call issues one JSON-RPC request and returns its result.
func (r *RPC) call(ctx context.Context, method string, params any) (gjson.Result, error) {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      fmt.Sprint(r.id.Add(1)),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return gjson.Result{}, retry.Unrecoverable(fmt.Errorf("failed to encode %s request: %w", method, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("near rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("near rpc %s: failed to read response: %w", method, err)
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, fmt.Errorf("near rpc %s: status %d: invalid response", method, resp.StatusCode)
	}

	res := gjson.ParseBytes(raw)
	if e := res.Get("error"); e.Exists() {
		return gjson.Result{}, retry.Unrecoverable(&RPCError{
			Name:    e.Get("name").String(),
			Cause:   e.Get("cause.name").String(),
			Message: e.Get("message").String(),
			Data:    e.Get("data").Raw,
		})
	}

	return res.Get("result"), nil
}

func (r *RPC) query(ctx context.Context, params map[string]any) (gjson.Result, error) {
	return retry.DoWithData(func() (gjson.Result, error) {
		res, err := r.call(ctx, "query", params)
		if err != nil {
			return gjson.Result{}, err
		}
		// query failures come back inside a successful result
		if e := res.Get("error"); e.Exists() {
			return gjson.Result{}, retry.Unrecoverable(fmt.Errorf("near query %s: %s", params["request_type"], e.String()))
		}

		return res, nil
	},
		retry.Context(ctx),
		retry.Attempts(defaultQueryAttempts),
		retry.Delay(100*time.Millisecond),
		retry.LastErrorOnly(true),
	)
}

// CallFunction runs a view method with JSON encoded args at final finality.
func (r *RPC) CallFunction(ctx context.Context, contract, method string, args any) ([]byte, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s args: %w", method, err)
	}

	res, err := r.query(ctx, map[string]any{
		"request_type": "call_function",
		"finality":     finalityFinal,
		"account_id":   contract,
		"method_name":  method,
		"args_base64":  base64.StdEncoding.EncodeToString(encoded),
	})
	if err != nil {
		return nil, err
	}

	items := res.Get("result").Array()
	out := make([]byte, len(items))
	for i, b := range items {
		out[i] = byte(b.Uint())
	}

	return out, nil
}

type accessKey struct {
	nonce     uint64
	blockHash [32]byte
}

func (r *RPC) accessKey(ctx context.Context, signer KeyPair) (accessKey, error) {
	res, err := r.query(ctx, map[string]any{
		"request_type": "view_access_key",
		"finality":     finalityFinal,
		"account_id":   signer.AccountID,
		"public_key":   signer.PublicKeyString(),
	})
	if err != nil {
		return accessKey{}, fmt.Errorf("failed to read access key of %s: %w", signer.AccountID, err)
	}

	hash, err := base58.Decode(res.Get("block_hash").String())
	if err != nil || len(hash) != 32 {
		return accessKey{}, fmt.Errorf("invalid block hash %q", res.Get("block_hash").String())
	}

	return accessKey{nonce: res.Get("nonce").Uint(), blockHash: [32]byte(hash)}, nil
}

var errTxFailed = errors.New("transaction failed")

// SignAndSend signs the actions with the next nonce of the signer's access key and commits
// the transaction.
func (r *RPC) SignAndSend(ctx context.Context, signer KeyPair, receiver string, actions ...Action) (*Outcome, error) {
	key, err := r.accessKey(ctx, signer)
	if err != nil {
		return nil, err
	}

	signed, hash, err := transaction{
		signerID:   signer.AccountID,
		publicKey:  signer.PublicKey(),
		nonce:      key.nonce + 1,
		receiverID: receiver,
		blockHash:  key.blockHash,
		actions:    actions,
	}.sign(signer.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	r.lggr.Debugw("Broadcasting transaction", "hash", base58.Encode(hash[:]), "receiver", receiver, "actions", len(actions))

	res, err := r.call(ctx, "broadcast_tx_commit", []string{base64.StdEncoding.EncodeToString(signed)})
	if err != nil {
		return nil, err
	}

	return parseOutcome(res)
}

func parseOutcome(res gjson.Result) (*Outcome, error) {
	out := &Outcome{TransactionHash: res.Get("transaction.hash").String()}

	appendLogs := func(outcome gjson.Result) {
		executor := outcome.Get("executor_id").String()
		for _, line := range outcome.Get("logs").Array() {
			out.Logs = append(out.Logs, Log{ExecutorID: executor, Line: line.String()})
		}
	}
	appendLogs(res.Get("transaction_outcome.outcome"))
	for _, receipt := range res.Get("receipts_outcome").Array() {
		appendLogs(receipt.Get("outcome"))
	}

	status := res.Get("status")
	if failure := status.Get("Failure"); failure.Exists() {
		return out, fmt.Errorf("%w: %s: %s", errTxFailed, out.TransactionHash, failure.Raw)
	}
	if v := status.Get("SuccessValue"); v.Exists() {
		decoded, err := base64.StdEncoding.DecodeString(v.String())
		if err != nil {
			return out, fmt.Errorf("invalid success value of %s: %w", out.TransactionHash, err)
		}
		out.SuccessValue = decoded
	}

	return out, nil
}
