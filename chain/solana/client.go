package solana

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	sollib "github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient is the subset of *solrpc.Client used to send transactions and read accounts.
type RPCClient interface {
	GetLatestBlockhash(ctx context.Context, commitment solrpc.CommitmentType) (*solrpc.GetLatestBlockhashResult, error)
	SendTransactionWithOpts(ctx context.Context, tx *sollib.Transaction, opts solrpc.TransactionOpts) (sollib.Signature, error)
	GetSignatureStatuses(ctx context.Context, searchTransactionHistory bool, transactionSignatures ...sollib.Signature) (*solrpc.GetSignatureStatusesResult, error)
	GetTransaction(ctx context.Context, txSig sollib.Signature, opts *solrpc.GetTransactionOpts) (*solrpc.GetTransactionResult, error)
	GetAccountInfo(ctx context.Context, account sollib.PublicKey) (*solrpc.GetAccountInfoResult, error)
}

var _ RPCClient = (*solrpc.Client)(nil)

// sendConfig defines the configuration for sending transactions.
type sendConfig struct {
	// RetryAttempts applies to every RPC call of a send. Zero retries until the context ends.
	RetryAttempts uint
	RetryDelay    time.Duration
	// ConfirmRetryAttempts bounds the signature status polls.
	ConfirmRetryAttempts uint
	TxModifiers          []TxModifier
	Commitment           solrpc.CommitmentType
}

func (c *sendConfig) retryOpts(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.RetryAttempts),
		retry.Delay(c.RetryDelay),
		retry.DelayType(retry.FixedDelay),
	}
}

func (c *sendConfig) confirmRetryOpts(ctx context.Context) []retry.Option {
	return []retry.Option{
		retry.Context(ctx),
		retry.Attempts(c.ConfirmRetryAttempts),
		retry.Delay(c.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	}
}

var sendConfigDefault = sendConfig{
	RetryAttempts:        1,
	RetryDelay:           50 * time.Millisecond,
	ConfirmRetryAttempts: 500,
	Commitment:           solrpc.CommitmentConfirmed,
}

// SendOpt configures SendAndConfirmTx.
type SendOpt func(*sendConfig)

// WithRetry sets the number of attempts and the delay between attempts of every RPC call.
func WithRetry(attempts uint, delay time.Duration) SendOpt {
	return func(config *sendConfig) {
		config.RetryAttempts = attempts
		config.RetryDelay = delay
	}
}

// WithTxModifiers adds transaction modifiers.
func WithTxModifiers(modifiers ...TxModifier) SendOpt {
	return func(config *sendConfig) {
		config.TxModifiers = append(config.TxModifiers, modifiers...)
	}
}

// TxModifier is a dynamic function used to flexibly add components to a transaction such as
// additional signers.
type TxModifier func(tx *sollib.Transaction, signers map[sollib.PublicKey]sollib.PrivateKey) error

// AddSigners adds additional signers to the signers map for signing the transaction.
func AddSigners(additionalSigners ...sollib.PrivateKey) TxModifier {
	return func(_ *sollib.Transaction, s map[sollib.PublicKey]sollib.PrivateKey) error {
		for _, v := range additionalSigners {
			s[v.PublicKey()] = v
		}

		return nil
	}
}

// Client sends transactions paid and signed by Payer.
type Client struct {
	RPCClient

	Payer sollib.PrivateKey
}

// NewClient creates a Client.
func NewClient(client RPCClient, payer sollib.PrivateKey) *Client {
	return &Client{RPCClient: client, Payer: payer}
}

// SendAndConfirmTx builds, signs, sends, and confirms a transaction of instructions and returns
// the confirmed transaction.
func (c *Client) SendAndConfirmTx(ctx context.Context, instructions []sollib.Instruction, opts ...SendOpt) (*solrpc.GetTransactionResult, error) {
	config := sendConfigDefault
	config.TxModifiers = nil
	for _, opt := range opts {
		opt(&config)
	}

	hashRes, err := c.getLatestBlockhash(ctx, config.Commitment, config.retryOpts(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("error getting latest blockhash: %w", err)
	}

	tx, err := sollib.NewTransaction(instructions, hashRes.Value.Blockhash, sollib.TransactionPayer(c.Payer.PublicKey()))
	if err != nil {
		return nil, fmt.Errorf("error constructing transaction: %w", err)
	}

	signers := map[sollib.PublicKey]sollib.PrivateKey{
		c.Payer.PublicKey(): c.Payer,
	}
	for _, o := range config.TxModifiers {
		if err = o(tx, signers); err != nil {
			return nil, err
		}
	}

	if _, err = tx.Sign(func(pub sollib.PublicKey) *sollib.PrivateKey {
		priv, ok := signers[pub]
		if !ok {
			return nil
		}

		return &priv
	}); err != nil {
		return nil, fmt.Errorf("error signing transaction: %w", err)
	}

	txsig, err := c.sendTx(ctx, tx, solrpc.TransactionOpts{
		PreflightCommitment: config.Commitment,
	}, config.retryOpts(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("error sending transaction: %w", err)
	}

	if err = c.confirmTx(ctx, txsig, config.confirmRetryOpts(ctx)...); err != nil {
		return nil, fmt.Errorf("error confirming transaction %s: %w", txsig, err)
	}

	res, err := c.getTransactionResult(ctx, txsig, config.Commitment, config.retryOpts(ctx)...)
	if err != nil {
		return nil, fmt.Errorf("error getting transaction result: %w", err)
	}
	if res.Meta != nil && res.Meta.Err != nil {
		return res, fmt.Errorf("transaction %s failed: %v", txsig, res.Meta.Err)
	}

	return res, nil
}

func (c *Client) getLatestBlockhash(ctx context.Context, commitment solrpc.CommitmentType, retryOpts ...retry.Option) (*solrpc.GetLatestBlockhashResult, error) {
	return retry.DoWithData(func() (*solrpc.GetLatestBlockhashResult, error) {
		return c.GetLatestBlockhash(ctx, commitment)
	}, retryOpts...)
}

func (c *Client) sendTx(ctx context.Context, tx *sollib.Transaction, txOpts solrpc.TransactionOpts, retryOpts ...retry.Option) (sollib.Signature, error) {
	return retry.DoWithData(func() (sollib.Signature, error) {
		txsig, err := c.SendTransactionWithOpts(ctx, tx, txOpts)
		if err == nil {
			return txsig, nil
		}

		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) {
			// The blockhash may not be visible to the rpc yet even though it served it.
			if strings.Contains(rpcErr.Message, "Blockhash not found") {
				return txsig, fmt.Errorf("blockhash not found, retrying: %w", err)
			}

			return txsig, retry.Unrecoverable(fmt.Errorf("unexpected error (most likely contract related), will not retry: %w", err))
		}

		return txsig, fmt.Errorf("unexpected error (could not hit rpc service): %w", err)
	}, retryOpts...)
}

var errNotConfirmed = errors.New("transaction not confirmed yet")

// confirmTx polls the signature status until it is confirmed or finalized.
func (c *Client) confirmTx(ctx context.Context, txsig sollib.Signature, retryOpts ...retry.Option) error {
	return retry.Do(func() error {
		statusRes, err := c.GetSignatureStatuses(ctx, true, txsig)
		if err != nil {
			return err
		}

		if statusRes != nil && len(statusRes.Value) > 0 && statusRes.Value[0] != nil {
			switch statusRes.Value[0].ConfirmationStatus {
			case solrpc.ConfirmationStatusConfirmed, solrpc.ConfirmationStatusFinalized:
				return nil
			}
		}

		return errNotConfirmed
	}, retryOpts...)
}

func (c *Client) getTransactionResult(ctx context.Context, txsig sollib.Signature, commitment solrpc.CommitmentType, retryOpts ...retry.Option) (*solrpc.GetTransactionResult, error) {
	ver := uint64(0)

	return retry.DoWithData(func() (*solrpc.GetTransactionResult, error) {
		return c.GetTransaction(ctx, txsig, &solrpc.GetTransactionOpts{
			Commitment:                     commitment,
			MaxSupportedTransactionVersion: &ver,
		})
	}, retryOpts...)
}
