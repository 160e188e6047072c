package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const tracerName = "github.com/wormhole-foundation/wormhole-connect-go/chain/evm"

const (
	RPCDefaultRetryAttempts = 1
	RPCDefaultRetryDelay    = time.Second
	RPCDefaultRetryTimeout  = 10 * time.Second

	RPCDefaultDialRetryAttempts = 1
	RPCDefaultDialRetryDelay    = time.Second
	RPCDefaultDialTimeout       = 10 * time.Second

	RPCDefaultHealthCheckTimeout = 2 * time.Second
)

// RetryConfig controls how often a MultiClient retries one endpoint before moving to the next.
type RetryConfig struct {
	Attempts     uint
	Delay        time.Duration
	Timeout      time.Duration
	DialAttempts uint
	DialDelay    time.Duration
	DialTimeout  time.Duration
}

// DefaultRetryConfig returns the RPCDefault* values.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     RPCDefaultRetryAttempts,
		Delay:        RPCDefaultRetryDelay,
		Timeout:      RPCDefaultRetryTimeout,
		DialAttempts: RPCDefaultDialRetryAttempts,
		DialDelay:    RPCDefaultDialRetryDelay,
		DialTimeout:  RPCDefaultDialTimeout,
	}
}

// MultiClientOption configures a MultiClient.
type MultiClientOption func(*MultiClient)

// WithRetryConfig replaces the retry configuration of a MultiClient.
func WithRetryConfig(cfg RetryConfig) MultiClientOption {
	return func(mc *MultiClient) {
		mc.retry = cfg
	}
}

// endpoint is one dialed RPC url.
type endpoint struct {
	url    string
	client *ethclient.Client
}

var (
	_ OnchainClient = &MultiClient{}
	_ Miner         = &MultiClient{}
)

// MultiClient is an OnchainClient over several RPC endpoints of one registry chain. Calls go
// to the preferred endpoint and fail over to the others; the first endpoint that answers
// becomes the preferred one.
//
// Endpoints that report another chain id than the registry's native chain id are dropped at
// dial time, so a mainnet url in a testnet table never signs against the wrong network.
type MultiClient struct {
	chain   registry.ChainConfig
	chainID *big.Int
	retry   RetryConfig
	lggr    logger.Logger

	mu        sync.RWMutex
	endpoints []endpoint
}

// NewMultiClient dials every url and keeps the endpoints that are reachable and serve the
// chain id of cfg.
func NewMultiClient(lggr logger.Logger, cfg registry.ChainConfig, urls []string, opts ...MultiClientOption) (*MultiClient, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("chain %s: no RPC urls configured", cfg.Name)
	}
	id, err := cfg.EVMChainID()
	if err != nil {
		return nil, err
	}

	mc := &MultiClient{
		chain:   cfg,
		chainID: new(big.Int).SetUint64(id),
		retry:   DefaultRetryConfig(),
		lggr:    lggr.Named("evm").With("chain", cfg.Name),
	}
	for _, opt := range opts {
		opt(mc)
	}

	for i, url := range urls {
		client, derr := mc.dialWithRetry(url)
		if derr != nil {
			mc.lggr.Warnw("Skipping RPC endpoint", "index", i, "error", derr)
			continue
		}
		if herr := mc.healthCheck(context.Background(), client); herr != nil {
			mc.lggr.Warnw("Skipping RPC endpoint", "index", i, "error", herr)
			client.Close()

			continue
		}
		mc.endpoints = append(mc.endpoints, endpoint{url: url, client: client})
	}

	if len(mc.endpoints) == 0 {
		return nil, fmt.Errorf("chain %s: no healthy RPC endpoint", cfg.Name)
	}

	return mc, nil
}

// healthCheck asks the endpoint for its chain id and compares it to the registry.
func (mc *MultiClient) healthCheck(ctx context.Context, client *ethclient.Client) error {
	ctx, cancel := context.WithTimeout(ctx, RPCDefaultHealthCheckTimeout)
	defer cancel()

	got, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if got.Cmp(mc.chainID) != 0 {
		return fmt.Errorf("endpoint serves chain id %s, want %s", got, mc.chainID)
	}

	return nil
}

// Close closes every endpoint.
func (mc *MultiClient) Close() {
	for _, ep := range mc.snapshot() {
		ep.client.Close()
	}
}

// call runs op against the endpoints in order and returns its value.
func call[T any](ctx context.Context, mc *MultiClient, opName string, op func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	var out T
	err := mc.retryWithBackups(ctx, opName, func(ctx context.Context, client *ethclient.Client) error {
		var err error
		out, err = op(ctx, client)

		return err
	})

	return out, err
}

func (mc *MultiClient) ChainID(context.Context) (*big.Int, error) {
	return new(big.Int).Set(mc.chainID), nil
}

func (mc *MultiClient) BlockNumber(ctx context.Context) (uint64, error) {
	return call(ctx, mc, "BlockNumber", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.BlockNumber(ctx)
	})
}

func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return mc.retryWithBackups(ctx, "SendTransaction", func(ctx context.Context, c *ethclient.Client) error {
		return c.SendTransaction(ctx, tx)
	})
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, mc, "CallContract", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CallContract(ctx, msg, blockNumber)
	})
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return call(ctx, mc, "CodeAt", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.CodeAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) NonceAt(ctx context.Context, account common.Address, block *big.Int) (uint64, error) {
	return call(ctx, mc, "NonceAt", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.NonceAt(ctx, account, block)
	})
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return call(ctx, mc, "HeaderByNumber", func(ctx context.Context, c *ethclient.Client) (*types.Header, error) {
		return c.HeaderByNumber(ctx, number)
	})
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return call(ctx, mc, "SuggestGasPrice", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasPrice(ctx)
	})
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return call(ctx, mc, "SuggestGasTipCap", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.SuggestGasTipCap(ctx)
	})
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return call(ctx, mc, "PendingCodeAt", func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
		return c.PendingCodeAt(ctx, account)
	})
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return call(ctx, mc, "PendingNonceAt", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.PendingNonceAt(ctx, account)
	})
}

func (mc *MultiClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return call(ctx, mc, "EstimateGas", func(ctx context.Context, c *ethclient.Client) (uint64, error) {
		return c.EstimateGas(ctx, msg)
	})
}

func (mc *MultiClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return call(ctx, mc, "BalanceAt", func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
		return c.BalanceAt(ctx, account, blockNumber)
	})
}

func (mc *MultiClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return call(ctx, mc, "FilterLogs", func(ctx context.Context, c *ethclient.Client) ([]types.Log, error) {
		return c.FilterLogs(ctx, q)
	})
}

func (mc *MultiClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return call(ctx, mc, "SubscribeFilterLogs", func(ctx context.Context, c *ethclient.Client) (ethereum.Subscription, error) {
		return c.SubscribeFilterLogs(ctx, q, ch)
	})
}

func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return call(ctx, mc, "TransactionReceipt", func(ctx context.Context, c *ethclient.Client) (*types.Receipt, error) {
		return c.TransactionReceipt(ctx, txHash)
	})
}

// WaitMined polls every endpoint for the receipt of tx and returns the first one found. Only
// ctx bounds the wait.
func (mc *MultiClient) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	lggr := mc.lggr.With("tx", tx.Hash().Hex())
	lggr.Debugw("Waiting for transaction")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	found := make(chan *types.Receipt, 1)
	for _, ep := range mc.snapshot() {
		go func(ep endpoint) {
			receipt, err := bind.WaitMined(ctx, ep.client, tx)
			if err != nil {
				if ctx.Err() == nil {
					lggr.Warnw("Endpoint stopped waiting", "url", ep.url, "error", err)
				}

				return
			}
			select {
			case found <- receipt:
			default:
			}
		}(ep)
	}

	select {
	case receipt := <-found:
		lggr.Debugw("Transaction mined", "block", receipt.BlockNumber)
		return receipt, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (mc *MultiClient) retryWithBackups(ctx context.Context, opName string, op func(context.Context, *ethclient.Client) error) error {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "evm."+opName, trace.WithAttributes(
		attribute.String("chain", string(mc.chain.Name)),
	))
	defer span.End()

	var errs []error
	for i, ep := range mc.snapshot() {
		err := retry.Do(func() error {
			callCtx, cancel := ensureTimeout(ctx, mc.retry.Timeout)
			defer cancel()

			return op(callCtx, ep.client)
		},
			retry.Context(ctx),
			retry.Attempts(mc.retry.Attempts),
			retry.Delay(mc.retry.Delay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				mc.lggr.Debugw("Retrying RPC call", "op", opName, "url", ep.url, "attempt", n+1, "error", dataErr(err))
			}),
		)
		if err == nil {
			span.SetAttributes(attribute.Int("rpc.endpoint", i))
			mc.promote(ep.client)

			return nil
		}

		mc.lggr.Infow("RPC call failed, trying next endpoint", "op", opName, "url", ep.url, "error", dataErr(err))
		errs = append(errs, fmt.Errorf("%s: %w", ep.url, dataErr(err)))
		if ctx.Err() != nil {
			break
		}
	}

	err := fmt.Errorf("chain %s: %s failed on every endpoint: %w", mc.chain.Name, opName, errors.Join(errs...))
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	return err
}

func (mc *MultiClient) dialWithRetry(url string) (*ethclient.Client, error) {
	return retry.DoWithData(func() (*ethclient.Client, error) {
		ctx, cancel := context.WithTimeout(context.Background(), mc.retry.DialTimeout)
		defer cancel()

		return ethclient.DialContext(ctx, url)
	},
		retry.Attempts(mc.retry.DialAttempts),
		retry.Delay(mc.retry.DialDelay),
		retry.LastErrorOnly(true),
	)
}

// ensureTimeout keeps the deadline of parent, or applies timeout when it has none.
func ensureTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := parent.Deadline(); hasDeadline {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, timeout)
}

// promote moves client to the front. The endpoints that were tried before it keep their order
// behind the others, so a failing endpoint drifts to the back.
func (mc *MultiClient) promote(client *ethclient.Client) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	idx := -1
	for i, ep := range mc.endpoints {
		if ep.client == client {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return
	}

	reordered := make([]endpoint, 0, len(mc.endpoints))
	reordered = append(reordered, mc.endpoints[idx:]...)
	reordered = append(reordered, mc.endpoints[:idx]...)
	mc.endpoints = reordered
}

// URLs returns the endpoint urls in order of preference.
func (mc *MultiClient) URLs() []string {
	eps := mc.snapshot()
	urls := make([]string, len(eps))
	for i, ep := range eps {
		urls[i] = ep.url
	}

	return urls
}

func (mc *MultiClient) snapshot() []endpoint {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]endpoint(nil), mc.endpoints...)
}

// dataErr appends the revert data of an RPC error to its message.
func dataErr(err error) error {
	var d rpc.DataError
	if errors.As(err, &d) && d.ErrorData() != nil {
		return fmt.Errorf("%w: %v", err, d.ErrorData())
	}

	return err
}
