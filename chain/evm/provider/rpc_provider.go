// Package provider connects EVM chains of the registry to RPC endpoints and signing keys.
package provider

import (
	"context"
	"fmt"
	"math/big"

	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/evm"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
)

// RPCProviderConfig configures Connect.
type RPCProviderConfig struct {
	// Optional: RPC urls in order of preference. The registry RPC of the chain is used when
	// empty.
	RPCs []string
	// Optional: registers a signer for the chain when set.
	Transactor TransactorGenerator
	// Optional: additional MultiClient options.
	ClientOpts []evm.MultiClientOption
	// Optional: defaults to a production logger.
	Logger logger.Logger
}

// Connect dials the chain and registers the resulting MultiClient as its provider, and a
// transactor as its signer when one is configured.
func Connect(ctx context.Context, conns *connection.Manager, chainName string, cfg RPCProviderConfig) (*evm.MultiClient, error) {
	chainCfg, err := conns.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}

	if cfg.Logger == nil {
		lggr, lerr := logger.New()
		if lerr != nil {
			return nil, fmt.Errorf("failed to create default logger: %w", lerr)
		}
		cfg.Logger = lggr
	}

	urls := cfg.RPCs
	if len(urls) == 0 && chainCfg.RPC != "" {
		urls = []string{chainCfg.RPC}
	}

	chainID, err := chainCfg.EVMChainID()
	if err != nil {
		return nil, err
	}

	client, err := evm.NewMultiClient(cfg.Logger, chainCfg, urls, cfg.ClientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create multi-client for %s: %w", chainCfg.Name, err)
	}
	if err = conns.RegisterProvider(string(chainCfg.Name), client); err != nil {
		return nil, err
	}

	if cfg.Transactor != nil {
		opts, gerr := cfg.Transactor.Generate(ctx, new(big.Int).SetUint64(chainID))
		if gerr != nil {
			return nil, fmt.Errorf("failed to generate transactor for %s: %w", chainCfg.Name, gerr)
		}
		if err = conns.RegisterSigner(string(chainCfg.Name), opts); err != nil {
			return nil, err
		}
	}

	return client, nil
}
