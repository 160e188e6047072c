package commands

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	sollib "github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/wormhole-foundation/wormhole-connect-go/attestation"
	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/algorand"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/aptos"
	aptosprovider "github.com/wormhole-foundation/wormhole-connect-go/chain/aptos/provider"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/evm"
	evmprovider "github.com/wormhole-foundation/wormhole-connect-go/chain/evm/provider"
	nearprovider "github.com/wormhole-foundation/wormhole-connect-go/chain/near/provider"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/solana"
	solprovider "github.com/wormhole-foundation/wormhole-connect-go/chain/solana/provider"
	"github.com/wormhole-foundation/wormhole-connect-go/config"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
	"github.com/wormhole-foundation/wormhole-connect-go/wormhole"
)

// ConfigLoaderFunc loads the config from the file at path and the environment.
type ConfigLoaderFunc func(path string) (*config.Config, error)

// ContextLoaderFunc builds the wormhole context described by cfg.
type ContextLoaderFunc func(ctx context.Context, cfg *config.Config, lggr logger.Logger) (*wormhole.Context, error)

// ConnectorFunc registers the provider of a chain, and its signer when withSigner is set.
type ConnectorFunc func(ctx context.Context, wh *wormhole.Context, cfg *config.Config, chainName string, withSigner bool, lggr logger.Logger) error

// ReceiptFetcherFunc fetches the receipt of a transaction from a connected chain.
type ReceiptFetcherFunc func(ctx context.Context, wh *wormhole.Context, chainName, tx string) (chain.Receipt, error)

// Deps holds the injectable dependencies of the commands.
// All fields are optional; nil values will use production defaults.
type Deps struct {
	// ConfigLoader default: config.Load
	ConfigLoader ConfigLoaderFunc
	// ContextLoader default: a registry of the configured environment and a guardian
	// transport built from the guardian settings.
	ContextLoader ContextLoaderFunc
	// Connector default: the RPC providers of each family, with keys from the onchain config.
	Connector ConnectorFunc
	// ReceiptFetcher default: reads receipts from EVM, Solana and Aptos providers.
	ReceiptFetcher ReceiptFetcherFunc
}

// applyDefaults fills in nil dependencies with production defaults.
func (d *Deps) applyDefaults() {
	if d.ConfigLoader == nil {
		d.ConfigLoader = config.Load
	}
	if d.ContextLoader == nil {
		d.ContextLoader = defaultContextLoader
	}
	if d.Connector == nil {
		d.Connector = defaultConnector
	}
	if d.ReceiptFetcher == nil {
		d.ReceiptFetcher = defaultReceiptFetcher
	}
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	var (
		reg *registry.Registry
		err error
	)
	if cfg.Network.ChainTable != "" {
		reg, err = registry.LoadFile(cfg.Network.Environment, cfg.Network.ChainTable)
	} else {
		reg, err = registry.Load(cfg.Network.Environment)
	}
	if err != nil {
		return nil, err
	}
	if len(cfg.RPC) == 0 {
		return reg, nil
	}

	return reg.WithRPCOverrides(cfg.RPC)
}

func defaultContextLoader(_ context.Context, cfg *config.Config, lggr logger.Logger) (*wormhole.Context, error) {
	reg, err := loadRegistry(cfg)
	if err != nil {
		return nil, err
	}

	opts := []wormhole.Option{wormhole.WithLogger(lggr)}
	switch {
	case cfg.Guardian.GRPCEndpoint != "":
		conn, derr := attestation.Dial(cfg.Guardian.GRPCEndpoint, attestation.DialConfig{APIKey: cfg.Guardian.APIKey})
		if derr != nil {
			return nil, derr
		}
		opts = append(opts, wormhole.WithTransport(attestation.NewGRPCTransport(conn)))
	case len(cfg.Guardian.Hosts) > 0:
		rest, rerr := attestation.NewRESTTransport(cfg.Guardian.Hosts)
		if rerr != nil {
			return nil, rerr
		}
		opts = append(opts, wormhole.WithTransport(rest))
	}

	return wormhole.New(reg, opts...)
}

func defaultConnector(ctx context.Context, wh *wormhole.Context, cfg *config.Config, chainName string, withSigner bool, lggr logger.Logger) error {
	chainCfg, err := wh.Registry().Resolve(chainName)
	if err != nil {
		return err
	}
	conns := wh.Connections()
	name := string(chainCfg.Name)
	keys := cfg.Onchain

	switch chainCfg.Family {
	case registry.FamilyEVM:
		pcfg := evmprovider.RPCProviderConfig{Logger: lggr}
		if withSigner {
			switch {
			case keys.KMS.IsSet():
				gen, gerr := evmprovider.TransactorFromKMS(keys.KMS.KeyID, keys.KMS.KeyRegion, keys.KMS.AWSProfile)
				if gerr != nil {
					return gerr
				}
				pcfg.Transactor = gen
			case keys.EVM.PrivateKey != "":
				pcfg.Transactor = evmprovider.TransactorFromRaw(keys.EVM.PrivateKey)
			default:
				return errors.New("onchain.evm.private_key or onchain.kms is required to sign")
			}
		}
		_, err = evmprovider.Connect(ctx, conns, name, pcfg)

	case registry.FamilySolana:
		pcfg := solprovider.RPCProviderConfig{}
		if withSigner {
			if keys.Solana.WalletKey == "" {
				return errors.New("onchain.solana.wallet_key is required to sign")
			}
			pcfg.KeyGen = solanaKey(keys.Solana.WalletKey)
		}
		_, err = solprovider.Connect(conns, name, pcfg)

	case registry.FamilyAptos:
		pcfg := aptosprovider.RPCProviderConfig{}
		if withSigner {
			if keys.Aptos.PrivateKey == "" {
				return errors.New("onchain.aptos.private_key is required to sign")
			}
			pcfg.SignerGen = aptosprovider.AccountGenPrivateKey(keys.Aptos.PrivateKey)
		}
		_, err = aptosprovider.Connect(conns, name, pcfg)

	case registry.FamilyNear:
		pcfg := nearprovider.RPCProviderConfig{Logger: lggr}
		if withSigner {
			pcfg.AccountID = keys.Near.AccountID
			pcfg.SecretKey = keys.Near.PrivateKey
		}
		_, err = nearprovider.Connect(conns, name, pcfg)

	case registry.FamilyAlgorand:
		err = connectAlgorand(conns, chainCfg, keys.Algorand, withSigner)

	case registry.FamilyCosmos:
		// sends return unsigned messages, nothing to connect

	default:
		return &chain.UnsupportedFamilyError{Chain: chainCfg.Name, Family: chainCfg.Family}
	}

	return err
}

// solanaKey reads the wallet key from a keypair file when value names one.
func solanaKey(value string) solprovider.PrivateKeyGenerator {
	if _, err := os.Stat(value); err == nil {
		return solprovider.PrivateKeyFromFile(value)
	}

	return solprovider.PrivateKeyFromRaw(value)
}

func connectAlgorand(conns *connection.Manager, cfg registry.ChainConfig, keys config.AlgorandConfig, withSigner bool) error {
	if cfg.RPC == "" {
		return fmt.Errorf("no rpc url for chain %s", cfg.Name)
	}
	client, err := algorand.NewAlgodClient(cfg.RPC, "")
	if err != nil {
		return err
	}
	if err = conns.RegisterProvider(string(cfg.Name), client); err != nil {
		return err
	}
	if !withSigner {
		return nil
	}
	if keys.Mnemonic == "" {
		return errors.New("onchain.algorand.mnemonic is required to sign")
	}
	account, err := algorand.AccountFromMnemonic(keys.Mnemonic)
	if err != nil {
		return err
	}

	return conns.RegisterSigner(string(cfg.Name), account)
}

func defaultReceiptFetcher(ctx context.Context, wh *wormhole.Context, chainName, tx string) (chain.Receipt, error) {
	cfg, err := wh.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}
	conns := wh.Connections()
	name := string(cfg.Name)

	switch cfg.Family {
	case registry.FamilyEVM:
		client, perr := connection.ProviderAs[evm.OnchainClient](conns, name)
		if perr != nil {
			return nil, perr
		}

		return client.TransactionReceipt(ctx, common.HexToHash(tx))

	case registry.FamilySolana:
		client, perr := connection.ProviderAs[solana.RPCClient](conns, name)
		if perr != nil {
			return nil, perr
		}
		sig, serr := sollib.SignatureFromBase58(tx)
		if serr != nil {
			return nil, fmt.Errorf("invalid solana signature %q: %w", tx, serr)
		}
		version := uint64(0)

		return client.GetTransaction(ctx, sig, &solrpc.GetTransactionOpts{
			Commitment:                     solrpc.CommitmentConfirmed,
			MaxSupportedTransactionVersion: &version,
		})

	case registry.FamilyAptos:
		client, perr := connection.ProviderAs[aptos.Client](conns, name)
		if perr != nil {
			return nil, perr
		}

		return client.WaitForTransaction(tx)

	default:
		return nil, fmt.Errorf("fetching %s receipts: %w", cfg.Family, chain.ErrNotSupported)
	}
}
