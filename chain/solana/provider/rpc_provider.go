// Package provider connects Solana chains of the registry to an RPC node and a payer key.
package provider

import (
	"fmt"

	solrpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
)

// RPCProviderConfig configures Connect.
type RPCProviderConfig struct {
	// Optional: the registry RPC of the chain is used when empty.
	HTTPURL string
	// Optional: registers the payer key as signer when set.
	KeyGen PrivateKeyGenerator
}

// Connect registers an RPC client as provider of the chain, and the payer key as its signer
// when one is configured.
func Connect(conns *connection.Manager, chainName string, cfg RPCProviderConfig) (*solrpc.Client, error) {
	chainCfg, err := conns.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}

	url := cfg.HTTPURL
	if url == "" {
		url = chainCfg.RPC
	}
	if url == "" {
		return nil, fmt.Errorf("no rpc url for chain %s", chainCfg.Name)
	}

	client := solrpc.New(url)
	if err = conns.RegisterProvider(string(chainCfg.Name), client); err != nil {
		return nil, err
	}

	if cfg.KeyGen != nil {
		key, gerr := cfg.KeyGen.Generate()
		if gerr != nil {
			return nil, gerr
		}
		if err = conns.RegisterSigner(string(chainCfg.Name), key); err != nil {
			return nil, err
		}
	}

	return client, nil
}
