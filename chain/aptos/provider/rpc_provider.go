// Package provider connects Aptos chains of the registry to a node and a signer account.
package provider

import (
	"fmt"
	"strconv"

	aptoslib "github.com/aptos-labs/aptos-go-sdk"

	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// RPCProviderConfig holds the configuration used by Connect.
type RPCProviderConfig struct {
	// Optional: the RPC URL of the Aptos node. The registry RPC is used when empty.
	RPCURL string
	// Optional: a generator for the signer account. Use AccountGenPrivateKey to create a
	// signer from a private key.
	SignerGen AccountGenerator
}

// Connect creates a node client for the chain and registers it as provider. When a signer
// generator is configured, the generated account is registered as signer.
func Connect(conns *connection.Manager, chainName string, cfg RPCProviderConfig) (*aptoslib.NodeClient, error) {
	chainCfg, err := conns.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}
	if chainCfg.Family != registry.FamilyAptos {
		return nil, fmt.Errorf("chain %s is not an aptos chain", chainCfg.Name)
	}

	url := cfg.RPCURL
	if url == "" {
		url = chainCfg.RPC
	}
	if url == "" {
		return nil, fmt.Errorf("no rpc url for chain %s", chainCfg.Name)
	}

	chainID, err := strconv.ParseUint(chainCfg.Metadata.NativeChainID, 10, 8)
	if err != nil {
		return nil, fmt.Errorf("failed to parse chain ID %q of chain %s: %w", chainCfg.Metadata.NativeChainID, chainCfg.Name, err)
	}

	client, err := aptoslib.NewNodeClient(url, uint8(chainID))
	if err != nil {
		return nil, fmt.Errorf("failed to create Aptos RPC client for chain %s: %w", chainCfg.Name, err)
	}
	if err = conns.RegisterProvider(string(chainCfg.Name), client); err != nil {
		return nil, err
	}

	if cfg.SignerGen != nil {
		account, gerr := cfg.SignerGen.Generate()
		if gerr != nil {
			return nil, fmt.Errorf("failed to generate signer account: %w", gerr)
		}
		if err = conns.RegisterSigner(string(chainCfg.Name), account); err != nil {
			return nil, err
		}
	}

	return client, nil
}
