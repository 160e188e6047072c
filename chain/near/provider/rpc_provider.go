// Package provider connects NEAR chains of the registry to a node and a signer key.
package provider

import (
	"errors"
	"fmt"

	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/near"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// RPCProviderConfig holds the configuration used by Connect.
type RPCProviderConfig struct {
	// Optional: the registry RPC is used when empty.
	RPCURL string
	// Optional: AccountID and SecretKey register a signer when both are set. SecretKey is in
	// "ed25519:<base58>" form.
	AccountID string
	SecretKey string
	Logger    logger.Logger
}

// Connect registers a JSON-RPC client as provider of the chain, and the key pair as its
// signer when one is configured.
func Connect(conns *connection.Manager, chainName string, cfg RPCProviderConfig) (*near.RPC, error) {
	chainCfg, err := conns.Registry().Resolve(chainName)
	if err != nil {
		return nil, err
	}
	if chainCfg.Family != registry.FamilyNear {
		return nil, fmt.Errorf("chain %s is not a near chain", chainCfg.Name)
	}

	url := cfg.RPCURL
	if url == "" {
		url = chainCfg.RPC
	}
	if url == "" {
		return nil, fmt.Errorf("no rpc url for chain %s", chainCfg.Name)
	}
	lggr := cfg.Logger
	if lggr == nil {
		lggr = logger.Nop()
	}

	var key *near.KeyPair
	switch {
	case cfg.AccountID != "" && cfg.SecretKey != "":
		if err = near.ValidateAccountID(chainCfg, cfg.AccountID); err != nil {
			return nil, err
		}
		kp, kerr := near.ParseKeyPair(cfg.AccountID, cfg.SecretKey)
		if kerr != nil {
			return nil, kerr
		}
		key = &kp
	case cfg.AccountID != "" || cfg.SecretKey != "":
		return nil, errors.New("account id and secret key must be set together")
	}

	client := near.NewRPC(url, lggr)
	if err = conns.RegisterProvider(string(chainCfg.Name), client); err != nil {
		return nil, err
	}
	if key != nil {
		if err = conns.RegisterSigner(string(chainCfg.Name), *key); err != nil {
			return nil, err
		}
	}

	return client, nil
}
