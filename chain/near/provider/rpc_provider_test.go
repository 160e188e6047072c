package provider_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/near"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/near/provider"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

func TestConnect(t *testing.T) {
	t.Parallel()

	secret := "ed25519:" + base58.Encode(make([]byte, ed25519.SeedSize))

	tests := []struct {
		name       string
		chain      string
		cfg        provider.RPCProviderConfig
		wantErr    string
		wantSigner bool
	}{
		{
			name:  "registry rpc",
			chain: "near",
		},
		{
			name:       "with signer",
			chain:      "15",
			cfg:        provider.RPCProviderConfig{RPCURL: "http://localhost:3030", AccountID: "alice.testnet", SecretKey: secret, Logger: logger.Test(t)},
			wantSigner: true,
		},
		{
			name:    "not a near chain",
			chain:   "aptos",
			wantErr: "chain aptos is not a near chain",
		},
		{
			name:    "account without key",
			chain:   "near",
			cfg:     provider.RPCProviderConfig{AccountID: "alice.testnet"},
			wantErr: "account id and secret key must be set together",
		},
		{
			name:    "invalid account",
			chain:   "near",
			cfg:     provider.RPCProviderConfig{AccountID: "Alice", SecretKey: secret},
			wantErr: "invalid near address",
		},
		{
			name:    "unknown chain",
			chain:   "nowhere",
			wantErr: "nowhere",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			conns := connection.NewManager(registry.MustLoad(registry.Testnet))
			client, err := provider.Connect(conns, tt.chain, tt.cfg)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)

			got, err := connection.ProviderAs[near.Client](conns, "near")
			require.NoError(t, err)
			assert.Same(t, client, got)

			kp, err := connection.SignerAs[near.KeyPair](conns, "near")
			if tt.wantSigner {
				require.NoError(t, err)
				assert.Equal(t, "alice.testnet", kp.AccountID)
			} else {
				require.Error(t, err)
			}
		})
	}
}
