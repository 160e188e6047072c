package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole-connect-go/attestation"
	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/evm"
	"github.com/wormhole-foundation/wormhole-connect-go/config"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
	"github.com/wormhole-foundation/wormhole-connect-go/wormhole"
)

type connectCall struct {
	chain      string
	withSigner bool
}

// harness replaces every network facing dependency of the commands.
type harness struct {
	mu       sync.Mutex
	connects []connectCall
	lookups  []attestation.MessageID
	vaa      []byte
	receipt  chain.Receipt
	loads    int
}

func (h *harness) GetSignedVAA(_ context.Context, id attestation.MessageID) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lookups = append(h.lookups, id)
	if h.vaa == nil {
		return nil, attestation.ErrVAANotFound
	}

	return h.vaa, nil
}

type immediate struct{}

func (immediate) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Time{}

	return ch
}

func (h *harness) commands(t *testing.T) *Commands {
	t.Helper()

	return New(logger.Test(t)).WithDeps(Deps{
		ConfigLoader: func(string) (*config.Config, error) {
			h.mu.Lock()
			h.loads++
			h.mu.Unlock()

			return &config.Config{
				Network:     config.NetworkConfig{Environment: registry.Testnet},
				Attestation: config.AttestationConfig{RetryInterval: time.Second, MaxAttempts: 2},
			}, nil
		},
		ContextLoader: func(_ context.Context, cfg *config.Config, lggr logger.Logger) (*wormhole.Context, error) {
			reg, err := registry.Load(cfg.Network.Environment)
			if err != nil {
				return nil, err
			}

			return wormhole.New(reg,
				wormhole.WithLogger(lggr),
				wormhole.WithTransport(h),
				wormhole.WithRetrieverOptions(attestation.WithTimer(immediate{})),
			)
		},
		Connector: func(_ context.Context, _ *wormhole.Context, _ *config.Config, chainName string, withSigner bool, _ logger.Logger) error {
			h.mu.Lock()
			defer h.mu.Unlock()

			h.connects = append(h.connects, connectCall{chain: chainName, withSigner: withSigner})

			return nil
		},
		ReceiptFetcher: func(context.Context, *wormhole.Context, string, string) (chain.Receipt, error) {
			if h.receipt == nil {
				return nil, errors.New("not found")
			}

			return h.receipt, nil
		},
	})
}

func run(t *testing.T, c *Commands, args ...string) (string, error) {
	t.Helper()

	root := c.Root("wormhole-connect")
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())

	return out.String(), err
}

func TestRoot_Structure(t *testing.T) {
	t.Parallel()

	root := New(logger.Nop()).Root("wormhole-connect")

	var names []string
	for _, sub := range root.Commands() {
		names = append(names, sub.Name())
	}
	assert.ElementsMatch(t, []string{"chains", "emitter", "sequence", "vaa", "send"}, names)

	f := root.PersistentFlags().Lookup("config")
	require.NotNil(t, f)
	assert.Equal(t, DefaultConfigPath, f.DefValue)
	require.NotNil(t, root.PersistentFlags().Lookup("environment"))
}

func TestChainsList(t *testing.T) {
	t.Parallel()

	h := &harness{}
	out, err := run(t, h.commands(t), "chains", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "fuji")
	assert.Regexp(t, `sui\s+21\s+other`, out)

	out, err = run(t, h.commands(t), "chains", "list", "--json")
	require.NoError(t, err)

	var chains []registry.ChainConfig
	require.NoError(t, json.Unmarshal([]byte(out), &chains))
	assert.Equal(t, registry.MustLoad(registry.Testnet).Chains(), chains)
}

func TestChainsShow(t *testing.T) {
	t.Parallel()

	h := &harness{}
	out, err := run(t, h.commands(t), "chains", "show", "6")
	require.NoError(t, err)
	assert.Contains(t, out, "name: fuji")
	assert.Contains(t, out, "0x61E44E506Ca5659E6c0bba9b678586fA2d729756")

	out, err = run(t, h.commands(t), "chains", "show", "fuji", "--json")
	require.NoError(t, err)
	var got registry.ChainConfig
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	want, err := registry.MustLoad(registry.Testnet).Resolve("fuji")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = run(t, h.commands(t), "chains", "show", "atlantis")
	var unknown *registry.UnknownChainError
	require.ErrorAs(t, err, &unknown)
}

func TestEmitter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want string
	}{
		{
			name: "token bridge",
			args: []string{"emitter", "ethereum", "-e", "mainnet"},
			want: "0000000000000000000000003ee18b2214aff97000d974cf647e7c347e8fa585\n",
		},
		{
			name: "solana address",
			args: []string{"emitter", "solana", "-e", "mainnet"},
			want: "ec7372995d5cc8732397fb0ad35c0121e0eaa90d26f828a534cab54391b3a4f5\n",
		},
		{
			name: "explicit address",
			args: []string{"emitter", "fuji", "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"},
			want: "00000000000000000000000090f8bf6a479f320ead074411a4b0e7944ea8c9c1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := &harness{}
			out, err := run(t, h.commands(t), tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestEmitter_InvalidEnvironment(t *testing.T) {
	t.Parallel()

	h := &harness{}
	_, err := run(t, h.commands(t), "emitter", "ethereum", "-e", "staging")
	require.ErrorContains(t, err, "invalid config")
}

func TestSequence(t *testing.T) {
	t.Parallel()

	cfg, err := registry.MustLoad(registry.Testnet).Resolve("ethereum")
	require.NoError(t, err)
	event := evm.CoreABI.Events["LogMessagePublished"]
	data, err := event.Inputs.NonIndexed().Pack(uint64(42), uint32(0), []byte{}, uint8(1))
	require.NoError(t, err)

	h := &harness{receipt: &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(1),
		Logs: []*types.Log{{
			Address: common.HexToAddress(cfg.Contracts.Core),
			Topics:  []common.Hash{event.ID, common.BytesToHash(common.HexToAddress(cfg.Contracts.TokenBridge).Bytes())},
			Data:    data,
		}},
	}}

	out, err := run(t, h.commands(t), "sequence", "ethereum", "0xabc")
	require.NoError(t, err)
	assert.Equal(t, "42\n", out)
	assert.Equal(t, []connectCall{{chain: "ethereum", withSigner: false}}, h.connects)

	_, err = run(t, (&harness{}).commands(t), "sequence", "ethereum", "0xabc")
	require.ErrorContains(t, err, "failed to fetch receipt of 0xabc")
}

func TestVAA(t *testing.T) {
	t.Parallel()

	emitter := "00000000000000000000000061e44e506ca5659e6c0bba9b678586fa2d729756"

	h := &harness{vaa: []byte{1, 2, 3}}
	out, err := run(t, h.commands(t), "vaa", "fuji", emitter, "12")
	require.NoError(t, err)
	assert.Equal(t, "010203\n", out)
	assert.Equal(t, []attestation.MessageID{{EmitterChain: 6, EmitterAddress: emitter, Sequence: 12}}, h.lookups)

	out, err = run(t, h.commands(t), "vaa", "fuji", emitter, "12", "--encoding", "base64")
	require.NoError(t, err)
	assert.Equal(t, "AQID\n", out)
}

func TestVAA_Errors(t *testing.T) {
	t.Parallel()

	emitter := "00000000000000000000000061e44e506ca5659e6c0bba9b678586fa2d729756"

	h := &harness{}
	_, err := run(t, h.commands(t), "vaa", "fuji", emitter, "12", "--encoding", "binary")
	require.ErrorContains(t, err, `unknown encoding "binary"`)
	assert.Zero(t, h.loads, "flags are checked before loading the config")

	// attestation.max_attempts of the config bounds the lookups
	_, err = run(t, h.commands(t), "vaa", "fuji", emitter, "12")
	require.ErrorIs(t, err, attestation.ErrVAANotFound)
	assert.Len(t, h.lookups, 2)

	_, err = run(t, h.commands(t), "vaa", "fuji", emitter, "12", "--max-attempts", "1")
	require.ErrorIs(t, err, attestation.ErrVAANotFound)
	assert.Len(t, h.lookups, 3)
}

func TestSend_CosmosMessages(t *testing.T) {
	t.Parallel()

	h := &harness{}
	out, err := run(t, h.commands(t), "send",
		"--from", "injective",
		"--to", "fuji",
		"--sender", "inj1ghd753shjuwexxywmgs4xz7x2q732vcnxxynfn",
		"--recipient", "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
		"--amount", "1.5",
	)
	require.NoError(t, err)

	assert.Contains(t, out, "inj1q0e70vhrv063eah90mu97sazhywmeegp7myvnh", "messages execute the token bridge")
	assert.Contains(t, out, "1500000000000000000", "amount is scaled by the native decimals")
	assert.Equal(t, []connectCall{{chain: "injective", withSigner: false}}, h.connects)
}

func TestSend_Validation(t *testing.T) {
	t.Parallel()

	base := []string{"send", "--from", "ethereum", "--to", "fuji", "--recipient", "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1"}

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing required flags",
			args:    []string{"send", "--from", "ethereum"},
			wantErr: "--to is required",
		},
		{
			name:    "token without decimals",
			args:    append(append([]string{}, base...), "--amount", "1", "--token", "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
			wantErr: "--decimals is required with --token",
		},
		{
			name:    "too many decimals",
			args:    append(append([]string{}, base...), "--amount", "0.0000001", "--decimals", "6", "--token", "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238"),
			wantErr: "more than 6 decimals",
		},
		{
			name:    "bad payload",
			args:    append(append([]string{}, base...), "--amount", "1", "--payload", "zz"),
			wantErr: "invalid payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := &harness{}
			_, err := run(t, h.commands(t), tt.args...)
			require.ErrorContains(t, err, tt.wantErr)
			assert.Empty(t, h.connects, "nothing is connected for invalid input")
		})
	}
}

func TestConfigLoaderError(t *testing.T) {
	t.Parallel()

	c := New(logger.Nop()).WithDeps(Deps{
		ConfigLoader: func(path string) (*config.Config, error) {
			assert.Equal(t, "custom.yml", path)
			return nil, errors.New("boom")
		},
	})

	_, err := run(t, c, "chains", "list", "-c", "custom.yml")
	require.ErrorContains(t, err, "failed to load config: boom")
}
