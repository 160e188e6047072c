package solana_test

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"

	sollib "github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/solana"
	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// fakeRPC confirms every transaction and logs a core sequence.
type fakeRPC struct {
	fee uint64

	mu   sync.Mutex
	sent []*sollib.Transaction
}

func (f *fakeRPC) GetLatestBlockhash(context.Context, solrpc.CommitmentType) (*solrpc.GetLatestBlockhashResult, error) {
	return &solrpc.GetLatestBlockhashResult{Value: &solrpc.LatestBlockhashResult{Blockhash: sollib.Hash{1}}}, nil
}

func (f *fakeRPC) SendTransactionWithOpts(_ context.Context, tx *sollib.Transaction, _ solrpc.TransactionOpts) (sollib.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, tx)

	return tx.Signatures[0], nil
}

func (f *fakeRPC) GetSignatureStatuses(context.Context, bool, ...sollib.Signature) (*solrpc.GetSignatureStatusesResult, error) {
	return &solrpc.GetSignatureStatusesResult{Value: []*solrpc.SignatureStatusesResult{
		{ConfirmationStatus: solrpc.ConfirmationStatusConfirmed},
	}}, nil
}

func (f *fakeRPC) GetTransaction(context.Context, sollib.Signature, *solrpc.GetTransactionOpts) (*solrpc.GetTransactionResult, error) {
	return &solrpc.GetTransactionResult{Meta: &solrpc.TransactionMeta{LogMessages: []string{
		"Program worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth invoke [1]",
		"Program log: Sequence: 12",
		"Program worm2ZoG2kUd4vFXhvjh93UUH596ayRfgQ2MgjNMTth success",
	}}}, nil
}

func (f *fakeRPC) GetAccountInfo(context.Context, sollib.PublicKey) (*solrpc.GetAccountInfoResult, error) {
	data := make([]byte, 24)
	binary.LittleEndian.PutUint64(data[16:], f.fee)

	return &solrpc.GetAccountInfoResult{Value: &solrpc.Account{Data: solrpc.DataBytesOrJSONFromBytes(data)}}, nil
}

func (f *fakeRPC) txs() []*sollib.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*sollib.Transaction(nil), f.sent...)
}

func universal(cfg registry.ChainConfig, address string) ([32]byte, error) {
	if cfg.Family == registry.FamilySolana {
		pk, err := solana.ParsePublicKey(cfg, address)
		return [32]byte(pk), err
	}
	var out [32]byte
	copy(out[12:], []byte(address))

	return out, nil
}

const usdcDevnet = "4zMMC9srt5Ri5X14GAgXhaHii3GnPAEERYPJgZJDncDU"

func newTestContext(t *testing.T, fee uint64) (*solana.Context, *fakeRPC, sollib.PrivateKey, *connection.Manager) {
	t.Helper()

	payer, err := sollib.NewRandomPrivateKey()
	require.NoError(t, err)

	rpc := &fakeRPC{fee: fee}
	conns := connection.NewManager(registry.MustLoad(registry.Testnet))
	require.NoError(t, conns.RegisterProvider("solana", rpc))
	require.NoError(t, conns.RegisterSigner("solana", payer))

	c := solana.New(conns, universal, logger.Test(t),
		solana.WithNonceSource(func() uint32 { return 9 }),
		solana.WithSendOpts(solana.WithRetry(1, 0)))

	return c, rpc, payer, conns
}

func TestContext_Send(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		fee      uint64
		token    chain.TokenID
		wantIxs  int
		wantKind uint8
	}{
		{name: "native spl token", token: chain.TokenID{Chain: "solana", Address: usdcDevnet}, wantIxs: 2, wantKind: 5},
		{name: "message fee is paid first", fee: 100, token: chain.TokenID{Address: usdcDevnet}, wantIxs: 3, wantKind: 5},
		{name: "wrapped token", token: chain.TokenID{Chain: "ethereum", Address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"}, wantIxs: 2, wantKind: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, rpc, _, conns := newTestContext(t, tt.fee)

			receipt, err := c.Send(t.Context(), chain.TransferRequest{
				Token:     tt.token,
				Amount:    "1500000",
				FromChain: "solana",
				ToChain:   "ethereum",
				ToAddress: "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1",
			})
			require.NoError(t, err)

			txs := rpc.txs()
			require.Len(t, txs, 1)
			msg := txs[0].Message
			require.Len(t, msg.Instructions, tt.wantIxs)
			assert.Len(t, txs[0].Signatures, 2, "payer and message account sign")

			cfg, err := conns.Registry().Resolve("solana")
			require.NoError(t, err)
			last := msg.Instructions[len(msg.Instructions)-1]
			program, err := msg.Program(last.ProgramIDIndex)
			require.NoError(t, err)
			assert.Equal(t, cfg.Contracts.TokenBridge, program.String())
			require.Len(t, last.Data, 1+4+8+8+32+2)
			assert.Equal(t, tt.wantKind, last.Data[0])
			assert.Equal(t, uint32(9), binary.LittleEndian.Uint32(last.Data[1:5]))
			assert.Equal(t, uint64(1_500_000), binary.LittleEndian.Uint64(last.Data[5:13]))
			assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(last.Data[53:55]))

			seq, err := c.ParseSequenceFromLog(t.Context(), receipt, "solana")
			require.NoError(t, err)
			assert.Equal(t, chain.Sequence("12"), seq)
		})
	}
}

func TestContext_SendDistinctRequestsShareReporter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		modify  func(t *testing.T, conns *connection.Manager, req *chain.TransferRequest)
		wantTxs int
	}{
		{
			name:    "identical request resumes",
			modify:  func(*testing.T, *connection.Manager, *chain.TransferRequest) {},
			wantTxs: 1,
		},
		{
			name:    "different relayer fee",
			modify:  func(_ *testing.T, _ *connection.Manager, req *chain.TransferRequest) { req.RelayerFee = "900" },
			wantTxs: 2,
		},
		{
			name: "different payer",
			modify: func(t *testing.T, conns *connection.Manager, _ *chain.TransferRequest) {
				other, err := sollib.NewRandomPrivateKey()
				require.NoError(t, err)
				require.NoError(t, conns.RegisterSigner("solana", other))
			},
			wantTxs: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			c, rpc, _, conns := newTestContext(t, 0)
			ctx := pipeline.WithReporter(t.Context(), pipeline.NewMemoryReporter())

			req := chain.TransferRequest{
				Token: chain.TokenID{Chain: "solana", Address: usdcDevnet}, Amount: "10", FromChain: "solana",
				ToChain: "ethereum", ToAddress: "0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1", RelayerFee: "1",
			}
			_, err := c.Send(ctx, req)
			require.NoError(t, err)

			tt.modify(t, conns, &req)
			_, err = c.Send(ctx, req)
			require.NoError(t, err)

			assert.Len(t, rpc.txs(), tt.wantTxs)
		})
	}
}

func TestContext_SendErrors(t *testing.T) {
	t.Parallel()

	c, rpc, _, conns := newTestContext(t, 0)
	base := chain.TransferRequest{
		Token: chain.TokenID{Address: usdcDevnet}, Amount: "1", FromChain: "solana", ToChain: "ethereum", ToAddress: "0x01",
	}

	native := base
	native.Token = chain.Native
	_, err := c.Send(t.Context(), native)
	require.ErrorIs(t, err, chain.ErrTokenIDRequired)

	_, err = c.SendWithPayload(t.Context(), base)
	require.ErrorIs(t, err, chain.ErrNotSupported)

	tooLarge := base
	tooLarge.Amount = "18446744073709551616"
	_, err = c.Send(t.Context(), tooLarge)
	var invalid *chain.InvalidAmountError
	require.ErrorAs(t, err, &invalid)

	conns.ClearSigners()
	_, err = c.Send(t.Context(), base)
	var noSigner *chain.NoSignerError
	require.ErrorAs(t, err, &noSigner)

	assert.Empty(t, rpc.txs())
}

func TestContext_ParseSequencesFromLog(t *testing.T) {
	t.Parallel()

	c, _, _, _ := newTestContext(t, 0)

	res := &solrpc.GetTransactionResult{Meta: &solrpc.TransactionMeta{LogMessages: []string{
		"Program log: Sequence: 3",
		"Program log: Instruction: Transfer",
		"Program log: Sequence: 4",
	}}}
	seqs, err := c.ParseSequencesFromLog(t.Context(), res, "solana")
	require.NoError(t, err)
	assert.Equal(t, []chain.Sequence{"3", "4"}, seqs)

	_, err = c.ParseSequenceFromLog(t.Context(), &solrpc.GetTransactionResult{}, "solana")
	var notFound *chain.NoSequenceFoundError
	require.ErrorAs(t, err, &notFound)
	_, err = c.ParseSequencesFromLog(t.Context(), &solrpc.GetTransactionResult{}, "solana")
	require.ErrorAs(t, err, &notFound)
}

func TestContext_GetEmitterAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env     registry.Environment
		program string
		want    string
	}{
		{
			env:     registry.Mainnet,
			program: "wormDTUJ6AWPNvk59vGQbDvGJmqbDTdgWgAqcLBCgUb",
			want:    "ec7372995d5cc8732397fb0ad35c0121e0eaa90d26f828a534cab54391b3a4f5",
		},
		{
			env:     registry.Testnet,
			program: "DZnkkTmCiFWfYTfT41X3Rd1kDgozqzxWaHqsw6W4x2oe",
			want:    "3b26409f8aaded3f5ddca184695aa6a0fa829b0c85caf84856324896d214ca98",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.env), func(t *testing.T) {
			t.Parallel()

			c := solana.New(connection.NewManager(registry.MustLoad(tt.env)), universal, logger.Nop())
			got, err := c.GetEmitterAddress("solana", tt.program)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
