package near_test

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/connection"
	"github.com/wormhole-foundation/wormhole-connect-go/chain/near"
	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const (
	testnetCore   = "wormhole.wormhole.testnet"
	testnetBridge = "token.wormhole.testnet"
	testToken     = "usdc.fakes.testnet"
	testAccount   = "alice.testnet"
)

type sentTx struct {
	receiver string
	actions  []near.Action
}

// fakeNear answers view calls from a table and confirms every transaction with one
// wormhole publish event of the core contract.
type fakeNear struct {
	registered bool
	sendErr    error

	mu    sync.Mutex
	views []string
	sent  []sentTx
	seq   int
}

func (f *fakeNear) CallFunction(_ context.Context, contract, method string, _ any) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.views = append(f.views, contract+"."+method)
	switch method {
	case "message_fee":
		return []byte("0"), nil
	case "storage_balance_of":
		if f.registered {
			return []byte(`{"total":"1250000000000000000000","available":"0"}`), nil
		}
		return []byte("null"), nil
	case "storage_balance_bounds":
		return []byte(`{"min":"1250000000000000000000","max":null}`), nil
	}

	return nil, fmt.Errorf("unexpected view %s", method)
}

func (f *fakeNear) SignAndSend(_ context.Context, _ near.KeyPair, receiver string, actions ...near.Action) (*near.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, sentTx{receiver: receiver, actions: actions})
	if call, ok := actions[0].(near.FunctionCall); ok && call.MethodName == "storage_deposit" {
		f.registered = true
	}
	f.seq++

	return &near.Outcome{
		TransactionHash: fmt.Sprintf("tx%d", f.seq),
		Logs: []near.Log{
			{ExecutorID: receiver, Line: "Transfer 100 from alice.testnet"},
			{ExecutorID: testnetCore, Line: fmt.Sprintf(
				`EVENT_JSON:{"standard":"wormhole","event":"publish","data":"00","nonce":0,"emitter":"c2c0","seq":%d,"block":99}`, f.seq)},
		},
	}, nil
}

func (f *fakeNear) transactions() []sentTx {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]sentTx(nil), f.sent...)
}

func universal(_ registry.ChainConfig, address string) ([32]byte, error) {
	var out [32]byte
	copy(out[12:], address)

	return out, nil
}

func testKey() near.KeyPair {
	return near.KeyPair{AccountID: testAccount, PrivateKey: ed25519.NewKeyFromSeed(make([]byte, ed25519.SeedSize))}
}

func newTestContext(t *testing.T, client near.Client) (*near.Context, *connection.Manager) {
	t.Helper()

	conns := connection.NewManager(registry.MustLoad(registry.Testnet))
	require.NoError(t, conns.RegisterProvider("near", client))
	require.NoError(t, conns.RegisterSigner("near", testKey()))

	return near.New(conns, universal, logger.Test(t)), conns
}

func functionCall(t *testing.T, tx sentTx) near.FunctionCall {
	t.Helper()

	require.Len(t, tx.actions, 1)
	call, ok := tx.actions[0].(near.FunctionCall)
	require.True(t, ok, "action is %T", tx.actions[0])

	return call
}

func TestContext_SendNative(t *testing.T) {
	t.Parallel()

	client := &fakeNear{}
	c, _ := newTestContext(t, client)

	receipt, err := c.Send(t.Context(), chain.TransferRequest{
		Token:       chain.Native,
		Amount:      "1000000000000000000000000",
		FromChain:   "near",
		FromAddress: testAccount,
		ToChain:     "ethereum",
		ToAddress:   "0xabc",
		RelayerFee:  "3",
	})
	require.NoError(t, err)

	txs := client.transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, testnetBridge, txs[0].receiver)

	call := functionCall(t, txs[0])
	assert.Equal(t, "send_transfer_near", call.MethodName)
	assert.Equal(t, uint64(100_000_000_000_000), call.Gas)
	assert.Equal(t, "1000000000000000000000000", call.Deposit.String())

	recipient, _ := universal(registry.ChainConfig{}, "0xabc")
	args := gjson.ParseBytes(call.Args)
	assert.Equal(t, hex.EncodeToString(recipient[:]), args.Get("receiver").String())
	assert.Equal(t, int64(2), args.Get("chain").Int())
	assert.Equal(t, "3", args.Get("fee").String())
	assert.Empty(t, args.Get("payload").String())
	assert.Equal(t, int64(0), args.Get("message_fee").Int())

	assert.Equal(t, []string{testnetCore + ".message_fee"}, client.views)

	seq, err := c.ParseSequenceFromLog(t.Context(), receipt, "near")
	require.NoError(t, err)
	assert.Equal(t, chain.Sequence("1"), seq)
}

func TestContext_SendTokenRegistersStorage(t *testing.T) {
	t.Parallel()

	client := &fakeNear{}
	c, _ := newTestContext(t, client)

	receipt, err := c.SendWithPayload(t.Context(), chain.TransferRequest{
		Token:     chain.TokenID{Chain: "near", Address: testToken},
		Amount:    "5000000",
		FromChain: "near",
		ToChain:   "solana",
		ToAddress: "recipient",
		Payload:   []byte{0xbe, 0xef},
	})
	require.NoError(t, err)

	txs := client.transactions()
	require.Len(t, txs, 2, "storage deposit then transfer")

	deposit := functionCall(t, txs[0])
	assert.Equal(t, testToken, txs[0].receiver)
	assert.Equal(t, "storage_deposit", deposit.MethodName)
	assert.Equal(t, "1250000000000000000000", deposit.Deposit.String())
	assert.JSONEq(t, `{"account_id":"token.wormhole.testnet","registration_only":true}`, string(deposit.Args))

	transfer := functionCall(t, txs[1])
	assert.Equal(t, testToken, txs[1].receiver)
	assert.Equal(t, "ft_transfer_call", transfer.MethodName)
	assert.Equal(t, big.NewInt(1), transfer.Deposit)
	assert.Equal(t, uint64(300_000_000_000_000), transfer.Gas)

	args := gjson.ParseBytes(transfer.Args)
	assert.Equal(t, testnetBridge, args.Get("receiver_id").String())
	assert.Equal(t, "5000000", args.Get("amount").String())

	var msg map[string]any
	require.NoError(t, json.Unmarshal([]byte(args.Get("msg").String()), &msg))
	assert.Equal(t, "beef", msg["payload"])
	assert.InDelta(t, 1, msg["chain"], 0)
	assert.Equal(t, "0", msg["fee"])

	seq, err := c.ParseSequenceFromLog(t.Context(), receipt, "near")
	require.NoError(t, err)
	assert.Equal(t, chain.Sequence("2"), seq)
}

func TestContext_SendTokenAlreadyRegistered(t *testing.T) {
	t.Parallel()

	client := &fakeNear{registered: true}
	c, _ := newTestContext(t, client)

	_, err := c.Send(t.Context(), chain.TransferRequest{
		Token:     chain.TokenID{Chain: "near", Address: testToken},
		Amount:    "1",
		FromChain: "near",
		ToChain:   "ethereum",
		ToAddress: "0xabc",
	})
	require.NoError(t, err)

	txs := client.transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "ft_transfer_call", functionCall(t, txs[0]).MethodName)
	assert.NotContains(t, client.views, testToken+".storage_balance_bounds")
}

func TestContext_SendResumesAfterTransferFailure(t *testing.T) {
	t.Parallel()

	client := &fakeNear{}
	c, _ := newTestContext(t, client)
	ctx := pipeline.WithReporter(t.Context(), pipeline.NewMemoryReporter())
	req := chain.TransferRequest{
		Token:     chain.TokenID{Chain: "near", Address: testToken},
		Amount:    "1",
		FromChain: "near",
		ToChain:   "ethereum",
		ToAddress: "0xabc",
	}

	// the storage deposit lands, then the node rejects the transfer
	failing := &failAfter{fakeNear: client, ok: 1}
	conns := connection.NewManager(registry.MustLoad(registry.Testnet))
	require.NoError(t, conns.RegisterProvider("near", failing))
	require.NoError(t, conns.RegisterSigner("near", testKey()))
	flaky := near.New(conns, universal, logger.Test(t))

	_, err := flaky.Send(ctx, req)
	var stepErr *pipeline.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "transfer", stepErr.Step.ID)

	_, err = c.Send(ctx, req)
	require.NoError(t, err)

	txs := client.transactions()
	require.Len(t, txs, 2)
	assert.Equal(t, "storage_deposit", functionCall(t, txs[0]).MethodName)
	assert.Equal(t, "ft_transfer_call", functionCall(t, txs[1]).MethodName)
}

// failAfter fails every transaction after the first ok ones.
type failAfter struct {
	*fakeNear
	ok int
}

func (f *failAfter) SignAndSend(ctx context.Context, k near.KeyPair, receiver string, actions ...near.Action) (*near.Outcome, error) {
	if f.ok == 0 {
		return nil, errors.New("InvalidNonce")
	}
	f.ok--

	return f.fakeNear.SignAndSend(ctx, k, receiver, actions...)
}

func TestContext_SendDistinctSendersShareReporter(t *testing.T) {
	t.Parallel()

	client := &fakeNear{}
	c, conns := newTestContext(t, client)
	ctx := pipeline.WithReporter(t.Context(), pipeline.NewMemoryReporter())

	req := chain.TransferRequest{
		Token: chain.Native, Amount: "1", FromChain: "near", FromAddress: testAccount, ToChain: "ethereum", ToAddress: "0xabc",
	}
	first, err := c.Send(ctx, req)
	require.NoError(t, err)

	bob := testKey()
	bob.AccountID = "bob.testnet"
	require.NoError(t, conns.RegisterSigner("near", bob))
	req.FromAddress = bob.AccountID
	second, err := c.Send(ctx, req)
	require.NoError(t, err)

	require.Len(t, client.transactions(), 2)
	assert.NotEqual(t, first, second)
}

func TestContext_SendErrors(t *testing.T) {
	t.Parallel()

	valid := chain.TransferRequest{
		Token:     chain.Native,
		Amount:    "1",
		FromChain: "near",
		ToChain:   "ethereum",
		ToAddress: "0xabc",
	}

	tests := []struct {
		name    string
		mutate  func(*chain.TransferRequest)
		payload bool
		assert  func(t *testing.T, err error)
	}{
		{
			name:   "invalid amount",
			mutate: func(r *chain.TransferRequest) { r.Amount = "1.5" },
			assert: func(t *testing.T, err error) {
				t.Helper()
				var amountErr *chain.InvalidAmountError
				require.ErrorAs(t, err, &amountErr)
			},
		},
		{
			name:   "invalid token account",
			mutate: func(r *chain.TransferRequest) { r.Token = chain.TokenID{Chain: "near", Address: "Not_Valid"} },
			assert: func(t *testing.T, err error) {
				t.Helper()
				var addrErr *chain.InvalidAddressError
				require.ErrorAs(t, err, &addrErr)
				assert.Equal(t, registry.FamilyNear, addrErr.Family)
			},
		},
		{
			name:   "foreign token",
			mutate: func(r *chain.TransferRequest) { r.Token = chain.TokenID{Chain: "ethereum", Address: "0xabc"} },
			assert: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorIs(t, err, chain.ErrNotSupported)
			},
		},
		{
			name:   "sender mismatch",
			mutate: func(r *chain.TransferRequest) { r.FromAddress = "bob.testnet" },
			assert: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorContains(t, err, "does not match signer alice.testnet")
			},
		},
		{
			name:    "empty payload",
			mutate:  func(*chain.TransferRequest) {},
			payload: true,
			assert: func(t *testing.T, err error) {
				t.Helper()
				require.ErrorIs(t, err, chain.ErrPayloadRequired)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeNear{}
			c, _ := newTestContext(t, client)
			req := valid
			tt.mutate(&req)

			var err error
			if tt.payload {
				_, err = c.SendWithPayload(t.Context(), req)
			} else {
				_, err = c.Send(t.Context(), req)
			}
			tt.assert(t, err)
			assert.Empty(t, client.transactions())
		})
	}

	t.Run("no signer", func(t *testing.T) {
		t.Parallel()

		client := &fakeNear{}
		c, conns := newTestContext(t, client)
		conns.ClearSigners()

		_, err := c.Send(t.Context(), valid)
		var noSigner *chain.NoSignerError
		require.ErrorAs(t, err, &noSigner)
	})

	t.Run("wrong provider type", func(t *testing.T) {
		t.Parallel()

		conns := connection.NewManager(registry.MustLoad(registry.Testnet))
		require.NoError(t, conns.RegisterProvider("near", "not a client"))
		require.NoError(t, conns.RegisterSigner("near", testKey()))

		_, err := near.New(conns, universal, logger.Nop()).Send(t.Context(), valid)
		var typeErr *chain.ConnectionTypeError
		require.ErrorAs(t, err, &typeErr)
	})
}

func TestContext_ParseSequencesFromLog(t *testing.T) {
	t.Parallel()

	c, _ := newTestContext(t, &fakeNear{})

	outcome := &near.Outcome{Logs: []near.Log{
		{ExecutorID: testnetCore, Line: "not an event"},
		{ExecutorID: testnetCore, Line: `EVENT_JSON:{"standard":"nep141","event":"ft_transfer","seq":1}`},
		{ExecutorID: "impostor.testnet", Line: `EVENT_JSON:{"standard":"wormhole","event":"publish","seq":2}`},
		{ExecutorID: testnetCore, Line: `EVENT_JSON:{"standard":"wormhole","event":"publish","seq":41}`},
		{ExecutorID: testnetCore, Line: `EVENT_JSON:{"standard":"wormhole","event":"publish","seq":42}`},
	}}

	seqs, err := c.ParseSequencesFromLog(t.Context(), outcome, "near")
	require.NoError(t, err)
	assert.Equal(t, []chain.Sequence{"41", "42"}, seqs)

	_, err = c.ParseSequenceFromLog(t.Context(), &near.Outcome{}, "near")
	var noSeq *chain.NoSequenceFoundError
	require.ErrorAs(t, err, &noSeq)
	_, err = c.ParseSequencesFromLog(t.Context(), &near.Outcome{}, "near")
	require.ErrorAs(t, err, &noSeq)

	_, err = c.ParseSequencesFromLog(t.Context(), near.Outcome{}, "near")
	require.ErrorContains(t, err, "expected *near.Outcome, got near.Outcome")
}

func TestContext_GetEmitterAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env     registry.Environment
		address string
		want    string
	}{
		{registry.Mainnet, "contract.portalbridge.near", "148410499d3fcda4dcfd68a1ebfcdddda16ab28326448d4aae4d2f0465cdfcb7"},
		{registry.Testnet, "token.wormhole.testnet", "c2c0b6ecbbe9ecf91b2b7999f0264018ba68126c2e83bf413f59f712f3a1df55"},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			t.Parallel()

			c := near.New(connection.NewManager(registry.MustLoad(tt.env)), universal, logger.Nop())
			got, err := c.GetEmitterAddress("near", tt.address)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	c := near.New(connection.NewManager(registry.MustLoad(registry.Testnet)), universal, logger.Nop())
	_, err := c.GetEmitterAddress("near", "UPPER.near")
	var addrErr *chain.InvalidAddressError
	require.ErrorAs(t, err, &addrErr)
}
