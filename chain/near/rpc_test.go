package near_test

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/wormhole-foundation/wormhole-connect-go/chain/near"
	"github.com/wormhole-foundation/wormhole-connect-go/pkg/logger"
)

var testBlockHash = [32]byte{7, 7, 7}

// nearNode serves the JSON-RPC methods the client uses. handle overrides the default answer
// of a method when it returns a non empty body.
type nearNode struct {
	t        *testing.T
	key      near.KeyPair
	requests atomic.Int32
	handle   func(method string, params gjson.Result) string
}

func (n *nearNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n.requests.Add(1)
	body, err := io.ReadAll(r.Body)
	require.NoError(n.t, err)
	req := gjson.ParseBytes(body)
	assert.Equal(n.t, "2.0", req.Get("jsonrpc").String())

	method, params := req.Get("method").String(), req.Get("params")
	if n.handle != nil {
		if resp := n.handle(method, params); resp != "" {
			fmt.Fprint(w, resp)
			return
		}
	}

	switch {
	case method == "query" && params.Get("request_type").String() == "view_access_key":
		assert.Equal(n.t, n.key.PublicKeyString(), params.Get("public_key").String())
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":"1","result":{"nonce":5,"permission":"FullAccess","block_hash":%q,"block_height":10}}`,
			base58.Encode(testBlockHash[:]))
	case method == "query" && params.Get("request_type").String() == "call_function":
		args, err := base64.StdEncoding.DecodeString(params.Get("args_base64").String())
		require.NoError(n.t, err)
		assert.JSONEq(n.t, `{"account_id":"token.wormhole.testnet"}`, string(args))
		// "null"
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"1","result":{"result":[110,117,108,108],"logs":[],"block_height":10}}`)
	case method == "broadcast_tx_commit":
		n.verifySigned(params.Array()[0].String())
		fmt.Fprint(w, `{"jsonrpc":"2.0","id":"1","result":{
			"status":{"SuccessValue":"dHJ1ZQ=="},
			"transaction":{"hash":"9Zx"},
			"transaction_outcome":{"outcome":{"executor_id":"alice.testnet","logs":[]}},
			"receipts_outcome":[
				{"outcome":{"executor_id":"token.wormhole.testnet","logs":["transfer"]}},
				{"outcome":{"executor_id":"wormhole.wormhole.testnet","logs":["EVENT_JSON:{\"standard\":\"wormhole\",\"event\":\"publish\",\"seq\":3}"]}}
			]}}`)
	default:
		n.t.Errorf("unexpected request %s", body)
		w.WriteHeader(http.StatusBadRequest)
	}
}

// verifySigned checks the signature of a SignedTransaction and the nonce of the transaction.
func (n *nearNode) verifySigned(encoded string) {
	signed, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(n.t, err)
	require.Greater(n.t, len(signed), ed25519.SignatureSize+1)

	raw := signed[:len(signed)-ed25519.SignatureSize-1]
	assert.Equal(n.t, byte(0), signed[len(raw)], "ed25519 signature tag")
	hash := sha256.Sum256(raw)
	assert.True(n.t, ed25519.Verify(n.key.PublicKey(), hash[:], signed[len(raw)+1:]), "signature over the transaction hash")

	signerLen := int(binary.LittleEndian.Uint32(raw))
	assert.Equal(n.t, n.key.AccountID, string(raw[4:4+signerLen]))
	nonceAt := 4 + signerLen + 1 + ed25519.PublicKeySize
	assert.Equal(n.t, uint64(6), binary.LittleEndian.Uint64(raw[nonceAt:]), "access key nonce plus one")
}

func newNode(t *testing.T) (*nearNode, *near.RPC) {
	t.Helper()

	node := &nearNode{t: t, key: testKey()}
	srv := httptest.NewServer(node)
	t.Cleanup(srv.Close)

	return node, near.NewRPC(srv.URL, logger.Test(t), near.WithHTTPClient(srv.Client()))
}

func TestRPC_CallFunction(t *testing.T) {
	t.Parallel()

	_, rpc := newNode(t)

	got, err := rpc.CallFunction(t.Context(), testToken, "storage_balance_of", map[string]string{"account_id": testnetBridge})
	require.NoError(t, err)
	assert.Equal(t, "null", string(got))
}

func TestRPC_SignAndSend(t *testing.T) {
	t.Parallel()

	node, rpc := newNode(t)

	out, err := rpc.SignAndSend(t.Context(), node.key, testnetBridge, near.FunctionCall{
		MethodName: "send_transfer_near",
		Args:       []byte(`{}`),
		Gas:        100_000_000_000_000,
		Deposit:    big.NewInt(1),
	}, near.Transfer{Deposit: big.NewInt(2)})
	require.NoError(t, err)

	assert.Equal(t, "9Zx", out.TransactionHash)
	assert.Equal(t, []byte("true"), out.SuccessValue)
	assert.Equal(t, []near.Log{
		{ExecutorID: "token.wormhole.testnet", Line: "transfer"},
		{ExecutorID: "wormhole.wormhole.testnet", Line: `EVENT_JSON:{"standard":"wormhole","event":"publish","seq":3}`},
	}, out.Logs)
	assert.Equal(t, int32(2), node.requests.Load(), "access key then broadcast")
}

func TestRPC_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		wantErr  string
		requests int32
	}{
		{
			name:     "rpc error is not retried",
			response: `{"jsonrpc":"2.0","id":"1","error":{"name":"HANDLER_ERROR","cause":{"name":"UNKNOWN_ACCOUNT"},"message":"Server error","data":"account does not exist"}}`,
			wantErr:  "near rpc HANDLER_ERROR/UNKNOWN_ACCOUNT",
			requests: 1,
		},
		{
			name:     "query error is not retried",
			response: `{"jsonrpc":"2.0","id":"1","result":{"error":"wasm execution failed","logs":[]}}`,
			wantErr:  "near query call_function: wasm execution failed",
			requests: 1,
		},
		{
			name:     "invalid body is retried",
			response: `<html>bad gateway</html>`,
			wantErr:  "invalid response",
			requests: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			node, rpc := newNode(t)
			node.handle = func(string, gjson.Result) string { return tt.response }

			_, err := rpc.CallFunction(t.Context(), testToken, "ft_metadata", struct{}{})
			require.ErrorContains(t, err, tt.wantErr)
			assert.Equal(t, tt.requests, node.requests.Load())
		})
	}

	t.Run("failed transaction", func(t *testing.T) {
		t.Parallel()

		node, rpc := newNode(t)
		node.handle = func(method string, _ gjson.Result) string {
			if method != "broadcast_tx_commit" {
				return ""
			}

			return `{"jsonrpc":"2.0","id":"1","result":{"status":{"Failure":{"ActionError":{"index":0}}},"transaction":{"hash":"bad"},"receipts_outcome":[]}}`
		}

		out, err := rpc.SignAndSend(t.Context(), node.key, testnetBridge, near.Transfer{Deposit: big.NewInt(1)})
		require.ErrorContains(t, err, "transaction failed: bad")
		require.NotNil(t, out)
		assert.Equal(t, "bad", out.TransactionHash)
	})
}
