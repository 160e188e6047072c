package chain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

func TestPipelineKey(t *testing.T) {
	t.Parallel()

	from := registry.ChainConfig{Name: "ethereum", ID: 2, Family: registry.FamilyEVM}
	to := registry.ChainConfig{Name: "fuji", ID: 6, Family: registry.FamilyEVM}
	base := chain.TransferRequest{
		Token:       chain.Native,
		Amount:      "1000",
		FromChain:   "ethereum",
		FromAddress: "0xaa",
		ToChain:     "fuji",
		ToAddress:   "0xbb",
		RelayerFee:  "1",
	}
	baseKey := chain.PipelineKey(t.Context(), from, to, base, "0xaa")

	tests := []struct {
		name   string
		modify func(req *chain.TransferRequest)
		signer string
	}{
		{name: "token", modify: func(req *chain.TransferRequest) { req.Token = chain.TokenID{Chain: "ethereum", Address: "0xcc"} }},
		{name: "amount", modify: func(req *chain.TransferRequest) { req.Amount = "1001" }},
		{name: "sender", modify: func(req *chain.TransferRequest) { req.FromAddress = "" }},
		{name: "recipient", modify: func(req *chain.TransferRequest) { req.ToAddress = "0xbc" }},
		{name: "relayer fee", modify: func(req *chain.TransferRequest) { req.RelayerFee = "900" }},
		{name: "payload", modify: func(req *chain.TransferRequest) { req.Payload = []byte{0x01} }},
		{name: "signer", modify: func(*chain.TransferRequest) {}, signer: "0xdd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := base
			tt.modify(&req)
			signer := "0xaa"
			if tt.signer != "" {
				signer = tt.signer
			}

			assert.NotEqual(t, baseKey, chain.PipelineKey(t.Context(), from, to, req, signer))
		})
	}

	t.Run("stable for the same request", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, baseKey, chain.PipelineKey(t.Context(), from, to, base, "0xaa"))
		assert.Regexp(t, `^evm/ethereum/fuji/[0-9a-f]{24}$`, baseKey)
	})

	t.Run("run key prefix", func(t *testing.T) {
		t.Parallel()

		ctx := pipeline.WithRunKey(t.Context(), "batch-7")
		assert.Equal(t, "batch-7/"+baseKey, chain.PipelineKey(ctx, from, to, base, "0xaa"))
	})
}
