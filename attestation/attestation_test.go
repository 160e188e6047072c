package attestation_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wormhole-foundation/wormhole-connect-go/attestation"
	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const testEmitter = "0000000000000000000000003ee18b2214aff97000d974cf647e7c347e8fa585"

type transportFunc func(ctx context.Context, id attestation.MessageID) ([]byte, error)

func (f transportFunc) GetSignedVAA(ctx context.Context, id attestation.MessageID) ([]byte, error) {
	return f(ctx, id)
}

func TestNewMessageID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		emitterChain registry.ChainID
		emitter      string
		sequence     chain.Sequence
		want         attestation.MessageID
		wantErr      string
	}{
		{
			name:         "canonical",
			emitterChain: 2,
			emitter:      testEmitter,
			sequence:     "7",
			want:         attestation.MessageID{EmitterChain: 2, EmitterAddress: testEmitter, Sequence: 7},
		},
		{
			name:         "prefixed upper case",
			emitterChain: 2,
			emitter:      "0x" + strings.ToUpper(testEmitter),
			sequence:     "18446744073709551615",
			want:         attestation.MessageID{EmitterChain: 2, EmitterAddress: testEmitter, Sequence: 18446744073709551615},
		},
		{name: "zero chain", emitterChain: 0, emitter: testEmitter, sequence: "1", wantErr: "emitter chain must not be zero"},
		{name: "short emitter", emitterChain: 2, emitter: "3ee18b22", sequence: "1", wantErr: "want 32 hex encoded bytes"},
		{name: "not hex", emitterChain: 2, emitter: strings.Repeat("zz", 32), sequence: "1", wantErr: "invalid emitter address"},
		{name: "negative sequence", emitterChain: 2, emitter: testEmitter, sequence: "-1", wantErr: `invalid sequence "-1"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := attestation.NewMessageID(tt.emitterChain, tt.emitter, tt.sequence)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetSignedVAABySequence(t *testing.T) {
	t.Parallel()

	var got attestation.MessageID
	transport := transportFunc(func(_ context.Context, id attestation.MessageID) ([]byte, error) {
		got = id
		return []byte{1, 2, 3}, nil
	})

	vaa, err := attestation.GetSignedVAABySequence(t.Context(), transport, 6, testEmitter, "42")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, vaa)
	assert.Equal(t, "6/"+testEmitter+"/42", got.String())

	_, err = attestation.GetSignedVAABySequence(t.Context(), transport, 6, testEmitter, "x")
	require.Error(t, err)
}
