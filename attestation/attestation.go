// Package attestation retrieves signed VAAs from the guardian network.
//
// A Transport performs one lookup of a VAA identified by emitter chain, emitter address and
// sequence. RESTTransport and GRPCTransport talk to guardian public RPC endpoints. A
// Retriever repeats lookups until the VAA is available.
package attestation

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// ErrVAANotFound is returned when the guardians have not signed the message yet.
var ErrVAANotFound = errors.New("vaa not found")

// MessageID identifies a message of an emitter.
type MessageID struct {
	EmitterChain registry.ChainID
	// EmitterAddress is the 64 character hex emitter.
	EmitterAddress string
	Sequence       uint64
}

func (m MessageID) String() string {
	return fmt.Sprintf("%d/%s/%d", m.EmitterChain, m.EmitterAddress, m.Sequence)
}

// Transport performs a single VAA lookup.
type Transport interface {
	GetSignedVAA(ctx context.Context, id MessageID) ([]byte, error)
}

// NewMessageID validates and normalizes the parts of a message id. The emitter may carry a
// 0x prefix and any case.
func NewMessageID(emitterChain registry.ChainID, emitterAddress string, sequence chain.Sequence) (MessageID, error) {
	if emitterChain == 0 {
		return MessageID{}, errors.New("emitter chain must not be zero")
	}

	emitter := strings.ToLower(strings.TrimPrefix(emitterAddress, "0x"))
	if b, err := hex.DecodeString(emitter); err != nil || len(b) != 32 {
		return MessageID{}, fmt.Errorf("invalid emitter address %q: want 32 hex encoded bytes", emitterAddress)
	}

	seq, err := strconv.ParseUint(string(sequence), 10, 64)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid sequence %q: %w", sequence, err)
	}

	return MessageID{EmitterChain: emitterChain, EmitterAddress: emitter, Sequence: seq}, nil
}

// GetSignedVAABySequence issues one lookup through transport.
func GetSignedVAABySequence(
	ctx context.Context, transport Transport, emitterChain registry.ChainID, emitterAddress string, sequence chain.Sequence,
) ([]byte, error) {
	id, err := NewMessageID(emitterChain, emitterAddress, sequence)
	if err != nil {
		return nil, err
	}

	return transport.GetSignedVAA(ctx, id)
}
