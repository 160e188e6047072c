package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/wormhole-foundation/wormhole-connect-go/pipeline"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

// Native is the sentinel TokenID for a chain's gas denominated asset.
var Native = TokenID{}

// TokenID identifies a token on its origin chain. The zero value is the Native sentinel.
type TokenID struct {
	Chain   registry.ChainName `json:"chain,omitempty"`
	Address string             `json:"address,omitempty"`
}

// IsNative reports whether t is the Native sentinel.
func (t TokenID) IsNative() bool {
	return t.Address == ""
}

func (t TokenID) String() string {
	if t.IsNative() {
		return "native"
	}

	return fmt.Sprintf("%s:%s", t.Chain, t.Address)
}

// TransferRequest describes one logical token transfer.
type TransferRequest struct {
	Token TokenID
	// Amount is a non-negative base-10 integer in the token's base unit. Callers scale human
	// amounts before building the request.
	Amount      string
	FromChain   string
	FromAddress string
	ToChain     string
	ToAddress   string
	// RelayerFee is optional and follows the same format as Amount.
	RelayerFee string
	Payload    []byte
}

// PipelineKey identifies the steps of one transfer so a retried send resumes where it stopped.
// Every field of req that changes the submitted transactions is hashed into the key, together
// with the signer address. A run key attached with pipeline.WithRunKey prefixes it.
func PipelineKey(ctx context.Context, from, to registry.ChainConfig, req TransferRequest, signer string) string {
	h := sha256.New()
	for _, field := range []string{
		req.Token.String(), req.Amount, req.FromAddress, signer, req.ToAddress, req.RelayerFee, hex.EncodeToString(req.Payload),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}

	key := fmt.Sprintf("%s/%s/%s/%x", from.Family, from.Name, to.Name, h.Sum(nil)[:12])
	if run := pipeline.RunKeyFromContext(ctx); run != "" {
		key = run + "/" + key
	}

	return key
}

// Receipt is the native outcome of a send. Each family documents its concrete type.
type Receipt any

// Sequence is a per emitter message counter encoded as a decimal string.
type Sequence string

// Context is the capability surface implemented by each chain family.
type Context interface {
	Family() registry.Family
	// Send submits a transfer and returns the family's native receipt.
	Send(ctx context.Context, req TransferRequest) (Receipt, error)
	// SendWithPayload submits a transfer carrying req.Payload.
	SendWithPayload(ctx context.Context, req TransferRequest) (Receipt, error)
	// ParseSequenceFromLog returns the first sequence emitted by the chain's core contract.
	ParseSequenceFromLog(ctx context.Context, receipt Receipt, chain string) (Sequence, error)
	// ParseSequencesFromLog returns every sequence emitted by the core contract, in order. A
	// receipt without any returns NoSequenceFoundError, never an empty slice.
	ParseSequencesFromLog(ctx context.Context, receipt Receipt, chain string) ([]Sequence, error)
	// GetEmitterAddress returns the canonical 32 byte emitter of a native address as 64
	// lowercase hex characters. It performs no I/O.
	GetEmitterAddress(chain string, address string) (string, error)
}

// FirstSequence returns the first element of seqs, or NoSequenceFoundError.
func FirstSequence(chain string, seqs []Sequence) (Sequence, error) {
	if len(seqs) == 0 {
		return "", &NoSequenceFoundError{Chain: chain}
	}

	return seqs[0], nil
}

// ParseAmount parses a non-negative base-10 integer string.
func ParseAmount(field, amount string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok || v.Sign() < 0 {
		return nil, &InvalidAmountError{Field: field, Value: amount}
	}

	return v, nil
}

// ValidateAmount checks the amount and relayer fee of req.
func ValidateAmount(req TransferRequest) error {
	if _, err := ParseAmount("amount", req.Amount); err != nil {
		return err
	}
	if req.RelayerFee != "" {
		if _, err := ParseAmount("relayer_fee", req.RelayerFee); err != nil {
			return err
		}
	}

	return nil
}

// RelayerFee returns the relayer fee of req, zero when unset.
func RelayerFee(req TransferRequest) (*big.Int, error) {
	if req.RelayerFee == "" {
		return new(big.Int), nil
	}

	return ParseAmount("relayer_fee", req.RelayerFee)
}

// PadTo32 left pads b with zeros to 32 bytes.
func PadTo32(b []byte) ([32]byte, error) {
	var out [32]byte
	if len(b) > 32 {
		return out, fmt.Errorf("address of %d bytes does not fit in 32 bytes", len(b))
	}
	copy(out[32-len(b):], b)

	return out, nil
}

// EmitterHex encodes a canonical emitter as lowercase hex.
func EmitterHex(b [32]byte) string {
	return hex.EncodeToString(b[:])
}

// UniversalAddressFunc converts an address native to cfg into its 32 byte universal form.
// Contexts use it to encode recipients on other families.
type UniversalAddressFunc func(cfg registry.ChainConfig, address string) ([32]byte, error)
