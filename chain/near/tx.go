package near

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
)

// Action indexes of the protocol's Action enum.
const (
	actionFunctionCall uint8 = 2
	actionTransfer     uint8 = 3
)

const keyTypeED25519 uint8 = 0

// Action is one action of a transaction.
type Action interface {
	encode(enc *bin.Encoder) error
}

// FunctionCall calls MethodName on the receiver with JSON Args.
type FunctionCall struct {
	MethodName string
	Args       []byte
	Gas        uint64
	// Deposit is attached in yoctoNEAR.
	Deposit *big.Int
}

func (a FunctionCall) encode(enc *bin.Encoder) error {
	if err := enc.WriteUint8(actionFunctionCall); err != nil {
		return err
	}
	if err := writeString(enc, a.MethodName); err != nil {
		return err
	}
	if err := writeBytes(enc, a.Args); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.Gas, binary.LittleEndian); err != nil {
		return err
	}

	return writeU128(enc, a.Deposit)
}

// Transfer moves Deposit yoctoNEAR to the receiver.
type Transfer struct {
	Deposit *big.Int
}

func (a Transfer) encode(enc *bin.Encoder) error {
	if err := enc.WriteUint8(actionTransfer); err != nil {
		return err
	}

	return writeU128(enc, a.Deposit)
}

type transaction struct {
	signerID   string
	publicKey  ed25519.PublicKey
	nonce      uint64
	receiverID string
	blockHash  [32]byte
	actions    []Action
}

func (t transaction) encode() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)

	if err := writeString(enc, t.signerID); err != nil {
		return nil, err
	}
	if err := enc.WriteUint8(keyTypeED25519); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(t.publicKey, false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(t.nonce, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := writeString(enc, t.receiverID); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(t.blockHash[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(t.actions)), binary.LittleEndian); err != nil {
		return nil, err
	}
	for i, a := range t.actions {
		if err := a.encode(enc); err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
	}

	return buf.Bytes(), nil
}

// sign returns the borsh encoded SignedTransaction and the transaction hash.
func (t transaction) sign(key ed25519.PrivateKey) ([]byte, [32]byte, error) {
	raw, err := t.encode()
	if err != nil {
		return nil, [32]byte{}, err
	}
	hash := sha256.Sum256(raw)
	sig := ed25519.Sign(key, hash[:])

	signed := make([]byte, 0, len(raw)+1+len(sig))
	signed = append(signed, raw...)
	signed = append(signed, keyTypeED25519)
	signed = append(signed, sig...)

	return signed, hash, nil
}

func writeString(enc *bin.Encoder, s string) error {
	return writeBytes(enc, []byte(s))
}

func writeBytes(enc *bin.Encoder, b []byte) error {
	if err := enc.WriteUint32(uint32(len(b)), binary.LittleEndian); err != nil {
		return err
	}

	return enc.WriteBytes(b, false)
}

var maxU64 = new(big.Int).SetUint64(^uint64(0))

func writeU128(enc *bin.Encoder, v *big.Int) error {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 || v.BitLen() > 128 {
		return fmt.Errorf("deposit %s does not fit in u128", v)
	}
	lo := new(big.Int).And(v, maxU64).Uint64()
	hi := new(big.Int).Rsh(v, 64).Uint64()

	return enc.WriteUint128(bin.Uint128{Lo: lo, Hi: hi}, binary.LittleEndian)
}
