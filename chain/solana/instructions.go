package solana

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
	sollib "github.com/gagliardetto/solana-go"
)

// Token bridge instruction indices.
const (
	ixTransferWrapped uint8 = 4
	ixTransferNative  uint8 = 5
)

// transferData is the borsh encoded argument of transfer_native and transfer_wrapped.
type transferData struct {
	Nonce         uint32
	Amount        uint64
	Fee           uint64
	TargetAddress [32]byte
	TargetChain   uint16
}

// bridgeData is the prefix of the core bridge account holding the message fee.
type bridgeData struct {
	GuardianSetIndex          uint32
	LastLamports              uint64
	GuardianSetExpirationTime uint32
	Fee                       uint64
}

func decodeBridgeFee(data []byte) (uint64, error) {
	var bd bridgeData
	if err := bin.NewBorshDecoder(data).Decode(&bd); err != nil {
		return 0, fmt.Errorf("failed to decode bridge account: %w", err)
	}

	return bd.Fee, nil
}

func encodeInstruction(index uint8, data any) ([]byte, error) {
	buf := new(bytes.Buffer)
	buf.WriteByte(index)
	if err := bin.NewBorshEncoder(buf).Encode(data); err != nil {
		return nil, fmt.Errorf("failed to encode instruction %d: %w", index, err)
	}

	return buf.Bytes(), nil
}

type transferParams struct {
	core        sollib.PublicKey
	tokenBridge sollib.PublicKey
	payer       sollib.PublicKey
	from        sollib.PublicKey
	mint        sollib.PublicKey
	message     sollib.PublicKey
	accounts    transferAccounts
	data        transferData
}

func transferNativeInstruction(p transferParams) (sollib.Instruction, error) {
	custody, err := findPDA(p.tokenBridge, p.mint.Bytes())
	if err != nil {
		return nil, err
	}
	custodySigner, err := findPDA(p.tokenBridge, []byte(seedCustodySigner))
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(ixTransferNative, p.data)
	if err != nil {
		return nil, err
	}

	return sollib.NewInstruction(p.tokenBridge, sollib.AccountMetaSlice{
		sollib.NewAccountMeta(p.payer, true, true),
		sollib.NewAccountMeta(p.accounts.config, false, false),
		sollib.NewAccountMeta(p.from, true, false),
		sollib.NewAccountMeta(p.mint, true, false),
		sollib.NewAccountMeta(custody, true, false),
		sollib.NewAccountMeta(p.accounts.authoritySigner, false, false),
		sollib.NewAccountMeta(custodySigner, false, false),
		sollib.NewAccountMeta(p.accounts.bridge, true, false),
		sollib.NewAccountMeta(p.message, true, true),
		sollib.NewAccountMeta(p.accounts.emitter, false, false),
		sollib.NewAccountMeta(p.accounts.sequence, true, false),
		sollib.NewAccountMeta(p.accounts.feeCollector, true, false),
		sollib.NewAccountMeta(sollib.SysVarClockPubkey, false, false),
		sollib.NewAccountMeta(sollib.SysVarRentPubkey, false, false),
		sollib.NewAccountMeta(sollib.SystemProgramID, false, false),
		sollib.NewAccountMeta(p.core, false, false),
		sollib.NewAccountMeta(sollib.TokenProgramID, false, false),
	}, data), nil
}

func transferWrappedInstruction(p transferParams) (sollib.Instruction, error) {
	wrappedMeta, err := findPDA(p.tokenBridge, []byte(seedMeta), p.mint.Bytes())
	if err != nil {
		return nil, err
	}
	data, err := encodeInstruction(ixTransferWrapped, p.data)
	if err != nil {
		return nil, err
	}

	return sollib.NewInstruction(p.tokenBridge, sollib.AccountMetaSlice{
		sollib.NewAccountMeta(p.payer, true, true),
		sollib.NewAccountMeta(p.accounts.config, false, false),
		sollib.NewAccountMeta(p.from, true, false),
		sollib.NewAccountMeta(p.payer, true, true),
		sollib.NewAccountMeta(p.mint, true, false),
		sollib.NewAccountMeta(wrappedMeta, false, false),
		sollib.NewAccountMeta(p.accounts.authoritySigner, false, false),
		sollib.NewAccountMeta(p.accounts.bridge, true, false),
		sollib.NewAccountMeta(p.message, true, true),
		sollib.NewAccountMeta(p.accounts.emitter, false, false),
		sollib.NewAccountMeta(p.accounts.sequence, true, false),
		sollib.NewAccountMeta(p.accounts.feeCollector, true, false),
		sollib.NewAccountMeta(sollib.SysVarClockPubkey, false, false),
		sollib.NewAccountMeta(sollib.SysVarRentPubkey, false, false),
		sollib.NewAccountMeta(sollib.SystemProgramID, false, false),
		sollib.NewAccountMeta(p.core, false, false),
		sollib.NewAccountMeta(sollib.TokenProgramID, false, false),
	}, data), nil
}
