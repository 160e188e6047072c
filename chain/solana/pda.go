package solana

import (
	"encoding/binary"
	"fmt"

	sollib "github.com/gagliardetto/solana-go"
)

// Seeds of the program derived addresses used by the core and token bridge programs.
const (
	seedEmitter         = "emitter"
	seedConfig          = "config"
	seedBridge          = "Bridge"
	seedFeeCollector    = "fee_collector"
	seedSequence        = "Sequence"
	seedAuthoritySigner = "authority_signer"
	seedCustodySigner   = "custody_signer"
	seedWrapped         = "wrapped"
	seedMeta            = "meta"
)

func findPDA(program sollib.PublicKey, seeds ...[]byte) (sollib.PublicKey, error) {
	addr, _, err := sollib.FindProgramAddress(seeds, program)
	if err != nil {
		return sollib.PublicKey{}, fmt.Errorf("failed to derive program address of %s: %w", program, err)
	}

	return addr, nil
}

// EmitterAddress derives the emitter account through which program publishes messages.
func EmitterAddress(program sollib.PublicKey) (sollib.PublicKey, error) {
	return findPDA(program, []byte(seedEmitter))
}

// WrappedMint derives the mint the token bridge created for a token of another chain.
func WrappedMint(tokenBridge sollib.PublicKey, originChain uint16, originAddress [32]byte) (sollib.PublicKey, error) {
	chainID := binary.BigEndian.AppendUint16(nil, originChain)

	return findPDA(tokenBridge, []byte(seedWrapped), chainID, originAddress[:])
}

// transferAccounts holds the accounts shared by transfer_native and transfer_wrapped.
type transferAccounts struct {
	config          sollib.PublicKey
	authoritySigner sollib.PublicKey
	bridge          sollib.PublicKey
	emitter         sollib.PublicKey
	sequence        sollib.PublicKey
	feeCollector    sollib.PublicKey
}

func deriveTransferAccounts(core, tokenBridge sollib.PublicKey) (transferAccounts, error) {
	var (
		a   transferAccounts
		err error
	)
	if a.config, err = findPDA(tokenBridge, []byte(seedConfig)); err != nil {
		return a, err
	}
	if a.authoritySigner, err = findPDA(tokenBridge, []byte(seedAuthoritySigner)); err != nil {
		return a, err
	}
	if a.emitter, err = EmitterAddress(tokenBridge); err != nil {
		return a, err
	}
	if a.bridge, err = findPDA(core, []byte(seedBridge)); err != nil {
		return a, err
	}
	if a.sequence, err = findPDA(core, []byte(seedSequence), a.emitter.Bytes()); err != nil {
		return a, err
	}
	if a.feeCollector, err = findPDA(core, []byte(seedFeeCollector)); err != nil {
		return a, err
	}

	return a, nil
}
