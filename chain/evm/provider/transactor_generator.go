package provider

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/crypto"
)

// TransactorGenerator is an interface for generating geth's *bind.TransactOpts instances. These
// instances are registered as signers of EVM chains.
type TransactorGenerator interface {
	Generate(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error)
}

var (
	_ TransactorGenerator = (*transactorFromRaw)(nil)
	_ TransactorGenerator = (*transactorFromKMSSigner)(nil)
)

// TransactorFromRaw returns a generator which creates a transactor from a hex encoded private key.
func TransactorFromRaw(privKey string) TransactorGenerator {
	return &transactorFromRaw{privKey: strings.TrimPrefix(privKey, "0x")}
}

type transactorFromRaw struct {
	privKey string
}

func (g *transactorFromRaw) Generate(_ context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	privKey, err := crypto.HexToECDSA(g.privKey)
	if err != nil {
		return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
	}

	return bind.NewKeyedTransactorWithChainID(privKey, chainID)
}

// TransactorFromKMS creates a TransactorGenerator that signs with a KMS key.
func TransactorFromKMS(keyID, keyRegion, awsProfileName string) (TransactorGenerator, error) {
	signer, err := NewKMSSigner(keyID, keyRegion, awsProfileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create KMS signer: %w", err)
	}

	return TransactorFromKMSSigner(signer), nil
}

// TransactorFromKMSSigner creates a TransactorGenerator from an existing KMSSigner.
func TransactorFromKMSSigner(signer *KMSSigner) TransactorGenerator {
	return &transactorFromKMSSigner{signer: signer}
}

type transactorFromKMSSigner struct {
	signer *KMSSigner
}

func (g *transactorFromKMSSigner) Generate(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	transactor, err := g.signer.GetTransactOpts(ctx, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get transact opts from KMS signer: %w", err)
	}

	return transactor, nil
}
