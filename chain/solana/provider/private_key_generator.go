package provider

import (
	"fmt"

	sollib "github.com/gagliardetto/solana-go"
)

// PrivateKeyGenerator is an interface for generating Solana Keypairs.
type PrivateKeyGenerator interface {
	Generate() (sollib.PrivateKey, error)
}

var (
	_ PrivateKeyGenerator = (*privateKeyFromRaw)(nil)
	_ PrivateKeyGenerator = (*privateKeyFromFile)(nil)
)

// PrivateKeyFromRaw returns a generator for a base58 encoded private key.
func PrivateKeyFromRaw(privateKey string) PrivateKeyGenerator {
	return &privateKeyFromRaw{privateKey: privateKey}
}

type privateKeyFromRaw struct {
	privateKey string
}

func (g *privateKeyFromRaw) Generate() (sollib.PrivateKey, error) {
	privKey, err := sollib.PrivateKeyFromBase58(g.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return privKey, nil
}

// PrivateKeyFromFile returns a generator for a keypair file written by solana-keygen.
func PrivateKeyFromFile(path string) PrivateKeyGenerator {
	return &privateKeyFromFile{path: path}
}

type privateKeyFromFile struct {
	path string
}

func (g *privateKeyFromFile) Generate() (sollib.PrivateKey, error) {
	privKey, err := sollib.PrivateKeyFromSolanaKeygenFile(g.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keypair file %s: %w", g.path, err)
	}

	return privKey, nil
}
