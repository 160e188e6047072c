package provider

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/asn1"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	kmslib "github.com/aws/aws-sdk-go/service/kms"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/secp256k1"

	"github.com/wormhole-foundation/wormhole-connect-go/chain/internal/kms"
)

// KMSSigner signs EVM transactions with an AWS KMS secp256k1 key.
type KMSSigner struct {
	client   kms.Client
	kmsKeyID string

	mu             sync.Mutex
	ecdsaPublicKey *ecdsa.PublicKey
}

// NewKMSSigner creates a KMSSigner for the key. An empty awsProfile uses the environment to
// find credentials.
func NewKMSSigner(keyID, keyRegion, awsProfile string) (*KMSSigner, error) {
	client, err := kms.NewClient(kms.ClientConfig{
		KeyID:      keyID,
		KeyRegion:  keyRegion,
		AWSProfile: awsProfile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize KMS Client: %w", err)
	}

	return &KMSSigner{client: client, kmsKeyID: keyID}, nil
}

// GetECDSAPublicKey returns the public key of the KMS key. It is fetched once and cached.
func (s *KMSSigner) GetECDSAPublicKey() (*ecdsa.PublicKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ecdsaPublicKey != nil {
		return s.ecdsaPublicKey, nil
	}

	out, err := s.client.GetPublicKey(&kmslib.GetPublicKeyInput{
		KeyId: aws.String(s.kmsKeyID),
	})
	if err != nil {
		return nil, fmt.Errorf("cannot get public key from KMS for KeyId=%s: %w", s.kmsKeyID, err)
	}

	var spki kms.SPKI
	if _, err = asn1.Unmarshal(out.PublicKey, &spki); err != nil {
		return nil, fmt.Errorf("cannot parse asn1 public key for KeyId=%s: %w", s.kmsKeyID, err)
	}

	pubKey, err := crypto.UnmarshalPubkey(spki.SubjectPublicKey.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cannot unmarshal public key bytes: %w", err)
	}
	s.ecdsaPublicKey = pubKey

	return pubKey, nil
}

// GetAddress returns the address of the KMS key.
func (s *KMSSigner) GetAddress() (common.Address, error) {
	pubKey, err := s.GetECDSAPublicKey()
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get public key: %w", err)
	}

	return crypto.PubkeyToAddress(*pubKey), nil
}

// GetTransactOpts returns transact opts whose Signer calls KMS.
func (s *KMSSigner) GetTransactOpts(ctx context.Context, chainID *big.Int) (*bind.TransactOpts, error) {
	if chainID == nil {
		return nil, errors.New("chainID is required")
	}

	pubKey, err := s.GetECDSAPublicKey()
	if err != nil {
		return nil, err
	}

	return &bind.TransactOpts{
		From:    crypto.PubkeyToAddress(*pubKey),
		Signer:  s.signerFunc(pubKey, chainID),
		Context: ctx,
	}, nil
}

func (s *KMSSigner) signerFunc(pubKey *ecdsa.PublicKey, chainID *big.Int) bind.SignerFn {
	pubKeyBytes := secp256k1.S256().Marshal(pubKey.X, pubKey.Y)
	keyAddr := crypto.PubkeyToAddress(*pubKey)
	signer := types.LatestSignerForChainID(chainID)

	return func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
		if address != keyAddr {
			return nil, bind.ErrNotAuthorized
		}

		var (
			txHash = signer.Hash(tx).Bytes()
			mType  = kmslib.MessageTypeDigest
			algo   = kmslib.SigningAlgorithmSpecEcdsaSha256
		)

		out, err := s.client.Sign(&kmslib.SignInput{
			KeyId:            &s.kmsKeyID,
			SigningAlgorithm: &algo,
			MessageType:      &mType,
			Message:          txHash,
		})
		if err != nil {
			return nil, fmt.Errorf("call to kms.Sign() failed on transaction: %w", err)
		}

		evmSig, err := kmsToEVMSig(out.Signature, pubKeyBytes, txHash)
		if err != nil {
			return nil, fmt.Errorf("failed to convert KMS signature to Ethereum signature: %w", err)
		}

		return tx.WithSignature(signer, evmSig)
	}
}

var (
	secp256k1N     = crypto.S256().Params().N
	secp256k1HalfN = new(big.Int).Div(secp256k1N, big.NewInt(2))
)

// kmsToEVMSig converts a DER encoded KMS signature to a 65 byte [R || S || V] signature with
// S in the lower half of the curve order.
func kmsToEVMSig(kmsSig, ecdsaPubKeyBytes, hash []byte) ([]byte, error) {
	var ecdsaSig kms.ECDSASig
	if _, err := asn1.Unmarshal(kmsSig, &ecdsaSig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal KMS signature: %w", err)
	}

	rBytes := ecdsaSig.R.Bytes
	sBytes := ecdsaSig.S.Bytes

	sBigInt := new(big.Int).SetBytes(sBytes)
	if sBigInt.Cmp(secp256k1HalfN) > 0 {
		sBytes = new(big.Int).Sub(secp256k1N, sBigInt).Bytes()
	}

	return recoverEVMSignature(ecdsaPubKeyBytes, hash, rBytes, sBytes)
}

// recoverEVMSignature finds the recovery id that yields expectedPublicKey.
func recoverEVMSignature(expectedPublicKey, txHash, r, s []byte) ([]byte, error) {
	rsSig := append(padTo32Bytes(r), padTo32Bytes(s)...)

	for _, v := range []byte{0, 1} {
		evmSig := append(bytes.Clone(rsSig), v)
		recovered, err := crypto.Ecrecover(txHash, evmSig)
		if err != nil {
			return nil, fmt.Errorf("failed to recover signature with v=%d: %w", v, err)
		}
		if bytes.Equal(recovered, expectedPublicKey) {
			return evmSig, nil
		}
	}

	return nil, errors.New("cannot reconstruct public key from sig")
}

// padTo32Bytes trims leading zeros and left pads to 32 bytes.
func padTo32Bytes(buffer []byte) []byte {
	buffer = bytes.TrimLeft(buffer, "\x00")
	if len(buffer) >= 32 {
		return buffer
	}

	return append(make([]byte, 32-len(buffer)), buffer...)
}
