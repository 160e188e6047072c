package near

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

const ed25519Prefix = "ed25519:"

var errKeyFormat = errors.New(`key must be "ed25519:<base58>"`)

// KeyPair signs transactions of one account with a full access key.
type KeyPair struct {
	AccountID  string
	PrivateKey ed25519.PrivateKey
}

// ParseKeyPair parses a "ed25519:<base58>" secret key of accountID. Both the 64 byte secret
// key and the 32 byte seed are accepted.
func ParseKeyPair(accountID, secret string) (KeyPair, error) {
	encoded, found := strings.CutPrefix(secret, ed25519Prefix)
	if !found {
		return KeyPair{}, errKeyFormat
	}
	b, err := base58.Decode(encoded)
	if err != nil {
		return KeyPair{}, fmt.Errorf("invalid secret key: %w", err)
	}

	var key ed25519.PrivateKey
	switch len(b) {
	case ed25519.PrivateKeySize:
		key = ed25519.PrivateKey(b)
	case ed25519.SeedSize:
		key = ed25519.NewKeyFromSeed(b)
	default:
		return KeyPair{}, fmt.Errorf("invalid secret key length %d", len(b))
	}

	return KeyPair{AccountID: accountID, PrivateKey: key}, nil
}

// PublicKey returns the raw public key.
func (k KeyPair) PublicKey() ed25519.PublicKey {
	return k.PrivateKey.Public().(ed25519.PublicKey)
}

// PublicKeyString returns the public key in "ed25519:<base58>" form.
func (k KeyPair) PublicKeyString() string {
	return ed25519Prefix + base58.Encode(k.PublicKey())
}

// SecretKeyString returns the secret key in "ed25519:<base58>" form.
func (k KeyPair) SecretKeyString() string {
	return ed25519Prefix + base58.Encode(k.PrivateKey)
}
