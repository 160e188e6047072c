package provider

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"fmt"

	aptoslib "github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/crypto"
	"github.com/cosmos/go-bip39"
)

// AccountGenerator is an interface for generating Aptos accounts.
type AccountGenerator interface {
	Generate() (*aptoslib.Account, error)
}

var (
	_ AccountGenerator = (*accountGenNewSingleSender)(nil)
	_ AccountGenerator = (*accountGenPrivateKey)(nil)
)

// accountGenNewSingleSender is an account generator that creates a new single sender account.
type accountGenNewSingleSender struct{}

// AccountGenNewSingleSender creates a new instance of accountGenNewSingleSender.
func AccountGenNewSingleSender() *accountGenNewSingleSender {
	return &accountGenNewSingleSender{}
}

// Generate generates a new Aptos account using the aptos library's single sender account creation
// method.
func (g *accountGenNewSingleSender) Generate() (*aptoslib.Account, error) {
	return aptoslib.NewEd25519SingleSenderAccount()
}

// accountGenPrivateKey is an account generator that creates an account from the private key.
type accountGenPrivateKey struct {
	// privateKey is the hex formatted private key used to generate the Aptos account.
	privateKey string
}

// AccountGenPrivateKey creates a new instance of accountGenPrivateKey with the provided private key.
func AccountGenPrivateKey(privateKey string) *accountGenPrivateKey {
	return &accountGenPrivateKey{
		privateKey: privateKey,
	}
}

// Generate generates an Aptos account from the provided private key. It returns an error if the
// private key string cannot be parsed.
func (g *accountGenPrivateKey) Generate() (*aptoslib.Account, error) {
	privateKey := &crypto.Ed25519PrivateKey{}
	if err := privateKey.FromHex(g.privateKey); err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	return aptoslib.NewAccountFromSigner(privateKey)
}

// aptosDerivationPath is the default hardened BIP-44 path of Aptos wallets.
var aptosDerivationPath = []uint32{44, 637, 0, 0, 0}

// accountGenMnemonic is an account generator that derives the account from a BIP-39 mnemonic
// at the default Aptos wallet path.
type accountGenMnemonic struct {
	mnemonic string
}

var _ AccountGenerator = (*accountGenMnemonic)(nil)

// AccountGenMnemonic creates a new instance of accountGenMnemonic with the provided mnemonic.
func AccountGenMnemonic(mnemonic string) *accountGenMnemonic {
	return &accountGenMnemonic{mnemonic: mnemonic}
}

// Generate derives the ed25519 key at m/44'/637'/0'/0'/0' with SLIP-0010 and returns its
// account.
func (g *accountGenMnemonic) Generate() (*aptoslib.Account, error) {
	seed, err := bip39.NewSeedWithErrorChecking(g.mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("failed to parse mnemonic: %w", err)
	}

	key, chainCode := slip10(hmacSHA512([]byte("ed25519 seed"), seed))
	for _, index := range aptosDerivationPath {
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, index|0x80000000)
		key, chainCode = slip10(hmacSHA512(chainCode, data))
	}

	return aptoslib.NewAccountFromSigner(&crypto.Ed25519PrivateKey{Inner: ed25519.NewKeyFromSeed(key)})
}

func hmacSHA512(key, data []byte) []byte {
	mac := hmac.New(sha512.New, key)
	mac.Write(data)

	return mac.Sum(nil)
}

func slip10(i []byte) (key, chainCode []byte) {
	return i[:32], i[32:]
}
