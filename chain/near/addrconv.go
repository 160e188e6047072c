package near

import (
	"crypto/sha256"
	"errors"
	"regexp"

	"github.com/wormhole-foundation/wormhole-connect-go/chain"
	"github.com/wormhole-foundation/wormhole-connect-go/registry"
)

const (
	minAccountIDLen = 2
	maxAccountIDLen = 64
)

var (
	accountIDPattern = regexp.MustCompile(`^(([a-z\d]+[-_])*[a-z\d]+\.)*([a-z\d]+[-_])*[a-z\d]+$`)

	errAccountID = errors.New("not a valid account id")
)

// ValidateAccountID checks the account id grammar: 2 to 64 characters of lowercase
// alphanumeric parts separated by '.', '-' or '_'. Implicit accounts (64 hex characters)
// satisfy it.
func ValidateAccountID(cfg registry.ChainConfig, accountID string) error {
	if len(accountID) < minAccountIDLen || len(accountID) > maxAccountIDLen || !accountIDPattern.MatchString(accountID) {
		return &chain.InvalidAddressError{Chain: cfg.Name, Family: registry.FamilyNear, Address: accountID, Err: errAccountID}
	}

	return nil
}

// AccountHash returns the sha256 of the account id, its 32 byte wire form.
func AccountHash(accountID string) [32]byte {
	return sha256.Sum256([]byte(accountID))
}

// AddressConverter implements address conversion for NEAR.
type AddressConverter struct{}

// ConvertToBytes validates the account id and returns its hash. Account ids are longer than
// 32 bytes in general, so the bridge identifies accounts by hash.
func (AddressConverter) ConvertToBytes(cfg registry.ChainConfig, address string) ([]byte, error) {
	if err := ValidateAccountID(cfg, address); err != nil {
		return nil, err
	}
	h := AccountHash(address)

	return h[:], nil
}

// Supports returns true if this converter supports the given chain family.
func (AddressConverter) Supports(family registry.Family) bool {
	return family == registry.FamilyNear
}
