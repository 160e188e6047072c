package commands

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// toBaseUnits scales a human amount such as "1.5" to an integer amount of base units of a
// token with the given decimals. Amounts with more fractional digits than decimals are
// rejected rather than rounded.
func toBaseUnits(amount string, decimals uint8) (string, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return "", fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return "", fmt.Errorf("invalid amount %q: must not be negative", amount)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return "", fmt.Errorf("amount %q has more than %d decimals", amount, decimals)
	}

	return scaled.BigInt().String(), nil
}
