package wire

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// wireDecimals is the finest precision the venue accepts for prices and sizes.
const wireDecimals = 8

// usdDecimals is the fixed-point scale of integer USD fields (micro-dollars).
const usdDecimals = 6

var ErrPrecision = errors.New("value exceeds wire precision")

// FormatDecimal renders d in the venue's canonical string form: at most eight
// fractional digits, trailing zeros stripped, no exponent, "-0" folded to "0".
// Values that cannot be represented without rounding are rejected.
func FormatDecimal(d decimal.Decimal) (string, error) {
	rounded := d.Round(wireDecimals)
	if !rounded.Equal(d) {
		return "", fmt.Errorf("%w: %s has more than %d decimals", ErrPrecision, d.String(), wireDecimals)
	}
	return rounded.String(), nil
}

// ToUsdInt converts a USD amount to its integer micro-dollar representation.
func ToUsdInt(d decimal.Decimal) (int64, error) {
	shifted := d.Shift(usdDecimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimals", ErrPrecision, d.String(), usdDecimals)
	}
	return shifted.IntPart(), nil
}

// RoundSignificant rounds d to sig significant figures.
func RoundSignificant(d decimal.Decimal, sig int32) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	abs := d.Abs()
	magnitude := int32(len(abs.Coefficient().String())) + abs.Exponent()
	return d.Round(sig - magnitude)
}
