package app

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatPrice renders an amount in cents as a dollar string, e.g. 999 -> "$9.99".
func FormatPrice(cents int64) string {
	return "$" + FormatAmount(cents)
}

// FormatAmount renders cents as a plain two-decimal amount.
func FormatAmount(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ToMinorUnits converts a provider amount such as "12.5" into integer cents.
func ToMinorUnits(value string) (int64, error) {
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return 0, &ValidationError{Field: "amount", Message: fmt.Sprintf("invalid amount %q", value)}
	}
	if amount.IsNegative() {
		return 0, &ValidationError{Field: "amount", Message: "amount must not be negative"}
	}
	return amount.Mul(hundred).Round(0).IntPart(), nil
}

// ParsePrice reads a seller-entered dollar price into cents.
func ParsePrice(value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	return ToMinorUnits(value)
}
