// Package currency holds the ISO 4217 minor-unit table. Amounts are carried as
// int64 minor units everywhere; decimals only appear when formatting for display.
package currency

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnsupportedCurrency indicates a code missing from the exponent table
type ErrUnsupportedCurrency struct {
	Code string
}

func (e ErrUnsupportedCurrency) Error() string {
	return "unsupported currency: " + e.Code
}

var exponents = map[string]int32{
	"AED": 2, "AUD": 2, "BHD": 3, "BRL": 2, "CAD": 2, "CHF": 2, "CLP": 0, "CNY": 2,
	"CZK": 2, "DKK": 2, "EUR": 2, "GBP": 2, "HKD": 2, "HUF": 2, "IDR": 2, "ILS": 2,
	"INR": 2, "ISK": 0, "JOD": 3, "JPY": 0, "KRW": 0, "KWD": 3, "MXN": 2, "MYR": 2,
	"NGN": 2, "NOK": 2, "NZD": 2, "OMR": 3, "PHP": 2, "PLN": 2, "SAR": 2, "SEK": 2,
	"SGD": 2, "THB": 2, "TND": 3, "TRY": 2, "TWD": 2, "UGX": 0, "USD": 2, "VND": 0,
	"XAF": 0, "XOF": 0, "ZAR": 2,
}

// Exponent returns the number of minor-unit digits for code
func Exponent(code string) (int32, error) {
	exp, ok := exponents[code]
	if !ok {
		return 0, ErrUnsupportedCurrency{Code: code}
	}
	return exp, nil
}

// IsSupported reports whether code is a known, upper-case ISO 4217 code
func IsSupported(code string) bool {
	_, ok := exponents[code]
	return ok
}

// Normalize upper-cases and trims a user supplied code and checks it is supported
func Normalize(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if !IsSupported(c) {
		return "", ErrUnsupportedCurrency{Code: code}
	}
	return c, nil
}

// ToDecimal converts minor units to a decimal major-unit amount
func ToDecimal(amountMinor int64, code string) (decimal.Decimal, error) {
	exp, err := Exponent(code)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(amountMinor, -exp), nil
}

// FormatMinor renders minor units as a fixed-point string, e.g. 1050 USD -> "10.50"
func FormatMinor(amountMinor int64, code string) (string, error) {
	d, err := ToDecimal(amountMinor, code)
	if err != nil {
		return "", err
	}
	exp, _ := Exponent(code)
	return d.StringFixed(exp), nil
}

// ParseMajor converts a major-unit string such as "10.5" to minor units.
// Inputs carrying more precision than the currency allows are rejected.
func ParseMajor(amount string, code string) (int64, error) {
	exp, err := Exponent(code)
	if err != nil {
		return 0, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	scaled := d.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places for %s", amount, exp, code)
	}
	if !scaled.BigInt().IsInt64() {
		return 0, fmt.Errorf("amount %q overflows minor units", amount)
	}
	return scaled.IntPart(), nil
}
