package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	MinNumber = 1
	MaxNumber = 25

	GameDuration       = 24 * time.Hour
	WinnerSharePercent = 90

	weiDecimals = 18
)

// BetPrice is 0.001 ETH expressed in wei
var BetPrice = decimal.New(1, 15)

// ValidNumber reports whether n can be bet on
func ValidNumber(n int) bool {
	return n >= MinNumber && n <= MaxNumber
}

// FormatEther renders a wei amount in ETH, e.g. 1000000000000000 -> "0.001"
func FormatEther(wei decimal.Decimal) string {
	return wei.Shift(-weiDecimals).String()
}

// ParseWei parses a base-10 wei string. Fractions and negatives are rejected.
func ParseWei(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
