// Package utils holds display helpers shared by the terminal page and the
// command line.
package utils

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	GweiDecimals  = 9
	EtherDecimals = 18
)

// ShortenURL drops the scheme and cuts the rest to max characters.
func ShortenURL(raw string, max int) string {
	if i := strings.Index(raw, "://"); i >= 0 {
		raw = raw[i+3:]
	}
	if len(raw) <= max {
		return raw
	}
	if max <= 3 {
		return raw[:max]
	}
	return raw[:max-3] + "..."
}

// GroupThousands inserts commas into the integer part of a decimal string.
func GroupThousands(s string) string {
	intPart, frac, hasFrac := strings.Cut(s, ".")
	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign, intPart = "-", intPart[1:]
	}
	if len(intPart) <= 3 {
		return s
	}

	groups := make([]string, 0, len(intPart)/3+1)
	for len(intPart) > 3 {
		groups = append([]string{intPart[len(intPart)-3:]}, groups...)
		intPart = intPart[:len(intPart)-3]
	}
	groups = append([]string{intPart}, groups...)

	out := sign + strings.Join(groups, ",")
	if hasFrac {
		out += "." + frac
	}
	return out
}

// FormatUnits renders an integer amount of base units scaled down by
// 10^exp, rounded to decimals places and grouped.
func FormatUnits(amount *big.Int, exp, decimals int32) string {
	if amount == nil {
		amount = new(big.Int)
	}
	return GroupThousands(decimal.NewFromBigInt(amount, -exp).StringFixed(decimals))
}

// FormatAmount renders a float with decimals places, grouped.
func FormatAmount(v float64, decimals int32) string {
	return GroupThousands(decimal.NewFromFloat(v).StringFixed(decimals))
}

// ShortenAddress renders 0x1234...abcd. Short or empty input is returned as is.
func ShortenAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}
