package gateway

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

const etherDecimals = 18

// ParseAmount converts a positive ETH amount to wei. Callers validate with
// it before asking the gateway to send anything.
func ParseAmount(s string) (*big.Int, error) {
	wei, err := toWei(s)
	if err != nil {
		return nil, err
	}
	if wei.Sign() <= 0 {
		return nil, &InvalidAmountError{Input: s, Reason: "must be greater than zero"}
	}
	return wei, nil
}

func toWei(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, &InvalidAmountError{Input: s, Reason: "amount is required"}
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, &InvalidAmountError{Input: s, Reason: "not a number"}
	}
	if !d.Equal(d.Truncate(etherDecimals)) {
		return nil, &InvalidAmountError{Input: s, Reason: "more than 18 decimal places"}
	}
	return d.Shift(etherDecimals).BigInt(), nil
}

// FormatEther renders wei as ETH rounded to a fixed number of decimals.
func FormatEther(wei *big.Int, decimals int) string {
	if wei == nil {
		wei = new(big.Int)
	}
	return decimal.NewFromBigInt(wei, -etherDecimals).StringFixed(int32(decimals))
}
