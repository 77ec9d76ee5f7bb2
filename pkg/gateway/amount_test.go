package gateway

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0.5", "500000000000000000"},
		{"1", "1000000000000000000"},
		{" 2.25 ", "2250000000000000000"},
		{"0.000000000000000001", "1"},
		{"1.500000000000000000000", "1500000000000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			wei, err := ParseAmount(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, wei.String())
		})
	}
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, in := range []string{"0", "-1", "0.0", "-0.5", "", "   ", "abc", "1,5", "0x10", "0.0000000000000000001"} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseAmount(in)
			var invalid *InvalidAmountError
			require.ErrorAs(t, err, &invalid)
			assert.Equal(t, in, invalid.Input)
		})
	}
}

func TestFormatEther(t *testing.T) {
	wei, _ := new(big.Int).SetString("1230000000000000000", 10)
	assert.Equal(t, "1.2300", FormatEther(wei, 4))
	assert.Equal(t, "1.23", FormatEther(wei, 2))

	wei, _ = new(big.Int).SetString("999999999999999999", 10)
	assert.Equal(t, "1.0000", FormatEther(wei, 4))
	assert.Equal(t, "0.0001", FormatEther(big.NewInt(50_000_000_000_000), 4))
	assert.Equal(t, "0.0000", FormatEther(big.NewInt(49_999_999_999_999), 4))

	assert.Equal(t, "0.0000", FormatEther(nil, 4))
	assert.Equal(t, "5", FormatEther(big.NewInt(5e18), 0))
}
