package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsOwner(t *testing.T) {
	tests := []struct {
		account, owner string
		want           bool
	}{
		{"0xABCDEF0000000000000000000000000000000001", "0xabcdef0000000000000000000000000000000001", true},
		{"0xabcdef0000000000000000000000000000000001", "0xAbCdEf0000000000000000000000000000000001", true},
		{"0xabcdef0000000000000000000000000000000001", "0xabcdef0000000000000000000000000000000002", false},
		{"", "", false},
		{"0xabc", "", false},
		{"", "0xabc", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsOwner(tt.account, tt.owner), "%q vs %q", tt.account, tt.owner)
	}
}

func TestViewState_Network(t *testing.T) {
	s := ViewState{ExpectedChainID: 11155111}
	assert.False(t, s.Connected())
	assert.False(t, s.CorrectNetwork())

	s.Session = WalletSession{Account: "0x1", ChainID: 1}
	assert.True(t, s.Connected())
	assert.False(t, s.CorrectNetwork())

	s.Session.ChainID = 11155111
	assert.True(t, s.CorrectNetwork())
}

func TestStatus_JSON(t *testing.T) {
	data, err := json.Marshal(ViewState{Status: StatusWrongNetwork})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status":"wrong_network"`)
	assert.Equal(t, "disconnected", Status(42).String())

	var back ViewState
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, StatusWrongNetwork, back.Status)
}

func TestContractSnapshot_HasFunds(t *testing.T) {
	tests := []struct {
		name string
		snap ContractSnapshot
		want bool
	}{
		{"empty", ContractSnapshot{}, false},
		{"zero", ContractSnapshot{Balance: "0.0000", BalanceWei: "0"}, false},
		{"below display precision", ContractSnapshot{Balance: "0.0000", BalanceWei: "40000000000000"}, true},
		{"one ether", ContractSnapshot{Balance: "1.0000", BalanceWei: "1000000000000000000"}, true},
		{"garbage", ContractSnapshot{BalanceWei: "lots"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.snap.HasFunds())
		})
	}
}
