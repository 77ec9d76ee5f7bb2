// Package wallet defines the EIP-1193 style provider the gateway talks to
// and ships two implementations: a key-holding LocalProvider that forwards
// JSON-RPC to configured nodes, and an in-memory FakeProvider for tests.
package wallet

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/event"
)

// Notification names from EIP-1193.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Provider error codes from EIP-1193 and EIP-3326.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupported       = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902
)

// Provider is an injected wallet: a request channel plus account and
// chain notifications. Subscriptions must be released with Unsubscribe.
type Provider interface {
	Request(ctx context.Context, result interface{}, method string, params ...interface{}) error
	SubscribeAccountsChanged(ch chan<- []string) event.Subscription
	SubscribeChainChanged(ch chan<- uint64) event.Subscription
}

// RPCError is a provider error carrying an EIP-1193 code.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// TransactionArgs is the eth_call / eth_sendTransaction parameter object.
type TransactionArgs struct {
	From  *common.Address `json:"from,omitempty"`
	To    *common.Address `json:"to,omitempty"`
	Gas   *hexutil.Uint64 `json:"gas,omitempty"`
	Value *hexutil.Big    `json:"value,omitempty"`
	Data  hexutil.Bytes   `json:"data,omitempty"`
}

// SwitchChainParams is the wallet_switchEthereumChain parameter object.
type SwitchChainParams struct {
	ChainID hexutil.Uint64 `json:"chainId"`
}

// assign copies value into result through JSON, the same way a JSON-RPC
// client decodes a response.
func assign(result interface{}, value interface{}) error {
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

// decodeParam decodes positional parameter i into out.
func decodeParam(params []interface{}, i int, out interface{}) error {
	if i >= len(params) {
		return &RPCError{Code: -32602, Message: fmt.Sprintf("missing parameter %d", i)}
	}
	if err := assign(out, params[i]); err != nil {
		return &RPCError{Code: -32602, Message: fmt.Sprintf("invalid parameter %d: %v", i, err)}
	}
	return nil
}
