package gateway

import (
	"errors"
	"fmt"

	"tipjar/pkg/wallet"
)

var (
	ErrNoProvider = errors.New("no wallet provider found")
	ErrNoAccounts = errors.New("wallet returned no accounts")
	ErrReverted   = errors.New("transaction reverted")
)

// WrongNetworkError means the wallet is on a chain other than the expected one.
type WrongNetworkError struct {
	Expected uint64
	Actual   uint64
}

func (e *WrongNetworkError) Error() string {
	return fmt.Sprintf("wrong network: expected chain id %d, wallet is on %d", e.Expected, e.Actual)
}

// ContractNotFoundError means the configured address has no code on the current chain.
type ContractNotFoundError struct {
	Address string
	ChainID uint64
}

func (e *ContractNotFoundError) Error() string {
	return fmt.Sprintf("no contract deployed at %s on chain %d", e.Address, e.ChainID)
}

// InvalidAmountError rejects a tip amount that is not a positive ETH value.
type InvalidAmountError struct {
	Input  string
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %q: %s", e.Input, e.Reason)
}

// TransactionError wraps a failed submission, a failed wait for inclusion,
// or a reverted receipt.
type TransactionError struct {
	Op   string
	Hash string
	Err  error
}

func (e *TransactionError) Error() string {
	if e.Hash != "" {
		return fmt.Sprintf("%s transaction %s failed: %v", e.Op, e.Hash, e.Err)
	}
	return fmt.Sprintf("%s transaction failed: %v", e.Op, e.Err)
}

func (e *TransactionError) Unwrap() error {
	return e.Err
}

// IsUserRejected reports whether the wallet user declined the request.
func IsUserRejected(err error) bool {
	var rpcErr *wallet.RPCError
	return errors.As(err, &rpcErr) && rpcErr.Code == wallet.CodeUserRejected
}
