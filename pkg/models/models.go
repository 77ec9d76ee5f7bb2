package models

import (
	"math/big"
	"strings"
	"time"
)

// Status is the connection state of the view.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusWrongNetwork
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusWrongNetwork:
		return "wrong_network"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "connecting":
		*s = StatusConnecting
	case "wrong_network":
		*s = StatusWrongNetwork
	case "connected":
		*s = StatusConnected
	default:
		*s = StatusDisconnected
	}
	return nil
}

// WalletSession is what the wallet has told us about the connected account.
// Empty Account or zero ChainID mean "unknown".
type WalletSession struct {
	Account string `json:"account,omitempty"`
	ChainID uint64 `json:"chain_id,omitempty"`
}

// SessionInfo is the result of a best-effort session discovery.
type SessionInfo struct {
	Account   string
	ChainID   uint64
	ChainName string
}

// ContractSnapshot holds values read from the tip jar contract.
type ContractSnapshot struct {
	Balance    string `json:"balance"`               // ETH, fixed decimals
	BalanceWei string `json:"balance_wei,omitempty"` // base 10
	Owner      string `json:"owner"`
}

// HasFunds reports whether the contract holds any wei. Display rounding
// does not affect it.
func (c ContractSnapshot) HasFunds() bool {
	wei, ok := new(big.Int).SetString(c.BalanceWei, 10)
	return ok && wei.Sign() > 0
}

// PendingAction describes the user action currently in flight.
type PendingAction struct {
	Pending bool   `json:"pending"`
	Action  string `json:"action,omitempty"`
}

// BalancePoint is one observed contract balance.
type BalancePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ViewState is the full state published by the controller.
type ViewState struct {
	Status          Status           `json:"status"`
	Session         WalletSession    `json:"session"`
	ChainName       string           `json:"chain_name,omitempty"`
	ExpectedChainID uint64           `json:"expected_chain_id"`
	Snapshot        ContractSnapshot `json:"snapshot"`
	IsOwner         bool             `json:"is_owner"`
	Pending         PendingAction    `json:"pending"`
	Error           string           `json:"error,omitempty"`
	Notice          string           `json:"notice,omitempty"`
	LastTxHash      string           `json:"last_tx_hash,omitempty"`
	BalanceHistory  []BalancePoint   `json:"balance_history,omitempty"`
	RefreshedAt     time.Time        `json:"refreshed_at,omitempty"`
	Generation      uint64           `json:"generation"`
}

// Connected reports whether an account is present.
func (s ViewState) Connected() bool {
	return s.Session.Account != ""
}

// CorrectNetwork reports whether the wallet is on the expected chain.
func (s ViewState) CorrectNetwork() bool {
	return s.Session.ChainID != 0 && s.Session.ChainID == s.ExpectedChainID
}

// IsOwner compares addresses case-insensitively. Empty values never match.
func IsOwner(account, owner string) bool {
	if account == "" || owner == "" {
		return false
	}
	return strings.EqualFold(account, owner)
}

// ChainResult holds check results for a specific chain.
type ChainResult struct {
	Name            string      `json:"name"`
	ConfigChainID   uint64      `json:"config_chain_id"`
	RPCs            []RPCResult `json:"rpcs"`
	Inconsistent    bool        `json:"inconsistent"`
	ChainIDUpdated  bool        `json:"chain_id_updated"`
	ObservedChainID uint64      `json:"observed_chain_id,omitempty"`
	GasPriceGwei    string      `json:"gas_price_gwei,omitempty"`
	Expected        bool        `json:"expected"`
	ContractFound   *bool       `json:"contract_found,omitempty"`
}

// RPCResult holds check results for a specific RPC URL.
type RPCResult struct {
	URL       string `json:"url"`
	Status    string `json:"status"` // "ok" or "error"
	ChainID   uint64 `json:"chain_id,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// CheckReport holds the results of the configuration check.
type CheckReport struct {
	ConfigPath         string        `json:"config_path"`
	ValidStructure     bool          `json:"valid_structure"`
	StructureErrors    []string      `json:"structure_errors,omitempty"`
	ContractAddress    string        `json:"contract_address"`
	ExpectedChainID    uint64        `json:"expected_chain_id"`
	AccountCount       int           `json:"account_count"`
	Chains             []ChainResult `json:"chains,omitempty"`
	InconsistentChains []string      `json:"inconsistent_chains,omitempty"`
	ConfigUpdated      bool          `json:"config_updated"`
	SaveError          string        `json:"save_error,omitempty"`
	DryRun             bool          `json:"dry_run"`
}
