// Package gateway is the typed surface over the wallet provider for the
// tip jar contract. Every contract read and write re-checks the network
// first, since the wallet can switch chains between any two calls.
package gateway

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"tipjar/pkg/config"
	"tipjar/pkg/contract"
	"tipjar/pkg/models"
	"tipjar/pkg/wallet"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
)

// Observer is told about every gateway operation.
type Observer interface {
	ObserveCall(op string, duration time.Duration, err error)
}

var knownChains = map[uint64]string{
	1:        "mainnet",
	10:       "optimism",
	137:      "polygon",
	8453:     "base",
	17000:    "holesky",
	42161:    "arbitrum",
	31337:    "anvil",
	11155111: "sepolia",
}

type Gateway struct {
	provider wallet.Provider
	tipJar   *contract.TipJar

	expectedChainID uint64
	chainNames      func(uint64) string
	decimals        int
	pollInterval    time.Duration
	txTimeout       time.Duration

	observer Observer
	logger   *log.Logger
}

// New binds the provider to the configured contract. A nil provider is
// accepted; every operation then fails with ErrNoProvider.
func New(provider wallet.Provider, cfg *config.Config, logger *log.Logger) (*Gateway, error) {
	tj, err := contract.NewTipJar(common.HexToAddress(cfg.ContractAddress))
	if err != nil {
		return nil, err
	}
	return &Gateway{
		provider:        provider,
		tipJar:          tj,
		expectedChainID: cfg.ExpectedChainID,
		chainNames:      cfg.ChainName,
		decimals:        cfg.DisplayDecimals,
		pollInterval:    cfg.ReceiptPollInterval(),
		txTimeout:       cfg.TxTimeout(),
		logger:          logger.WithPrefix("gateway"),
	}, nil
}

func (g *Gateway) SetObserver(o Observer) {
	g.observer = o
}

func (g *Gateway) ExpectedChainID() uint64 {
	return g.expectedChainID
}

func (g *Gateway) ContractAddress() string {
	return g.tipJar.Address.Hex()
}

func (g *Gateway) observe(op string, start time.Time, err *error) {
	d := time.Since(start)
	if *err != nil {
		g.logger.Debug("call failed", "op", op, "duration", d, "err", *err)
	} else {
		g.logger.Debug("call ok", "op", op, "duration", d)
	}
	if g.observer != nil {
		g.observer.ObserveCall(op, d, *err)
	}
}

// Connect asks the wallet for account access and returns the first account.
func (g *Gateway) Connect(ctx context.Context) (account string, err error) {
	defer g.observe("connect", time.Now(), &err)
	if g.provider == nil {
		return "", ErrNoProvider
	}
	var accounts []string
	if err := g.provider.Request(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return "", fmt.Errorf("request accounts: %w", err)
	}
	if len(accounts) == 0 {
		return "", ErrNoAccounts
	}
	return accounts[0], nil
}

// ChainName resolves a chain id to a display name.
func (g *Gateway) ChainName(id uint64) string {
	if g.chainNames != nil {
		if name := g.chainNames(id); name != "" {
			return name
		}
	}
	if name, ok := knownChains[id]; ok {
		return name
	}
	return fmt.Sprintf("chain-%d", id)
}

// SessionInfo reads the current account and chain without prompting the
// user. ok is false when nothing could be read; the account may be empty
// when the wallet has not authorized this client yet.
func (g *Gateway) SessionInfo(ctx context.Context) (info models.SessionInfo, ok bool) {
	if g.provider == nil {
		return models.SessionInfo{}, false
	}
	var accounts []string
	if err := g.provider.Request(ctx, &accounts, "eth_accounts"); err != nil {
		g.logger.Debug("session discovery: accounts", "err", err)
		return models.SessionInfo{}, false
	}
	id, err := g.chainID(ctx)
	if err != nil {
		g.logger.Debug("session discovery: chain id", "err", err)
		return models.SessionInfo{}, false
	}
	if len(accounts) > 0 {
		info.Account = accounts[0]
	}
	info.ChainID = id
	info.ChainName = g.ChainName(id)
	return info, true
}

func (g *Gateway) chainID(ctx context.Context) (uint64, error) {
	var id hexutil.Uint64
	if err := g.provider.Request(ctx, &id, "eth_chainId"); err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// EnsureExpectedNetwork fails with *WrongNetworkError unless the wallet is
// on the expected chain.
func (g *Gateway) EnsureExpectedNetwork(ctx context.Context) error {
	if g.provider == nil {
		return ErrNoProvider
	}
	id, err := g.chainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	if id != g.expectedChainID {
		return &WrongNetworkError{Expected: g.expectedChainID, Actual: id}
	}
	return nil
}

// ContractExists reports whether the contract has code on the expected
// chain. Any failure, including a wrong network, yields false.
func (g *Gateway) ContractExists(ctx context.Context) bool {
	if err := g.EnsureExpectedNetwork(ctx); err != nil {
		return false
	}
	var code hexutil.Bytes
	if err := g.provider.Request(ctx, &code, "eth_getCode", g.tipJar.Address, "latest"); err != nil {
		g.logger.Debug("get code failed", "err", err)
		return false
	}
	return len(code) > 0
}

// guardRead runs the checks every contract read needs.
func (g *Gateway) guardRead(ctx context.Context) error {
	if err := g.EnsureExpectedNetwork(ctx); err != nil {
		return err
	}
	if !g.ContractExists(ctx) {
		return &ContractNotFoundError{Address: g.tipJar.Address.Hex(), ChainID: g.expectedChainID}
	}
	return nil
}

func (g *Gateway) call(ctx context.Context, method string) ([]byte, error) {
	data, err := g.tipJar.Pack(method)
	if err != nil {
		return nil, err
	}
	to := g.tipJar.Address
	var out hexutil.Bytes
	if err := g.provider.Request(ctx, &out, "eth_call", wallet.TransactionArgs{To: &to, Data: data}, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadBalance returns the contract balance in wei.
func (g *Gateway) ReadBalance(ctx context.Context) (wei *big.Int, err error) {
	defer g.observe("read_balance", time.Now(), &err)
	if err := g.guardRead(ctx); err != nil {
		return nil, err
	}
	out, err := g.call(ctx, contract.MethodGetBalance)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	wei, err = g.tipJar.UnpackBalance(out)
	if err != nil {
		return nil, fmt.Errorf("read balance: %w", err)
	}
	return wei, nil
}

// FormatBalance renders wei as ETH with the configured number of decimals.
func (g *Gateway) FormatBalance(wei *big.Int) string {
	return FormatEther(wei, g.decimals)
}

// ReadOwner returns the checksummed owner address.
func (g *Gateway) ReadOwner(ctx context.Context) (owner string, err error) {
	defer g.observe("read_owner", time.Now(), &err)
	if err := g.guardRead(ctx); err != nil {
		return "", err
	}
	out, err := g.call(ctx, contract.MethodOwner)
	if err != nil {
		return "", fmt.Errorf("read owner: %w", err)
	}
	addr, err := g.tipJar.UnpackOwner(out)
	if err != nil {
		return "", fmt.Errorf("read owner: %w", err)
	}
	return addr.Hex(), nil
}

// SendTip sends amountEth to the contract's tip entry point and waits for
// inclusion. Positivity is the caller's job; see ParseAmount.
func (g *Gateway) SendTip(ctx context.Context, amountEth string) (hash string, err error) {
	defer g.observe("send_tip", time.Now(), &err)
	if err := g.EnsureExpectedNetwork(ctx); err != nil {
		return "", err
	}
	wei, err := toWei(amountEth)
	if err != nil {
		return "", err
	}
	data, err := g.tipJar.Pack(contract.MethodTip)
	if err != nil {
		return "", err
	}
	return g.transact(ctx, contract.MethodTip, wallet.TransactionArgs{Value: (*hexutil.Big)(wei), Data: data})
}

// Withdraw calls withdrawTips. The contract enforces the owner restriction.
func (g *Gateway) Withdraw(ctx context.Context) (hash string, err error) {
	defer g.observe("withdraw", time.Now(), &err)
	if err := g.EnsureExpectedNetwork(ctx); err != nil {
		return "", err
	}
	data, err := g.tipJar.Pack(contract.MethodWithdrawTips)
	if err != nil {
		return "", err
	}
	return g.transact(ctx, contract.MethodWithdrawTips, wallet.TransactionArgs{Data: data})
}

func (g *Gateway) sender(ctx context.Context) (common.Address, error) {
	var accounts []string
	if err := g.provider.Request(ctx, &accounts, "eth_accounts"); err != nil {
		return common.Address{}, fmt.Errorf("read accounts: %w", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	return common.HexToAddress(accounts[0]), nil
}

func (g *Gateway) transact(ctx context.Context, op string, args wallet.TransactionArgs) (string, error) {
	from, err := g.sender(ctx)
	if err != nil {
		return "", err
	}
	to := g.tipJar.Address
	args.From = &from
	args.To = &to

	var hash common.Hash
	if err := g.provider.Request(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return "", &TransactionError{Op: op, Err: err}
	}
	g.logger.Info("transaction submitted", "op", op, "hash", hash.Hex())

	receipt, err := g.waitForReceipt(ctx, hash)
	if err != nil {
		return "", &TransactionError{Op: op, Hash: hash.Hex(), Err: err}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return "", &TransactionError{Op: op, Hash: hash.Hex(), Err: ErrReverted}
	}
	g.logger.Info("transaction included", "op", op, "hash", hash.Hex(), "block", receipt.BlockNumber)
	return hash.Hex(), nil
}

// waitForReceipt polls until the transaction is included, the context ends,
// or the configured timeout passes.
func (g *Gateway) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if g.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.txTimeout)
		defer cancel()
	}
	interval := g.pollInterval
	if interval <= 0 {
		interval = time.Duration(config.DefaultReceiptPollInterval) * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		var receipt *types.Receipt
		if err := g.provider.Request(ctx, &receipt, "eth_getTransactionReceipt", hash); err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
