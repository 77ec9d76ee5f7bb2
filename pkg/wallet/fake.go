package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"

	"tipjar/pkg/contract"
)

// FakeProvider is an in-memory wallet plus chain that runs the tip jar
// contract. Tests drive it through the exported fields and helpers.
type FakeProvider struct {
	mu sync.Mutex

	Accounts   []string
	Authorized bool
	ChainID    uint64

	Contract common.Address
	Owner    common.Address
	Balance  *big.Int
	// Code keyed by lowercase address; the contract gets bytecode by default.
	Code map[string][]byte

	// ReceiptDelay is how many eth_getTransactionReceipt polls return null
	// before the receipt appears.
	ReceiptDelay int
	// Revert makes every mined transaction fail with status 0.
	Revert bool
	// Errors forces a method to fail.
	Errors map[string]error

	Calls []string
	Sent  []TransactionArgs

	receipts map[common.Hash]*types.Receipt
	polls    map[common.Hash]int
	nonce    uint64
	tipJar   *contract.TipJar

	accountsFeed event.Feed
	chainFeed    event.Feed
}

// NewFakeProvider returns an authorized wallet on chainID whose first
// account owns a deployed tip jar at contractAddr.
func NewFakeProvider(chainID uint64, contractAddr common.Address, accounts ...string) *FakeProvider {
	tj, err := contract.NewTipJar(contractAddr)
	if err != nil {
		panic(err)
	}
	f := &FakeProvider{
		Accounts:   accounts,
		Authorized: true,
		ChainID:    chainID,
		Contract:   contractAddr,
		Balance:    new(big.Int),
		Code:       map[string][]byte{strings.ToLower(contractAddr.Hex()): {0x60, 0x80, 0x60, 0x40}},
		Errors:     map[string]error{},
		receipts:   map[common.Hash]*types.Receipt{},
		polls:      map[common.Hash]int{},
		tipJar:     tj,
	}
	if len(accounts) > 0 {
		f.Owner = common.HexToAddress(accounts[0])
	}
	return f
}

func (f *FakeProvider) SubscribeAccountsChanged(ch chan<- []string) event.Subscription {
	return f.accountsFeed.Subscribe(ch)
}

func (f *FakeProvider) SubscribeChainChanged(ch chan<- uint64) event.Subscription {
	return f.chainFeed.Subscribe(ch)
}

// SetAccounts replaces the account list and emits accountsChanged.
func (f *FakeProvider) SetAccounts(accounts ...string) {
	f.mu.Lock()
	f.Accounts = accounts
	f.mu.Unlock()
	f.accountsFeed.Send(append([]string(nil), accounts...))
}

// SetChain switches the chain and emits chainChanged.
func (f *FakeProvider) SetChain(id uint64) {
	f.mu.Lock()
	f.ChainID = id
	f.mu.Unlock()
	f.chainFeed.Send(id)
}

// SetBalance sets the contract balance in wei.
func (f *FakeProvider) SetBalance(wei *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Balance = new(big.Int).Set(wei)
}

// CallCount returns how often method was requested.
func (f *FakeProvider) CallCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c == method {
			n++
		}
	}
	return n
}

func (f *FakeProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, method)
	if err := f.Errors[method]; err != nil {
		return err
	}

	switch method {
	case "eth_requestAccounts":
		f.Authorized = true
		return assign(result, f.accountList())
	case "eth_accounts":
		return assign(result, f.accountList())
	case "eth_chainId":
		return assign(result, hexutil.Uint64(f.ChainID))
	case "eth_getCode":
		var addr common.Address
		if err := decodeParam(params, 0, &addr); err != nil {
			return err
		}
		return assign(result, hexutil.Bytes(f.Code[strings.ToLower(addr.Hex())]))
	case "eth_call":
		return f.call(result, params)
	case "eth_sendTransaction":
		return f.send(result, params)
	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := decodeParam(params, 0, &hash); err != nil {
			return err
		}
		r, ok := f.receipts[hash]
		if !ok || f.polls[hash] < f.ReceiptDelay {
			f.polls[hash]++
			return assign(result, nil)
		}
		return assign(result, r)
	default:
		return &RPCError{Code: -32601, Message: fmt.Sprintf("method %s not supported", method)}
	}
}

func (f *FakeProvider) accountList() []string {
	if !f.Authorized {
		return []string{}
	}
	return append([]string{}, f.Accounts...)
}

func (f *FakeProvider) call(result interface{}, params []interface{}) error {
	var args TransactionArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return err
	}
	if args.To == nil || *args.To != f.Contract || len(f.Code[strings.ToLower(f.Contract.Hex())]) == 0 {
		return assign(result, hexutil.Bytes{})
	}
	var (
		out []byte
		err error
	)
	switch f.tipJar.MethodName(args.Data) {
	case contract.MethodGetBalance:
		out, err = f.tipJar.PackBalanceResult(f.Balance)
	case contract.MethodOwner:
		out, err = f.tipJar.PackOwnerResult(f.Owner)
	default:
		return &RPCError{Code: 3, Message: "execution reverted"}
	}
	if err != nil {
		return err
	}
	return assign(result, hexutil.Bytes(out))
}

func (f *FakeProvider) send(result interface{}, params []interface{}) error {
	var args TransactionArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return err
	}
	if args.From == nil || !f.Authorized || !f.hasAccount(*args.From) {
		return &RPCError{Code: CodeUnauthorized, Message: "sender not authorized"}
	}
	f.Sent = append(f.Sent, args)
	f.nonce++

	hash := crypto.Keccak256Hash(args.From.Bytes(), new(big.Int).SetUint64(f.nonce).Bytes(), args.Data)
	status := types.ReceiptStatusSuccessful
	if f.Revert || !f.apply(args) {
		status = types.ReceiptStatusFailed
	}
	f.receipts[hash] = &types.Receipt{
		Status:            status,
		CumulativeGasUsed: 21000,
		GasUsed:           21000,
		Logs:              []*types.Log{},
		TxHash:            hash,
		BlockNumber:       new(big.Int).SetUint64(f.nonce),
	}
	return assign(result, hash)
}

// apply runs the contract's effect and reports success.
func (f *FakeProvider) apply(args TransactionArgs) bool {
	if args.To == nil || *args.To != f.Contract {
		return true
	}
	switch f.tipJar.MethodName(args.Data) {
	case contract.MethodTip:
		if args.Value == nil || args.Value.ToInt().Sign() <= 0 {
			return false
		}
		f.Balance = new(big.Int).Add(f.Balance, args.Value.ToInt())
		return true
	case contract.MethodWithdrawTips:
		if *args.From != f.Owner {
			return false
		}
		f.Balance = new(big.Int)
		return true
	default:
		return false
	}
}

func (f *FakeProvider) hasAccount(addr common.Address) bool {
	for _, a := range f.Accounts {
		if common.HexToAddress(a) == addr {
			return true
		}
	}
	return false
}
