package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"
	"time"

	"tipjar/pkg/config"
	"tipjar/pkg/rpc"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
)

// LocalProvider is a wallet that holds its own keys. Account requests are
// answered locally, transactions are signed locally and sent raw, and every
// other method goes to the current chain's node.
type LocalProvider struct {
	mu         sync.RWMutex
	chains     []config.ChainConfig
	current    int
	keys       []*ecdsa.PrivateKey
	selected   int
	authorized bool
	endpoints  map[int]*rpc.Endpoint
	timeout    time.Duration

	// serializes nonce lookup and submission
	sendMu sync.Mutex
	logger *log.Logger

	accountsFeed event.Feed
	chainFeed    event.Feed
}

func NewLocalProvider(chains []config.ChainConfig, start int, keys []*ecdsa.PrivateKey, logger *log.Logger) *LocalProvider {
	if start < 0 || start >= len(chains) {
		start = 0
	}
	return &LocalProvider{
		chains:    chains,
		current:   start,
		keys:      keys,
		endpoints: map[int]*rpc.Endpoint{},
		logger:    logger.WithPrefix("wallet"),
	}
}

func (p *LocalProvider) SubscribeAccountsChanged(ch chan<- []string) event.Subscription {
	return p.accountsFeed.Subscribe(ch)
}

func (p *LocalProvider) SubscribeChainChanged(ch chan<- uint64) event.Subscription {
	return p.chainFeed.Subscribe(ch)
}

// SetRequestTimeout bounds every request that reaches a node. Zero
// disables the bound.
func (p *LocalProvider) SetRequestTimeout(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = d
}

func (p *LocalProvider) Request(ctx context.Context, result interface{}, method string, params ...interface{}) error {
	p.logger.Debug("request", "method", method)

	p.mu.RLock()
	timeout := p.timeout
	p.mu.RUnlock()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch method {
	case "eth_requestAccounts":
		p.mu.Lock()
		p.authorized = true
		accounts := p.accountsLocked()
		p.mu.Unlock()
		return assign(result, accounts)
	case "eth_accounts":
		p.mu.RLock()
		accounts := []string{}
		if p.authorized {
			accounts = p.accountsLocked()
		}
		p.mu.RUnlock()
		return assign(result, accounts)
	case "eth_chainId":
		id, err := p.ChainID(ctx)
		if err != nil {
			return err
		}
		return assign(result, hexutil.Uint64(id))
	case "eth_sendTransaction":
		return p.sendTransaction(ctx, result, params)
	case "wallet_switchEthereumChain":
		var sp SwitchChainParams
		if err := decodeParam(params, 0, &sp); err != nil {
			return err
		}
		return p.SwitchChainID(ctx, uint64(sp.ChainID))
	}

	ep, err := p.endpoint(ctx)
	if err != nil {
		return err
	}
	return ep.Client.CallContext(ctx, result, method, params...)
}

// accountsLocked lists addresses with the selected account first.
func (p *LocalProvider) accountsLocked() []string {
	out := make([]string, 0, len(p.keys))
	for i := range p.keys {
		k := p.keys[(p.selected+i)%len(p.keys)]
		out = append(out, crypto.PubkeyToAddress(k.PublicKey).Hex())
	}
	return out
}

// Accounts returns every address the wallet can sign for.
func (p *LocalProvider) Accounts() []common.Address {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]common.Address, len(p.keys))
	for i, k := range p.keys {
		out[i] = crypto.PubkeyToAddress(k.PublicKey)
	}
	return out
}

// CurrentChain returns the chain the wallet is on.
func (p *LocalProvider) CurrentChain() config.ChainConfig {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.chains) == 0 {
		return config.ChainConfig{}
	}
	return p.chains[p.current]
}

// ChainID reports the configured id of the current chain, asking the node
// when the config leaves it unset.
func (p *LocalProvider) ChainID(ctx context.Context) (uint64, error) {
	chain := p.CurrentChain()
	if chain.ChainID != 0 {
		return chain.ChainID, nil
	}
	ep, err := p.endpoint(ctx)
	if err != nil {
		return 0, err
	}
	return ep.ChainID, nil
}

func (p *LocalProvider) endpoint(ctx context.Context) (*rpc.Endpoint, error) {
	p.mu.RLock()
	idx := p.current
	ep, ok := p.endpoints[idx]
	p.mu.RUnlock()
	if ok {
		return ep, nil
	}
	if len(p.chains) == 0 {
		return nil, &RPCError{Code: CodeDisconnected, Message: "no chains configured"}
	}

	chain := p.chains[idx]
	ep, failed, err := rpc.DialChain(ctx, chain)
	for _, u := range failed {
		p.logger.Warn("rpc unavailable", "chain", chain.Name, "url", u)
	}
	if err != nil {
		return nil, &RPCError{Code: CodeDisconnected, Message: err.Error()}
	}
	if chain.ChainID != 0 && ep.ChainID != chain.ChainID {
		p.logger.Warn("node reports a different chain id", "chain", chain.Name, "configured", chain.ChainID, "node", ep.ChainID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.endpoints[idx]; ok {
		ep.Close()
		return existing, nil
	}
	p.endpoints[idx] = ep
	return ep, nil
}

func (p *LocalProvider) sendTransaction(ctx context.Context, result interface{}, params []interface{}) error {
	var args TransactionArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return err
	}
	if args.From == nil {
		return &RPCError{Code: -32602, Message: "missing from"}
	}

	p.mu.RLock()
	authorized := p.authorized
	var key *ecdsa.PrivateKey
	for _, k := range p.keys {
		if crypto.PubkeyToAddress(k.PublicKey) == *args.From {
			key = k
			break
		}
	}
	p.mu.RUnlock()
	if !authorized || key == nil {
		return &RPCError{Code: CodeUnauthorized, Message: fmt.Sprintf("account %s is not authorized", args.From.Hex())}
	}

	ep, err := p.endpoint(ctx)
	if err != nil {
		return err
	}
	hash, err := p.signAndSend(ctx, ep, key, args)
	if err != nil {
		return err
	}
	p.logger.Info("transaction sent", "hash", hash.Hex(), "from", args.From.Hex())
	return assign(result, hash)
}

func (p *LocalProvider) signAndSend(ctx context.Context, ep *rpc.Endpoint, key *ecdsa.PrivateKey, args TransactionArgs) (common.Hash, error) {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	client := ep.Eth()
	from := *args.From
	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}

	nonce, err := client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get nonce: %w", err)
	}

	var gas uint64
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	} else {
		gas, err = client.EstimateGas(ctx, ethereum.CallMsg{From: from, To: args.To, Value: value, Data: args.Data})
		if err != nil {
			return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
		}
	}

	head, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("get head: %w", err)
	}

	var tx *types.Transaction
	if head.BaseFee != nil {
		tip, err := client.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest tip: %w", err)
		}
		feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = types.NewTx(&types.DynamicFeeTx{
			ChainID:   new(big.Int).SetUint64(ep.ChainID),
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gas,
			To:        args.To,
			Value:     value,
			Data:      args.Data,
		})
	} else {
		price, err := client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("suggest gas price: %w", err)
		}
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: price,
			Gas:      gas,
			To:       args.To,
			Value:    value,
			Data:     args.Data,
		})
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(ep.ChainID)), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, err
	}
	return signed.Hash(), nil
}

// SwitchChain moves the wallet to chains[idx] and emits chainChanged.
func (p *LocalProvider) SwitchChain(ctx context.Context, idx int) error {
	p.mu.Lock()
	if idx < 0 || idx >= len(p.chains) {
		p.mu.Unlock()
		return &RPCError{Code: CodeUnrecognizedChain, Message: fmt.Sprintf("unknown chain index %d", idx)}
	}
	p.current = idx
	name := p.chains[idx].Name
	p.mu.Unlock()

	id, err := p.ChainID(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("switched chain", "chain", name, "id", id)
	p.chainFeed.Send(id)
	return nil
}

// SwitchChainID switches to the configured chain with the given id.
func (p *LocalProvider) SwitchChainID(ctx context.Context, id uint64) error {
	p.mu.RLock()
	idx := -1
	for i, ch := range p.chains {
		if ch.ChainID == id {
			idx = i
			break
		}
	}
	p.mu.RUnlock()
	if idx < 0 {
		return &RPCError{Code: CodeUnrecognizedChain, Message: fmt.Sprintf("unrecognized chain id %d", id)}
	}
	return p.SwitchChain(ctx, idx)
}

// NextChain cycles through the configured chains.
func (p *LocalProvider) NextChain(ctx context.Context) error {
	p.mu.RLock()
	n := len(p.chains)
	next := p.current + 1
	p.mu.RUnlock()
	if n == 0 {
		return &RPCError{Code: CodeDisconnected, Message: "no chains configured"}
	}
	return p.SwitchChain(ctx, next%n)
}

// NextAccount selects the next key. Connected sites see accountsChanged.
func (p *LocalProvider) NextAccount() {
	p.mu.Lock()
	if len(p.keys) == 0 {
		p.mu.Unlock()
		return
	}
	p.selected = (p.selected + 1) % len(p.keys)
	authorized := p.authorized
	accounts := p.accountsLocked()
	p.mu.Unlock()

	if authorized {
		p.accountsFeed.Send(accounts)
	}
}

// Lock revokes authorization and emits an empty accountsChanged.
func (p *LocalProvider) Lock() {
	p.mu.Lock()
	was := p.authorized
	p.authorized = false
	p.mu.Unlock()

	if was {
		p.logger.Info("wallet locked")
		p.accountsFeed.Send([]string{})
	}
}

func (p *LocalProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for idx, ep := range p.endpoints {
		ep.Close()
		delete(p.endpoints, idx)
	}
}
