// Package rpc dials configured nodes with URL failover and runs the
// node-level probes used by the wallet and the check command.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"tipjar/pkg/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	gethrpc "github.com/ethereum/go-ethereum/rpc"
)

var ProbeTimeout = 10 * time.Second

var ErrNoRPCURLs = errors.New("no rpc urls configured")

// Endpoint is a dialed node that answered eth_chainId.
type Endpoint struct {
	URL     string
	ChainID uint64
	Client  *gethrpc.Client
}

func (e *Endpoint) Eth() *ethclient.Client {
	return ethclient.NewClient(e.Client)
}

func (e *Endpoint) Close() {
	e.Client.Close()
}

// DialChain tries the chain's RPC URLs in order and returns the first one
// that answers, along with the URLs that failed before it.
func DialChain(ctx context.Context, chain config.ChainConfig) (*Endpoint, []string, error) {
	if len(chain.RPCURLs) == 0 {
		return nil, nil, fmt.Errorf("%s: %w", chain.Name, ErrNoRPCURLs)
	}
	var failed []string
	var lastErr error
	for _, url := range chain.RPCURLs {
		client, err := gethrpc.DialContext(ctx, url)
		if err != nil {
			failed = append(failed, url)
			lastErr = err
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
		var id hexutil.Uint64
		err = client.CallContext(probeCtx, &id, "eth_chainId")
		cancel()
		if err != nil {
			client.Close()
			failed = append(failed, url)
			lastErr = err
			continue
		}
		return &Endpoint{URL: url, ChainID: uint64(id), Client: client}, failed, nil
	}
	return nil, failed, fmt.Errorf("%s: all rpc urls failed: %w", chain.Name, lastErr)
}

// FetchChainID asks a single node for its chain id.
func FetchChainID(ctx context.Context, url string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Uint64(), nil
}

// FetchLatency measures a round trip to the latest header.
func FetchLatency(ctx context.Context, url string) (time.Duration, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	if _, err := client.HeaderByNumber(ctx, nil); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

// FetchGasPrice returns the suggested gas price from the first URL that answers.
func FetchGasPrice(ctx context.Context, urls []string) (*big.Int, []string, error) {
	var failed []string
	lastErr := ErrNoRPCURLs
	for _, url := range urls {
		price, err := withClient(ctx, url, func(ctx context.Context, c *ethclient.Client) (*big.Int, error) {
			return c.SuggestGasPrice(ctx)
		})
		if err != nil {
			failed = append(failed, url)
			lastErr = err
			continue
		}
		return price, failed, nil
	}
	return nil, failed, lastErr
}

// FetchCode returns the bytecode at addr from the first URL that answers.
func FetchCode(ctx context.Context, urls []string, addr common.Address) ([]byte, error) {
	lastErr := ErrNoRPCURLs
	for _, url := range urls {
		code, err := withClient(ctx, url, func(ctx context.Context, c *ethclient.Client) ([]byte, error) {
			return c.CodeAt(ctx, addr, nil)
		})
		if err != nil {
			lastErr = err
			continue
		}
		return code, nil
	}
	return nil, lastErr
}

func withClient[T any](ctx context.Context, url string, fn func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	var zero T
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return zero, err
	}
	defer client.Close()
	return fn(ctx, client)
}
