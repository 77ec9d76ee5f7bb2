package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tipjar/pkg/config"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockNode(t *testing.T, results map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := results[req.Method]; ok {
			resp["result"] = result
		} else {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func header() map[string]interface{} {
	zero := "0x" + strings.Repeat("00", 32)
	return map[string]interface{}{
		"number":           "0x1000",
		"hash":             "0x" + strings.Repeat("00", 31) + "01",
		"parentHash":       zero,
		"sha3Uncles":       "0x1dcc4de8dec75d7aab85b567b6ccd41ad312451b948a7413f0a142fd40d49347",
		"timestamp":        "0x5f5e1000",
		"miner":            "0x0000000000000000000000000000000000000000",
		"gasLimit":         "0x1c9c380",
		"gasUsed":          "0x0",
		"difficulty":       "0x0",
		"extraData":        "0x",
		"mixHash":          zero,
		"nonce":            "0x0000000000000000",
		"stateRoot":        zero,
		"receiptsRoot":     zero,
		"transactionsRoot": zero,
		"logsBloom":        "0x" + strings.Repeat("00", 256),
		"baseFeePerGas":    "0x3b9aca00",
	}
}

func TestDialChain_FailsOver(t *testing.T) {
	broken := mockNode(t, map[string]interface{}{})
	good := mockNode(t, map[string]interface{}{"eth_chainId": "0xaa36a7"})

	chain := config.ChainConfig{Name: "sepolia", RPCURLs: []string{broken.URL, good.URL}}
	ep, failed, err := DialChain(context.Background(), chain)
	require.NoError(t, err)
	defer ep.Close()

	assert.Equal(t, good.URL, ep.URL)
	assert.Equal(t, uint64(11155111), ep.ChainID)
	assert.Equal(t, []string{broken.URL}, failed)
}

func TestDialChain_AllFail(t *testing.T) {
	broken := mockNode(t, map[string]interface{}{})
	_, failed, err := DialChain(context.Background(), config.ChainConfig{Name: "x", RPCURLs: []string{broken.URL}})
	require.Error(t, err)
	assert.Len(t, failed, 1)

	_, _, err = DialChain(context.Background(), config.ChainConfig{Name: "empty"})
	assert.ErrorIs(t, err, ErrNoRPCURLs)
}

func TestFetchChainID(t *testing.T) {
	node := mockNode(t, map[string]interface{}{"eth_chainId": "0x7a69"})
	id, err := FetchChainID(context.Background(), node.URL)
	require.NoError(t, err)
	assert.Equal(t, uint64(31337), id)
}

func TestFetchGasPrice(t *testing.T) {
	broken := mockNode(t, map[string]interface{}{})
	node := mockNode(t, map[string]interface{}{"eth_gasPrice": "0x4a817c800"})

	price, failed, err := FetchGasPrice(context.Background(), []string{broken.URL, node.URL})
	require.NoError(t, err)
	assert.Equal(t, int64(20000000000), price.Int64())
	assert.Equal(t, []string{broken.URL}, failed)
}

func TestFetchCode(t *testing.T) {
	node := mockNode(t, map[string]interface{}{"eth_getCode": "0x6080"})
	code, err := FetchCode(context.Background(), []string{node.URL}, common.HexToAddress("0x1"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x60, 0x80}, code)

	_, err = FetchCode(context.Background(), nil, common.HexToAddress("0x1"))
	assert.ErrorIs(t, err, ErrNoRPCURLs)
}

func TestFetchLatency(t *testing.T) {
	node := mockNode(t, map[string]interface{}{"eth_getBlockByNumber": header()})
	d, err := FetchLatency(context.Background(), node.URL)
	require.NoError(t, err)
	assert.Greater(t, int64(d), int64(0))
}
