package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tipjar/pkg/config"
	"tipjar/pkg/controller"
	"tipjar/pkg/gateway"
	"tipjar/pkg/logging"
	"tipjar/pkg/metrics"
	"tipjar/pkg/models"
	"tipjar/pkg/wallet"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sepolia = 11155111

var (
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	ownerAddr    = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	tipperAddr   = "0x70997970c51812dc3a010c7d01b50e0d17dc79c8"
)

func newTestServer(t *testing.T, fake *wallet.FakeProvider) (*Server, *controller.Controller) {
	t.Helper()
	cfg := config.Default()
	cfg.ContractAddress = contractAddr.Hex()
	cfg.ExpectedChainID = sepolia
	cfg.Chains = []config.ChainConfig{{Name: "Sepolia", ChainID: sepolia, RPCURLs: []string{"http://localhost:8545"}}}

	reg := metrics.NewRegistry()
	logger := logging.Discard()
	ctrl, err := controller.New(fake, func() (controller.ChainGateway, error) {
		gw, err := gateway.New(fake, cfg, logger)
		if err != nil {
			return nil, err
		}
		gw.SetObserver(reg)
		return gw, nil
	}, cfg.BalanceHistoryLimit, logger)
	require.NoError(t, err)
	return NewServer(ctrl, reg, logger), ctrl
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) actionResponse {
	t.Helper()
	var resp actionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func post(s *Server, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)
	return rr
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t, wallet.NewFakeProvider(sepolia, contractAddr, ownerAddr))

	req, _ := http.NewRequest("GET", "/api/status", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var resp map[string]interface{}
	err := json.Unmarshal(rr.Body.Bytes(), &resp)
	assert.NoError(t, err)
	assert.Equal(t, "disconnected", resp["status"])
	assert.Contains(t, resp, "expected_chain_id")
}

func TestHandleConnectAndTip(t *testing.T) {
	fake := wallet.NewFakeProvider(sepolia, contractAddr, ownerAddr)
	s, _ := newTestServer(t, fake)

	rr := post(s, "/api/connect", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp := decode(t, rr)
	assert.Equal(t, "connected", resp.State.Status.String())
	assert.True(t, resp.State.IsOwner)
	assert.Equal(t, "0.0000", resp.State.Snapshot.Balance)

	rr = post(s, "/api/tip", `{"amount":"0.5"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	resp = decode(t, rr)
	assert.NotEmpty(t, resp.TxHash)
	assert.Equal(t, resp.TxHash, resp.State.LastTxHash)
	assert.Equal(t, "0.5000", resp.State.Snapshot.Balance)
	assert.Contains(t, resp.State.Notice, resp.TxHash)

	assert.Equal(t, 1, fake.CallCount("eth_sendTransaction"))
}

func TestHandleTip_InvalidAmount(t *testing.T) {
	fake := wallet.NewFakeProvider(sepolia, contractAddr, ownerAddr)
	s, _ := newTestServer(t, fake)

	rr := post(s, "/api/tip", `{"amount":"abc"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.NotEmpty(t, decode(t, rr).Error)
	assert.Empty(t, fake.Sent)

	rr = post(s, "/api/tip", `not json`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleConnect_WrongNetwork(t *testing.T) {
	s, _ := newTestServer(t, wallet.NewFakeProvider(1, contractAddr, ownerAddr))

	rr := post(s, "/api/connect", "")
	assert.Equal(t, http.StatusConflict, rr.Code)
	resp := decode(t, rr)
	assert.Equal(t, "wrong_network", resp.State.Status.String())
	assert.Contains(t, resp.Error, "Sepolia")
}

func TestHandleWithdraw(t *testing.T) {
	t.Run("not owner", func(t *testing.T) {
		fake := wallet.NewFakeProvider(sepolia, contractAddr, tipperAddr)
		fake.Owner = common.HexToAddress(ownerAddr)
		s, _ := newTestServer(t, fake)

		require.Equal(t, http.StatusOK, post(s, "/api/connect", "").Code)
		rr := post(s, "/api/withdraw", "")
		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.Empty(t, fake.Sent)
	})

	t.Run("owner", func(t *testing.T) {
		fake := wallet.NewFakeProvider(sepolia, contractAddr, ownerAddr)
		fake.SetBalance(big.NewInt(1e18))
		s, _ := newTestServer(t, fake)

		require.Equal(t, http.StatusOK, post(s, "/api/connect", "").Code)
		rr := post(s, "/api/withdraw", "")
		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		resp := decode(t, rr)
		assert.Equal(t, "0.0000", resp.State.Snapshot.Balance)
		assert.Contains(t, resp.State.Notice, "Withdrawal complete")
	})
}

func TestHandleRefresh_Failure(t *testing.T) {
	fake := wallet.NewFakeProvider(sepolia, contractAddr, ownerAddr)
	s, _ := newTestServer(t, fake)
	require.Equal(t, http.StatusOK, post(s, "/api/connect", "").Code)

	delete(fake.Code, strings.ToLower(contractAddr.Hex()))
	rr := post(s, "/api/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	resp := decode(t, rr)
	assert.Equal(t, "0", resp.State.Snapshot.Balance)
	assert.NotEmpty(t, resp.Error)
}

func TestHandleMetrics(t *testing.T) {
	s, _ := newTestServer(t, wallet.NewFakeProvider(sepolia, contractAddr, ownerAddr))
	require.Equal(t, http.StatusOK, post(s, "/api/connect", "").Code)
	require.Equal(t, http.StatusOK, post(s, "/api/tip", `{"amount":"1"}`).Code)

	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `tipjar_gateway_calls_total{op="send_tip",status="ok"} 1`)
	assert.Contains(t, rr.Body.String(), `tipjar_gateway_calls_total{op="read_balance",status="ok"} 2`)
}

func TestHandleWS(t *testing.T) {
	fake := wallet.NewFakeProvider(sepolia, contractAddr, ownerAddr)
	s, ctrl := newTestServer(t, fake)
	server := httptest.NewServer(s.mux)
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.listenToController(ctx, ctrl.Subscribe())

	u := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	// Read initial state
	var msg map[string]interface{}
	err = ws.ReadJSON(&msg)
	require.NoError(t, err)
	assert.Equal(t, "initial", msg["type"])

	fake.SetBalance(big.NewInt(2e18))
	require.NoError(t, ctrl.Connect(context.Background()))

	_ = ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var ev controller.Event
		require.NoError(t, ws.ReadJSON(&ev))
		if ev.Type == controller.EventSnapshotUpdated {
			assert.Equal(t, "2.0000", ev.State.Snapshot.Balance)
			break
		}
	}
	assert.Eventually(t, func() bool {
		rr := httptest.NewRecorder()
		s.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		return strings.Contains(rr.Body.String(), "tipjar_contract_balance_eth 2")
	}, time.Second, 10*time.Millisecond)
}

func TestErrorMessage(t *testing.T) {
	st := models.ViewState{Error: "could not load contract data"}

	assert.Equal(t, controller.ErrBusy.Error(), errorMessage(controller.ErrBusy, st))
	assert.Equal(t, controller.ErrNotOwner.Error(), errorMessage(controller.ErrNotOwner, st))
	assert.Equal(t, controller.ErrSuperseded.Error(), errorMessage(controller.ErrSuperseded, st))
	assert.Equal(t, "could not load contract data", errorMessage(errors.New("rpc failure"), st))
	assert.Equal(t, "rpc failure", errorMessage(errors.New("rpc failure"), models.ViewState{}))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{&gateway.InvalidAmountError{Input: "x", Reason: "not a number"}, http.StatusBadRequest},
		{controller.ErrNotOwner, http.StatusForbidden},
		{controller.ErrBusy, http.StatusConflict},
		{controller.ErrSuperseded, http.StatusConflict},
		{&gateway.WrongNetworkError{Expected: 11155111, Actual: 1}, http.StatusConflict},
		{gateway.ErrNoProvider, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), "%v", tt.err)
	}
}
