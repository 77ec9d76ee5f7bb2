package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"tipjar/pkg/controller"
	"tipjar/pkg/gateway"
	"tipjar/pkg/metrics"
	"tipjar/pkg/models"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Server struct {
	ctrl    *controller.Controller
	metrics *metrics.Registry
	logger  *log.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
	mux     *http.ServeMux
}

func NewServer(ctrl *controller.Controller, m *metrics.Registry, logger *log.Logger) *Server {
	s := &Server{
		ctrl:    ctrl,
		metrics: m,
		logger:  logger.WithPrefix("server"),
		clients: make(map[*websocket.Conn]bool),
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/status", s.handleStatus)
	s.mux.HandleFunc("POST /api/connect", s.handleConnect)
	s.mux.HandleFunc("POST /api/tip", s.handleTip)
	s.mux.HandleFunc("POST /api/withdraw", s.handleWithdraw)
	s.mux.HandleFunc("POST /api/refresh", s.handleRefresh)
	s.mux.HandleFunc("/ws", s.handleWS)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, port int) error {
	go s.listenToController(ctx, s.ctrl.Subscribe())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("API server listening", "port", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type actionResponse struct {
	TxHash string           `json:"tx_hash,omitempty"`
	Error  string           `json:"error,omitempty"`
	State  models.ViewState `json:"state"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Debug("write response", "err", err)
	}
}

// respond reports an action outcome along with the state it left behind.
func (s *Server) respond(w http.ResponseWriter, hash string, err error) {
	resp := actionResponse{TxHash: hash, State: s.ctrl.State()}
	if err != nil {
		resp.Error = errorMessage(err, resp.State)
	}
	s.writeJSON(w, statusFor(err), resp)
}

// errorMessage prefers the message the controller put in state. Refusals
// that never ran the action leave state alone, so a message found there
// belongs to some other call.
func errorMessage(err error, st models.ViewState) string {
	switch {
	case errors.Is(err, controller.ErrBusy), errors.Is(err, controller.ErrNotOwner),
		errors.Is(err, controller.ErrSuperseded):
		return err.Error()
	case st.Error != "":
		return st.Error
	default:
		return err.Error()
	}
}

func statusFor(err error) int {
	var (
		invalid *gateway.InvalidAmountError
		wrong   *gateway.WrongNetworkError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.Is(err, controller.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, controller.ErrBusy), errors.Is(err, controller.ErrSuperseded), errors.As(err, &wrong):
		return http.StatusConflict
	case errors.Is(err, gateway.ErrNoProvider), errors.Is(err, gateway.ErrNoAccounts):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ctrl.State())
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "", s.ctrl.Connect(r.Context()))
}

func (s *Server) handleTip(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, actionResponse{Error: "invalid request body", State: s.ctrl.State()})
		return
	}
	hash, err := s.ctrl.SendTip(r.Context(), req.Amount)
	s.respond(w, hash, err)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	hash, err := s.ctrl.Withdraw(r.Context())
	s.respond(w, hash, err)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.respond(w, "", s.ctrl.Refresh(r.Context()))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	// Send initial state before the connection joins the broadcast set.
	s.mu.Lock()
	err = conn.WriteJSON(map[string]interface{}{
		"type":  "initial",
		"state": s.ctrl.State(),
	})
	if err == nil {
		s.clients[conn] = true
	}
	s.mu.Unlock()
	if err != nil {
		return
	}

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) listenToController(ctx context.Context, sub controller.Subscriber) {
	defer s.ctrl.Unsubscribe(sub)

	for {
		select {
		case event, ok := <-sub:
			if !ok {
				return
			}
			s.observe(event)
			s.broadcast(event)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) observe(event controller.Event) {
	if s.metrics != nil && event.Type == controller.EventSnapshotUpdated && event.State.Error == "" {
		s.metrics.SetBalance(event.State.Snapshot.BalanceWei)
	}
}

func (s *Server) broadcast(event controller.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for client := range s.clients {
		if err := client.WriteJSON(event); err != nil {
			_ = client.Close()
			delete(s.clients, client)
		}
	}
}
