package controller

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"tipjar/pkg/gateway"
	"tipjar/pkg/models"
	"tipjar/pkg/wallet"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/event"
	"github.com/shopspring/decimal"
)

const (
	ActionConnect  = "connect"
	ActionTip      = "tip"
	ActionWithdraw = "withdraw"
)

var (
	ErrBusy     = errors.New("another action is already in progress")
	ErrNotOwner = errors.New("only the contract owner can withdraw")
	// ErrSuperseded means the wallet switched account or chain while the
	// action was running and its result was dropped.
	ErrSuperseded = errors.New("the wallet changed while connecting; try again")
)

var fallbackMessages = map[string]string{
	ActionConnect:  "failed to connect the wallet",
	ActionTip:      "failed to send the tip",
	ActionWithdraw: "failed to withdraw",
	"refresh":      "could not load contract data; check the network and contract address",
}

// ChainGateway is the part of *gateway.Gateway the controller drives.
type ChainGateway interface {
	Connect(ctx context.Context) (string, error)
	SessionInfo(ctx context.Context) (models.SessionInfo, bool)
	ReadBalance(ctx context.Context) (*big.Int, error)
	FormatBalance(wei *big.Int) string
	ReadOwner(ctx context.Context) (string, error)
	SendTip(ctx context.Context, amountEth string) (string, error)
	Withdraw(ctx context.Context) (string, error)
	ChainName(id uint64) string
	ExpectedChainID() uint64
}

// GatewayFactory builds a fresh gateway. It runs at construction and on
// every chain change.
type GatewayFactory func() (ChainGateway, error)

// Controller owns the view state and sequences gateway calls.
type Controller struct {
	provider     wallet.Provider
	factory      GatewayFactory
	gateway      ChainGateway
	historyLimit int

	state       models.ViewState
	subscribers []Subscriber
	mu          sync.RWMutex

	subs     []event.Subscription
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
	logger   *log.Logger
	now      func() time.Time
}

func New(provider wallet.Provider, factory GatewayFactory, historyLimit int, logger *log.Logger) (*Controller, error) {
	gw, err := factory()
	if err != nil {
		return nil, err
	}
	return &Controller{
		provider:     provider,
		factory:      factory,
		gateway:      gw,
		historyLimit: historyLimit,
		state:        initialState(gw, 0),
		logger:       logger.WithPrefix("controller"),
		now:          time.Now,
	}, nil
}

func initialState(gw ChainGateway, generation uint64) models.ViewState {
	return models.ViewState{
		Status:          models.StatusDisconnected,
		ExpectedChainID: gw.ExpectedChainID(),
		Generation:      generation,
	}
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (c *Controller) Subscribe() Subscriber {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(Subscriber, 100)
	c.subscribers = append(c.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (c *Controller) Unsubscribe(ch Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subscribers {
		if sub == ch {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (c *Controller) notify(t EventType, st models.ViewState) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, sub := range c.subscribers {
		select {
		case sub <- Event{Type: t, State: st}:
		default:
			// slow subscriber, drop
		}
	}
}

// State returns a copy of the current view state.
func (c *Controller) State() models.ViewState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.copyLocked()
}

func (c *Controller) copyLocked() models.ViewState {
	st := c.state
	st.BalanceHistory = append([]models.BalancePoint(nil), c.state.BalanceHistory...)
	return st
}

// update applies fn under the lock and broadcasts the result.
func (c *Controller) update(t EventType, fn func(s *models.ViewState)) models.ViewState {
	c.mu.Lock()
	fn(&c.state)
	st := c.copyLocked()
	c.mu.Unlock()
	c.notify(t, st)
	return st
}

// current returns the gateway and generation that new work should use.
func (c *Controller) current() (ChainGateway, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gateway, c.state.Generation
}

// ExpectedChainName is the display name of the chain the contract lives on.
func (c *Controller) ExpectedChainName() string {
	gw, _ := c.current()
	return gw.ChainName(gw.ExpectedChainID())
}

func statusFor(s models.ViewState) models.Status {
	switch {
	case !s.Connected():
		return models.StatusDisconnected
	case s.CorrectNetwork():
		return models.StatusConnected
	default:
		return models.StatusWrongNetwork
	}
}

// Start runs session discovery and subscribes to wallet notifications.
// Notifications are handled on a background goroutine until Stop.
func (c *Controller) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)

	accountsCh := make(chan []string, 16)
	chainCh := make(chan uint64, 16)
	if c.provider != nil {
		c.subs = append(c.subs,
			c.provider.SubscribeAccountsChanged(accountsCh),
			c.provider.SubscribeChainChanged(chainCh),
		)
	}

	c.discover(ctx)

	c.wg.Add(1)
	go c.loop(ctx, accountsCh, chainCh)
}

// Stop releases the wallet subscriptions and waits for background work.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() {
		for _, s := range c.subs {
			s.Unsubscribe()
		}
		if c.cancel != nil {
			c.cancel()
		}
	})
	c.wg.Wait()
}

func (c *Controller) loop(ctx context.Context, accountsCh <-chan []string, chainCh <-chan uint64) {
	defer c.wg.Done()
	for {
		select {
		case accounts := <-accountsCh:
			c.handleAccountsChanged(ctx, accounts)
		case id := <-chainCh:
			c.handleChainChanged(ctx, id)
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) background(ctx context.Context, fn func(context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(ctx)
	}()
}

// discover reads whatever session the wallet already has, without prompting.
func (c *Controller) discover(ctx context.Context) {
	gw, gen := c.current()
	info, ok := gw.SessionInfo(ctx)
	if !ok {
		c.logger.Debug("no session to discover")
		return
	}

	c.mu.Lock()
	if c.state.Generation != gen {
		c.mu.Unlock()
		return
	}
	c.state.Session = models.WalletSession{Account: info.Account, ChainID: info.ChainID}
	c.state.ChainName = info.ChainName
	c.state.Status = statusFor(c.state)
	valid := c.state.Status == models.StatusConnected
	st := c.copyLocked()
	c.mu.Unlock()

	c.logger.Info("session discovered", "account", info.Account, "chain", info.ChainName)
	c.notify(EventSessionDiscovered, st)
	if valid {
		_ = c.Refresh(ctx)
	}
}

func (c *Controller) handleAccountsChanged(ctx context.Context, accounts []string) {
	if len(accounts) == 0 {
		c.logger.Info("wallet reported no accounts")
		c.update(EventAccountsChanged, func(s *models.ViewState) {
			s.Session.Account = ""
			s.IsOwner = false
			s.Status = models.StatusDisconnected
			s.Generation++
		})
		return
	}

	account := accounts[0]
	c.logger.Info("account changed", "account", account)
	st := c.update(EventAccountsChanged, func(s *models.ViewState) {
		s.Session.Account = account
		s.IsOwner = models.IsOwner(account, s.Snapshot.Owner)
		s.Status = statusFor(*s)
	})

	if st.Session.ChainID == 0 {
		c.background(ctx, c.discover)
		return
	}
	c.background(ctx, func(ctx context.Context) { _ = c.Refresh(ctx) })
}

// handleChainChanged drops everything bound to the old chain: a new gateway
// is built, all state except an in-flight action's pending flag is cleared,
// and discovery runs again.
func (c *Controller) handleChainChanged(ctx context.Context, id uint64) {
	c.logger.Info("chain changed, reloading", "chain_id", id)
	gw, err := c.factory()

	c.mu.Lock()
	if err == nil {
		c.gateway = gw
	}
	pending := c.state.Pending
	c.state = initialState(c.gateway, c.state.Generation+1)
	c.state.Pending = pending
	if err != nil {
		c.state.Error = fmt.Sprintf("reload failed: %v", err)
	}
	st := c.copyLocked()
	c.mu.Unlock()

	c.notify(EventChainChanged, st)
	if err != nil {
		c.logger.Error("rebuild gateway", "err", err)
		return
	}
	c.background(ctx, c.discover)
}

// Refresh reloads the contract snapshot when an account is connected on the
// expected chain. Results that arrive after a disconnect or chain change
// are discarded.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.RLock()
	gw := c.gateway
	gen := c.state.Generation
	valid := c.state.Connected() && c.state.CorrectNetwork()
	c.mu.RUnlock()
	if !valid {
		return nil
	}

	wei, err := gw.ReadBalance(ctx)
	var owner string
	if err == nil {
		owner, err = gw.ReadOwner(ctx)
	}
	var msg string
	if err != nil {
		msg = c.describe(err, "refresh")
	}

	c.mu.Lock()
	if c.state.Generation != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale refresh", "generation", gen)
		return nil
	}
	if err != nil {
		c.state.Snapshot = models.ContractSnapshot{Balance: "0", BalanceWei: "0"}
		c.state.IsOwner = false
		c.state.Error = msg
	} else {
		c.state.Snapshot = models.ContractSnapshot{
			Balance:    gw.FormatBalance(wei),
			BalanceWei: wei.String(),
			Owner:      owner,
		}
		c.state.IsOwner = models.IsOwner(c.state.Session.Account, owner)
		c.state.Error = ""
		c.state.RefreshedAt = c.now()
		c.recordBalanceLocked(wei)
	}
	st := c.copyLocked()
	c.mu.Unlock()

	if err != nil {
		c.logger.Warn("refresh failed", "err", err)
	}
	c.notify(EventSnapshotUpdated, st)
	return err
}

func (c *Controller) recordBalanceLocked(wei *big.Int) {
	v, _ := decimal.NewFromBigInt(wei, -18).Float64()
	c.state.BalanceHistory = append(c.state.BalanceHistory, models.BalancePoint{Timestamp: c.now(), Value: v})
	if c.historyLimit > 0 && len(c.state.BalanceHistory) > c.historyLimit {
		c.state.BalanceHistory = c.state.BalanceHistory[len(c.state.BalanceHistory)-c.historyLimit:]
	}
}

// describe turns an error into the message shown in the error region.
func (c *Controller) describe(err error, action string) string {
	var wrong *gateway.WrongNetworkError
	switch {
	case errors.As(err, &wrong):
		gw, _ := c.current()
		return fmt.Sprintf("Switch the wallet to %s (current: %s)", gw.ChainName(wrong.Expected), gw.ChainName(wrong.Actual))
	case gateway.IsUserRejected(err):
		return "request rejected in wallet"
	case err.Error() != "":
		return err.Error()
	default:
		return fallbackMessages[action]
	}
}

func (c *Controller) setError(err error, action string) {
	msg := c.describe(err, action)
	c.update(EventStateUpdated, func(s *models.ViewState) {
		s.Error = msg
		s.Notice = ""
	})
}

// runAction is the envelope every user action goes through: pending on,
// error cleared, the call, the error message on failure, pending off.
// A second action while one is pending fails with ErrBusy.
func (c *Controller) runAction(ctx context.Context, action string, fn func(ctx context.Context, gw ChainGateway) error) error {
	c.mu.Lock()
	if c.state.Pending.Pending {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state.Pending = models.PendingAction{Pending: true, Action: action}
	c.state.Error = ""
	c.state.Notice = ""
	gw := c.gateway
	st := c.copyLocked()
	c.mu.Unlock()
	c.notify(EventActionStarted, st)

	err := fn(ctx, gw)

	var msg string
	if err != nil {
		msg = c.describe(err, action)
		c.logger.Warn("action failed", "action", action, "err", err)
	}
	c.update(EventActionFinished, func(s *models.ViewState) {
		s.Pending = models.PendingAction{}
		if err != nil {
			s.Error = msg
		}
	})
	return err
}

// Connect asks the wallet for access. On the expected chain the snapshot
// is loaded; on any other chain the state is left in WrongNetwork and a
// *gateway.WrongNetworkError is returned.
func (c *Controller) Connect(ctx context.Context) error {
	return c.runAction(ctx, ActionConnect, func(ctx context.Context, gw ChainGateway) error {
		_, gen := c.current()
		c.update(EventStateUpdated, func(s *models.ViewState) {
			s.Status = models.StatusConnecting
		})

		account, err := gw.Connect(ctx)
		if err != nil {
			c.update(EventStateUpdated, func(s *models.ViewState) {
				s.Status = statusFor(*s)
			})
			return err
		}
		info, ok := gw.SessionInfo(ctx)

		c.mu.Lock()
		if c.state.Generation != gen {
			c.mu.Unlock()
			c.logger.Debug("discarding stale connect", "generation", gen)
			return ErrSuperseded
		}
		c.state.Session.Account = account
		if ok {
			c.state.Session.ChainID = info.ChainID
			c.state.ChainName = info.ChainName
		}
		c.state.IsOwner = models.IsOwner(account, c.state.Snapshot.Owner)
		c.state.Status = statusFor(c.state)
		st := c.copyLocked()
		c.mu.Unlock()

		c.logger.Info("connected", "account", account, "chain", st.ChainName)
		c.notify(EventStateUpdated, st)

		if st.Status != models.StatusConnected {
			return &gateway.WrongNetworkError{Expected: st.ExpectedChainID, Actual: st.Session.ChainID}
		}
		_ = c.Refresh(ctx)
		return nil
	})
}

// SendTip validates the amount, sends it and reloads the snapshot.
// Invalid amounts never reach the gateway.
func (c *Controller) SendTip(ctx context.Context, amountEth string) (string, error) {
	if _, err := gateway.ParseAmount(amountEth); err != nil {
		c.setError(err, ActionTip)
		return "", err
	}
	var hash string
	err := c.runAction(ctx, ActionTip, func(ctx context.Context, gw ChainGateway) error {
		var err error
		hash, err = gw.SendTip(ctx, amountEth)
		if err != nil {
			return err
		}
		c.confirmed(hash, fmt.Sprintf("Tip sent! tx: %s", hash))
		_ = c.Refresh(ctx)
		return nil
	})
	return hash, err
}

// Withdraw is refused locally unless the connected account owns the contract.
func (c *Controller) Withdraw(ctx context.Context) (string, error) {
	if !c.State().IsOwner {
		c.setError(ErrNotOwner, ActionWithdraw)
		return "", ErrNotOwner
	}
	var hash string
	err := c.runAction(ctx, ActionWithdraw, func(ctx context.Context, gw ChainGateway) error {
		var err error
		hash, err = gw.Withdraw(ctx)
		if err != nil {
			return err
		}
		c.confirmed(hash, fmt.Sprintf("Withdrawal complete! tx: %s", hash))
		_ = c.Refresh(ctx)
		return nil
	})
	return hash, err
}

func (c *Controller) confirmed(hash, notice string) {
	c.logger.Info("transaction confirmed", "hash", hash)
	c.update(EventTransactionConfirmed, func(s *models.ViewState) {
		s.LastTxHash = hash
		s.Notice = notice
	})
}
