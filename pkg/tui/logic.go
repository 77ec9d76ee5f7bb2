package tui

import (
	"fmt"
	"strings"
	"time"

	"tipjar/pkg/controller"
	"tipjar/pkg/models"
	"tipjar/pkg/utils"

	tea "github.com/charmbracelet/bubbletea"
)

func canTip(st models.ViewState) bool {
	return st.Status == models.StatusConnected && !st.Pending.Pending
}

// canWithdraw mirrors the page's withdraw button: owner only, and only
// when there is something to withdraw.
func canWithdraw(st models.ViewState) bool {
	if !canTip(st) || !st.IsOwner {
		return false
	}
	return st.Snapshot.HasFunds()
}

func (m model) displayBalance() string {
	if m.state.Status != models.StatusConnected || m.state.Snapshot.Balance == "" {
		return "-"
	}
	return fmt.Sprintf("%s %s", utils.GroupThousands(m.state.Snapshot.Balance), m.symbol)
}

func displayAddress(addr string) string {
	if addr == "" {
		return "-"
	}
	return utils.ShortenAddress(addr)
}

func (m model) networkLabel() string {
	st := m.state
	if st.Session.ChainID == 0 {
		return "-"
	}
	name := st.ChainName
	if name == "" {
		name = fmt.Sprintf("chain-%d", st.Session.ChainID)
	}
	return fmt.Sprintf("%s (%d)", name, st.Session.ChainID)
}

func pendingLabel(action string) string {
	switch action {
	case controller.ActionConnect:
		return "Connecting..."
	case controller.ActionTip:
		return "Sending tip..."
	case controller.ActionWithdraw:
		return "Withdrawing..."
	default:
		return "Working..."
	}
}

func explorerTxURL(base, hash string) string {
	if base == "" || hash == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(base, "/"), hash)
}

// balanceSeries returns the recorded balances within window, oldest first.
func balanceSeries(history []models.BalancePoint, window time.Duration, now time.Time) []float64 {
	var out []float64
	for _, p := range history {
		if window > 0 && now.Sub(p.Timestamp) > window {
			continue
		}
		out = append(out, p.Value)
	}
	return out
}

func listenForController(sub controller.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func (m model) connectCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: controller.ActionConnect, err: ctrl.Connect(ctx)}
	}
}

func (m model) tipCmd(amount string) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		hash, err := ctrl.SendTip(ctx, amount)
		return actionDoneMsg{action: controller.ActionTip, hash: hash, err: err}
	}
}

func (m model) withdrawCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		hash, err := ctrl.Withdraw(ctx)
		return actionDoneMsg{action: controller.ActionWithdraw, hash: hash, err: err}
	}
}

func (m model) refreshCmd() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return actionDoneMsg{action: "refresh", err: ctrl.Refresh(ctx)}
	}
}

func (m model) walletCmd(key string) tea.Cmd {
	w, ctx := m.wallet, m.ctx
	return func() tea.Msg {
		switch key {
		case "n":
			if err := w.NextChain(ctx); err != nil {
				return walletMsg{err: err}
			}
			return walletMsg{status: "Wallet switched network"}
		case "a":
			w.NextAccount()
			return walletMsg{status: "Wallet switched account"}
		default:
			w.Lock()
			return walletMsg{status: "Wallet locked"}
		}
	}
}
