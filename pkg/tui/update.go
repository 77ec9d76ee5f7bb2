package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tipjar/pkg/controller"
	"tipjar/pkg/models"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controller.Event:
		// Keep draining the same subscription.
		cmds = append(cmds, listenForController(m.sub))
		m.state = msg.State
		if msg.Type == controller.EventChainChanged {
			m.tipping = false
			m.tipInput.Blur()
		}

	case actionDoneMsg:
		if msg.err == nil && msg.action == controller.ActionTip {
			m.tipInput.SetValue("")
		}
		if errors.Is(msg.err, controller.ErrBusy) {
			m.statusMessage = "Another action is still in progress"
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case walletMsg:
		if msg.err != nil {
			m.statusMessage = fmt.Sprintf("Wallet: %v", msg.err)
		} else {
			m.statusMessage = msg.status
		}
		cmds = append(cmds, clearStatusAfter(2*time.Second))

	case tea.KeyMsg:
		if m.tipping {
			return m.updateTipInput(msg)
		}
		if msg.String() == "?" {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			if msg.String() == "q" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}
		if m.showGraph {
			switch msg.String() {
			case "g", "q", "esc":
				m.showGraph = false
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			m.ctrl.Unsubscribe(m.sub)
			return m, tea.Quit

		case "c":
			if m.state.Pending.Pending {
				break
			}
			cmds = append(cmds, m.connectCmd())

		case "t":
			if !canTip(m.state) {
				m.statusMessage = "Connect on " + m.expectedName + " to send a tip"
				cmds = append(cmds, clearStatusAfter(2*time.Second))
				break
			}
			m.tipping = true
			cmds = append(cmds, m.tipInput.Focus())

		case "w":
			if !canWithdraw(m.state) {
				m.statusMessage = withdrawHint(m.state)
				cmds = append(cmds, clearStatusAfter(2*time.Second))
				break
			}
			cmds = append(cmds, m.withdrawCmd())

		case "r":
			if m.state.Status == models.StatusConnected {
				m.statusMessage = "Refreshing contract data..."
				cmds = append(cmds, m.refreshCmd(), clearStatusAfter(2*time.Second))
			}

		case "g":
			m.showGraph = true

		case "y":
			if m.state.LastTxHash == "" {
				break
			}
			if err := clipboard.WriteAll(m.state.LastTxHash); err != nil {
				m.statusMessage = "Failed to copy to clipboard"
			} else {
				m.statusMessage = "Transaction hash copied to clipboard!"
			}
			cmds = append(cmds, clearStatusAfter(2*time.Second))

		case "o":
			url := explorerTxURL(m.explorerURL, m.state.LastTxHash)
			switch {
			case m.state.LastTxHash == "":
				m.statusMessage = "No transaction yet"
			case url == "":
				m.statusMessage = "Explorer URL not configured for this chain"
			default:
				if err := openBrowser(url); err != nil {
					m.statusMessage = fmt.Sprintf("Failed to open browser: %v", err)
				} else {
					m.statusMessage = "Opened in browser"
				}
			}
			cmds = append(cmds, clearStatusAfter(2*time.Second))

		case "n", "a", "l":
			if m.wallet == nil {
				m.statusMessage = "Wallet controls are not available"
				cmds = append(cmds, clearStatusAfter(2*time.Second))
				break
			}
			cmds = append(cmds, m.walletCmd(msg.String()))
		}

	case clearStatusMsg:
		m.statusMessage = ""
	}

	if m.state.Pending.Pending || m.state.Status == models.StatusConnecting {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m model) updateTipInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.tipping = false
		m.tipInput.Blur()
		return m, nil
	case "enter":
		amount := strings.TrimSpace(m.tipInput.Value())
		m.tipping = false
		m.tipInput.Blur()
		if amount == "" || m.state.Pending.Pending {
			return m, nil
		}
		return m, m.tipCmd(amount)
	}
	var cmd tea.Cmd
	m.tipInput, cmd = m.tipInput.Update(msg)
	return m, cmd
}

func withdrawHint(st models.ViewState) string {
	switch {
	case st.Pending.Pending:
		return "Another action is still in progress"
	case st.Status != models.StatusConnected:
		return "Connect the wallet first"
	case !st.IsOwner:
		return "Only the contract owner can withdraw"
	default:
		return "Nothing to withdraw"
	}
}
