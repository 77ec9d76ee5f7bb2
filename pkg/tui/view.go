package tui

import (
	"fmt"
	"strings"
	"time"

	"tipjar/pkg/models"
	"tipjar/pkg/utils"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}
	if m.showGraph {
		return m.viewGraph()
	}

	st := m.state
	header := titleStyle.Render(fmt.Sprintf("Tip Jar - %s", m.expectedName))

	network := m.networkLabel()
	switch st.Status {
	case models.StatusWrongNetwork:
		network = errStyle.Render(network) + subtleStyle.Render(fmt.Sprintf(" (expected %s)", m.expectedName))
	case models.StatusConnected:
		network = infoStyle.Render(network)
	}

	owner := displayAddress(st.Snapshot.Owner)
	if st.IsOwner {
		owner += infoStyle.Render(" (you)")
	}

	rows := []string{
		row("Status", statusText(st.Status)),
		row("Account", displayAddress(st.Session.Account)),
		row("Network", network),
		row("Balance", m.displayBalance()),
		row("Owner", owner),
	}

	var action string
	switch {
	case m.tipping:
		action = fmt.Sprintf("Tip amount (%s): %s", m.symbol, m.tipInput.View())
	case st.Pending.Pending:
		action = m.spinner.View() + " " + pendingLabel(st.Pending.Action)
	case st.Status == models.StatusConnecting:
		action = m.spinner.View() + " Waiting for the wallet..."
	case st.Status == models.StatusDisconnected:
		action = subtleStyle.Render("Press c to connect your wallet")
	case st.Status == models.StatusWrongNetwork:
		action = warnStyle.Render(fmt.Sprintf("Switch the wallet to %s to continue", m.expectedName))
	default:
		hints := []string{"t: send a tip"}
		if canWithdraw(st) {
			hints = append(hints, "w: withdraw tips")
		}
		action = subtleStyle.Render(strings.Join(hints, " • "))
	}

	blocks := []string{header, "", strings.Join(rows, "\n"), "", action}
	if st.Error != "" {
		blocks = append(blocks, "", errStyle.Render(wrap(st.Error, m.contentWidth())))
	}
	if st.Notice != "" {
		blocks = append(blocks, "", infoStyle.Render(wrap(st.Notice, m.contentWidth())))
	}
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))

	// Footer
	line1 := "c:connect • t:tip • w:withdraw • r:refresh • g:graph • ?:help • q:quit"
	line2 := "y:copy tx • o:explorer"
	if m.wallet != nil {
		line2 += " • n:network • a:account • l:lock"
	}
	line2 += fmt.Sprintf(" • v%s", Version)

	var footer string
	if m.width > 0 {
		l1 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
		l2 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line2)
		footer = lipgloss.JoinVertical(lipgloss.Center, l1, l2)
	} else {
		footer = subtleStyle.Render(line1 + "\n" + line2)
	}
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

func row(label, value string) string {
	return labelStyle.Render(label) + " " + value
}

func statusText(s models.Status) string {
	switch s {
	case models.StatusConnecting:
		return warnStyle.Render("Connecting")
	case models.StatusWrongNetwork:
		return errStyle.Render("Wrong network")
	case models.StatusConnected:
		return infoStyle.Render("Connected")
	default:
		return subtleStyle.Render("Not connected")
	}
}

func (m model) contentWidth() int {
	w := m.width - 8
	if w < 40 {
		w = 40
	}
	return w
}

func wrap(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

func (m model) viewHelp() string {
	shortcuts := []string{
		"c: Connect Wallet",
		"t: Send Tip (enter to send, esc to cancel)",
		"w: Withdraw Tips (owner only)",
		"r: Refresh Contract Data",
		"g: Balance Graph",
		"y: Copy Last Transaction Hash",
		"o: Open Last Transaction in Explorer",
	}
	if m.wallet != nil {
		shortcuts = append(shortcuts,
			"n: Wallet: Next Network",
			"a: Wallet: Next Account",
			"l: Wallet: Lock",
		)
	}
	shortcuts = append(shortcuts, "q: Quit", "?: Toggle Help")

	header := titleStyle.Render("Help")
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

func (m model) viewGraph() string {
	header := titleStyle.Render(fmt.Sprintf("Tip Jar Balance (%s)", m.symbol))

	targetBoxWidth := m.width - 4
	if targetBoxWidth < 0 {
		targetBoxWidth = 0
	}

	var graph, stats string
	series := balanceSeries(m.state.BalanceHistory, 0, time.Now())
	if len(series) > 1 {
		min, max, sum := series[0], series[0], 0.0
		for _, v := range series {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
		}
		avg := sum / float64(len(series))
		stats = subtleStyle.Render(fmt.Sprintf("Low: %s • Avg: %s • High: %s",
			utils.FormatAmount(min, 4), utils.FormatAmount(avg, 4), utils.FormatAmount(max, 4)))

		graphWidth := targetBoxWidth - 14
		if graphWidth < 10 {
			graphWidth = 10
		}
		graphHeight := m.height - 14
		if graphHeight < 1 {
			graphHeight = 1
		}
		graph = asciigraph.Plot(series,
			asciigraph.Height(graphHeight),
			asciigraph.Width(graphWidth),
			asciigraph.Caption(fmt.Sprintf("Contract balance (%s)", m.symbol)),
		)
	} else {
		graph = "Not enough data to draw graph."
	}

	content := boxStyle.Width(targetBoxWidth).Align(lipgloss.Center).Render(lipgloss.JoinVertical(lipgloss.Center, header, "\n", stats, "\n", graph))
	footer := subtleStyle.Render("g/q/esc: back")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer))
}
