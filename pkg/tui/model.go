package tui

import (
	"context"
	"time"

	"tipjar/pkg/controller"
	"tipjar/pkg/models"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// WalletControls are the wallet-side actions a browser extension would
// offer. They only emit notifications; the controller reacts to those.
type WalletControls interface {
	NextChain(ctx context.Context) error
	NextAccount()
	Lock()
}

// Options configures the page.
type Options struct {
	Wallet      WalletControls
	Symbol      string
	ExplorerURL string
	Version     string
}

// --- Messages ---

type clearStatusMsg struct{}

type actionDoneMsg struct {
	action string
	hash   string
	err    error
}

type walletMsg struct {
	status string
	err    error
}

// --- Model ---

type model struct {
	ctx           context.Context
	ctrl          *controller.Controller
	sub           controller.Subscriber
	wallet        WalletControls
	state         models.ViewState
	expectedName  string
	symbol        string
	explorerURL   string
	width         int
	height        int
	spinner       spinner.Model
	tipInput      textinput.Model
	tipping       bool
	showHelp      bool
	showGraph     bool
	statusMessage string
}

func initialModel(ctx context.Context, ctrl *controller.Controller, opts Options) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	ti := textinput.New()
	ti.Placeholder = "0.01"
	ti.CharLimit = 32
	ti.Width = 20

	symbol := opts.Symbol
	if symbol == "" {
		symbol = "ETH"
	}

	return model{
		ctx:          ctx,
		ctrl:         ctrl,
		sub:          ctrl.Subscribe(),
		wallet:       opts.Wallet,
		state:        ctrl.State(),
		expectedName: ctrl.ExpectedChainName(),
		symbol:       symbol,
		explorerURL:  opts.ExplorerURL,
		spinner:      s,
		tipInput:     ti,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		listenForController(m.sub),
		m.spinner.Tick,
	)
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return clearStatusMsg{}
	})
}
