package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"tipjar/pkg/models"
	"tipjar/pkg/utils"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Connect the wallet and print the contract balance and owner",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnectedApp(cmd.Context(), func(ctx context.Context, a *app) error {
			st := a.ctrl.State()
			if jsonOutput {
				return printJSON(st)
			}
			return formatState(os.Stdout, st, a.ctrl.ExpectedChainName(), symbolFor(a))
		})
	},
}

var tipCmd = &cobra.Command{
	Use:   "tip <amount>",
	Short: "Send a tip in ETH and wait for it to be included",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnectedApp(cmd.Context(), func(ctx context.Context, a *app) error {
			hash, err := a.ctrl.SendTip(ctx, args[0])
			if err != nil {
				return actionError(a, err)
			}
			return reportTx(a, hash)
		})
	},
}

var withdrawCmd = &cobra.Command{
	Use:   "withdraw",
	Short: "Withdraw all tips to the owner (owner only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withConnectedApp(cmd.Context(), func(ctx context.Context, a *app) error {
			hash, err := a.ctrl.Withdraw(ctx)
			if err != nil {
				return actionError(a, err)
			}
			return reportTx(a, hash)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{statusCmd, tipCmd, withdrawCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	}
}

// withConnectedApp authorizes the wallet and loads the snapshot before fn.
func withConnectedApp(ctx context.Context, fn func(context.Context, *app) error) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, logFile)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.ctrl.Start(ctx)
	defer a.ctrl.Stop()

	if err := a.ctrl.Connect(ctx); err != nil {
		return actionError(a, err)
	}
	return fn(ctx, a)
}

// actionError prefers the message the controller put in the error region.
func actionError(a *app, err error) error {
	if msg := a.ctrl.State().Error; msg != "" {
		return errors.New(msg)
	}
	return err
}

func reportTx(a *app, hash string) error {
	st := a.ctrl.State()
	if jsonOutput {
		return printJSON(struct {
			TxHash string           `json:"tx_hash"`
			State  models.ViewState `json:"state"`
		}{hash, st})
	}
	fmt.Println(st.Notice)
	if chain, ok := a.cfg.ExpectedChain(); ok && chain.ExplorerURL != "" {
		fmt.Printf("%s/tx/%s\n", chain.ExplorerURL, hash)
	}
	fmt.Printf("Balance: %s %s\n", st.Snapshot.Balance, symbolFor(a))
	return nil
}

func symbolFor(a *app) string {
	if chain, ok := a.cfg.ExpectedChain(); ok && chain.Symbol != "" {
		return chain.Symbol
	}
	return "ETH"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatState(w io.Writer, st models.ViewState, expected, symbol string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	network := "-"
	if st.Session.ChainID != 0 {
		network = fmt.Sprintf("%s (%d)", orDash(st.ChainName), st.Session.ChainID)
		if st.Status == models.StatusWrongNetwork {
			network += fmt.Sprintf(", expected %s", expected)
		}
	}
	balance := "-"
	if st.Snapshot.Balance != "" {
		balance = fmt.Sprintf("%s %s", utils.GroupThousands(st.Snapshot.Balance), symbol)
	}
	owner := orDash(utils.ShortenAddress(st.Snapshot.Owner))
	if st.IsOwner {
		owner += " (you)"
	}

	fmt.Fprintf(tw, "Status:\t%s\n", st.Status)
	fmt.Fprintf(tw, "Account:\t%s\n", orDash(st.Session.Account))
	fmt.Fprintf(tw, "Network:\t%s\n", network)
	fmt.Fprintf(tw, "Balance:\t%s\n", balance)
	fmt.Fprintf(tw, "Owner:\t%s\n", owner)
	if st.Error != "" {
		fmt.Fprintf(tw, "Error:\t%s\n", st.Error)
	}
	return tw.Flush()
}
