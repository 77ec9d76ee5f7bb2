// Package cmd holds the tipjar command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"tipjar/pkg/tui"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logFile    string
	jsonOutput bool

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:           "tipjar",
	Short:         "Terminal client for a tip jar contract",
	Long:          "Connect a wallet, see the tip jar balance and owner, send tips and withdraw them.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal.
		_ = godotenv.Load()
	},
	RunE: runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the configuration file (default ~/.tipjar.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to this file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(tipCmd)
	rootCmd.AddCommand(withdrawCmd)
	rootCmd.AddCommand(configCmd)
}

// Execute runs the command line.
func Execute(v string) error {
	version = v
	rootCmd.Version = v
	return rootCmd.Execute()
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, path, err := loadConfig()
	if err != nil {
		return err
	}
	// The page owns the terminal, so logs go to a file.
	logPath := logFile
	if logPath == "" {
		logPath = cfg.LogFile
	}
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(path), ".tipjar.log")
	}

	a, err := newApp(cfg, logPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a.ctrl.Start(ctx)
	defer a.ctrl.Stop()

	opts := tui.Options{
		Wallet:  a.wallet,
		Symbol:  "ETH",
		Version: version,
	}
	if chain, ok := cfg.ExpectedChain(); ok {
		opts.Symbol = chain.Symbol
		opts.ExplorerURL = chain.ExplorerURL
	}
	if err := tui.Start(ctx, a.ctrl, opts); err != nil {
		return fmt.Errorf("terminal ui: %w", err)
	}
	return nil
}

func printJSON(v interface{}) error {
	return writeJSON(os.Stdout, v)
}
