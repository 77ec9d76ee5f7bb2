package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"tipjar/pkg/server"

	"github.com/spf13/cobra"
)

var (
	servePort    int
	serveConnect bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP and WebSocket API without the terminal page",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newApp(cfg, logFile)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a.ctrl.Start(ctx)
		defer a.ctrl.Stop()

		if serveConnect {
			if err := a.ctrl.Connect(ctx); err != nil {
				a.logger.Warn("initial connect failed", "err", err)
			}
		}

		return server.NewServer(a.ctrl, a.metrics, a.logger).Start(ctx, servePort)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "port for the API server")
	serveCmd.Flags().BoolVar(&serveConnect, "connect", false, "authorize the wallet on startup")
}
