package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"tipjar/pkg/config"
	"tipjar/pkg/controller"
	"tipjar/pkg/gateway"
	"tipjar/pkg/logging"
	"tipjar/pkg/metrics"
	"tipjar/pkg/wallet"

	"github.com/charmbracelet/log"
)

// app is everything a command needs to talk to the contract.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	closer  io.Closer
	wallet  *wallet.LocalProvider
	metrics *metrics.Registry
	ctrl    *controller.Controller
}

func loadConfig() (*config.Config, string, error) {
	path, err := config.GetConfigPath(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("determine config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config from %s: %w", path, err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, path, nil
}

// newApp wires wallet, gateway and controller. Logs go to logPath, or to
// stderr when it is empty.
func newApp(cfg *config.Config, logPath string) (*app, error) {
	logger, closer, err := logging.New(cfg.LogLevel, logPath)
	if err != nil {
		return nil, err
	}

	keys, err := wallet.LoadKeys(config.PrivateKeysFromEnv(), cfg.Wallet.KeystorePaths, os.Getenv(config.EnvKeystorePassword))
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("load wallet keys: %w", err)
	}
	if len(keys) == 0 {
		logger.Warn("wallet has no keys; set " + config.EnvPrivateKeys + " or wallet.keystore_paths")
	}

	provider := wallet.NewLocalProvider(cfg.Chains, cfg.SelectedChainIndex(), keys, logger)
	provider.SetRequestTimeout(cfg.RPCTimeout())
	reg := metrics.NewRegistry()

	ctrl, err := controller.New(provider, func() (controller.ChainGateway, error) {
		gw, err := gateway.New(provider, cfg, logger)
		if err != nil {
			return nil, err
		}
		gw.SetObserver(reg)
		return gw, nil
	}, cfg.BalanceHistoryLimit, logger)
	if err != nil {
		provider.Close()
		_ = closer.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		closer:  closer,
		wallet:  provider,
		metrics: reg,
		ctrl:    ctrl,
	}, nil
}

func (a *app) Close() {
	a.wallet.Close()
	_ = a.closer.Close()
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
