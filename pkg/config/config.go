package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

const ConfigFileName = ".tipjar.json"

const (
	EnvPrivateKeys      = "TIPJAR_PRIVATE_KEYS"
	EnvKeystorePassword = "TIPJAR_KEYSTORE_PASSWORD"
)

const (
	DefaultDisplayDecimals     = 4
	DefaultReceiptPollInterval = 2
	DefaultTxTimeout           = 300
	DefaultRPCTimeout          = 15
)

var ErrNoBackup = errors.New("no backup files found")

// ChainConfig describes a network the wallet can connect to.
type ChainConfig struct {
	Name        string   `json:"name" validate:"required"`
	ChainID     uint64   `json:"chain_id,omitempty"`
	RPCURLs     []string `json:"rpc_urls" validate:"required,min=1,dive,url"`
	Symbol      string   `json:"symbol,omitempty"`
	ExplorerURL string   `json:"explorer_url,omitempty" validate:"omitempty,url"`
}

// WalletConfig lists where the local wallet loads its keys from.
// Raw private keys are never stored in the file; they come from EnvPrivateKeys.
type WalletConfig struct {
	KeystorePaths []string `json:"keystore_paths,omitempty"`
}

// Config is the whole application configuration.
type Config struct {
	ContractAddress            string        `json:"contract_address" validate:"required,eth_addr"`
	ExpectedChainID            uint64        `json:"expected_chain_id" validate:"required,gt=0"`
	Chains                     []ChainConfig `json:"chains" validate:"required,min=1,dive"`
	SelectedChain              string        `json:"selected_chain,omitempty"`
	Wallet                     WalletConfig  `json:"wallet"`
	DisplayDecimals            int           `json:"display_decimals" validate:"gte=0,lte=18"`
	ReceiptPollIntervalSeconds int           `json:"receipt_poll_interval_seconds" validate:"gt=0"`
	TxTimeoutSeconds           int           `json:"tx_timeout_seconds" validate:"gte=0"`
	RPCTimeoutSeconds          int           `json:"rpc_timeout_seconds" validate:"gt=0"`
	LogLevel                   string        `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	LogFile                    string        `json:"log_file,omitempty"`
	BalanceHistoryLimit        int           `json:"balance_history_limit,omitempty"`
}

func (c *Config) ReceiptPollInterval() time.Duration {
	return time.Duration(c.ReceiptPollIntervalSeconds) * time.Second
}

// TxTimeout is zero when transactions may wait indefinitely.
func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.TxTimeoutSeconds) * time.Second
}

func (c *Config) RPCTimeout() time.Duration {
	return time.Duration(c.RPCTimeoutSeconds) * time.Second
}

// SelectedChainIndex returns the chain the wallet starts on. It prefers
// SelectedChain by name, then the expected chain, then the first entry.
func (c *Config) SelectedChainIndex() int {
	for i, ch := range c.Chains {
		if c.SelectedChain != "" && ch.Name == c.SelectedChain {
			return i
		}
	}
	for i, ch := range c.Chains {
		if ch.ChainID == c.ExpectedChainID {
			return i
		}
	}
	return 0
}

// ExpectedChain returns the configured chain matching ExpectedChainID.
func (c *Config) ExpectedChain() (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ChainID == c.ExpectedChainID {
			return ch, true
		}
	}
	return ChainConfig{}, false
}

// ChainName returns the configured name for a chain id, or "".
func (c *Config) ChainName(id uint64) string {
	for _, ch := range c.Chains {
		if ch.ChainID != 0 && ch.ChainID == id {
			return ch.Name
		}
	}
	return ""
}

func (c *Config) setDefaults() {
	if c.DisplayDecimals == 0 {
		c.DisplayDecimals = DefaultDisplayDecimals
	}
	if c.ReceiptPollIntervalSeconds == 0 {
		c.ReceiptPollIntervalSeconds = DefaultReceiptPollInterval
	}
	if c.RPCTimeoutSeconds == 0 {
		c.RPCTimeoutSeconds = DefaultRPCTimeout
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.BalanceHistoryLimit == 0 {
		c.BalanceHistoryLimit = 120
	}
	for i := range c.Chains {
		c.Chains[i].Name = strings.TrimSpace(c.Chains[i].Name)
		if c.Chains[i].Symbol == "" {
			c.Chains[i].Symbol = "ETH"
		}
	}
}

// Default returns a configuration with defaults applied and no chains.
func Default() *Config {
	cfg := &Config{TxTimeoutSeconds: DefaultTxTimeout}
	cfg.setDefaults()
	return cfg
}

// Validate checks the structure with the validator tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

// LoadConfigFromFile reads the config at path. A missing file yields the
// defaults; validation is left to the caller.
func LoadConfigFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

func LoadConfig(r io.Reader) (*Config, error) {
	cfg := Config{TxTimeoutSeconds: -1}
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, err
	}
	// tx_timeout_seconds: 0 is meaningful (no timeout), so only an absent key gets the default.
	if cfg.TxTimeoutSeconds < 0 {
		cfg.TxTimeoutSeconds = DefaultTxTimeout
	}
	cfg.setDefaults()
	return &cfg, nil
}

func SaveConfig(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0600); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// RestoreLastBackup copies the newest backup over the config and returns its path.
func RestoreLastBackup(configPath string) (string, error) {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrNoBackup
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return "", err
	}
	return lastBackup, os.WriteFile(configPath, data, 0600)
}

// PrivateKeysFromEnv splits EnvPrivateKeys on commas.
func PrivateKeysFromEnv() []string {
	raw := os.Getenv(EnvPrivateKeys)
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
