package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validJSON = `{
	"contract_address": "0x5fbdb2315678afecb367f032d93f642f64180aa3",
	"expected_chain_id": 11155111,
	"chains": [
		{"name": "Sepolia", "chain_id": 11155111, "rpc_urls": ["https://rpc.sepolia.org"], "explorer_url": "https://sepolia.etherscan.io"},
		{"name": "Anvil", "chain_id": 31337, "rpc_urls": ["http://127.0.0.1:8545"]}
	]
}`

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := LoadConfig(strings.NewReader(validJSON))
	if err != nil {
		t.Fatal(err)
	}
	return cfg
}

func TestLoadConfig_Malformed(t *testing.T) {
	reader := strings.NewReader(`{ "chains": [`)
	_, err := LoadConfig(reader)
	if err == nil {
		t.Error("Expected error loading malformed config, got nil")
	}
}

func TestLoadConfig_TableDriven(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		jsonContent string
		expectError bool
		validate    func(*testing.T, *Config)
	}{
		{
			name:        "Valid Config",
			jsonContent: validJSON,
			validate: func(t *testing.T, c *Config) {
				if err := c.Validate(); err != nil {
					t.Errorf("Unexpected validation error: %v", err)
				}
				if len(c.Chains) != 2 || c.Chains[1].Name != "Anvil" {
					t.Errorf("Chain mismatch")
				}
				if c.ChainName(31337) != "Anvil" {
					t.Errorf("Expected chain name Anvil, got %q", c.ChainName(31337))
				}
				if c.SelectedChainIndex() != 0 {
					t.Errorf("Expected the expected chain to be selected, got %d", c.SelectedChainIndex())
				}
			},
		},
		{
			name: "Defaults",
			jsonContent: `{
				"contract_address": "0x5fbdb2315678afecb367f032d93f642f64180aa3",
				"expected_chain_id": 1,
				"chains": [{"name": " Eth ", "rpc_urls": ["http://eth"]}]
			}`,
			validate: func(t *testing.T, c *Config) {
				if c.DisplayDecimals != 4 {
					t.Errorf("Expected default decimals 4, got %d", c.DisplayDecimals)
				}
				if c.ReceiptPollInterval() != 2*time.Second {
					t.Errorf("Expected default poll interval 2s, got %s", c.ReceiptPollInterval())
				}
				if c.TxTimeout() != 300*time.Second {
					t.Errorf("Expected default tx timeout, got %s", c.TxTimeout())
				}
				if c.Chains[0].Name != "Eth" || c.Chains[0].Symbol != "ETH" {
					t.Errorf("Chain defaults not applied: %+v", c.Chains[0])
				}
				if c.LogLevel != "info" {
					t.Errorf("Expected log level info, got %s", c.LogLevel)
				}
			},
		},
		{
			name: "Explicit Zero Timeout",
			jsonContent: `{
				"contract_address": "0x5fbdb2315678afecb367f032d93f642f64180aa3",
				"expected_chain_id": 1,
				"tx_timeout_seconds": 0,
				"chains": [{"name": "Eth", "rpc_urls": ["http://eth"]}]
			}`,
			validate: func(t *testing.T, c *Config) {
				if c.TxTimeout() != 0 {
					t.Errorf("Expected no tx timeout, got %s", c.TxTimeout())
				}
			},
		},
		{
			name: "Selected Chain By Name",
			jsonContent: `{
				"contract_address": "0x5fbdb2315678afecb367f032d93f642f64180aa3",
				"expected_chain_id": 11155111,
				"selected_chain": "Anvil",
				"chains": [
					{"name": "Sepolia", "chain_id": 11155111, "rpc_urls": ["http://a"]},
					{"name": "Anvil", "chain_id": 31337, "rpc_urls": ["http://b"]}
				]
			}`,
			validate: func(t *testing.T, c *Config) {
				if c.SelectedChainIndex() != 1 {
					t.Errorf("Expected selected index 1, got %d", c.SelectedChainIndex())
				}
				ch, ok := c.ExpectedChain()
				if !ok || ch.Name != "Sepolia" {
					t.Errorf("Expected chain lookup failed: %+v %v", ch, ok)
				}
			},
		},
		{
			name:        "Malformed JSON",
			jsonContent: `{ "chains": [ unclosed_array`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg, err := LoadConfig(strings.NewReader(tt.jsonContent))

			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				if tt.validate != nil {
					tt.validate(t, cfg)
				}
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad contract address", func(c *Config) { c.ContractAddress = "0x123" }},
		{"missing expected chain", func(c *Config) { c.ExpectedChainID = 0 }},
		{"no chains", func(c *Config) { c.Chains = nil }},
		{"chain without rpc", func(c *Config) { c.Chains[0].RPCURLs = nil }},
		{"bad rpc url", func(c *Config) { c.Chains[0].RPCURLs = []string{"not a url"} }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	cfg, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DisplayDecimals != DefaultDisplayDecimals || len(cfg.Chains) != 0 {
		t.Errorf("Expected defaults, got %+v", cfg)
	}
}

func TestSaveConfig(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "tipjar.json")
	cfg := validConfig(t)

	if err := SaveConfig(cfg, tmpPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfigFromFile(tmpPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.ContractAddress != cfg.ContractAddress || loaded.ExpectedChainID != 11155111 {
		t.Errorf("Contract settings mismatch")
	}
	if len(loaded.Chains) != 2 || loaded.Chains[0].ExplorerURL != "https://sepolia.etherscan.io" {
		t.Errorf("Chain mismatch")
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected 0600 permissions, got %v", info.Mode().Perm())
	}
}

func TestSaveConfig_RejectsInvalid(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "tipjar.json")
	cfg := validConfig(t)
	cfg.ContractAddress = ""
	if err := SaveConfig(cfg, tmpPath); err == nil {
		t.Error("Expected validation error, got nil")
	}
	if _, err := os.Stat(tmpPath); !os.IsNotExist(err) {
		t.Error("Invalid config must not be written")
	}
}

func TestSaveConfig_BackupAndRestore(t *testing.T) {
	tmpPath := filepath.Join(t.TempDir(), "tipjar.json")

	if _, err := RestoreLastBackup(tmpPath); err != ErrNoBackup {
		t.Errorf("Expected ErrNoBackup, got %v", err)
	}

	cfg := validConfig(t)
	if err := SaveConfig(cfg, tmpPath); err != nil {
		t.Fatal(err)
	}
	cfg.Chains[1].ChainID = 1337
	if err := SaveConfig(cfg, tmpPath); err != nil {
		t.Fatal(err)
	}

	backup, err := RestoreLastBackup(tmpPath)
	if err != nil {
		t.Fatalf("RestoreLastBackup failed: %v", err)
	}
	if !strings.HasSuffix(backup, ".bak") {
		t.Errorf("Unexpected backup path %s", backup)
	}

	restored, err := LoadConfigFromFile(tmpPath)
	if err != nil {
		t.Fatal(err)
	}
	if restored.Chains[1].ChainID != 31337 {
		t.Errorf("Expected restored chain id 31337, got %d", restored.Chains[1].ChainID)
	}
}

func TestSaveConfig_PermissionError(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores directory permissions")
	}
	tmpDir := t.TempDir()
	if err := os.Chmod(tmpDir, 0500); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chmod(tmpDir, 0700) }()

	err := SaveConfig(validConfig(t), filepath.Join(tmpDir, "config.json"))
	if err == nil {
		t.Error("Expected permission error, got nil")
	}
}

func TestPrivateKeysFromEnv(t *testing.T) {
	t.Setenv(EnvPrivateKeys, " 0xaa , ,0xbb")
	keys := PrivateKeysFromEnv()
	if len(keys) != 2 || keys[0] != "0xaa" || keys[1] != "0xbb" {
		t.Errorf("Unexpected keys %v", keys)
	}
}
