package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"tipjar/pkg/config"
	"tipjar/pkg/models"
	"tipjar/pkg/rpc"
	"tipjar/pkg/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var errCheckFailed = errors.New("configuration check failed")

var checkDryRun bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Test the configuration, RPC endpoints and the contract deployment",
	Long: "Probe every configured RPC URL, fill in missing chain ids, and verify that " +
		"the contract has code on the expected chain.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath(configPath)
		if err != nil {
			return fmt.Errorf("determine config path: %w", err)
		}
		cfg, err := config.LoadConfigFromFile(path)
		if err != nil {
			return fmt.Errorf("load config from %s: %w", path, err)
		}

		var out io.Writer = os.Stdout
		if jsonOutput {
			out = io.Discard
		}
		report, err := runCheck(cmd.Context(), cfg, path, checkDryRun, out)
		if jsonOutput {
			if perr := printJSON(report); perr != nil {
				return perr
			}
		}
		return err
	},
}

func init() {
	checkCmd.Flags().BoolVar(&jsonOutput, "json", false, "output check results as JSON")
	checkCmd.Flags().BoolVar(&checkDryRun, "dry-run", false, "perform a trial run with no changes made")
}

func runCheck(ctx context.Context, cfg *config.Config, path string, dryRun bool, out io.Writer) (models.CheckReport, error) {
	report := models.CheckReport{
		ConfigPath:      path,
		ValidStructure:  true,
		ContractAddress: cfg.ContractAddress,
		ExpectedChainID: cfg.ExpectedChainID,
		AccountCount:    len(config.PrivateKeysFromEnv()) + len(cfg.Wallet.KeystorePaths),
		DryRun:          dryRun,
	}
	fmt.Fprintf(out, "Testing configuration at: %s\n", path)

	if len(cfg.Chains) == 0 {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, "No chains found in configuration.")
		fmt.Fprintln(out, "No chains found in configuration.")
		return report, errCheckFailed
	}
	if err := cfg.Validate(); err != nil {
		report.ValidStructure = false
		report.StructureErrors = append(report.StructureErrors, err.Error())
		fmt.Fprintf(out, "Error: %v\n", err)
		return report, errCheckFailed
	}

	fmt.Fprintf(out, "Found %d chains and %d wallet keys.\n", len(cfg.Chains), report.AccountCount)

	configUpdated := false
	for i := range cfg.Chains {
		chain := &cfg.Chains[i]
		cResult, updated := checkChain(ctx, chain, dryRun, out)
		if updated {
			configUpdated = true
		}
		if chain.ChainID == cfg.ExpectedChainID {
			cResult.Expected = true
			found := checkContract(ctx, chain, cfg.ContractAddress, out)
			cResult.ContractFound = &found
		}
		if cResult.Inconsistent {
			report.InconsistentChains = append(report.InconsistentChains, chain.Name)
		}
		report.Chains = append(report.Chains, cResult)
	}

	if len(report.InconsistentChains) > 0 {
		fmt.Fprintln(out, "\nWARNING: Inconsistent RPCs detected!")
		fmt.Fprintln(out, "The following chains have RPCs returning conflicting chain IDs:")
		for _, name := range report.InconsistentChains {
			fmt.Fprintf(out, " - %s\n", name)
		}
	}

	expectedFound := false
	for _, c := range report.Chains {
		if c.Expected {
			expectedFound = true
		}
	}
	if !expectedFound {
		msg := fmt.Sprintf("No configured chain has the expected chain id %d.", cfg.ExpectedChainID)
		report.StructureErrors = append(report.StructureErrors, msg)
		fmt.Fprintf(out, "\nWARNING: %s\n", msg)
	}

	if configUpdated {
		report.ConfigUpdated = true
		fmt.Fprintln(out, "\nUpdating configuration with fetched chain IDs...")
		if dryRun {
			fmt.Fprintln(out, "Dry run enabled: Configuration NOT saved.")
		} else if err := config.SaveConfig(cfg, path); err != nil {
			report.SaveError = err.Error()
			fmt.Fprintf(out, "Failed to save config: %v\n", err)
		} else {
			fmt.Fprintln(out, "Configuration saved successfully.")
		}
	}
	return report, nil
}

// checkChain probes every RPC URL of chain. A missing chain id is filled in
// from the first node that answers.
func checkChain(ctx context.Context, chain *config.ChainConfig, dryRun bool, out io.Writer) (models.ChainResult, bool) {
	cResult := models.ChainResult{
		Name:          chain.Name,
		ConfigChainID: chain.ChainID,
	}
	updated := false

	fmt.Fprintf(out, "Testing Chain: %s (%s)\n", chain.Name, chain.Symbol)
	var observed uint64
	for _, url := range chain.RPCURLs {
		rResult := models.RPCResult{URL: url}
		fmt.Fprintf(out, "  RPC: %s ... ", utils.ShortenURL(url, 60))

		id, err := rpc.FetchChainID(ctx, url)
		if err != nil {
			rResult.Status = "error"
			rResult.Error = err.Error()
			fmt.Fprintf(out, "Failed: %v\n", err)
			cResult.RPCs = append(cResult.RPCs, rResult)
			continue
		}
		rResult.Status = "ok"
		rResult.ChainID = id
		fmt.Fprintf(out, "OK (ChainID: %d", id)
		if latency, err := rpc.FetchLatency(ctx, url); err == nil {
			rResult.LatencyMS = latency.Milliseconds()
			fmt.Fprintf(out, ", %dms", rResult.LatencyMS)
		}
		fmt.Fprint(out, ")")

		if observed == 0 {
			observed = id
			cResult.ObservedChainID = id
		} else if observed != id {
			fmt.Fprintf(out, " - WARNING: ChainID mismatch with previous RPC (%d)", observed)
			cResult.Inconsistent = true
		}

		switch {
		case chain.ChainID != 0 && chain.ChainID != id:
			rResult.Error = fmt.Sprintf("Mismatch! Expected %d", chain.ChainID)
			fmt.Fprintf(out, " - MISMATCH! Expected %d", chain.ChainID)
		case chain.ChainID != 0:
			fmt.Fprint(out, " - Verified")
		default:
			chain.ChainID = id
			updated = true
			cResult.ChainIDUpdated = true
			fmt.Fprint(out, " - UPDATED CONFIG")
			if dryRun {
				fmt.Fprint(out, " (DRY RUN)")
			}
		}
		fmt.Fprintln(out)
		cResult.RPCs = append(cResult.RPCs, rResult)
	}

	if price, _, err := rpc.FetchGasPrice(ctx, chain.RPCURLs); err == nil {
		cResult.GasPriceGwei = utils.FormatUnits(price, utils.GweiDecimals, 2)
		fmt.Fprintf(out, "  Gas price: %s Gwei\n", cResult.GasPriceGwei)
	}
	return cResult, updated
}

func checkContract(ctx context.Context, chain *config.ChainConfig, address string, out io.Writer) bool {
	code, err := rpc.FetchCode(ctx, chain.RPCURLs, common.HexToAddress(address))
	switch {
	case err != nil:
		fmt.Fprintf(out, "  Contract %s: could not read code: %v\n", utils.ShortenAddress(address), err)
		return false
	case len(code) == 0:
		fmt.Fprintf(out, "  Contract %s: NOT FOUND on %s\n", utils.ShortenAddress(address), chain.Name)
		return false
	default:
		fmt.Fprintf(out, "  Contract %s: found (%d bytes)\n", utils.ShortenAddress(address), len(code))
		return true
	}
}
