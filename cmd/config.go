package cmd

import (
	"errors"
	"fmt"

	"tipjar/pkg/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configRestoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore the most recent configuration backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath(configPath)
		if err != nil {
			return err
		}
		backup, err := config.RestoreLastBackup(path)
		if errors.Is(err, config.ErrNoBackup) {
			return fmt.Errorf("no backups found for %s", path)
		}
		if err != nil {
			return fmt.Errorf("restore backup: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %s from %s\n", path, backup)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.GetConfigPath(configPath)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configRestoreCmd)
	configCmd.AddCommand(configPathCmd)
}
