package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/MeKo-Tech/barcodekit/internal/config"
	"github.com/spf13/cobra"
)

// configCmd groups the configuration subcommands.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create configuration files",
	Long: `Inspect the resolved configuration or write a default configuration file.

Configuration is read from barcodekit.yaml in ., $HOME, $HOME/.config/barcodekit
and /etc/barcodekit, then overridden by BARCODEKIT_* environment variables and
command-line flags.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var configShowCmd = &cobra.Command{
	Use:          "show",
	Short:        "Print the resolved configuration as YAML",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		data, err := cfg.ToYAML()
		if err != nil {
			return err
		}
		if used := GetConfigLoader().GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# config file: %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [FILE]",
	Short: "Write a default configuration file",
	Long: `Write the default configuration to FILE (default: barcodekit.yaml in the
current directory). An existing file is only replaced with --force.`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		force, _ := cmd.Flags().GetBool("force")
		if _, err := os.Stat(path); err == nil && !force {
			return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
		} else if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cannot access %s: %w", path, err)
		}
		if err := config.GenerateDefaultConfigFile(path); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return err
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().Bool("force", false, "overwrite an existing file")
}
