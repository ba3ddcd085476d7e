package main

import (
	"fmt"
	"os"

	"diaghost/internal/config"
	"diaghost/internal/paths"

	"github.com/spf13/cobra"
)

var (
	configFormat string
	configForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage diaghost configuration",
	Long:  "View and manage diaghost configuration stored in .diaghost/config.json",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Display the configuration after defaults and environment overrides.

Examples:
  diaghost config show                # Pretty-print current config
  diaghost config show --format toml  # TOML output`,
	RunE: runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration",
	RunE:  runConfigInit,
}

var configEnvCmd = &cobra.Command{
	Use:   "env",
	Short: "List supported environment variables",
	RunE:  runConfigEnv,
}

func init() {
	configShowCmd.Flags().StringVar(&configFormat, "format", "json", "Output format (json, toml)")
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configEnvCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	cfg, err := config.LoadConfig(root)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	format := OutputFormat(configFormat)
	if format == FormatHuman {
		return fmt.Errorf("unsupported format: %s", format)
	}
	output, err := FormatResponse(cfg, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root, err := workspaceRoot()
	if err != nil {
		return err
	}
	path := paths.ConfigPath(root)
	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.DefaultConfig().Save(root); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigEnv(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Supported environment variables:")
	for _, b := range config.EnvBindings() {
		fmt.Fprintf(out, "  %-28s %s\n", b.Env, b.Key)
	}
	return nil
}
