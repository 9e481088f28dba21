package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/Iron-Ham/statebridge/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View statebridge configuration",
	Long: `View statebridge configuration.

Without arguments, displays the current configuration.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

// redact hides secrets while still showing whether they are set.
func redact(s string) string {
	if s == "" {
		return "(not set)"
	}
	return "(set, hidden)"
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Current configuration:")
	fmt.Fprintln(out)

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "firebase:")
	fmt.Fprintf(out, "  project_id: %s\n", cfg.Firebase.ProjectID)
	fmt.Fprintf(out, "  database_url: %s\n", orUnset(cfg.Firebase.DatabaseURL))
	fmt.Fprintf(out, "  credential_path: %s\n", orUnset(cfg.Firebase.CredentialPath))
	fmt.Fprintf(out, "  application_credentials: %s\n", orUnset(cfg.Firebase.ApplicationCredentials))
	fmt.Fprintf(out, "  service_account: %s\n", redact(cfg.Firebase.ServiceAccount))

	fmt.Fprintln(out, "state:")
	fmt.Fprintf(out, "  collection: %s\n", cfg.State.Collection)
	fmt.Fprintf(out, "  source: %s\n", cfg.State.Source)

	fmt.Fprintln(out, "store:")
	fmt.Fprintf(out, "  backend: %s\n", cfg.Store.Backend)
	fmt.Fprintf(out, "  bolt_path: %s\n", cfg.Store.BoltPath)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  dir: %s\n", orUnset(cfg.Logging.Dir))
	fmt.Fprintf(out, "  max_size_mb: %d\n", cfg.Logging.MaxSizeMB)
	fmt.Fprintf(out, "  max_backups: %d\n", cfg.Logging.MaxBackups)
	fmt.Fprintf(out, "  compress: %v\n", cfg.Logging.Compress)

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	configFile := config.ConfigFile()

	if viper.ConfigFileUsed() != "" {
		fmt.Fprintf(out, "Active config: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", configFile)
	}

	// Also show config search paths
	fmt.Fprintln(out, "\nSearch paths:")
	fmt.Fprintf(out, "  1. %s\n", filepath.Join(config.ConfigDir(), "config.yaml"))
	fmt.Fprintf(out, "  2. ./config.yaml (current directory)\n")
	fmt.Fprintln(out, "\nEnvironment variables: STATEBRIDGE_* (e.g., STATEBRIDGE_STATE_COLLECTION)")
	fmt.Fprintf(out, "Firebase variables: %s, %s, %s, %s\n",
		config.EnvProjectID, config.EnvDatabaseURL, config.EnvApplicationCredentials, config.EnvServiceAccount)

	return nil
}
