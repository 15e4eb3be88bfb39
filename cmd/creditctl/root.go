package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "creditctl",
	Short:         "Prepaid credit ledger and audit billing",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a TOML config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the creditctl version",
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Println("creditctl " + version)
	},
}

// newLogger builds the JSON logger used by every command.
func newLogger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfigFlag reads the --config file, or the defaults when unset.
func loadConfigFlag(cmd *cobra.Command) (*Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadConfig(path)
}
