// Command fieldsync runs the offline-first sync engine and its development tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ashaai/fieldsync/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	flagDataDir    string
	flagBackendURL string
	flagLogLevel   string
)

var rootCmd = &cobra.Command{
	Use:           "fieldsync",
	Short:         "Offline-first sync engine for field health workers",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagDataDir, "data-dir", "", "directory holding the local database (FIELDSYNC_DATA_DIR)")
	pf.StringVar(&flagBackendURL, "backend-url", "", "backend base URL (FIELDSYNC_BACKEND_URL)")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (FIELDSYNC_LOG_LEVEL)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "engine", Title: "Sync engine:"},
		&cobra.Group{ID: "dev", Title: "Development:"},
	)
}

// loadConfig reads the environment and applies any flags the user set.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	flags := cmd.Flags()
	if flags.Changed("data-dir") {
		cfg.DataDir = flagDataDir
	}
	if flags.Changed("backend-url") {
		cfg.BackendURL = flagBackendURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = flagLogLevel
	}
	if flags.Lookup("listen") != nil && flags.Changed("listen") {
		cfg.ListenAddr, _ = flags.GetString("listen")
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
