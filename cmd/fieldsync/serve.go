package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashaai/fieldsync/internal/app"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	GroupID: "engine",
	Short:   "Run the sync engine with the HTTP status API",
	Long: `Run the sync engine until interrupted.

The engine probes the backend for connectivity, drains the persisted sync
queue whenever the backend becomes reachable and retries in the background.
Sync status is served on the listen address:
  GET  /api/sync/status   scheduler and queue state
  GET  /api/sync/queue    pending items
  POST /api/sync/drain    drain now
  POST /api/sync/online   manual connectivity override
  GET  /ws                live status events
  GET  /metrics           Prometheus metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		runErr := a.Run(ctx)
		if err := a.Close(); err != nil && runErr == nil {
			runErr = err
		}
		return runErr
	},
}

func init() {
	serveCmd.Flags().String("listen", "", "HTTP listen address, empty disables the API (FIELDSYNC_LISTEN_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
