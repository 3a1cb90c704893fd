package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashaai/fieldsync/internal/backend/memory"
	"github.com/ashaai/fieldsync/internal/backend/rest"
	"github.com/ashaai/fieldsync/internal/config"
	"github.com/ashaai/fieldsync/internal/logging"
)

var devBackendListen string

var devBackendCmd = &cobra.Command{
	Use:     "devbackend",
	GroupID: "dev",
	Short:   "Serve an in-memory backend over the REST protocol",
	Long: `Serve an empty in-memory backend with the same uniqueness rules as the
real one. Point FIELDSYNC_BACKEND_URL at it to exercise the engine locally.
State is lost on exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = flagLogLevel
		}
		log := logging.New(os.Stderr, logging.ParseLevel(cfg.LogLevel))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := &http.Server{
			Addr:              devBackendListen,
			Handler:           rest.NewHandler(memory.New(), log),
			ReadHeaderTimeout: 10 * time.Second,
		}
		errCh := make(chan error, 1)
		go func() {
			log.Info("Development backend listening", map[string]interface{}{"addr": devBackendListen})
			errCh <- srv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	devBackendCmd.Flags().StringVar(&devBackendListen, "listen", ":8090", "listen address")
	rootCmd.AddCommand(devBackendCmd)
}
