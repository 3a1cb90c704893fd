package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ashaai/fieldsync/internal/app"
	"github.com/ashaai/fieldsync/internal/backend/rest"
	apperrors "github.com/ashaai/fieldsync/internal/errors"
	syncpkg "github.com/ashaai/fieldsync/internal/sync"
)

var drainCmd = &cobra.Command{
	Use:     "drain",
	GroupID: "engine",
	Short:   "Replay the persisted sync queue once against the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx := cmd.Context()

		client := rest.New(cfg.BackendURL, rest.WithTimeout(cfg.HTTPTimeout))
		if err := client.Health(ctx); err != nil {
			return apperrors.Wrap(apperrors.ErrOffline, "backend unreachable at "+cfg.BackendURL, err)
		}

		a, err := app.New(ctx, cfg, app.WithBackend(client, client))
		if err != nil {
			return err
		}
		defer a.Close()

		a.Store.SetOnline(true)
		result, err := a.Processor.Drain(ctx)
		if errors.Is(err, syncpkg.ErrDrainSkipped) {
			fmt.Fprintln(cmd.OutOrStdout(), "Nothing to drain.")
			return nil
		}
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(drainCmd)
}
