package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashaai/fieldsync/internal/db"
	"github.com/ashaai/fieldsync/internal/models"
	"github.com/ashaai/fieldsync/internal/sync/queue"
)

var queueJSON bool

var queueCmd = &cobra.Command{
	Use:     "queue",
	GroupID: "engine",
	Short:   "Print the persisted sync queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		database, err := db.Open(cfg.DataDir)
		if err != nil {
			return err
		}
		defer database.Close()

		p, err := db.NewStateRepository(database).Load(cmd.Context())
		if err != nil {
			return err
		}
		var items []models.SyncQueueItem
		if p != nil {
			items = p.SyncQueue
		}
		return printQueue(cmd.OutOrStdout(), items, queueJSON)
	},
}

func init() {
	queueCmd.Flags().BoolVar(&queueJSON, "json", false, "print items and stats as JSON")
	rootCmd.AddCommand(queueCmd)
}

func printQueue(out io.Writer, items []models.SyncQueueItem, asJSON bool) error {
	stats := queue.GetStats(items)
	if asJSON {
		if items == nil {
			items = []models.SyncQueueItem{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{"items": items, "stats": stats})
	}

	if len(items) == 0 {
		_, err := fmt.Fprintln(out, "Sync queue is empty.")
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tRETRIES\tCREATED")
	for _, item := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n",
			item.ID, item.Type, item.RetryCount, item.CreatedAtTime().UTC().Format(time.RFC3339))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(out, "\n%d pending, %d retrying, max retry count %d\n",
		stats.Total, stats.Retrying, stats.MaxRetryCount)
	return err
}
