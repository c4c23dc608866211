package commands

import (
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/embabel/goalrun/internal/journal"
	"github.com/embabel/goalrun/internal/printer"
	"github.com/embabel/goalrun/internal/snapstore"
)

var statusShowSnapshot bool

var statusCmd = &cobra.Command{
	Use:   "status RUN_ID",
	Short: "Show a run's status and action history",
	Long: `Status reads a run's journal row and its executed-action events.
With --snapshot and a Redis address, the latest blackboard snapshot is
printed as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusShowSnapshot, "snapshot", false, "also print the latest blackboard snapshot from Redis")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	runID := args[0]

	j, err := journal.Open(ctx, journalPath)
	if err != nil {
		return printer.Error("failed to open journal: %v", err)
	}
	defer j.Close()

	row, err := j.Run(ctx, runID)
	if err != nil {
		return printer.Error("%v", err)
	}

	printer.Info("run:     %s\n", row.RunID)
	printer.Info("agent:   %s\n", row.Agent)
	printer.Info("status:  %s\n", row.Status)
	if row.Error != "" {
		printer.Warning("error:  %s\n", row.Error)
	}
	printer.Info("updated: %s\n", time.Unix(row.UpdatedAt, 0).Format(time.RFC3339))

	events, err := j.Events(ctx, runID)
	if err != nil {
		return printer.Error("%v", err)
	}
	if len(events) > 0 {
		printer.Info("\nhistory:\n")
		for _, e := range events {
			line := "  " + e.Action + " " + e.Outcome
			if e.Error != "" {
				line += " (" + e.Error + ")"
			}
			printer.Info("%s attempts=%d\n", line, e.Attempts)
		}
	}

	if statusShowSnapshot {
		if redisAddr == "" {
			return printer.Error("--snapshot requires --redis")
		}
		snaps, err := snapstore.New(&redis.Options{Addr: redisAddr}, instance)
		if err != nil {
			return printer.Error("failed to create snapshot store: %v", err)
		}
		defer snaps.Close()

		rec, err := snaps.Latest(ctx, runID)
		if snapstore.IsNotFound(err) {
			printer.Warning("no snapshot stored for run %s\n", runID)
			return nil
		}
		if err != nil {
			return printer.Error("%v", err)
		}
		data, err := json.MarshalIndent(rec.Snapshot, "", "  ")
		if err != nil {
			return printer.Error("failed to render snapshot: %v", err)
		}
		printer.Info("\nsnapshot (taken %s):\n%s\n", rec.TakenAt.Format(time.RFC3339), data)
	}
	return nil
}
