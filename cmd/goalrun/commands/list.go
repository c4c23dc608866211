package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/embabel/goalrun/internal/journal"
	"github.com/embabel/goalrun/internal/printer"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List journaled runs",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	j, err := journal.Open(ctx, journalPath)
	if err != nil {
		return printer.Error("failed to open journal: %v", err)
	}
	defer j.Close()

	runs, err := j.Runs(ctx)
	if err != nil {
		return printer.Error("%v", err)
	}
	if len(runs) == 0 {
		printer.Info("no runs journaled\n")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tAGENT\tSTATUS\tUPDATED")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			r.RunID, r.Agent, r.Status, time.Unix(r.UpdatedAt, 0).Format(time.RFC3339))
	}
	return w.Flush()
}
