package commands

import (
	"github.com/spf13/cobra"
)

var (
	journalPath string
	redisAddr   string
	instance    string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "goalrun",
	Short: "goalrun - goal-directed agent runner",
	Long: `Goalrun executes declarative agent profiles: it plans a path from the
current blackboard state to the agent's goals, invokes model-backed
actions through a bounded tool loop, and replans as the world changes.

Runs are journaled to SQLite and, when Redis is configured, their
blackboard snapshots are published for external inspection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI.
func Execute() error {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&journalPath, "journal", "goalrun.db", "path to the SQLite run journal")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address for blackboard snapshots (empty disables)")
	rootCmd.PersistentFlags().StringVar(&instance, "instance", "default", "platform instance name for snapshot namespacing")
}
