package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/abhisek/catengine/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "catengine",
	Short: "Computer adaptive testing engine",
	Long: "catengine runs adaptive pass/fail exams: it picks the most informative " +
		"question for each candidate, re-estimates ability after every answer and " +
		"stops once the decision is clear.",
	SilenceUsage: true,
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides CAT_DB env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(bankCmd)
	rootCmd.AddCommand(paramsCmd)
	rootCmd.AddCommand(testCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// resolveDBPath returns the database path using --db flag (highest priority),
// then CAT_DB env var, then the default XDG path.
func resolveDBPath(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		return p, store.EnsureDir(p)
	}
	return store.DefaultDBPath()
}

// callerFlag registers --user on cmd. The default comes from CAT_USER.
func callerFlag(cmd *cobra.Command) {
	def := os.Getenv("CAT_USER")
	if def == "" {
		def = "cli"
	}
	cmd.Flags().String("user", def, "Candidate user ID")
}
