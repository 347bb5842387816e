package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chessgate/internal/journal"
)

var (
	historyEngine string
	historyLimit  int
	historyStats  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently journaled moves",
	Long: `Show moves recorded in the move journal.

Examples:
  chessgate history
  chessgate history --engine stockfish --limit 5
  chessgate history --stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil || a.Journal == nil {
			return errors.New("move journal is not configured")
		}
		out := cmd.OutOrStdout()

		if historyStats {
			stats, err := a.Journal.Stats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(cmd, stats)
			}
			printf(out, "%-20s %10s %10s\n", "ENGINE", "SUCCEEDED", "FAILED")
			rule(out, 42)
			for _, s := range stats {
				printf(out, "%-20s %10d %10d\n", s.Engine, s.Succeeded, s.Failed)
			}
			return nil
		}

		entries, err := a.Journal.Recent(cmd.Context(), journal.Query{Engine: historyEngine, Limit: historyLimit})
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd, entries)
		}

		if len(entries) == 0 {
			printf(out, "No moves recorded\n")
			return nil
		}
		for _, e := range entries {
			result := e.Move
			if e.Status == journal.StatusError {
				result = "error: " + e.Error
			} else if e.Cached {
				result += " (cached)"
			}
			printf(out, "%s  %-16s %6dms  %s\n", e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Engine, e.Duration.Milliseconds(), result)
			printf(out, "    %s\n", e.FEN)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVarP(&historyEngine, "engine", "e", "", "only moves from this engine")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries")
	historyCmd.Flags().BoolVar(&historyStats, "stats", false, "show per-engine totals instead")
	rootCmd.AddCommand(historyCmd)
}
