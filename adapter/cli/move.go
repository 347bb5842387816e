package cli

import (
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chessgate/internal/engine/runtime"
	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

var (
	moveDepth    int
	moveHistory  string
	moveStrategy string
	moveExplain  bool
	moveRetries  int
)

var moveCmd = &cobra.Command{
	Use:   "move <engine> <fen>",
	Short: "Ask one engine for the best move",
	Long: `Ask one engine for the best move in a position given as FEN.

Examples:
  chessgate move stockfish "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"
  chessgate move gpt4 "<fen>" --explain --strategy aggressive`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireManager()
		if err != nil {
			return err
		}

		req := sdk.MoveRequest{
			FEN: args[1],
			Context: sdk.MoveContext{
				MoveHistory: moveHistory,
				Strategy:    moveStrategy,
				Explanation: moveExplain,
				MaxRetries:  moveRetries,
			},
		}
		if cmd.Flags().Changed("depth") {
			d := moveDepth
			req.Depth = &d
		}

		res, err := a.Manager.GetMove(cmd.Context(), args[0], req)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(cmd, res)
		}

		out := cmd.OutOrStdout()
		printf(out, "%s\n", res.Move)
		if moveExplain && res.Explanation != "" {
			printf(out, "\n%s\n", strings.TrimSpace(res.Explanation))
		}
		return nil
	},
}

var compareDepth int

var compareCmd = &cobra.Command{
	Use:   "compare <fen>",
	Short: "Ask every engine for a move in parallel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireManager()
		if err != nil {
			return err
		}

		var depth *int
		if cmd.Flags().Changed("depth") {
			d := compareDepth
			depth = &d
		}

		results := a.Manager.CompareEngines(cmd.Context(), args[0], depth)
		if jsonOutput {
			return printJSON(cmd, results)
		}

		names := make([]string, 0, len(results))
		for name := range results {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		agree := make(map[string]int)
		for _, name := range names {
			v := results[name]
			printf(out, "%-20s %s\n", name, v)
			if v != runtime.UnavailableMarker && !strings.HasPrefix(v, runtime.ErrorPrefix) {
				agree[v]++
			}
		}
		if best, n := consensus(agree); n > 1 {
			printf(out, "\n%d engines agree on %s\n", n, best)
		}
		return nil
	},
}

// consensus returns the most common move, ties broken alphabetically.
func consensus(counts map[string]int) (string, int) {
	var best string
	n := 0
	for move, c := range counts {
		if c > n || (c == n && move < best) {
			best, n = move, c
		}
	}
	return best, n
}

func init() {
	moveCmd.Flags().IntVarP(&moveDepth, "depth", "d", 0, "search depth (engine default when unset)")
	moveCmd.Flags().StringVar(&moveHistory, "history", "", "moves played so far, for generative engines")
	moveCmd.Flags().StringVar(&moveStrategy, "strategy", "", "playing style hint for generative engines")
	moveCmd.Flags().BoolVar(&moveExplain, "explain", false, "ask generative engines to explain the move")
	moveCmd.Flags().IntVar(&moveRetries, "retries", 0, "attempts for generative engines (engine default when 0)")

	compareCmd.Flags().IntVarP(&compareDepth, "depth", "d", 0, "search depth (engine default when unset)")

	rootCmd.AddCommand(moveCmd)
	rootCmd.AddCommand(compareCmd)
}
