package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chessgate/pkg/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the gateway's dependencies",
	RunE: func(cmd *cobra.Command, args []string) error {
		a := GetApp()
		if a == nil {
			return errNotInitialized
		}

		results, state := a.Health.Check(cmd.Context())
		if jsonOutput {
			if err := printJSON(cmd, map[string]any{"state": state, "components": results}); err != nil {
				return err
			}
		} else {
			out := cmd.OutOrStdout()
			for _, r := range results {
				printf(out, "%-10s %-10s %s\n", r.Name, r.State, r.Message)
			}
			printf(out, "\n%s\n", state)
		}

		if state == observability.HealthUnhealthy {
			return fmt.Errorf("health: %s", state)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
