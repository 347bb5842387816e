package cli

import (
	"github.com/spf13/cobra"
)

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Rebuild the engines from their configuration sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireManager()
		if err != nil {
			return err
		}
		if err := a.Manager.Reload(cmd.Context()); err != nil {
			return err
		}

		names := a.Manager.ListEngines()
		if jsonOutput {
			return printJSON(cmd, map[string]any{"engines": names})
		}
		printf(cmd.OutOrStdout(), "Reloaded %d engines\n", len(names))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reloadCmd)
}
