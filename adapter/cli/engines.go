package cli

import (
	"sort"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/chessgate/internal/engine/sdk"
)

var (
	filterKind     string
	filterOrigin   string
	filterProtocol string
)

var enginesCmd = &cobra.Command{
	Use:     "engines",
	Aliases: []string{"engine"},
	Short:   "Inspect the configured engines",
}

var enginesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List engine names",
	Long: `List the configured engines.

Examples:
  chessgate engines list
  chessgate engines list --kind generative
  chessgate engines list --protocol uci`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireManager()
		if err != nil {
			return err
		}

		names := a.Manager.ListEngines()
		if filterKind != "" {
			names = intersect(names, a.Manager.FilterByKind(sdk.Kind(filterKind)))
		}
		if filterOrigin != "" {
			names = intersect(names, a.Manager.FilterByOrigin(sdk.Origin(filterOrigin)))
		}
		if filterProtocol != "" {
			names = intersect(names, a.Manager.FilterByProtocol(filterProtocol))
		}

		if jsonOutput {
			return printJSON(cmd, names)
		}

		out := cmd.OutOrStdout()
		if len(names) == 0 {
			printf(out, "No engines configured\n")
			return nil
		}
		for _, name := range names {
			printf(out, "%s\n", name)
		}
		return nil
	},
}

var enginesInfoCmd = &cobra.Command{
	Use:   "info [engine]",
	Short: "Show engine details",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireManager()
		if err != nil {
			return err
		}

		var infos []sdk.EngineInfo
		if len(args) == 1 {
			info, err := a.Manager.EngineInfo(args[0])
			if err != nil {
				return err
			}
			infos = []sdk.EngineInfo{info}
		} else {
			infos = a.Manager.GetEngineInfo()
		}

		if jsonOutput {
			return printJSON(cmd, infos)
		}

		out := cmd.OutOrStdout()
		printf(out, "%-20s %-12s %-9s %-7s %-10s %-12s %s\n", "NAME", "KIND", "ORIGIN", "MODE", "PROTOCOL", "INITIALIZED", "AVAILABLE")
		rule(out, 84)
		for _, info := range infos {
			printf(out, "%-20s %-12s %-9s %-7s %-10s %-12s %s\n",
				info.Name, info.Kind, info.Origin, info.ValidationMode, info.Protocol,
				yesNo(info.Initialized), availabilityText(info.Available))
		}
		return nil
	},
}

var enginesMatrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Show the classification matrix",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireManager()
		if err != nil {
			return err
		}

		rows := a.Manager.ClassificationMatrix()
		if jsonOutput {
			return printJSON(cmd, rows)
		}

		out := cmd.OutOrStdout()
		printf(out, "%-20s %-12s %-9s %-7s %s\n", "NAME", "KIND", "ORIGIN", "MODE", "PROTOCOL")
		rule(out, 60)
		for _, r := range rows {
			printf(out, "%-20s %-12s %-9s %-7s %s\n", r.Name, r.Kind, r.Origin, r.ValidationMode, r.Protocol)
		}
		return nil
	},
}

var enginesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe every engine for availability",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := requireManager()
		if err != nil {
			return err
		}

		report := a.Manager.CheckAllAvailability(cmd.Context())
		if jsonOutput {
			return printJSON(cmd, report)
		}

		names := make([]string, 0, len(report))
		for name := range report {
			names = append(names, name)
		}
		sort.Strings(names)

		out := cmd.OutOrStdout()
		up := 0
		for _, name := range names {
			status := report[name]
			mark := "down"
			if status.Healthy {
				mark = "up"
				up++
			}
			printf(out, "%-20s %-5s %s\n", name, mark, status.Message)
		}
		printf(out, "\n%d/%d engines available\n", up, len(names))
		return nil
	},
}

func intersect(names, keep []string) []string {
	set := make(map[string]bool, len(keep))
	for _, k := range keep {
		set[k] = true
	}
	out := names[:0:0]
	for _, n := range names {
		if set[n] {
			out = append(out, n)
		}
	}
	return out
}

func init() {
	enginesListCmd.Flags().StringVar(&filterKind, "kind", "", "only engines of this kind (traditional, neuronal, generative)")
	enginesListCmd.Flags().StringVar(&filterOrigin, "origin", "", "only engines of this origin (internal, external)")
	enginesListCmd.Flags().StringVar(&filterProtocol, "protocol", "", "only engines speaking this protocol (uci, rest, local_llm, api_llm)")

	enginesCmd.AddCommand(enginesListCmd)
	enginesCmd.AddCommand(enginesInfoCmd)
	enginesCmd.AddCommand(enginesMatrixCmd)
	enginesCmd.AddCommand(enginesCheckCmd)
	rootCmd.AddCommand(enginesCmd)
}
