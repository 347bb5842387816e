package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printf(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}

func rule(w io.Writer, width int) {
	printf(w, "%s\n", strings.Repeat("-", width))
}

func availabilityText(available *bool) string {
	switch {
	case available == nil:
		return "unknown"
	case *available:
		return "up"
	default:
		return "down"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
