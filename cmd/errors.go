package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

// silentExitError carries no message text. It tells main.go to exit 1
// without printing, because the failure was already reported (as JSON on
// stdout, or as per-step diagnostics on stderr).
type silentExitError struct{}

func (silentExitError) Error() string { return "" }

// writeJSONError reports err as {"error": "..."} on stdout for --json runs.
func writeJSONError(cmd *cobra.Command, err error) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]string{"error": err.Error()})
}
