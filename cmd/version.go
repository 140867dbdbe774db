package cmd

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/snapprof/internal/cli"
)

// Build-time variables injected via ldflags. Dev defaults used when building
// without ldflags (e.g., go run, go test).
//
// Set at build time with:
//
//	go build -ldflags "-X github.com/nicholasgasior/snapprof/cmd.version=1.0.0
//	  -X github.com/nicholasgasior/snapprof/cmd.commit=abc1234
//	  -X github.com/nicholasgasior/snapprof/cmd.date=2024-01-15"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// versionJSON is the JSON representation of version information.
type versionJSON struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of snapprof",
		Long:  "Print the version, commit hash, build date, and Go toolchain of this snapprof binary.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := versionJSON{
				Version: version,
				Commit:  commit,
				Date:    date,
				Go:      runtime.Version(),
			}

			cliCtx := cli.FromCommand(cmd)
			if cliCtx != nil && cliCtx.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(),
				"snapprof version: %s\ncommit: %s\ndate: %s\ngo: %s\n",
				info.Version, info.Commit, info.Date, info.Go,
			)
			return err
		},
	}
}
