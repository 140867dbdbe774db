// Package cli carries the global snapprof flags from the root command down
// to setup, teardown, benchmark and the local config commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

type contextKey struct{}

// CLIContext is the parsed set of persistent flags. The root command builds
// it once per invocation; subcommands read it back with FromCommand.
type CLIContext struct {
	// Verbose prints one line per provisioning step. --debug implies it.
	Verbose bool
	// Debug mirrors every AWS API call log entry to stderr.
	Debug bool
	// JSON switches stdout to a single machine-readable document.
	JSON bool
	// Yes answers the teardown confirmation prompt.
	Yes bool

	// Region pins IAM, STS, EC2 and S3 to one region. When empty, config.toml
	// and then the SDK chain decide, and benchmark falls back to instance
	// metadata.
	Region string
}

// NewCLIContext reads the persistent flags visible from cmd. Flags that are
// not registered read as their zero value.
func NewCLIContext(cmd *cobra.Command) *CLIContext {
	flags := cmd.Flags()
	boolFlag := func(name string) bool {
		v, _ := flags.GetBool(name)
		return v
	}
	region, _ := flags.GetString("region")

	debug := boolFlag("debug")
	return &CLIContext{
		Verbose: boolFlag("verbose") || debug,
		Debug:   debug,
		JSON:    boolFlag("json"),
		Yes:     boolFlag("yes"),
		Region:  region,
	}
}

// WithContext attaches cliCtx to ctx.
func WithContext(ctx context.Context, cliCtx *CLIContext) context.Context {
	return context.WithValue(ctx, contextKey{}, cliCtx)
}

// FromContext returns the CLIContext attached to ctx, or nil.
func FromContext(ctx context.Context) *CLIContext {
	cliCtx, _ := ctx.Value(contextKey{}).(*CLIContext)
	return cliCtx
}

// FromCommand returns the CLIContext on cmd's context. Commands executed
// without a context, such as bare unit-test invocations, get nil.
func FromCommand(cmd *cobra.Command) *CLIContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	return FromContext(ctx)
}
