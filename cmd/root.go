package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/snapprof/internal/cli"
	"github.com/nicholasgasior/snapprof/internal/config"
	"github.com/nicholasgasior/snapprof/internal/logging"
)

// NewRootCommand creates and returns the root cobra command with all global
// persistent flags registered. Subcommands are attached here.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "snapprof",
		Short: "Provision IAM for EC2 snapshots and benchmark snapshot timing",
		Long: "Create the IAM role, policy, and instance profile that let an EC2 instance " +
			"snapshot its own volumes, then measure how long those snapshots take.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cliCtx := cli.NewCLIContext(cmd)
			parent := cmd.Context()
			if parent == nil {
				parent = context.Background()
			}
			ctx := cli.WithContext(parent, cliCtx)
			cmd.SetContext(ctx)

			auditCommand(cmd, args, cliCtx)

			if !commandNeedsAWS(cmd) {
				return nil
			}

			clients, err := initAWSClients(ctx, cliCtx, cmd.ErrOrStderr(), configOptional(cmd))
			if err != nil {
				if cliCtx.JSON {
					writeJSONError(cmd, err)
					return silentExitError{}
				}
				return err
			}
			cmd.SetContext(contextWithAWSClients(ctx, clients))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if clients := awsClientsFromContext(cmd.Context()); clients != nil {
				return clients.logger.Close()
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("verbose", false, "Show progress steps")
	rootCmd.PersistentFlags().Bool("debug", false, "Show AWS SDK details")
	rootCmd.PersistentFlags().Bool("json", false, "Machine-readable JSON output")
	rootCmd.PersistentFlags().Bool("yes", false, "Skip confirmation on destructive operations")
	rootCmd.PersistentFlags().String("region", "", "AWS region (overrides config and environment)")

	// Register subcommands
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newConfigCommand())
	rootCmd.AddCommand(newSetupCommand())
	rootCmd.AddCommand(newTeardownCommand())
	rootCmd.AddCommand(newBenchmarkCommand())

	return rootCmd
}

// Execute creates the root command and runs it under a context that is
// cancelled on SIGINT or SIGTERM. Called from main.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return NewRootCommand().ExecuteContext(ctx)
}

// auditCommand appends the invocation to the audit log. Audit failures are
// reported under --debug only; they never block the command.
func auditCommand(cmd *cobra.Command, args []string, cliCtx *cli.CLIContext) {
	auditor, err := logging.NewAuditLogger(filepath.Join(config.DefaultConfigDir(), "audit.log"))
	if err == nil {
		err = auditor.LogCommand(cmd.CommandPath(), args, cliCtx.Region)
		auditor.Close()
	}
	if err != nil && cliCtx.Debug {
		fmt.Fprintf(cmd.ErrOrStderr(), "audit log: %v\n", err)
	}
}
