package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nicholasgasior/snapprof/internal/cli"
	"github.com/nicholasgasior/snapprof/internal/identity"
	"github.com/nicholasgasior/snapprof/internal/provision"
)

const teardownCompleteMessage = "IAM teardown finished."

// teardownDeps holds the injectable dependencies for the teardown command.
type teardownDeps struct {
	iam provision.TeardownAPI
	sts identity.STSClient
}

// newTeardownCommand creates the production teardown command.
func newTeardownCommand() *cobra.Command {
	return newTeardownCommandWithDeps(nil)
}

// newTeardownCommandWithDeps creates the teardown command with explicit
// dependencies for testing.
func newTeardownCommandWithDeps(deps *teardownDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown",
		Short: "Delete the IAM role, policy, and instance profile created by setup",
		Long: "Remove " + provision.RoleName + " from " + provision.InstanceProfileName +
			", delete the instance profile, detach and delete " + provision.PolicyName +
			" (including old policy versions), and delete the role. Every step runs even " +
			"if an earlier one fails.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runTeardown(cmd, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			return runTeardown(cmd, &teardownDeps{
				iam: clients.iamClient,
				sts: clients.stsClient,
			})
		},
	}
}

// runTeardown confirms, then runs the removal sequence.
func runTeardown(cmd *cobra.Command, deps *teardownDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cliCtx := cli.FromCommand(cmd)
	jsonOutput := cliCtx != nil && cliCtx.JSON
	verbose := cliCtx != nil && cliCtx.Verbose
	yes := cliCtx != nil && cliCtx.Yes

	if !yes {
		if jsonOutput {
			writeJSONError(cmd, fmt.Errorf("teardown requires --yes with --json"))
			return silentExitError{}
		}

		w := cmd.OutOrStdout()
		fmt.Fprintln(w, "This will permanently delete:")
		fmt.Fprintf(w, "  - instance profile %s\n", provision.InstanceProfileName)
		fmt.Fprintf(w, "  - policy %s and all its versions\n", provision.PolicyName)
		fmt.Fprintf(w, "  - role %s\n", provision.RoleName)
		fmt.Fprintf(w, "\nType the role name %q to confirm: ", provision.RoleName)

		scanner := bufio.NewScanner(cmd.InOrStdin())
		if !scanner.Scan() {
			return fmt.Errorf("no confirmation input received; teardown aborted")
		}
		if input := strings.TrimSpace(scanner.Text()); input != provision.RoleName {
			return fmt.Errorf("confirmation %q does not match role name %q; teardown aborted", input, provision.RoleName)
		}
	}

	d := provision.NewDeprovisioner(deps.iam, deps.sts)
	if !jsonOutput {
		d.OnStep = stepPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), verbose)
	}

	report := d.Run(ctx)

	if jsonOutput {
		return writeReportJSON(cmd.OutOrStdout(), report, teardownCompleteMessage)
	}
	fmt.Fprintln(cmd.OutOrStdout(), teardownCompleteMessage)
	return nil
}
