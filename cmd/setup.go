package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
	"github.com/nicholasgasior/snapprof/internal/cli"
	"github.com/nicholasgasior/snapprof/internal/identity"
	"github.com/nicholasgasior/snapprof/internal/provision"
)

// setupCompleteMessage is printed once every step has run.
const setupCompleteMessage = "IAM setup finished. Attach the " + provision.InstanceProfileName +
	" instance profile to your EC2 instance so it can create snapshots."

// setupDeps holds the injectable dependencies for the setup command.
type setupDeps struct {
	createRole       snapaws.CreateRoleAPI
	createPolicy     snapaws.CreatePolicyAPI
	attachPolicy     snapaws.AttachRolePolicyAPI
	createProfile    snapaws.CreateInstanceProfileAPI
	addRoleToProfile snapaws.AddRoleToInstanceProfileAPI
	sts              identity.STSClient

	// dir overrides the directory the policy documents are read from.
	dir string
}

// newSetupCommand creates the production setup command.
func newSetupCommand() *cobra.Command {
	return newSetupCommandWithDeps(nil)
}

// newSetupCommandWithDeps creates the setup command with explicit
// dependencies for testing.
func newSetupCommandWithDeps(deps *setupDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the IAM role, policy, and instance profile for EC2 snapshots",
		Long: "Create " + provision.RoleName + " from " + provision.TrustPolicyFile + ", create " +
			provision.PolicyName + " from " + provision.PolicyDocumentFile + ", attach the policy " +
			"to the role, create " + provision.InstanceProfileName + ", and add the role to it.\n\n" +
			"Both documents are read from the current directory. Every step runs even if an " +
			"earlier one fails, and nothing is rolled back; rerunning against an account that " +
			"already has these resources reports EntityAlreadyExists for them.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runSetup(cmd, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			return runSetup(cmd, &setupDeps{
				createRole:       clients.iamClient,
				createPolicy:     clients.iamClient,
				attachPolicy:     clients.iamClient,
				createProfile:    clients.iamClient,
				addRoleToProfile: clients.iamClient,
				sts:              clients.stsClient,
			})
		},
	}
}

// runSetup runs the provisioning sequence and prints each step. It returns
// nil even when steps fail: the sequence itself always completes.
func runSetup(cmd *cobra.Command, deps *setupDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cliCtx := cli.FromCommand(cmd)
	jsonOutput := cliCtx != nil && cliCtx.JSON
	verbose := cliCtx != nil && cliCtx.Verbose

	p := provision.NewProvisioner(
		deps.createRole,
		deps.createPolicy,
		deps.attachPolicy,
		deps.createProfile,
		deps.addRoleToProfile,
		deps.sts,
	)
	p.Dir = deps.dir
	if !jsonOutput {
		p.OnStep = stepPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr(), verbose)
	}

	report := p.Run(ctx)

	if jsonOutput {
		return writeReportJSON(cmd.OutOrStdout(), report, setupCompleteMessage)
	}

	if exists := report.AlreadyExists(); len(exists) > 0 && verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Already present from an earlier run: %v\n", exists)
	}
	fmt.Fprintln(cmd.OutOrStdout(), setupCompleteMessage)
	return nil
}

// stepPrinter prints a step's API response as indented JSON on stdout, the
// way the AWS CLI does, and a failed step's error on stderr.
func stepPrinter(stdout, stderr io.Writer, verbose bool) func(provision.StepResult) {
	return func(s provision.StepResult) {
		if !s.OK() {
			fmt.Fprintf(stderr, "%s: %v\n", s.Step, s.Err)
			return
		}
		if verbose {
			fmt.Fprintf(stderr, "%s: ok\n", s.Step)
		}
		if s.Output == nil {
			return
		}
		data, err := json.MarshalIndent(s.Output, "", "    ")
		if err != nil {
			fmt.Fprintf(stderr, "%s: encode output: %v\n", s.Step, err)
			return
		}
		fmt.Fprintln(stdout, string(data))
	}
}

// reportJSON is the --json document for setup and teardown.
type reportJSON struct {
	*provision.Report
	Failed  []string `json:"failed"`
	Message string   `json:"message"`
}

func writeReportJSON(w io.Writer, report *provision.Report, message string) error {
	failed := []string{}
	for _, s := range report.Failed() {
		failed = append(failed, s.Step)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reportJSON{Report: report, Failed: failed, Message: message})
}
