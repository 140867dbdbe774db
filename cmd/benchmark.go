package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
	"github.com/nicholasgasior/snapprof/internal/benchmark"
	"github.com/nicholasgasior/snapprof/internal/cli"
	"github.com/nicholasgasior/snapprof/internal/config"
	"github.com/nicholasgasior/snapprof/internal/identity"
	"github.com/nicholasgasior/snapprof/internal/progress"
	"github.com/nicholasgasior/snapprof/internal/provision"
)

// benchmarkDeps holds the injectable dependencies for the benchmark command.
type benchmarkDeps struct {
	// clients returns the AWS dependencies bound to the source region.
	clients func(region string) benchmark.Clients
	sts     identity.STSClient
	config  *config.Config

	// region is the resolved source region; empty asks IMDS.
	region string

	// regionFromIMDS looks up the instance's region when none is configured.
	regionFromIMDS func(ctx context.Context) (string, error)
}

// newBenchmarkCommand creates the production benchmark command.
func newBenchmarkCommand() *cobra.Command {
	return newBenchmarkCommandWithDeps(nil)
}

// newBenchmarkCommandWithDeps creates the benchmark command with explicit
// dependencies for testing.
func newBenchmarkCommandWithDeps(deps *benchmarkDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "benchmark",
		Short: "Time EBS snapshots of this instance's root volume",
		Long: "Run on an EC2 instance that has the " + provision.InstanceProfileName + " instance profile attached. " +
			"Each iteration writes a file of random data, snapshots the root volume, and " +
			"records how long the snapshot took to complete. The last snapshot is then " +
			"copied to another region and registered as an AMI there.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if deps != nil {
				return runBenchmark(cmd, deps)
			}
			clients := awsClientsFromContext(cmd.Context())
			if clients == nil {
				return fmt.Errorf("AWS clients not configured")
			}
			return runBenchmark(cmd, &benchmarkDeps{
				clients: clients.benchmarkClients,
				sts:     clients.stsClient,
				config:  clients.snapConfig,
				region:  clients.cfg.Region,
				regionFromIMDS: func(ctx context.Context) (string, error) {
					return snapaws.Region(ctx, clients.imdsClient)
				},
			})
		},
	}

	cmd.Flags().IntP("num-snapshots", "n", config.DefaultNumSnapshots, "Number of snapshots to create")
	cmd.Flags().StringP("output", "o", config.DefaultOutputFile, "Output CSV filename")
	cmd.Flags().IntP("size", "s", config.DefaultFileSizeGB, "Random file size in GB written before each snapshot")
	cmd.Flags().String("payload-dir", config.DefaultPayloadDir, "Directory for the random payload files")
	cmd.Flags().String("target-region", "", "Region to copy the last snapshot to (default: first other region)")
	cmd.Flags().Duration("wait-timeout", time.Duration(config.DefaultWaitTimeoutMinutes)*time.Minute, "Maximum wait for each snapshot to complete")
	cmd.Flags().String("metrics-textfile", "", "Write Prometheus metrics to this file")
	cmd.Flags().String("upload-bucket", "", "Upload the results CSV to this S3 bucket")

	return cmd
}

// benchmarkOptions merges flags over config values. A flag the user set
// always wins; otherwise the config value applies.
func benchmarkOptions(cmd *cobra.Command, cfg *config.Config) benchmark.Options {
	if cfg == nil {
		cfg = &config.Config{
			NumSnapshots:       config.DefaultNumSnapshots,
			FileSizeGB:         config.DefaultFileSizeGB,
			OutputFile:         config.DefaultOutputFile,
			PayloadDir:         config.DefaultPayloadDir,
			WaitTimeoutMinutes: config.DefaultWaitTimeoutMinutes,
		}
	}
	flags := cmd.Flags()

	opts := benchmark.Options{
		NumSnapshots: cfg.NumSnapshots,
		SizeGB:       cfg.FileSizeGB,
		OutputFile:   cfg.OutputFile,
		PayloadDir:   cfg.PayloadDir,
		WaitTimeout:  cfg.WaitTimeout(),
		UploadBucket: cfg.ResultsBucket,
	}
	if flags.Changed("num-snapshots") {
		opts.NumSnapshots, _ = flags.GetInt("num-snapshots")
	}
	if flags.Changed("size") {
		opts.SizeGB, _ = flags.GetInt("size")
	}
	if flags.Changed("output") {
		opts.OutputFile, _ = flags.GetString("output")
	}
	if flags.Changed("payload-dir") {
		opts.PayloadDir, _ = flags.GetString("payload-dir")
	}
	if flags.Changed("wait-timeout") {
		opts.WaitTimeout, _ = flags.GetDuration("wait-timeout")
	}
	if flags.Changed("upload-bucket") {
		opts.UploadBucket, _ = flags.GetString("upload-bucket")
	}
	opts.TargetRegion, _ = flags.GetString("target-region")
	opts.MetricsTextfile, _ = flags.GetString("metrics-textfile")
	return opts
}

// runBenchmark resolves region and owner, then runs the benchmark.
func runBenchmark(cmd *cobra.Command, deps *benchmarkDeps) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cliCtx := cli.FromCommand(cmd)
	jsonOutput := cliCtx != nil && cliCtx.JSON
	verbose := cliCtx != nil && cliCtx.Verbose

	opts := benchmarkOptions(cmd, deps.config)

	opts.Region = deps.region
	if opts.Region == "" && deps.regionFromIMDS != nil {
		region, err := deps.regionFromIMDS(ctx)
		if err != nil {
			return fmt.Errorf("resolve region: %w", err)
		}
		opts.Region = region
	}

	// The owner tag is best effort; a failed lookup leaves it off.
	if deps.sts != nil {
		if caller, err := identity.NewResolver(deps.sts).Resolve(ctx); err == nil {
			opts.Owner, _ = identity.OwnerName(caller.ARN)
		} else if verbose {
			fmt.Fprintf(cmd.ErrOrStderr(), "owner lookup failed, snapshots will not carry an owner tag: %v\n", err)
		}
	}

	runner := benchmark.NewRunner(deps.clients(opts.Region), opts)
	if jsonOutput {
		runner.Out = cmd.ErrOrStderr()
	} else {
		runner.Out = cmd.OutOrStdout()
		runner.Spinner = progress.New(cmd.OutOrStdout())
	}
	if verbose {
		fmt.Fprintf(cmd.ErrOrStderr(), "Run %s: %d snapshot(s) of %dGB in %s\n",
			runner.RunID(), opts.NumSnapshots, opts.SizeGB, opts.Region)
	}

	res, err := runner.Run(ctx)
	if err != nil {
		if jsonOutput {
			writeJSONError(cmd, err)
			return silentExitError{}
		}
		return fmt.Errorf("benchmark run %s: %w", runner.RunID(), err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	return nil
}
