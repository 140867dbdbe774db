// Package cmd provides CLI commands for snapprof.
// This file defines the shared AWS client infrastructure used by
// PersistentPreRunE to initialize SDK clients once and share them
// across subcommands via context.
package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
	"github.com/nicholasgasior/snapprof/internal/benchmark"
	"github.com/nicholasgasior/snapprof/internal/cli"
	"github.com/nicholasgasior/snapprof/internal/config"
	"github.com/nicholasgasior/snapprof/internal/logging"
)

// globalRegion is used for IAM and STS when no region resolves. Both are
// global services and the AWS CLI signs them for us-east-1.
const globalRegion = "us-east-1"

// awsClients holds pre-initialized AWS SDK clients. Created once in
// PersistentPreRunE and stored on the command context.
type awsClients struct {
	cfg        aws.Config
	iamClient  *iam.Client
	stsClient  *sts.Client
	imdsClient *imds.Client

	// snapConfig holds the loaded user preferences used as benchmark
	// flag defaults.
	snapConfig *config.Config

	logger logging.Logger
}

// awsClientsKey is the context key for storing awsClients.
type awsClientsKey struct{}

// awsClientsFromContext retrieves the awsClients from the context.
// Returns nil if no clients have been stored.
func awsClientsFromContext(ctx context.Context) *awsClients {
	if ctx == nil {
		return nil
	}
	v, _ := ctx.Value(awsClientsKey{}).(*awsClients)
	return v
}

// contextWithAWSClients returns a new context carrying the given awsClients.
func contextWithAWSClients(ctx context.Context, clients *awsClients) context.Context {
	return context.WithValue(ctx, awsClientsKey{}, clients)
}

// commandNeedsAWS returns true if the command requires AWS client
// initialization. Commands that operate locally (version, config and its
// subcommands, help, completion) return false.
func commandNeedsAWS(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "version", "config", "help", "completion":
			return false
		}
	}
	return true
}

// configOptional reports whether cmd reads only the region from
// config.toml. Such commands warn and fall back to defaults when the file
// cannot be parsed.
func configOptional(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "setup", "teardown":
		return true
	}
	return false
}

// resolveRegion picks the --region flag, then the config file region. Empty
// leaves resolution to the SDK default chain.
func resolveRegion(cliCtx *cli.CLIContext, cfg *config.Config) string {
	if cliCtx != nil && cliCtx.Region != "" {
		return cliCtx.Region
	}
	if cfg != nil {
		return cfg.Region
	}
	return ""
}

// initAWSClients loads the snapprof config and the AWS SDK config, wires the
// API call logger into every client, and creates all SDK clients. Warnings
// and the --debug console mirror go to stderr. When lenientConfig is set a
// malformed config.toml is reported on stderr and replaced by defaults.
func initAWSClients(ctx context.Context, cliCtx *cli.CLIContext, stderr io.Writer, lenientConfig bool) (*awsClients, error) {
	configDir := config.DefaultConfigDir()
	snapCfg, err := config.Load(configDir)
	if err != nil {
		if !lenientConfig {
			return nil, fmt.Errorf("load snapprof config: %w", err)
		}
		fmt.Fprintf(stderr, "Warning: ignoring %s: %v\n", filepath.Join(configDir, "config.toml"), err)
		snapCfg = config.Defaults()
	}

	debug := cliCtx != nil && cliCtx.Debug
	logger, err := logging.NewStructuredLogger(filepath.Join(configDir, "logs"), debug)
	if err != nil {
		logger = logging.Discard()
	}
	logger.SetStderr(stderr)

	opts := []func(*awscfg.LoadOptions) error{}
	if region := resolveRegion(cliCtx, snapCfg); region != "" {
		opts = append(opts, awscfg.WithRegion(region))
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		logger.Close()
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	cfg.APIOptions = append(cfg.APIOptions, snapaws.WithCallLogging(logger))

	return &awsClients{
		cfg: cfg,
		iamClient: iam.NewFromConfig(cfg, func(o *iam.Options) {
			if o.Region == "" {
				o.Region = globalRegion
			}
		}),
		stsClient: sts.NewFromConfig(cfg, func(o *sts.Options) {
			if o.Region == "" {
				o.Region = globalRegion
			}
		}),
		imdsClient: imds.NewFromConfig(cfg),
		snapConfig: snapCfg,
		logger:     logger,
	}, nil
}

// benchmarkClients returns the benchmark's AWS dependencies with EC2 and S3
// bound to region, which may differ from the loaded config when it came
// from instance metadata.
func (c *awsClients) benchmarkClients(region string) benchmark.Clients {
	ec2Client := c.ec2For(region)
	return benchmark.Clients{
		IMDS:              c.imdsClient,
		DescribeInstances: ec2Client,
		DescribeRegions:   ec2Client,
		CreateSnapshot:    ec2Client,
		Waiter:            ec2.NewSnapshotCompletedWaiter(ec2Client),
		Regional:          c.regionalEC2,
		S3: s3.NewFromConfig(c.cfg, func(o *s3.Options) {
			o.Region = region
		}),
	}
}

// ec2For returns an EC2 client bound to region.
func (c *awsClients) ec2For(region string) *ec2.Client {
	return ec2.NewFromConfig(c.cfg, func(o *ec2.Options) {
		o.Region = region
	})
}

// regionalEC2 returns an EC2 client and snapshot waiter bound to region.
func (c *awsClients) regionalEC2(region string) (snapaws.RegionalEC2, snapaws.WaitSnapshotCompletedAPI) {
	client := c.ec2For(region)
	return client, ec2.NewSnapshotCompletedWaiter(client)
}
