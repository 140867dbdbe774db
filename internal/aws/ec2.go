// Package aws provides thin wrappers around AWS SDK clients used by snapprof.
// This file defines narrow interfaces for the EC2 snapshot and image
// operations used by the benchmark. Each interface wraps exactly one AWS SDK
// method, enabling mock injection in tests.
package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
)

// DescribeInstancesAPI defines the subset of the EC2 API used to find the
// benchmark instance's root volume.
type DescribeInstancesAPI interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// DescribeRegionsAPI defines the subset of the EC2 API used to choose a copy
// target region.
type DescribeRegionsAPI interface {
	DescribeRegions(ctx context.Context, params *ec2.DescribeRegionsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeRegionsOutput, error)
}

// CreateSnapshotAPI defines the subset of the EC2 API used to snapshot a volume.
type CreateSnapshotAPI interface {
	CreateSnapshot(ctx context.Context, params *ec2.CreateSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CreateSnapshotOutput, error)
}

// CopySnapshotAPI defines the subset of the EC2 API used to copy a snapshot
// into another region. It must be called on a client for the destination.
type CopySnapshotAPI interface {
	CopySnapshot(ctx context.Context, params *ec2.CopySnapshotInput, optFns ...func(*ec2.Options)) (*ec2.CopySnapshotOutput, error)
}

// RegisterImageAPI defines the subset of the EC2 API used to register an AMI
// backed by a snapshot.
type RegisterImageAPI interface {
	RegisterImage(ctx context.Context, params *ec2.RegisterImageInput, optFns ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error)
}

// WaitSnapshotCompletedAPI defines the interface for waiting until a snapshot
// reaches the completed state. Wraps ec2.SnapshotCompletedWaiter.Wait.
type WaitSnapshotCompletedAPI interface {
	Wait(ctx context.Context, params *ec2.DescribeSnapshotsInput, maxWaitDur time.Duration, optFns ...func(*ec2.SnapshotCompletedWaiterOptions)) error
}

// RegionalEC2 groups the calls made against the copy destination region.
type RegionalEC2 interface {
	CopySnapshotAPI
	RegisterImageAPI
}

var (
	_ DescribeInstancesAPI     = (*ec2.Client)(nil)
	_ DescribeRegionsAPI       = (*ec2.Client)(nil)
	_ CreateSnapshotAPI        = (*ec2.Client)(nil)
	_ CopySnapshotAPI          = (*ec2.Client)(nil)
	_ RegisterImageAPI         = (*ec2.Client)(nil)
	_ RegionalEC2              = (*ec2.Client)(nil)
	_ WaitSnapshotCompletedAPI = (*ec2.SnapshotCompletedWaiter)(nil)
)
