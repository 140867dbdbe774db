package benchmark

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"

	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
)

// RootVolume returns the EBS volume backing instanceID's root device. The
// mapping whose device name equals RootDeviceName wins; otherwise the first
// EBS mapping is used.
func RootVolume(ctx context.Context, client snapaws.DescribeInstancesAPI, instanceID string) (string, error) {
	out, err := client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("describe instance %s: %w", instanceID, err)
	}

	var inst *ec2types.Instance
	for _, r := range out.Reservations {
		if len(r.Instances) > 0 {
			inst = &r.Instances[0]
			break
		}
	}
	if inst == nil {
		return "", fmt.Errorf("instance %s not found", instanceID)
	}

	root := aws.ToString(inst.RootDeviceName)
	var first string
	for _, bdm := range inst.BlockDeviceMappings {
		if bdm.Ebs == nil || aws.ToString(bdm.Ebs.VolumeId) == "" {
			continue
		}
		id := aws.ToString(bdm.Ebs.VolumeId)
		if root != "" && aws.ToString(bdm.DeviceName) == root {
			return id, nil
		}
		if first == "" {
			first = id
		}
	}
	if first == "" {
		return "", fmt.Errorf("instance %s has no EBS volumes", instanceID)
	}
	return first, nil
}

// TargetRegion returns the first enabled region that differs from source.
func TargetRegion(ctx context.Context, client snapaws.DescribeRegionsAPI, source string) (string, error) {
	out, err := client.DescribeRegions(ctx, &ec2.DescribeRegionsInput{})
	if err != nil {
		return "", fmt.Errorf("describe regions: %w", err)
	}
	for _, r := range out.Regions {
		if name := aws.ToString(r.RegionName); name != "" && name != source {
			return name, nil
		}
	}
	return "", fmt.Errorf("no region other than %s is available", source)
}
