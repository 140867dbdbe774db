package aws

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

// GetMetadataAPI defines the subset of the IMDS client used to read
// instance metadata paths.
type GetMetadataAPI interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

var _ GetMetadataAPI = (*imds.Client)(nil)

// InstanceID reads the current instance's ID from the metadata service.
func InstanceID(ctx context.Context, client GetMetadataAPI) (string, error) {
	out, err := client.GetMetadata(ctx, &imds.GetMetadataInput{Path: "instance-id"})
	if err != nil {
		return "", fmt.Errorf("imds instance-id: %w", err)
	}
	defer out.Content.Close()

	data, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("read imds instance-id: %w", err)
	}

	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", fmt.Errorf("imds returned an empty instance-id; is this running on EC2?")
	}
	return id, nil
}

// GetRegionAPI defines the subset of the IMDS client used to read the
// instance's region.
type GetRegionAPI interface {
	GetRegion(ctx context.Context, params *imds.GetRegionInput, optFns ...func(*imds.Options)) (*imds.GetRegionOutput, error)
}

var _ GetRegionAPI = (*imds.Client)(nil)

// Region reads the current instance's region from the metadata service.
func Region(ctx context.Context, client GetRegionAPI) (string, error) {
	out, err := client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("imds region: %w", err)
	}
	if out.Region == "" {
		return "", fmt.Errorf("imds returned an empty region")
	}
	return out.Region, nil
}
