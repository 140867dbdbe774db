// Package tags provides tag constants and a fluent tag builder for the EBS
// snapshots, snapshot copies, and AMIs created by a benchmark run. Every
// resource from one run shares a snapprof:run-id so the run can be found and
// cleaned up from the console or CLI.
package tags

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// ---------------------------------------------------------------------------
// Tag key constants
// ---------------------------------------------------------------------------

const (
	// TagManaged marks a resource as created by snapprof. Value is always "true".
	TagManaged = "snapprof"

	// TagRunID groups all resources of one benchmark run.
	TagRunID = "snapprof:run-id"

	// TagOwner is the friendly owner name derived from the caller ARN.
	TagOwner = "snapprof:owner"

	// TagComponent identifies the resource type within a run.
	TagComponent = "snapprof:component"

	// TagSnapshotNumber is the 1-based position of a snapshot within its run.
	TagSnapshotNumber = "snapprof:snapshot-number"

	// TagSourceSnapshot records the snapshot a copy or image came from.
	TagSourceSnapshot = "snapprof:source-snapshot"

	// TagName is the standard AWS Name tag. Format: snapprof/<run-id>/<component>.
	TagName = "Name"
)

// Component values.
const (
	ComponentSnapshot     = "snapshot"
	ComponentSnapshotCopy = "snapshot-copy"
	ComponentImage        = "image"
)

// ---------------------------------------------------------------------------
// TagBuilder
// ---------------------------------------------------------------------------

// TagBuilder constructs the tag set for one benchmark resource. Base tags
// (snapprof, run-id, owner, Name) are always included.
type TagBuilder struct {
	runID string
	owner string

	component string
	number    int
	source    string
}

// NewTagBuilder creates a TagBuilder with the required base fields.
func NewTagBuilder(runID, owner string) *TagBuilder {
	return &TagBuilder{runID: runID, owner: owner}
}

// WithComponent sets the snapprof:component tag value.
func (b *TagBuilder) WithComponent(component string) *TagBuilder {
	b.component = component
	return b
}

// WithSnapshotNumber sets the snapprof:snapshot-number tag value.
func (b *TagBuilder) WithSnapshotNumber(n int) *TagBuilder {
	b.number = n
	return b
}

// WithSource sets the snapprof:source-snapshot tag value.
func (b *TagBuilder) WithSource(snapshotID string) *TagBuilder {
	b.source = snapshotID
	return b
}

// Build produces the full set of EC2 tags.
func (b *TagBuilder) Build() []ec2types.Tag {
	name := "snapprof/" + b.runID
	if b.component != "" {
		name = fmt.Sprintf("%s/%s", name, b.component)
	}

	tags := []ec2types.Tag{
		{Key: aws.String(TagManaged), Value: aws.String("true")},
		{Key: aws.String(TagRunID), Value: aws.String(b.runID)},
		{Key: aws.String(TagName), Value: aws.String(name)},
	}
	if b.owner != "" {
		tags = append(tags, ec2types.Tag{Key: aws.String(TagOwner), Value: aws.String(b.owner)})
	}
	if b.component != "" {
		tags = append(tags, ec2types.Tag{Key: aws.String(TagComponent), Value: aws.String(b.component)})
	}
	if b.number > 0 {
		tags = append(tags, ec2types.Tag{Key: aws.String(TagSnapshotNumber), Value: aws.String(strconv.Itoa(b.number))})
	}
	if b.source != "" {
		tags = append(tags, ec2types.Tag{Key: aws.String(TagSourceSnapshot), Value: aws.String(b.source)})
	}
	return tags
}

// Spec wraps Build in a TagSpecification for the given resource type, the
// form CreateSnapshot, CopySnapshot, and RegisterImage accept.
func (b *TagBuilder) Spec(resource ec2types.ResourceType) []ec2types.TagSpecification {
	return []ec2types.TagSpecification{{ResourceType: resource, Tags: b.Build()}}
}

// Value returns the value of key within tags, or "" when absent.
func Value(tags []ec2types.Tag, key string) string {
	for _, t := range tags {
		if aws.ToString(t.Key) == key {
			return aws.ToString(t.Value)
		}
	}
	return ""
}
