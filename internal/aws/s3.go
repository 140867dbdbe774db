// Package aws provides thin wrappers around AWS SDK clients used by snapprof.
// This file defines narrow interfaces for S3 operations needed to publish
// benchmark results.
package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI defines the subset of the S3 API used for uploading results.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// HeadBucketAPI defines the subset used to check bucket existence.
type HeadBucketAPI interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// CreateBucketAPI defines the subset used to create a bucket.
type CreateBucketAPI interface {
	CreateBucket(ctx context.Context, params *s3.CreateBucketInput, optFns ...func(*s3.Options)) (*s3.CreateBucketOutput, error)
}

// PutPublicAccessBlockAPI defines the subset used to block public access.
type PutPublicAccessBlockAPI interface {
	PutPublicAccessBlock(ctx context.Context, params *s3.PutPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.PutPublicAccessBlockOutput, error)
}

// S3BucketAPI groups the bucket management and upload calls into a single
// interface for mock injection in tests.
type S3BucketAPI interface {
	PutObjectAPI
	HeadBucketAPI
	CreateBucketAPI
	PutPublicAccessBlockAPI
}

var _ S3BucketAPI = (*s3.Client)(nil)
