package benchmark

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
)

// ResultsKey returns the object key a run's CSV is stored under.
func ResultsKey(runID, path string) string {
	return fmt.Sprintf("snapprof/%s/%s", runID, filepath.Base(path))
}

// UploadResults copies the results CSV at path to s3://bucket/ResultsKey.
// The bucket is created in region if missing, with all public access
// blocked. Returns the s3:// URI of the object.
func UploadResults(ctx context.Context, client snapaws.S3BucketAPI, bucket, region, runID, path string) (string, error) {
	if err := ensureBucket(ctx, client, bucket, region); err != nil {
		return "", fmt.Errorf("ensure S3 bucket %q: %w", bucket, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat results: %w", err)
	}

	key := ResultsKey(runID, path)
	if _, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String("text/csv"),
	}); err != nil {
		return "", fmt.Errorf("upload results to s3://%s/%s: %w", bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", bucket, key), nil
}

// ensureBucket creates bucket when HeadBucket reports it missing.
func ensureBucket(ctx context.Context, client snapaws.S3BucketAPI, bucket, region string) error {
	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err == nil {
		return nil
	}

	var noSuchBucket *s3types.NoSuchBucket
	var notFound *s3types.NotFound
	if !errors.As(err, &noSuchBucket) && !errors.As(err, &notFound) {
		return fmt.Errorf("head bucket: %w", err)
	}

	// us-east-1 rejects an explicit LocationConstraint.
	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if region != "" && region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}
	if _, err := client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("create bucket %q: %w", bucket, err)
	}

	if _, err := client.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(bucket),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	}); err != nil {
		return fmt.Errorf("put public access block on %q: %w", bucket, err)
	}
	return nil
}
