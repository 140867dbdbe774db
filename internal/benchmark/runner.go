// Package benchmark measures how long EBS snapshots of the local instance's
// root volume take to complete. Each iteration writes fresh random data,
// snapshots the volume, and records the elapsed time to a CSV file. After
// the last snapshot it is copied to a second region and registered as an
// AMI there, which times the full copy path as well.
package benchmark

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/google/uuid"

	snapaws "github.com/nicholasgasior/snapprof/internal/aws"
	"github.com/nicholasgasior/snapprof/internal/progress"
	"github.com/nicholasgasior/snapprof/internal/tags"
)

// Fixed values of the copied image.
const (
	CopyDescription  = "Copied benchmark snapshot"
	ImageNamePrefix  = "benchmark-ami-"
	ImageArch        = ec2types.ArchitectureValuesX8664
	ImageRootDevice  = "/dev/sda1"
	ImageVolumeType  = ec2types.VolumeTypeGp3
	snapshotDescText = "Benchmark snapshot %d"
)

// Options controls one benchmark run.
type Options struct {
	NumSnapshots int
	SizeGB       int
	OutputFile   string
	PayloadDir   string

	// Region is where the instance and its snapshots live.
	Region string

	// TargetRegion receives the copy. Empty picks the first other region
	// DescribeRegions returns.
	TargetRegion string

	WaitTimeout time.Duration

	// MetricsTextfile, when set, receives Prometheus metrics at the end.
	MetricsTextfile string

	// UploadBucket, when set, receives a copy of the results CSV.
	UploadBucket string

	// Owner is recorded in the snapprof:owner tag.
	Owner string
}

// Validate rejects options the run cannot honour.
func (o Options) Validate() error {
	if o.NumSnapshots < 0 {
		return fmt.Errorf("number of snapshots must be >= 0 (got %d)", o.NumSnapshots)
	}
	if o.SizeGB < 0 {
		return fmt.Errorf("file size must be >= 0 GB (got %d)", o.SizeGB)
	}
	if o.OutputFile == "" {
		return fmt.Errorf("output file is required")
	}
	if o.WaitTimeout <= 0 {
		return fmt.Errorf("wait timeout must be positive (got %s)", o.WaitTimeout)
	}
	if o.Region == "" {
		return fmt.Errorf("no AWS region configured; pass --region or run 'snapprof config set region <region>'")
	}
	if o.TargetRegion != "" && o.TargetRegion == o.Region {
		return fmt.Errorf("target region must differ from the source region %s", o.Region)
	}
	return nil
}

// Clients holds the AWS dependencies of a run.
type Clients struct {
	IMDS              snapaws.GetMetadataAPI
	DescribeInstances snapaws.DescribeInstancesAPI
	DescribeRegions   snapaws.DescribeRegionsAPI
	CreateSnapshot    snapaws.CreateSnapshotAPI
	Waiter            snapaws.WaitSnapshotCompletedAPI

	// Regional returns clients bound to region for the copy and the image.
	Regional func(region string) (snapaws.RegionalEC2, snapaws.WaitSnapshotCompletedAPI)

	// S3 is only needed when Options.UploadBucket is set.
	S3 snapaws.S3BucketAPI
}

// SnapshotTiming is one measured snapshot.
type SnapshotTiming struct {
	Number     int           `json:"number"`
	SnapshotID string        `json:"snapshot_id"`
	Payload    string        `json:"payload"`
	Elapsed    time.Duration `json:"elapsed_ns"`
}

// Result summarises a completed run.
type Result struct {
	RunID            string           `json:"run_id"`
	InstanceID       string           `json:"instance_id"`
	VolumeID         string           `json:"volume_id"`
	Region           string           `json:"region"`
	Snapshots        []SnapshotTiming `json:"snapshots"`
	TargetRegion     string           `json:"target_region,omitempty"`
	CopiedSnapshotID string           `json:"copied_snapshot_id,omitempty"`
	CopyElapsed      time.Duration    `json:"copy_elapsed_ns,omitempty"`
	ImageID          string           `json:"image_id,omitempty"`
	ResultsPath      string           `json:"results_path"`
	UploadURI        string           `json:"upload_uri,omitempty"`
}

// Runner executes a benchmark run.
type Runner struct {
	clients Clients
	opts    Options

	// Out receives the human-readable progress lines.
	Out io.Writer

	// Spinner shows the snapshot waits.
	Spinner *progress.Spinner

	runID        string
	now          func() time.Time
	writePayload func(path string, sizeGB int) error
}

// NewRunner creates a Runner with a fresh run ID.
func NewRunner(clients Clients, opts Options) *Runner {
	return &Runner{
		clients:      clients,
		opts:         opts,
		Out:          os.Stdout,
		Spinner:      progress.NewQuiet(),
		runID:        uuid.New().String()[:8],
		now:          time.Now,
		writePayload: WritePayload,
	}
}

// RunID returns the identifier tagged onto every resource of this run.
func (r *Runner) RunID() string { return r.runID }

// Run performs the whole benchmark. Any error aborts the run; snapshots and
// payload files created before the error are left in place.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.opts.Validate(); err != nil {
		return nil, err
	}
	res := &Result{RunID: r.runID, Region: r.opts.Region, ResultsPath: r.opts.OutputFile}

	instanceID, err := snapaws.InstanceID(ctx, r.clients.IMDS)
	if err != nil {
		return nil, err
	}
	res.InstanceID = instanceID

	volumeID, err := RootVolume(ctx, r.clients.DescribeInstances, instanceID)
	if err != nil {
		return nil, err
	}
	res.VolumeID = volumeID

	var metrics *Metrics
	if r.opts.MetricsTextfile != "" {
		metrics = NewMetrics(volumeID, r.opts.Region)
	}

	var last string
	for i := 1; i <= r.opts.NumSnapshots; i++ {
		timing, err := r.snapshotOnce(ctx, volumeID, i)
		if err != nil {
			return res, err
		}
		res.Snapshots = append(res.Snapshots, timing)
		if metrics != nil {
			metrics.ObserveSnapshot(timing.Elapsed)
		}
		if err := AppendResult(r.opts.OutputFile, i, timing.Elapsed); err != nil {
			return res, err
		}
		last = timing.SnapshotID
	}

	if last != "" {
		if err := r.copyAndRegister(ctx, last, res); err != nil {
			return res, err
		}
		if metrics != nil {
			metrics.ObserveCopy(res.CopyElapsed)
		}
	}

	if metrics != nil {
		if err := metrics.WriteTextfile(r.opts.MetricsTextfile, r.now()); err != nil {
			return res, err
		}
	}

	if r.opts.UploadBucket != "" && len(res.Snapshots) > 0 {
		if r.clients.S3 == nil {
			return res, fmt.Errorf("upload bucket %q set but no S3 client configured", r.opts.UploadBucket)
		}
		uri, err := UploadResults(ctx, r.clients.S3, r.opts.UploadBucket, r.opts.Region, r.runID, r.opts.OutputFile)
		if err != nil {
			return res, err
		}
		res.UploadURI = uri
		fmt.Fprintf(r.Out, "Results uploaded to %s\n", uri)
	}

	fmt.Fprintln(r.Out, "Process completed successfully!")
	fmt.Fprintf(r.Out, "Created %d snapshots\n", r.opts.NumSnapshots)
	fmt.Fprintf(r.Out, "Results saved to %s\n", r.opts.OutputFile)
	return res, nil
}

func (r *Runner) snapshotOnce(ctx context.Context, volumeID string, n int) (SnapshotTiming, error) {
	timing := SnapshotTiming{Number: n, Payload: PayloadPath(r.opts.PayloadDir)}

	fmt.Fprintf(r.Out, "Creating %dGB random file: %s\n", r.opts.SizeGB, timing.Payload)
	if err := r.writePayload(timing.Payload, r.opts.SizeGB); err != nil {
		return timing, err
	}
	fmt.Fprintf(r.Out, "File %s created successfully\n", timing.Payload)

	fmt.Fprintf(r.Out, "Starting snapshot %d...\n", n)
	start := r.now()

	out, err := r.clients.CreateSnapshot.CreateSnapshot(ctx, &ec2.CreateSnapshotInput{
		VolumeId:    aws.String(volumeID),
		Description: aws.String(fmt.Sprintf(snapshotDescText, n)),
		TagSpecifications: tags.NewTagBuilder(r.runID, r.opts.Owner).
			WithComponent(tags.ComponentSnapshot).
			WithSnapshotNumber(n).
			Spec(ec2types.ResourceTypeSnapshot),
	})
	if err != nil {
		return timing, fmt.Errorf("create snapshot of %s: %w", volumeID, err)
	}
	timing.SnapshotID = aws.ToString(out.SnapshotId)

	if err := r.wait(ctx, r.clients.Waiter, timing.SnapshotID); err != nil {
		return timing, err
	}
	timing.Elapsed = r.now().Sub(start)

	fmt.Fprintf(r.Out, "Snapshot %s completed in %.2f seconds\n", timing.SnapshotID, timing.Elapsed.Seconds())
	return timing, nil
}

func (r *Runner) copyAndRegister(ctx context.Context, snapshotID string, res *Result) error {
	target := r.opts.TargetRegion
	if target == "" {
		var err error
		target, err = TargetRegion(ctx, r.clients.DescribeRegions, r.opts.Region)
		if err != nil {
			return err
		}
	}
	res.TargetRegion = target

	fmt.Fprintf(r.Out, "Copying snapshot to %s...\n", target)
	client, waiter := r.clients.Regional(target)
	start := r.now()

	copyOut, err := client.CopySnapshot(ctx, &ec2.CopySnapshotInput{
		SourceRegion:     aws.String(r.opts.Region),
		SourceSnapshotId: aws.String(snapshotID),
		Description:      aws.String(CopyDescription),
		TagSpecifications: tags.NewTagBuilder(r.runID, r.opts.Owner).
			WithComponent(tags.ComponentSnapshotCopy).
			WithSource(snapshotID).
			Spec(ec2types.ResourceTypeSnapshot),
	})
	if err != nil {
		return fmt.Errorf("copy snapshot %s to %s: %w", snapshotID, target, err)
	}
	res.CopiedSnapshotID = aws.ToString(copyOut.SnapshotId)

	if err := r.wait(ctx, waiter, res.CopiedSnapshotID); err != nil {
		return err
	}
	res.CopyElapsed = r.now().Sub(start)

	fmt.Fprintln(r.Out, "Creating AMI from copied snapshot...")
	imgOut, err := client.RegisterImage(ctx, &ec2.RegisterImageInput{
		Name:           aws.String(fmt.Sprintf("%s%d", ImageNamePrefix, r.now().Unix())),
		Architecture:   ImageArch,
		RootDeviceName: aws.String(ImageRootDevice),
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{{
			DeviceName: aws.String(ImageRootDevice),
			Ebs: &ec2types.EbsBlockDevice{
				SnapshotId: aws.String(res.CopiedSnapshotID),
				VolumeType: ImageVolumeType,
			},
		}},
		TagSpecifications: tags.NewTagBuilder(r.runID, r.opts.Owner).
			WithComponent(tags.ComponentImage).
			WithSource(res.CopiedSnapshotID).
			Spec(ec2types.ResourceTypeImage),
	})
	if err != nil {
		return fmt.Errorf("register image from %s in %s: %w", res.CopiedSnapshotID, target, err)
	}
	res.ImageID = aws.ToString(imgOut.ImageId)

	fmt.Fprintf(r.Out, "AMI created: %s\n", res.ImageID)
	return nil
}

func (r *Runner) wait(ctx context.Context, waiter snapaws.WaitSnapshotCompletedAPI, snapshotID string) error {
	r.Spinner.Start(fmt.Sprintf("Waiting for %s to complete...", snapshotID))
	err := waiter.Wait(ctx, &ec2.DescribeSnapshotsInput{
		SnapshotIds: []string{snapshotID},
	}, r.opts.WaitTimeout, r.reportProgress(snapshotID))
	if err != nil {
		r.Spinner.Fail(fmt.Sprintf("Snapshot %s did not complete", snapshotID))
		return fmt.Errorf("wait for snapshot %s: %w", snapshotID, err)
	}
	r.Spinner.Stop("")
	return nil
}

// reportProgress wraps the waiter's state check so every poll forwards the
// snapshot's completion percentage to the spinner. Repeated values are
// dropped.
func (r *Runner) reportProgress(snapshotID string) func(*ec2.SnapshotCompletedWaiterOptions) {
	return func(o *ec2.SnapshotCompletedWaiterOptions) {
		next := o.Retryable
		var last string
		o.Retryable = func(ctx context.Context, in *ec2.DescribeSnapshotsInput, out *ec2.DescribeSnapshotsOutput, err error) (bool, error) {
			if out != nil && len(out.Snapshots) > 0 {
				if p := aws.ToString(out.Snapshots[0].Progress); p != "" && p != last {
					last = p
					r.Spinner.Update(fmt.Sprintf("Waiting for %s to complete... %s", snapshotID, p))
				}
			}
			if next == nil {
				return err == nil, err
			}
			return next(ctx, in, out, err)
		}
	}
}
