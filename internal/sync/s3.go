package sync

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// datePlaceholder in an S3 key is replaced by the snapshot's UTC date, which
// keeps one object per day instead of overwriting a single one.
const datePlaceholder = "{date}"

// S3Destination uploads snapshots to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string // may contain {date}
}

// NewS3Destination creates an S3 destination. A non-empty endpoint selects
// path-style addressing, as MinIO and similar servers expect.
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("s3 destination needs a bucket and key")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Destination{client: client, bucket: bucket, key: key}, nil
}

// Name returns the s3:// URL of the backup, placeholder included.
func (d *S3Destination) Name() string { return "s3://" + d.bucket + "/" + d.key }

// Write uploads snap. The object records its event count and export time
// as metadata so a listing shows what each backup holds.
func (d *S3Destination) Write(ctx context.Context, snap Snapshot) error {
	in := d.putInput(snap)
	if _, err := d.client.PutObject(ctx, in); err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", d.bucket, aws.ToString(in.Key), err)
	}
	return nil
}

func (d *S3Destination) objectKey(takenAt time.Time) string {
	return strings.ReplaceAll(d.key, datePlaceholder, takenAt.UTC().Format(time.DateOnly))
}

func (d *S3Destination) putInput(snap Snapshot) *s3.PutObjectInput {
	return &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.objectKey(snap.TakenAt)),
		Body:        bytes.NewReader(snap.Data),
		ContentType: aws.String("application/x-ndjson"),
		Metadata: map[string]string{
			"event-count": strconv.Itoa(snap.Events),
			"taken-at":    snap.TakenAt.UTC().Format(time.RFC3339),
		},
	}
}
