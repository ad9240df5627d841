package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"pav-go/internal/config"
	"pav-go/internal/model"
	"pav-go/internal/pav"
)

// S3Sink delivers payloads as JSON objects in a bucket, for collectors
// that ingest from object storage instead of exposing an endpoint. Keys
// are <prefix>/<centerId>/<recordId>.json, so re-sending a record
// overwrites its own object and at-least-once delivery stays harmless.
type S3Sink struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Sink creates an S3Sink from configuration. Credentials fall back
// to the ambient AWS chain when no static keys are configured.
func NewS3Sink(ctx context.Context, cfg config.SinkConfig) (*S3Sink, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 sink requires s3_bucket to be set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.S3Region),
	}
	if cfg.S3AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	return &S3Sink{
		uploader: manager.NewUploader(s3.NewFromConfig(awsCfg)),
		bucket:   cfg.S3Bucket,
		prefix:   cfg.S3Prefix,
	}, nil
}

// Send uploads the payload to the bucket. All failures are retryable:
// object storage does not validate payloads, so a rejection is a
// transport or permission problem, not a bad record.
func (s *S3Sink) Send(ctx context.Context, payload *model.SyncPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &pav.DeliveryError{Retryable: false, Err: fmt.Errorf("encoding payload: %w", err)}
	}

	key := path.Join(s.prefix, payload.CenterID, payload.ID+".json")
	_, err = s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return &pav.DeliveryError{Retryable: true, Err: fmt.Errorf("uploading %s: %w", key, err)}
	}
	return nil
}

// Compile-time check that S3Sink implements the RemoteSink interface
var _ pav.RemoteSink = (*S3Sink)(nil)
