// Package publish uploads the generated calendar and flyer to S3 so a static
// site or CDN can serve them without reaching the API.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"citycal/internal/config"
	appLog "citycal/internal/log"
)

// PutObjectAPI is the subset of *s3.Client the publisher needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Artifact is one object to upload.
type Artifact struct {
	Name        string
	Body        []byte
	ContentType string
}

// Publisher writes artifacts under Bucket/Prefix.
type Publisher struct {
	client PutObjectAPI
	bucket string
	prefix string
	now    func() time.Time
}

// New loads the default AWS credential chain and returns a Publisher for cfg.
func New(ctx context.Context, cfg config.PublishConfig) (*Publisher, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("publish: bucket is required")
	}
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("publish: load aws config: %w", err)
	}
	return NewWithClient(s3.NewFromConfig(awsCfg), cfg), nil
}

// NewWithClient is New with an explicit client.
func NewWithClient(client PutObjectAPI, cfg config.PublishConfig) *Publisher {
	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
		now:    time.Now,
	}
}

// Key returns the object key for name.
func (p *Publisher) Key(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Upload writes every artifact. Failures do not stop later uploads and are
// returned joined.
func (p *Publisher) Upload(ctx context.Context, artifacts ...Artifact) error {
	var errs []error
	for _, a := range artifacts {
		key := p.Key(a.Name)
		_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:       aws.String(p.bucket),
			Key:          aws.String(key),
			Body:         bytes.NewReader(a.Body),
			ContentType:  aws.String(a.ContentType),
			CacheControl: aws.String("max-age=300"),
			Metadata: map[string]string{
				"generated-at": p.now().UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			kv := []any{"bucket", p.bucket, "key", key}
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) {
				kv = append(kv, "code", apiErr.ErrorCode())
			}
			appLog.Error("publish: put object failed", err, kv...)
			errs = append(errs, fmt.Errorf("publish: s3://%s/%s: %w", p.bucket, key, err))
			continue
		}
		appLog.Info("published", "bucket", p.bucket, "key", key, "bytes", len(a.Body))
	}
	return errors.Join(errs...)
}
