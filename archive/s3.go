package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vocdoni/davinci-ballotbox/log"
)

// S3Config holds the configuration of the S3 exporter.
type S3Config struct {
	Enabled   bool
	HostBase  string
	Region    string
	AccessKey string
	SecretKey string
	Space     string // bucket name
	Prefix    string // object key prefix
	Public    bool   // publish objects with a public-read ACL
}

// DefaultS3Config returns the default S3 configuration, which is disabled.
func DefaultS3Config() S3Config {
	return S3Config{
		HostBase: "ams3.digitaloceanspaces.com",
		Region:   "us-east-1",
		Space:    "ballotbox",
		Prefix:   "archives",
	}
}

// S3Exporter uploads archives to an S3 compatible object store.
type S3Exporter struct {
	client *s3.Client
	cfg    S3Config
}

var _ Exporter = (*S3Exporter)(nil)

// NewS3Exporter creates an exporter with static credentials.
func NewS3Exporter(ctx context.Context, cfg S3Config) (*S3Exporter, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("s3 export not enabled")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}
	if cfg.Space == "" {
		return nil, fmt.Errorf("s3 space is required")
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	sdkConfig, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey, cfg.SecretKey, "")),
		config.WithRegion(cfg.Region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config: %w", err)
	}
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		if cfg.HostBase != "" {
			o.BaseEndpoint = aws.String("https://" + cfg.HostBase)
		}
		o.UsePathStyle = true
	})
	return &S3Exporter{client: client, cfg: cfg}, nil
}

// ObjectKey returns the key under which an archive is uploaded.
func (e *S3Exporter) ObjectKey(a *Archive) string {
	return path.Join(e.cfg.Prefix, a.FileName())
}

// Export uploads the archive and returns s3://<space>/<key>.
func (e *S3Exporter) Export(ctx context.Context, a *Archive) (string, error) {
	key := e.ObjectKey(a)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.Space),
		Key:         aws.String(key),
		Body:        bytes.NewReader(a.Body),
		ContentType: aws.String("application/json"),
	}
	if e.cfg.Public {
		input.ACL = s3types.ObjectCannedACLPublicRead
	}
	log.Infow("uploading archive to S3", "electionId", a.Election.ID, "cid", a.CID.String(),
		"space", e.cfg.Space, "key", key)
	if _, err := e.client.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload archive %s: %w", a.CID, err)
	}
	return fmt.Sprintf("s3://%s/%s", e.cfg.Space, key), nil
}

// Ping checks that the configured bucket is reachable.
func (e *S3Exporter) Ping(ctx context.Context) error {
	_, err := e.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(e.cfg.Space),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return fmt.Errorf("s3 connection test failed: %w", err)
	}
	return nil
}
