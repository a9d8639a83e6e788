// Package objectstore uploads exported documents and rehosted images to S3
// and hands back the public URL they are served under.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	appconfig "github.com/clipflow/clipflow/internal/platform/config"
)

// Store wraps the S3 uploader. Construct it once per process; the underlying
// client is safe for concurrent use.
type Store struct {
	uploader   *manager.Uploader
	bucket     string
	domainHost string
	logger     *zerolog.Logger
}

func New(ctx context.Context, cfg *appconfig.Config, logger *zerolog.Logger) (*Store, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)

	return &Store{
		uploader:   manager.NewUploader(client),
		bucket:     cfg.AWSS3Bucket,
		domainHost: strings.TrimSuffix(cfg.AWSDomainHost, "/"),
		logger:     logger,
	}, nil
}

// Upload streams body to the bucket under key and returns the public URL.
func (s *Store) Upload(ctx context.Context, key string, body io.Reader) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("uploading %s to s3: %w", key, err)
	}

	url := s.PublicURL(key)

	s.logger.Debug().Str("key", key).Str("url", url).Msg("uploaded object")

	return url, nil
}

// UploadFile uploads a local file under its base name.
func (s *Store) UploadFile(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	return s.Upload(ctx, filepath.Base(path), f)
}

// PublicURL builds the serving URL for a stored key. AWS_DOMAIN_HOST points
// at the CDN or bucket website endpoint.
func (s *Store) PublicURL(key string) string {
	return s.domainHost + "/" + key
}
