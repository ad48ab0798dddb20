// Package storage stores participant CVs in S3. Uploads happen at
// registration; staff with the share-CV capability get time-limited
// presigned download links.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// MaxCVFileSize is the maximum allowed CV upload size (5MB).
const MaxCVFileSize = 5 * 1024 * 1024

// FolderCVs is the S3 prefix for CV objects.
const FolderCVs = "cv"

// S3Config holds S3 client configuration.
type S3Config struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	CVBucket             string
	PresignExpireMinutes int
}

// S3 provides CV upload and presigned download operations.
type S3 struct {
	client   *s3.Client
	uploader *manager.Uploader
	cfg      S3Config
	logger   *zap.Logger
}

// NewS3 creates an S3 client. Static credentials from config are used
// when present, otherwise the default credential chain.
func NewS3(ctx context.Context, cfg S3Config, logger *zap.Logger) (*S3, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
	} else {
		logger.Warn("S3 client using default credential chain")
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return &S3{
		client:   client,
		uploader: manager.NewUploader(client),
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// CVKey returns the S3 object key for a participant CV:
// cv/{email-with-separators-dashed}.pdf.
func CVKey(email string) string {
	safe := strings.NewReplacer("@", "-", ".", "-").Replace(email)
	return path.Join(FolderCVs, safe+".pdf")
}

// UploadCV streams a CV to the CV bucket and returns the object key.
func (s *S3) UploadCV(ctx context.Context, email string, body io.Reader, size int64) (string, error) {
	key := CVKey(email)
	var sizePtr *int64
	if size > 0 {
		sizePtr = &size
	}
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.CVBucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String("application/pdf"),
		ContentLength: sizePtr,
	})
	if err != nil {
		return "", fmt.Errorf("upload cv: %w", err)
	}
	return key, nil
}

// PresignCVDownload returns a time-limited GET URL for a stored CV.
func (s *S3) PresignCVDownload(ctx context.Context, key string) (string, error) {
	presignClient := s3.NewPresignClient(s.client)
	req, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.CVBucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = s.PresignExpire()
	})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return req.URL, nil
}

// PresignExpire returns the configured presign duration.
func (s *S3) PresignExpire() time.Duration {
	if s.cfg.PresignExpireMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(s.cfg.PresignExpireMinutes) * time.Minute
}
