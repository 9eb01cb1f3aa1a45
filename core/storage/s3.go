package storage

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"go-meeting-core/core/config"
	"go-meeting-core/core/logger"
)

// Uploader stores exported artifacts (ICS documents, sync error reports).
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) error
}

type s3Uploader struct {
	client *s3.Client
	bucket string
}

func NewS3Uploader(cfg config.StorageConfig) Uploader {
	client := s3.New(s3.Options{
		Region: cfg.Region,
		Credentials: aws.NewCredentialsCache(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
	})
	return &s3Uploader{client: client, bucket: cfg.Bucket}
}

func (u *s3Uploader) Upload(ctx context.Context, key, contentType string, body []byte) error {
	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		logger.Error("Storage:Upload:Error", "key", key, "error", err)
		return err
	}

	logger.Info("Storage:Upload:Success", "bucket", u.bucket, "key", key, "size", len(body))
	return nil
}

// NoopUploader is used when export storage is disabled.
type NoopUploader struct{}

func (NoopUploader) Upload(context.Context, string, string, []byte) error { return nil }
