package storage

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"

	"github.com/mailcat/mailcat/config"
	"github.com/mailcat/mailcat/interfaces"
	"github.com/mailcat/mailcat/services/storage/aws_client"
)

// NewRawArchiveService builds the archive backend selected by configuration,
// or nil when archival is disabled.
func NewRawArchiveService(cfg *config.RawArchiveConfig) interfaces.StorageService {
	if !cfg.Enabled() {
		return nil
	}
	if cfg.Provider == "r2" {
		return newR2StorageService(cfg)
	}
	return newS3StorageService(cfg)
}

func newS3StorageService(cfg *config.RawArchiveConfig) interfaces.StorageService {
	s3Client := aws_client.NewS3Client(&aws.Config{
		Region:      aws.String(cfg.AWSRegion),
		Credentials: credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
	})

	return NewStorageService(s3Client, cfg.Bucket)
}

func newR2StorageService(cfg *config.RawArchiveConfig) interfaces.StorageService {
	r2Client := aws_client.NewS3Client(&aws.Config{
		Endpoint:         aws.String("https://" + cfg.R2AccountID + ".r2.cloudflarestorage.com"),
		Region:           aws.String("auto"),
		Credentials:      credentials.NewStaticCredentials(cfg.AccessKeyID, cfg.AccessKeySecret, ""),
		S3ForcePathStyle: aws.Bool(true),
	})

	return NewStorageService(r2Client, cfg.Bucket)
}
