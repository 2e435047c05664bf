package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/trucklink-io/trucklink/pkg/log"
	"github.com/trucklink-io/trucklink/pkg/options"
)

type minioProvider struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOProvider creates an S3-protocol retention store.
func NewMinIOProvider(opts *options.S3Options) (Provider, error) {
	minioOpts := &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	}

	client, err := minio.New(opts.Endpoint, minioOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &minioProvider{
		client:     client,
		bucketName: opts.BucketName,
	}, nil
}

func (p *minioProvider) CheckBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		// Development convenience; production buckets are managed out of band.
		log.Info("Bucket does not exist, creating...", "bucket", p.bucketName)
		if err := p.client.MakeBucket(ctx, p.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return nil
}

func (p *minioProvider) UploadJournal(ctx context.Context, driverID string, day time.Time, data []byte) error {
	key := fmt.Sprintf("records/%s/%s.ndjson", driverID, day.Format("2006-01-02"))

	_, err := p.client.PutObject(ctx, p.bucketName, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	})
	if err != nil {
		return fmt.Errorf("failed to upload journal %s: %w", key, err)
	}

	log.Info("Journal archived", "bucket", p.bucketName, "key", key, "bytes", len(data))
	return nil
}
