package minio

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	cfg "github.com/wahiggins3/wealth-metadata-engine/config"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

const reportContentType = "application/json"

type MinioArchive struct {
	client     *minio.Client
	bucketName string
	logger     logger.Logger
}

// Put implements Archive.Put
func (m *MinioArchive) Put(ctx context.Context, key string, body io.Reader) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucketName, key, body, -1, minio.PutObjectOptions{
		ContentType: reportContentType,
	})
	if err != nil {
		m.logger.Error("Failed to archive report to MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return "", fmt.Errorf("failed to archive report: %w", err)
	}

	return key, nil
}

// Get implements Archive.Get
func (m *MinioArchive) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucketName, key, minio.GetObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to get report from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return obj, nil
}

// Delete implements Archive.Delete
func (m *MinioArchive) Delete(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucketName, key, minio.RemoveObjectOptions{})
	if err != nil {
		m.logger.Error("Failed to delete report from MinIO",
			logger.String("bucket", m.bucketName),
			logger.String("key", key),
			logger.Error(err),
		)
		return fmt.Errorf("failed to delete report: %w", err)
	}

	return nil
}

// CleanupBefore implements Archive.CleanupBefore
func (m *MinioArchive) CleanupBefore(ctx context.Context, threshold time.Time) error {
	objectCh := m.client.ListObjects(ctx, m.bucketName, minio.ListObjectsOptions{})

	for obj := range objectCh {
		if obj.Err != nil {
			m.logger.Error("Error listing reports",
				logger.String("bucket", m.bucketName),
				logger.Error(obj.Err),
			)
			continue
		}

		if obj.LastModified.Before(threshold) {
			if err := m.Delete(ctx, obj.Key); err != nil {
				m.logger.Error("Failed to delete expired report",
					logger.String("key", obj.Key),
					logger.Error(err),
				)
				continue
			}
			m.logger.Info("Deleted expired report",
				logger.String("key", obj.Key),
				logger.Time("lastModified", obj.LastModified),
			)
		}
	}

	return nil
}

func NewMinioArchive(logger logger.Logger) (*MinioArchive, error) {
	minioConfig := cfg.GetMinioConfig()
	client, err := minio.New(minioConfig.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(minioConfig.AccessKey, minioConfig.SecretKey, ""),
		Secure: minioConfig.UseSSL,
		Region: minioConfig.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), minioConfig.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = client.MakeBucket(context.Background(), minioConfig.BucketName, minio.MakeBucketOptions{
			Region: minioConfig.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinioArchive{
		client:     client,
		bucketName: minioConfig.BucketName,
		logger:     logger,
	}, nil
}

func GetClient(logger logger.Logger) (*MinioArchive, error) {
	return NewMinioArchive(logger)
}
