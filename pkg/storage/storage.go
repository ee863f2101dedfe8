package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/storage/minio"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/storage/s3"
)

// ArchiveType 定义归档后端类型
type ArchiveType string

const (
	ArchiveTypeS3    ArchiveType = "s3"
	ArchiveTypeMinio ArchiveType = "minio"
)

// Archive 批处理报告的对象归档接口
type Archive interface {
	// Put 写入一份 JSON 报告
	Put(ctx context.Context, key string, body io.Reader) (string, error)
	// Get 读取已归档的报告
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 删除报告
	Delete(ctx context.Context, key string) error
	// CleanupBefore 清理过期报告
	CleanupBefore(ctx context.Context, threshold time.Time) error
}

// NewArchive 创建归档实例的工厂方法
func NewArchive(archiveType ArchiveType, logger logger.Logger) (Archive, error) {
	switch archiveType {
	case ArchiveTypeS3:
		return s3.GetClient(logger)
	case ArchiveTypeMinio:
		return minio.GetClient(logger)
	default:
		return nil, fmt.Errorf("unsupported archive type: %s", archiveType)
	}
}
