package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/wahiggins3/wealth-metadata-engine/internal/models"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/storage"
)

// Summary 批处理的聚合计数
type Summary struct {
	TotalFiles    int `json:"totalFiles"`
	Succeeded     int `json:"succeeded"`
	Failed        int `json:"failed"`
	AddressExact  int `json:"addressExact"`
	AddressPartial int `json:"addressPartial"`
	AddressMismatch int `json:"addressMismatch"`
}

// BatchReport 单次批处理的完整可归档报告
type BatchReport struct {
	BatchID    string               `json:"batchId"`
	StartedAt  string               `json:"startedAt"`
	FinishedAt string               `json:"finishedAt"`
	Summary    Summary              `json:"summary"`
	Files      []models.FileOutcome `json:"files"`
}

// FromBatchOutcome 由批处理结果构建报告
func FromBatchOutcome(batch *models.BatchOutcome) *BatchReport {
	report := &BatchReport{
		BatchID:    batch.BatchID,
		StartedAt:  batch.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
		FinishedAt: batch.FinishedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Files:      batch.Files,
	}

	report.Summary.TotalFiles = len(batch.Files)
	for _, file := range batch.Files {
		if file.Failed() {
			report.Summary.Failed++
		} else {
			report.Summary.Succeeded++
		}

		switch file.AddressMatch {
		case models.AddressExact:
			report.Summary.AddressExact++
		case models.AddressPartial:
			report.Summary.AddressPartial++
		case models.AddressFullMismatch:
			report.Summary.AddressMismatch++
		}
	}

	return report
}

// ArchiveKey 报告在归档桶里的对象键
func (r *BatchReport) ArchiveKey() string {
	return fmt.Sprintf("reports/batch_%s.json", r.BatchID)
}

// Archiver 把报告写入对象归档
type Archiver struct {
	archive storage.Archive
	logger  logger.Logger
}

func NewArchiver(archive storage.Archive, log logger.Logger) *Archiver {
	return &Archiver{archive: archive, logger: log}
}

// Archive 序列化报告并写入归档，返回对象键
func (a *Archiver) Archive(ctx context.Context, report *BatchReport) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	key, err := a.archive.Put(ctx, report.ArchiveKey(), bytes.NewReader(data))
	if err != nil {
		return "", err
	}

	a.logger.Info("Archived batch report",
		logger.String("batchId", report.BatchID),
		logger.String("key", key),
		logger.Int("files", report.Summary.TotalFiles),
	)
	return key, nil
}
