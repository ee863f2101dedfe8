package pipeline

import (
    "context"
    "fmt"
    "sync"

    "github.com/google/uuid"
    "golang.org/x/sync/errgroup"

    "github.com/wahiggins3/wealth-metadata-engine/internal/address"
    "github.com/wahiggins3/wealth-metadata-engine/internal/models"
    "github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
)

// ProcessBatch 在有界并发下对一批文件运行级联。
// 单个文件超时或失败不影响兄弟文件；聚合结果总是返回。
func (s *Service) ProcessBatch(ctx context.Context, files []models.FileRef, ref address.Reference) *models.BatchOutcome {
    batch := &models.BatchOutcome{
        BatchID:   uuid.New().String(),
        StartedAt: s.now(),
        Files:     make([]models.FileOutcome, 0, len(files)),
    }

    s.logger.Info("Starting batch",
        logger.String("batchId", batch.BatchID),
        logger.Int("files", len(files)),
        logger.Int("maxConcurrent", s.config.MaxConcurrent),
    )

    var mu sync.Mutex
    g := new(errgroup.Group)
    g.SetLimit(s.config.MaxConcurrent)

    for _, file := range files {
        file := file
        g.Go(func() error {
            outcome := s.processWithTimeout(ctx, file, ref)

            mu.Lock()
            batch.Files = append(batch.Files, *outcome)
            mu.Unlock()

            // 单个文件的失败不会让整个批次失败
            return nil
        })
    }

    _ = g.Wait()
    batch.FinishedAt = s.now()

    s.logger.Info("Batch finished",
        logger.String("batchId", batch.BatchID),
        logger.Int("files", len(batch.Files)),
    )
    return batch
}

// processWithTimeout 为单个文件套上超时上下文；超时记为该文件的失败
func (s *Service) processWithTimeout(ctx context.Context, file models.FileRef, ref address.Reference) *models.FileOutcome {
    fileCtx, cancel := context.WithTimeout(ctx, s.config.FileTimeout)
    defer cancel()

    done := make(chan *models.FileOutcome, 1)
    go func() {
        done <- s.ProcessFile(fileCtx, file, ref)
    }()

    select {
    case outcome := <-done:
        if fileCtx.Err() != nil && outcome.Error == "" {
            outcome.Error = fmt.Sprintf("processing timed out after %s", s.config.FileTimeout)
        }
        return outcome
    case <-fileCtx.Done():
        started := s.now()
        return &models.FileOutcome{
            File:       file,
            Error:      fmt.Sprintf("processing timed out after %s", s.config.FileTimeout),
            StartedAt:  started,
            FinishedAt: started,
        }
    }
}
