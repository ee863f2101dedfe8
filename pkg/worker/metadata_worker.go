package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/wahiggins3/wealth-metadata-engine/internal/address"
	"github.com/wahiggins3/wealth-metadata-engine/internal/models"
	"github.com/wahiggins3/wealth-metadata-engine/internal/service/pipeline"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/queue"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/reports"
)

// MetadataWorker 消费批处理任务，跑完提取级联后归档报告
type MetadataWorker struct {
	BaseWorker
	processor pipeline.Processor
	archiver  *reports.Archiver
	statusQ   queue.Queue
}

func NewMetadataWorker(cfg *Config, processor pipeline.Processor, archiver *reports.Archiver, statusQ queue.Queue, log logger.Logger) (*MetadataWorker, error) {
	server := asynq.NewServer(
		asynq.RedisClientOpt{Addr: cfg.RedisAddr, DB: cfg.RedisDB},
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues:      cfg.Queues,
			RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
				return time.Duration(n) * time.Minute
			},
		},
	)

	w := &MetadataWorker{
		BaseWorker: BaseWorker{
			server:   server,
			mux:      asynq.NewServeMux(),
			logger:   log,
			stopChan: make(chan struct{}),
		},
		processor: processor,
		archiver:  archiver,
		statusQ:   statusQ,
	}

	w.registerHandlers()
	return w, nil
}

func (w *MetadataWorker) registerHandlers() {
	w.mux.HandleFunc(queue.TaskTypeMetadataBatch, w.handleMetadataBatch)
}

func (w *MetadataWorker) handleMetadataBatch(ctx context.Context, t *asynq.Task) error {
	w.logger.Info("Received task",
		logger.String("payload", string(t.Payload())),
	)

	var task queue.Task
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.logger.Error("Failed to unmarshal task",
			logger.Error(err),
			logger.String("payload", string(t.Payload())),
		)
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	if task.ID == "" || len(task.Payload.FileIDs) == 0 {
		w.logger.Error("Invalid task data",
			logger.String("taskId", task.ID),
			logger.Int("files", len(task.Payload.FileIDs)),
		)
		return fmt.Errorf("invalid task data: missing required fields")
	}

	started := time.Now()
	w.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    "running",
		StartedAt: started,
	})

	files := make([]models.FileRef, 0, len(task.Payload.FileIDs))
	for _, id := range task.Payload.FileIDs {
		files = append(files, models.FileRef{
			ID:   id,
			Name: task.Payload.FileNames[id],
		})
	}
	ref := address.ReferenceFromString(task.Payload.Address)

	batch := w.processor.ProcessBatch(ctx, files, ref)

	status := &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     "completed",
		Progress:   1.0,
		StartedAt:  started,
		FinishedAt: time.Now(),
	}

	// 归档失败不使任务失败，报告仍可从状态里的错误中发现
	if w.archiver != nil {
		report := reports.FromBatchOutcome(batch)
		key, err := w.archiver.Archive(ctx, report)
		if err != nil {
			w.logger.Error("Failed to archive batch report",
				logger.String("taskId", task.ID),
				logger.String("batchId", batch.BatchID),
				logger.Error(err),
			)
			status.Error = fmt.Sprintf("report archiving failed: %v", err)
		} else {
			status.ReportKey = key
		}
	}

	w.saveStatus(ctx, status)
	return nil
}

func (w *MetadataWorker) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if err := w.statusQ.SaveFinalStatus(ctx, status); err != nil {
		w.logger.Error("Failed to save task status",
			logger.String("taskId", status.TaskID),
			logger.Error(err),
		)
	}
}

func (w *MetadataWorker) Start(ctx context.Context) error {
	go func() {
		if err := w.server.Run(w.mux); err != nil {
			w.logger.Error("Worker server stopped", logger.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		w.Stop()
	}()

	return nil
}
