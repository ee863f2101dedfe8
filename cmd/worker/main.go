package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cfg "github.com/wahiggins3/wealth-metadata-engine/config"
	"github.com/wahiggins3/wealth-metadata-engine/internal/service/pipeline"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/queue"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/reports"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/storage"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/worker"
)

func main() {

	// 初始化日志
	log, err := logger.NewLogger(
		logger.WithLevel("info"),
		logger.WithEncoding("json"),
		logger.WithOutputPaths([]string{"stdout", "logs/worker.log"}),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 创建处理管道
	processor, err := pipeline.GetService(log)
	if err != nil {
		log.Error("Failed to create pipeline service", logger.Error(err))
		os.Exit(1)
	}

	// 创建队列（用于保存最终任务状态）
	q, err := queue.GetQueue()
	if err != nil {
		log.Error("Failed to create queue", logger.Error(err))
		os.Exit(1)
	}

	// 创建报告归档
	archive, err := storage.NewArchive(storage.ArchiveTypeMinio, log)
	if err != nil {
		log.Error("Failed to create report archive", logger.Error(err))
		os.Exit(1)
	}
	archiver := reports.NewArchiver(archive, log)

	// 创建 worker 配置
	redisCfg := cfg.GetRedisConfig()
	workerCfg := &worker.Config{
		RedisAddr:   redisCfg.Addr,
		RedisDB:     redisCfg.DB,
		Concurrency: redisCfg.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
	}

	// 创建 worker
	metadataWorker, err := worker.NewMetadataWorker(workerCfg, processor, archiver, q, log)
	if err != nil {
		log.Error("Failed to create metadata worker", logger.Error(err))
		os.Exit(1)
	}

	// 创建上下文和取消函数
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动 worker
	if err := metadataWorker.Start(ctx); err != nil {
		log.Error("Failed to start worker", logger.Error(err))
		os.Exit(1)
	}

	// 等待中断信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	// 优雅关闭
	log.Info("Shutting down worker...")
	metadataWorker.Stop()
	log.Info("Worker stopped")
}
