package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	cfg "github.com/wahiggins3/wealth-metadata-engine/config"
)

// TaskType 定义任务类型
const (
	TaskTypeMetadataBatch = "metadata:batch"
	TaskTypeMetadataFile  = "metadata:file"
)

// Queue 接口定义
type Queue interface {
	Enqueue(ctx context.Context, task *Task) error
	GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
	SaveFinalStatus(ctx context.Context, status *TaskStatus) error
}

// BatchPayload 批处理任务的负载
type BatchPayload struct {
	FileIDs   []string          `json:"fileIds"`
	FileNames map[string]string `json:"fileNames,omitempty"`
	Address   string            `json:"address,omitempty"`
}

// Task 定义任务结构
type Task struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Payload   BatchPayload      `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
}

// TaskStatus 定义任务状态
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	Status     string    `json:"status"`
	Progress   float64   `json:"progress"`
	ReportKey  string    `json:"reportKey,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// AsynqQueue 实现
type AsynqQueue struct {
	client    *asynq.Client
	inspector *asynq.Inspector
	redis     *redis.Client
	timeout   time.Duration
	retries   int
}

// GetQueue 按环境配置获取队列实例
func GetQueue() (*AsynqQueue, error) {
	redisCfg := cfg.GetRedisConfig()
	return NewAsynqQueue(redisCfg)
}

// NewAsynqQueue 创建新的队列实例
func NewAsynqQueue(redisCfg *cfg.RedisConfig) (*AsynqQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr: redisCfg.Addr,
		DB:   redisCfg.DB,
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: redisCfg.Addr,
		DB:   redisCfg.DB,
	})

	return &AsynqQueue{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		redis:     redisClient,
		timeout:   redisCfg.ProcessTimeout,
		retries:   redisCfg.MaxRetries,
	}, nil
}

// Enqueue 将任务加入队列
func (q *AsynqQueue) Enqueue(ctx context.Context, task *Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal task: %w", err)
	}

	opts := []asynq.Option{
		asynq.ProcessIn(time.Second),
		asynq.MaxRetry(q.retries),
		asynq.Timeout(q.timeout),
		asynq.TaskID(task.ID),
	}

	// 根据优先级选择队列
	switch task.Priority {
	case 1:
		opts = append(opts, asynq.Queue("critical"))
	case 2:
		opts = append(opts, asynq.Queue("default"))
	default:
		opts = append(opts, asynq.Queue("low"))
	}

	t := asynq.NewTask(task.Type, payload, opts...)
	info, err := q.client.EnqueueContext(ctx, t)
	if err != nil {
		return fmt.Errorf("failed to enqueue task: %w", err)
	}

	task.ID = info.ID

	return nil
}

// GetTaskStatus 获取任务状态
func (q *AsynqQueue) GetTaskStatus(ctx context.Context, taskID string) (*TaskStatus, error) {
	// 优先读取 worker 保存的最终状态
	key := statusKey(taskID)
	data, err := q.redis.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get status from redis: %w", err)
	}

	if err == nil {
		var status TaskStatus
		if err := json.Unmarshal(data, &status); err != nil {
			return nil, fmt.Errorf("failed to unmarshal status: %w", err)
		}
		return &status, nil
	}

	// Redis 中没有，则从所有队列中查找
	queues := []string{"critical", "default", "low"}
	var info *asynq.TaskInfo
	var lastErr error

	for _, queueName := range queues {
		info, err = q.inspector.GetTaskInfo(queueName, taskID)
		if err == nil {
			break
		}
		lastErr = err
	}

	if lastErr != nil {
		return nil, fmt.Errorf("task not found in any queue: %w", lastErr)
	}

	return convertAsynqStatus(info), nil
}

// CancelTask 取消任务
func (q *AsynqQueue) CancelTask(ctx context.Context, taskID string) error {
	queues := []string{"critical", "default", "low"}
	var lastErr error

	for _, queue := range queues {
		err := q.inspector.DeleteTask(queue, taskID)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("failed to cancel task: %w", lastErr)
}

// SaveFinalStatus 保存最终任务状态
func (q *AsynqQueue) SaveFinalStatus(ctx context.Context, status *TaskStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	// 状态保留 24 小时
	err = q.redis.Set(ctx, statusKey(status.TaskID), data, 24*time.Hour).Err()
	if err != nil {
		return fmt.Errorf("failed to save status: %w", err)
	}

	return nil
}

func statusKey(taskID string) string {
	return fmt.Sprintf("task_status:%s", taskID)
}

// convertAsynqStatus 将 asynq 状态转换为 TaskStatus
func convertAsynqStatus(info *asynq.TaskInfo) *TaskStatus {
	status := &TaskStatus{
		TaskID:    info.ID,
		StartedAt: info.NextProcessAt,
	}

	switch info.State {
	case asynq.TaskStatePending:
		status.Status = "pending"
	case asynq.TaskStateActive:
		status.Status = "running"
		status.Progress = 0.5
	case asynq.TaskStateCompleted:
		status.Status = "completed"
		status.Progress = 1.0
		status.FinishedAt = info.CompletedAt
	case asynq.TaskStateRetry:
		status.Status = "failed"
		status.Error = info.LastErr
	}

	return status
}
