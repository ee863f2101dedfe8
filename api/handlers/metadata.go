package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wahiggins3/wealth-metadata-engine/internal/address"
	"github.com/wahiggins3/wealth-metadata-engine/internal/models"
	"github.com/wahiggins3/wealth-metadata-engine/internal/service/pipeline"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/logger"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/queue"
	"github.com/wahiggins3/wealth-metadata-engine/pkg/storage"
)

type MetadataHandler struct {
	processor pipeline.Processor
	queue     queue.Queue
	archive   storage.Archive
	logger    logger.Logger
}

// FileRequest 请求中的单个文件引用
type FileRequest struct {
	ID   string `json:"id" binding:"required"`
	Name string `json:"name"`
}

// ProcessRequest 同步处理单个文件的请求
type ProcessRequest struct {
	File    FileRequest `json:"file" binding:"required"`
	Address string      `json:"address"`
}

// BatchRequest 异步批处理请求
type BatchRequest struct {
	Files    []FileRequest `json:"files" binding:"required"`
	Address  string        `json:"address"`
	Priority int           `json:"priority"`
}

// ErrorResponse 定义错误响应结构
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewMetadataHandler(processor pipeline.Processor, q queue.Queue, archive storage.Archive, logger logger.Logger) *MetadataHandler {
	return &MetadataHandler{
		processor: processor,
		queue:     q,
		archive:   archive,
		logger:    logger,
	}
}

// ProcessFile 同步处理单个文件并返回完整结果
func (h *MetadataHandler) ProcessFile(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ref := address.ReferenceFromString(req.Address)
	outcome := h.processor.ProcessFile(c.Request.Context(), models.FileRef{
		ID:   req.File.ID,
		Name: req.File.Name,
	}, ref)

	c.JSON(http.StatusOK, outcome)
}

// ProcessBatch 将批处理任务入队，立即返回任务 ID
func (h *MetadataHandler) ProcessBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	fileIDs := make([]string, 0, len(req.Files))
	fileNames := make(map[string]string, len(req.Files))
	for _, f := range req.Files {
		fileIDs = append(fileIDs, f.ID)
		if f.Name != "" {
			fileNames[f.ID] = f.Name
		}
	}

	task := &queue.Task{
		ID:       uuid.New().String(),
		Type:     queue.TaskTypeMetadataBatch,
		Priority: req.Priority,
		Payload: queue.BatchPayload{
			FileIDs:   fileIDs,
			FileNames: fileNames,
			Address:   req.Address,
		},
		CreatedAt: time.Now(),
	}

	if err := h.queue.Enqueue(c.Request.Context(), task); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to enqueue batch", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"taskId":    task.ID,
		"status":    "pending",
		"files":     len(fileIDs),
		"createdAt": task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetStatus 获取批处理任务状态
func (h *MetadataHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	status, err := h.queue.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// DownloadReport 下载已归档的批处理报告
func (h *MetadataHandler) DownloadReport(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	status, err := h.queue.GetTaskStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusNotFound, "Failed to get status", err)
		return
	}
	if status.ReportKey == "" {
		h.handleError(c, http.StatusNotFound, "Report not available yet", nil)
		return
	}

	body, err := h.archive.Get(c.Request.Context(), status.ReportKey)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to get report", err)
		return
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to read report", err)
		return
	}

	filename := fmt.Sprintf("report_%s.json", taskID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/json", data)
}

// CancelTask 取消尚未执行的批处理任务
func (h *MetadataHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	if err := h.queue.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

// handleError 统一错误处理
func (h *MetadataHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
