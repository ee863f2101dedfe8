package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/wahiggins3/wealth-metadata-engine/api/handlers"
	"github.com/wahiggins3/wealth-metadata-engine/api/middleware"
)

// SetupRoutes 配置所有路由
func SetupRoutes(r *gin.Engine, h *handlers.Handlers) {
	// 全局中间件
	r.Use(middleware.CORS())

	// API 版本组
	v1 := r.Group("/api/v1")

	// 元数据处理路由组
	metadata := v1.Group("/metadata")
	{
		metadata.POST("/process", h.Metadata.ProcessFile)
		metadata.POST("/batch", h.Metadata.ProcessBatch)
		metadata.GET("/status/:taskId", h.Metadata.GetStatus)
		metadata.GET("/report/:taskId", h.Metadata.DownloadReport)
		metadata.DELETE("/task/:taskId", h.Metadata.CancelTask)
	}
}
