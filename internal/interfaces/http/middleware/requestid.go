package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"z-writer-api/pkg/logger"
)

// RequestIDHeader 请求 ID 头
const RequestIDHeader = "X-Request-ID"

// RequestID 透传或生成请求 ID，并写入日志上下文
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" || len(requestID) > 64 {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		ctx := logger.WithContext(c.Request.Context(), logger.RequestIDKey, requestID)
		c.Request = c.Request.WithContext(ctx)
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

// ResourceContext 将路径中的项目与章节 ID 写入日志上下文
func ResourceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if pid := c.Param("pid"); pid != "" {
			ctx = logger.WithContext(ctx, logger.ProjectIDKey, pid)
		}
		if cid := c.Param("cid"); cid != "" {
			ctx = logger.WithContext(ctx, logger.ChapterIDKey, cid)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
