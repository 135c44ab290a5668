package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"z-writer-api/internal/domain/repository"
)

// BindPagination 从查询参数绑定分页，非法值使用默认值
func BindPagination(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), repository.DefaultPageSize),
	)
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindProjectID 从 URI 绑定项目 ID
func BindProjectID(c *gin.Context) string {
	return c.Param("pid")
}

// BindChapterID 从 URI 绑定章节 ID
func BindChapterID(c *gin.Context) string {
	return c.Param("cid")
}

// BindTurnID 从 URI 绑定对话轮次 ID
func BindTurnID(c *gin.Context) string {
	return c.Param("tid")
}

// BindFactID 从 URI 绑定事实 ID
func BindFactID(c *gin.Context) string {
	return c.Param("fid")
}
