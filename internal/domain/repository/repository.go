// Package repository 定义写作项目的存储端口。
//
// 章节、对话轮次与上下文事实都归属于某个项目；
// 任何对它们的写入或删除都必须刷新项目的 updated_at，上下文缓存键依赖这一点失效。
package repository

import (
	"context"
)

// 分页边界
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// TxKey 事务在 context 中的键
type TxKey struct{}

// Transactor 跨仓储的事务边界。生成完成时助手轮次与章节追加在同一事务内写入
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Pagination 分页参数，页码从 1 开始
type Pagination struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
}

// NewPagination 归一化分页参数
func NewPagination(page, pageSize int) Pagination {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return Pagination{Page: page, PageSize: min(pageSize, MaxPageSize)}
}

func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) Limit() int {
	return p.PageSize
}

// Bounds 返回长度为 n 的有序集合中本页的 [lo, hi) 区间，供内存实现切片
func (p Pagination) Bounds(n int) (lo, hi int) {
	p = NewPagination(p.Page, p.PageSize)
	lo = min(p.Offset(), n)
	hi = min(lo+p.Limit(), n)
	return lo, hi
}

// PagedResult 一页结果
type PagedResult[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPagedResult 按总数计算总页数，未归一化的分页参数按默认值处理
func NewPagedResult[T any](items []T, total int64, pagination Pagination) *PagedResult[T] {
	pagination = NewPagination(pagination.Page, pagination.PageSize)
	size := int64(pagination.PageSize)
	return &PagedResult[T]{
		Items:      items,
		Total:      total,
		Page:       pagination.Page,
		PageSize:   pagination.PageSize,
		TotalPages: int((total + size - 1) / size),
	}
}

// HasMore 是否还有下一页
func (r *PagedResult[T]) HasMore() bool {
	return r.Page < r.TotalPages
}
