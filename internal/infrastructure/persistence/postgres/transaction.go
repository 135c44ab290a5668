// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"
	"time"

	"gorm.io/gorm"

	"z-writer-api/internal/domain/entity"
	"z-writer-api/internal/domain/repository"
)

// TxManager 事务管理器
type TxManager struct {
	client *Client
}

// NewTxManager 创建事务管理器
func NewTxManager(client *Client) *TxManager {
	return &TxManager{client: client}
}

// WithTransaction 在事务中执行操作，已处于事务中时直接复用
func (m *TxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if tx := getTxFromContext(ctx); tx != nil {
		return fn(ctx)
	}
	return m.client.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, repository.TxKey{}, tx))
	})
}

// getTxFromContext 从上下文获取事务
func getTxFromContext(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(repository.TxKey{}).(*gorm.DB); ok {
		return tx
	}
	return nil
}

// getDB 根据上下文选择事务连接或普通连接
func getDB(ctx context.Context, db *gorm.DB) *gorm.DB {
	if tx := getTxFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

// touchProject 刷新项目 updated_at，供章节、对话、事实写入后调用
func touchProject(db *gorm.DB, projectID string) error {
	return db.Model(&entity.Project{}).
		Where("id = ?", projectID).
		UpdateColumn("updated_at", time.Now()).Error
}

// deleteOwned 删除项目下的一行并刷新项目 updated_at，行不存在时不做任何事
func deleteOwned(db *gorm.DB, model any, id string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		var owner struct{ ProjectID string }
		res := tx.Model(model).Select("project_id").Where("id = ?", id).Limit(1).Scan(&owner)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if err := tx.Delete(model, "id = ?", id).Error; err != nil {
			return err
		}
		return touchProject(tx, owner.ProjectID)
	})
}
