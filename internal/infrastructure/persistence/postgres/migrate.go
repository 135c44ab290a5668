// Package postgres 提供 PostgreSQL 数据库访问层实现
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // database/sql 驱动，仅供迁移使用

	"z-writer-api/pkg/logger"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator 执行内嵌的 schema 迁移
type Migrator struct {
	m  *migrate.Migrate
	db *sql.DB
}

// NewMigrator 使用 key=value 或 URL 形式的连接串创建迁移器
func NewMigrator(dsn string) (*Migrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration connection: %w", err)
	}

	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}

	return &Migrator{m: m, db: db}, nil
}

// Up 应用全部未执行的迁移，已是最新时不报错
func (m *Migrator) Up(ctx context.Context) error {
	err := m.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info(ctx, "no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, _, _ := m.m.Version()
	logger.Info(ctx, "applied migrations", "version", version)
	return nil
}

// Down 回滚全部迁移
func (m *Migrator) Down(ctx context.Context) error {
	err := m.m.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}
	logger.Info(ctx, "rolled back migrations")
	return nil
}

// Version 返回当前版本与 dirty 标记，未迁移过时返回 0
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

// Close 释放迁移器与底层连接
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	_ = m.db.Close()
	return errors.Join(srcErr, dbErr)
}
