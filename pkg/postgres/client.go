package postgres

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-balance-ledger/pkg/gormx"
)

// NewClient 建立 PostgreSQL 連線 (GORM + pgx driver)
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*gormx.Client, error) {
	open := func() (*gorm.DB, error) {
		return gorm.Open(postgres.Open(cfg.ConnString()), gormx.Config(cfg.LogLevel))
	}
	return gormx.Open(ctx, "postgres", open, cfg.pool(), log)
}
