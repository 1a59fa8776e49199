package mysql

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-balance-ledger/pkg/gormx"
)

// NewClient 建立 MySQL 連線 (GORM)，連線失敗時依 gormx.Open 的策略重試
//
// 參數:
//
//	ctx: context.Context - 取消時停止重試
//	cfg: Config - MySQL 連線配置
//	log: *zap.Logger - 記錄重試過程
//
// 回傳值:
//
//	*gormx.Client: 封裝後的資料庫客戶端
//	error: 重試用盡或 ctx 取消時回傳錯誤
func NewClient(ctx context.Context, cfg Config, log *zap.Logger) (*gormx.Client, error) {
	open := func() (*gorm.DB, error) {
		return gorm.Open(mysql.Open(cfg.DSN()), gormx.Config(cfg.LogLevel))
	}
	return gormx.Open(ctx, "mysql", open, cfg.pool(), log)
}
