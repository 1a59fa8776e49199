// Package gormx 收斂 MySQL / PostgreSQL 共用的 GORM 連線流程：
// 重試連線、連線池設定、log 等級。
package gormx

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	defaultMaxRetries    = 10
	defaultRetryInterval = 2 * time.Second
)

// Pool 連線池設定，零值使用預設
type Pool struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	LogLevel        string

	// 測試用，零值使用預設
	MaxRetries    int
	RetryInterval time.Duration
}

func (p Pool) withDefaults() Pool {
	if p.MaxOpenConns == 0 {
		p.MaxOpenConns = 100
	}
	if p.MaxIdleConns == 0 {
		p.MaxIdleConns = 10
	}
	if p.ConnMaxLifetime == 0 {
		p.ConnMaxLifetime = 30 * time.Minute
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = defaultMaxRetries
	}
	if p.RetryInterval <= 0 {
		p.RetryInterval = defaultRetryInterval
	}
	return p
}

// Client 封裝 GORM DB 實例
type Client struct {
	db *gorm.DB
}

// NewClient 包裝已開啟的 *gorm.DB (測試或外部已建立的連線)
func NewClient(db *gorm.DB) *Client {
	return &Client{db: db}
}

// Config 產生 GORM 設定
//
// SkipDefaultTransaction: 單筆寫入不額外開 transaction，需要原子性的地方 (SetBalance) 自行開。
// TranslateError: 讓 duplicate key 變成 gorm.ErrDuplicatedKey，與 driver 無關。
func Config(level string) *gorm.Config {
	return &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 NewLogger(level),
	}
}

// Open 以 open 建立連線並 Ping，失敗時每隔 RetryInterval 重試，最多 MaxRetries 次
//
// 參數:
//
//	ctx: context.Context - 取消時停止重試
//	name: string - 資料庫名稱，只用於 log
//	open: func() (*gorm.DB, error) - 實際建立連線的函式 (依 driver 而定)
//	pool: Pool - 連線池設定
//	log: *zap.Logger
//
// 回傳值:
//
//	*Client: 連線成功的客戶端
//	error: 重試用盡或 ctx 取消
func Open(ctx context.Context, name string, open func() (*gorm.DB, error), pool Pool, log *zap.Logger) (*Client, error) {
	pool = pool.withDefaults()
	if log == nil {
		log = zap.NewNop()
	}

	var lastErr error
	for attempt := 1; attempt <= pool.MaxRetries; attempt++ {
		db, err := connect(ctx, open)
		if err == nil {
			sqlDB, err := db.DB()
			if err != nil {
				return nil, fmt.Errorf("failed to get sql.db: %w", err)
			}
			sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
			sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
			sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
			log.Info("database connected", zap.String("driver", name), zap.Int("attempt", attempt))
			return &Client{db: db}, nil
		}
		lastErr = err

		if attempt == pool.MaxRetries {
			break
		}
		log.Warn("database connect failed, retrying",
			zap.String("driver", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", pool.MaxRetries),
			zap.Duration("retry_in", pool.RetryInterval),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to %s: %w", name, ctx.Err())
		case <-time.After(pool.RetryInterval):
		}
	}
	return nil, fmt.Errorf("failed to connect to %s after %d attempts: %w", name, pool.MaxRetries, lastErr)
}

func connect(ctx context.Context, open func() (*gorm.DB, error)) (*gorm.DB, error) {
	db, err := open()
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// DB 回傳底層的 *gorm.DB 實例
func (c *Client) DB() *gorm.DB {
	return c.db
}

// Close 關閉資料庫連線
func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NewLogger 根據設定建立 GORM Logger，未知等級只記錄錯誤
func NewLogger(level string) logger.Interface {
	return logger.Default.LogMode(logLevel(level))
}

func logLevel(level string) logger.LogLevel {
	switch level {
	case "info":
		return logger.Info
	case "warn":
		return logger.Warn
	case "silent":
		return logger.Silent
	default:
		return logger.Error
	}
}
