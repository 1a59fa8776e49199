package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/out/boltdb"
	memory_adapter "github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/out/memory"
	redis_adapter "github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/out/sqldb"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-balance-ledger/internal/config"
	"github.com/JoeShih716/go-balance-ledger/pkg/gormx"
	"github.com/JoeShih716/go-balance-ledger/pkg/mysql"
	"github.com/JoeShih716/go-balance-ledger/pkg/postgres"
	"github.com/JoeShih716/go-balance-ledger/pkg/wal"
)

// openStore 依 store.driver 建立帳戶儲存，回傳的 close 負責釋放底層資源
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (usecase.AccountStore, func(), error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		var walFile *wal.WAL
		if cfg.Store.WALPath != "" {
			var err error
			walFile, err = wal.NewWAL(cfg.Store.WALPath)
			if err != nil {
				return nil, nil, fmt.Errorf("init wal: %w", err)
			}
		}
		store, err := memory_adapter.NewMutexStore(walFile)
		if err != nil {
			if walFile != nil {
				walFile.Close()
			}
			return nil, nil, err
		}
		return store, func() {
			if walFile != nil {
				walFile.Close()
			}
		}, nil

	case config.DriverBolt:
		db, err := boltdb.Open(cfg.Store.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		store, err := boltdb.NewStore(db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil

	case config.DriverRedis:
		client := redis_adapter.NewClient(cfg.Redis)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return redis_adapter.NewStore(client, cfg.Redis.KeyPrefix), func() { client.Close() }, nil

	case config.DriverMySQL:
		client, err := mysql.NewClient(ctx, cfg.MySQL, logger)
		if err != nil {
			return nil, nil, err
		}
		return sqlStore(ctx, cfg, client)

	case config.DriverPostgres:
		client, err := postgres.NewClient(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, err
		}
		return sqlStore(ctx, cfg, client)

	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func sqlStore(ctx context.Context, cfg *config.Config, client *gormx.Client) (usecase.AccountStore, func(), error) {
	store := sqldb.NewStore(client.DB())
	if cfg.Store.AutoMigrate {
		if err := store.AutoMigrate(ctx); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("auto migrate: %w", err)
		}
	}
	return store, func() { client.Close() }, nil
}
