package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/out/kafka"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/adapter/out/redis"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-balance-ledger/pkg/logger"
	"github.com/JoeShih716/go-balance-ledger/pkg/mysql"
	"github.com/JoeShih716/go-balance-ledger/pkg/postgres"
)

// 儲存驅動
const (
	DriverMemory   = "memory"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
	DriverRedis    = "redis"
)

type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Log      logger.Config   `yaml:"log"`
	Ledger   usecase.Config  `yaml:"ledger"`
	Store    StoreConfig     `yaml:"store"`
	MySQL    mysql.Config    `yaml:"mysql"`
	Postgres postgres.Config `yaml:"postgres"`
	Redis    redis.Config    `yaml:"redis"`
	Kafka    kafka.Config    `yaml:"kafka"`
}

type ServerConfig struct {
	GRPCAddr        string        `yaml:"grpc_addr"`
	MetricsAddr     string        `yaml:"metrics_addr"` // 空字串表示不開 /metrics
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	// WALPath memory driver 的 WAL 檔案，空字串表示不落地
	WALPath string `yaml:"wal_path"`
	// BoltPath bolt driver 的資料檔
	BoltPath string `yaml:"bolt_path"`
	// AutoMigrate mysql / postgres 啟動時建立資料表
	AutoMigrate bool `yaml:"auto_migrate"`
}

// Load 依序套用: yaml 檔 -> .env -> 環境變數 -> 預設值，最後驗證
//
// path 為空或檔案不存在時只使用環境變數與預設值。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env 不存在不是錯誤
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Store.Driver, "LEDGER_STORE_DRIVER")
	setString(&c.Store.WALPath, "LEDGER_WAL_PATH")
	setString(&c.Store.BoltPath, "LEDGER_BOLT_PATH")
	setString(&c.Server.GRPCAddr, "GRPC_ADDR")
	setString(&c.Server.MetricsAddr, "METRICS_ADDR")
	setString(&c.Log.Level, "LOG_LEVEL")
	setString(&c.Log.Encoding, "LOG_ENCODING")

	setString(&c.MySQL.Host, "MYSQL_HOST")
	setString(&c.MySQL.User, "MYSQL_USER")
	setString(&c.MySQL.Password, "MYSQL_PASSWORD")
	setString(&c.MySQL.DBName, "MYSQL_DATABASE")
	if err := setInt(&c.MySQL.Port, "MYSQL_PORT"); err != nil {
		return err
	}

	setString(&c.Postgres.DSN, "POSTGRES_DSN")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")

	return setInt(&c.Ledger.MaxAttempts, "LEDGER_MAX_ATTEMPTS")
}

func (c *Config) applyDefaults() {
	if c.Server.GRPCAddr == "" {
		c.Server.GRPCAddr = ":50051"
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = DriverMemory
	}
	if c.Store.BoltPath == "" {
		c.Store.BoltPath = "ledger.db"
	}

	def := usecase.DefaultConfig()
	if c.Ledger.MaxAttempts == 0 {
		c.Ledger.MaxAttempts = def.MaxAttempts
	}
	if c.Ledger.DefaultListLimit == 0 {
		c.Ledger.DefaultListLimit = def.DefaultListLimit
	}
	if c.Ledger.MaxListLimit == 0 {
		c.Ledger.MaxListLimit = def.MaxListLimit
	}
	if c.Ledger.PublishTimeout == 0 {
		c.Ledger.PublishTimeout = def.PublishTimeout
	}

	// 補全 MySQL 預設配置 (如果 yaml 沒寫)
	if c.MySQL.MaxOpenConns == 0 {
		c.MySQL.MaxOpenConns = 100
	}
	if c.MySQL.MaxIdleConns == 0 {
		c.MySQL.MaxIdleConns = 10
	}
	if c.MySQL.ConnMaxLifetime == 0 {
		c.MySQL.ConnMaxLifetime = 30 * time.Minute
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "ledger"
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = kafka.DefaultTopic
	}
}

// Validate 檢查設定是否可用
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverMemory, DriverBolt:
	case DriverMySQL:
		if c.MySQL.Host == "" {
			return errors.New("config: mysql.host is required for mysql driver")
		}
	case DriverPostgres:
		if c.Postgres.DSN == "" && c.Postgres.Host == "" {
			return errors.New("config: postgres.dsn or postgres.host is required for postgres driver")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for redis driver")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	if c.Ledger.MaxAttempts <= 0 {
		return fmt.Errorf("config: ledger.max_attempts must be positive, got %d", c.Ledger.MaxAttempts)
	}
	if c.Ledger.PublishTimeout < 0 {
		return fmt.Errorf("config: ledger.publish_timeout must not be negative, got %s", c.Ledger.PublishTimeout)
	}
	if c.Ledger.RetryBackoff < 0 {
		return fmt.Errorf("config: ledger.retry_backoff must not be negative, got %s", c.Ledger.RetryBackoff)
	}
	if c.Ledger.DefaultListLimit > c.Ledger.MaxListLimit {
		return fmt.Errorf("config: ledger.default_list_limit (%d) exceeds max_list_limit (%d)",
			c.Ledger.DefaultListLimit, c.Ledger.MaxListLimit)
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*dst = i
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
