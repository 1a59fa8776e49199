package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
)

// Config Redis 連線設定
type Config struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

func NewClient(cfg Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// Store 以 Redis 實作的帳戶儲存
//
// 條件寫入使用 WATCH / MULTI / EXEC：
// 監看餘額 key，EXEC 前若被其他連線修改則整個交易放棄 (domain.ErrConflict)。
type Store struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

func NewStore(client *goredis.Client, prefix string) *Store {
	if prefix == "" {
		prefix = "ledger"
	}
	return &Store{client: client, prefix: prefix, now: time.Now}
}

func (s *Store) balanceKey(accountID int64) string {
	return fmt.Sprintf("%s:account:%d:balance", s.prefix, accountID)
}

// transactionsKey 交易 list，LPUSH 寫入，index 0 為最新
func (s *Store) transactionsKey(accountID int64) string {
	return fmt.Sprintf("%s:account:%d:transactions", s.prefix, accountID)
}

func (s *Store) sequenceKey() string {
	return s.prefix + ":transaction:seq"
}

func (s *Store) CreateAccount(ctx context.Context, accountID int64) error {
	ok, err := s.client.SetNX(ctx, s.balanceKey(accountID), decimal.Zero.StringFixed(domain.AmountScale), 0).Result()
	if err != nil {
		return domain.StorageError(err)
	}
	if !ok {
		return domain.ErrAccountAlreadyExists
	}
	return nil
}

func (s *Store) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	balance, err := readBalance(ctx, s.client, s.balanceKey(accountID))
	if err != nil {
		return decimal.Zero, domain.StorageError(err)
	}
	return balance, nil
}

func (s *Store) SetBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal, tran *domain.Transaction) error {
	balanceKey := s.balanceKey(accountID)
	transactionsKey := s.transactionsKey(accountID)
	committed := *tran

	txf := func(tx *goredis.Tx) error {
		current, err := readBalance(ctx, tx, balanceKey)
		if err != nil {
			return err
		}
		if !current.Equal(expectedPrior) {
			return domain.ErrConflict
		}

		id, err := tx.Incr(ctx, s.sequenceKey()).Result()
		if err != nil {
			return err
		}
		committed.ID = uint64(id)
		committed.AccountID = accountID
		committed.CreatedAt = s.now()

		last, err := tx.LIndex(ctx, transactionsKey, 0).Bytes()
		if err != nil && !errors.Is(err, goredis.Nil) {
			return err
		}
		if len(last) > 0 {
			var prev domain.Transaction
			if err := json.Unmarshal(last, &prev); err != nil {
				return err
			}
			if !committed.CreatedAt.After(prev.CreatedAt) {
				committed.CreatedAt = prev.CreatedAt.Add(time.Nanosecond)
			}
		}

		raw, err := json.Marshal(committed)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Set(ctx, balanceKey, newBalance.StringFixed(domain.AmountScale), 0)
			pipe.LPush(ctx, transactionsKey, raw)
			return nil
		})
		return err
	}

	err := s.client.Watch(ctx, txf, balanceKey)
	if errors.Is(err, goredis.TxFailedErr) {
		return domain.ErrConflict
	}
	if err != nil {
		return domain.StorageError(err)
	}
	*tran = committed
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	exists, err := s.client.Exists(ctx, s.balanceKey(accountID)).Result()
	if err != nil {
		return nil, domain.StorageError(err)
	}
	if exists == 0 {
		return nil, domain.ErrAccountNotFound
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	raws, err := s.client.LRange(ctx, s.transactionsKey(accountID), 0, stop).Result()
	if err != nil {
		return nil, domain.StorageError(err)
	}

	trans := make([]domain.Transaction, 0, len(raws))
	for _, raw := range raws {
		var tran domain.Transaction
		if err := json.Unmarshal([]byte(raw), &tran); err != nil {
			return nil, domain.StorageError(err)
		}
		trans = append(trans, tran)
	}
	return trans, nil
}

// getter *goredis.Client 與 *goredis.Tx 共用的讀取介面
type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func readBalance(ctx context.Context, c getter, key string) (decimal.Decimal, error) {
	raw, err := c.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}

var _ usecase.AccountStore = (*Store)(nil)
