package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	bolt "go.etcd.io/bbolt"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
)

var (
	accountsBucketName     = []byte("accounts")
	transactionsBucketName = []byte("transactions")
)

// Store 以 bbolt 實作的帳戶儲存
//
// 結構:
//
//	accounts/<account_id>        -> 餘額字串
//	transactions/<account_id>/<seq> -> 交易 JSON
//
// bbolt 同時只允許一個寫入交易，db.Update 本身就是原子單位。
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

func NewStore(db *bolt.DB) (*Store, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(accountsBucketName); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(transactionsBucketName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, now: time.Now}, nil
}

// Open 開啟 (或建立) bbolt 檔案
func Open(path string) (*bolt.DB, error) {
	return bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
}

func (s *Store) CreateAccount(ctx context.Context, accountID int64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		accounts := tx.Bucket(accountsBucketName)
		key := itob(uint64(accountID))
		if accounts.Get(key) != nil {
			return domain.ErrAccountAlreadyExists
		}
		if _, err := tx.Bucket(transactionsBucketName).CreateBucket(key); err != nil {
			return err
		}
		return accounts.Put(key, []byte(decimal.Zero.StringFixed(domain.AmountScale)))
	})
	return domain.StorageError(err)
}

func (s *Store) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.View(func(tx *bolt.Tx) error {
		var err error
		balance, err = readBalance(tx, accountID)
		return err
	})
	if err != nil {
		return decimal.Zero, domain.StorageError(err)
	}
	return balance, nil
}

func (s *Store) SetBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal, tran *domain.Transaction) error {
	committed := *tran
	err := s.db.Update(func(tx *bolt.Tx) error {
		current, err := readBalance(tx, accountID)
		if err != nil {
			return err
		}
		if !current.Equal(expectedPrior) {
			return domain.ErrConflict
		}

		history := tx.Bucket(transactionsBucketName).Bucket(itob(uint64(accountID)))
		// 序號放在 transactions 根 bucket，所有帳戶共用
		id, err := tx.Bucket(transactionsBucketName).NextSequence()
		if err != nil {
			return err
		}
		committed.ID = id
		committed.AccountID = accountID
		committed.CreatedAt = s.now()
		if _, last := history.Cursor().Last(); last != nil {
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
		if err := history.Put(itob(id), raw); err != nil {
			return err
		}
		return tx.Bucket(accountsBucketName).Put(itob(uint64(accountID)), []byte(domain.FormatAmount(newBalance)))
	})
	if err != nil {
		return domain.StorageError(err)
	}
	*tran = committed
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	trans := make([]domain.Transaction, 0)
	err := s.db.View(func(tx *bolt.Tx) error {
		history := tx.Bucket(transactionsBucketName).Bucket(itob(uint64(accountID)))
		if history == nil {
			return domain.ErrAccountNotFound
		}
		// key 為遞增序號，倒著走就是由新到舊
		c := history.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(trans) >= limit {
				break
			}
			var tran domain.Transaction
			if err := json.Unmarshal(v, &tran); err != nil {
				return err
			}
			trans = append(trans, tran)
		}
		return nil
	})
	if err != nil {
		return nil, domain.StorageError(err)
	}
	return trans, nil
}

func readBalance(tx *bolt.Tx, accountID int64) (decimal.Decimal, error) {
	raw := tx.Bucket(accountsBucketName).Get(itob(uint64(accountID)))
	if raw == nil {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	if len(raw) == 0 {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(string(raw))
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

var _ usecase.AccountStore = (*Store)(nil)
