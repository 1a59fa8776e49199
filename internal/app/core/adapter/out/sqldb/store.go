package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
)

// sqlAccount 對應資料庫的 accounts 表
type sqlAccount struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false"`
	// Balance 可能為 NULL (舊資料)，讀取時正規化為 0.00
	Balance   decimal.NullDecimal `gorm:"type:decimal(20,2)"`
	UpdatedAt time.Time
}

func (*sqlAccount) TableName() string {
	return "accounts"
}

// sqlTransaction 對應資料庫的 transactions 表
type sqlTransaction struct {
	ID          uint64          `gorm:"primaryKey;autoIncrement"`
	RefID       string          `gorm:"column:ref_id;type:char(36);uniqueIndex"`
	AccountID   int64           `gorm:"index:idx_account_created,priority:1;not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null"`
	Type        string          `gorm:"type:varchar(16);not null"`
	Description string          `gorm:"type:varchar(255)"`
	CreatedAt   time.Time       `gorm:"index:idx_account_created,priority:2;precision:6"`
}

func (*sqlTransaction) TableName() string {
	return "transactions"
}

func (t *sqlTransaction) toDomain() (domain.Transaction, error) {
	refID, err := uuid.Parse(t.RefID)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("transaction %d: invalid ref_id %q: %w", t.ID, t.RefID, err)
	}
	return domain.Transaction{
		ID:          t.ID,
		RefID:       refID,
		AccountID:   t.AccountID,
		Amount:      t.Amount,
		Type:        domain.TransactionType(t.Type),
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
	}, nil
}

// Store 以 gorm 實作的帳戶儲存 (MySQL / PostgreSQL)
//
// 條件寫入: UPDATE accounts SET balance = ? WHERE id = ? AND COALESCE(balance, 0) = ?
// 影響 0 列代表餘額已被修改 (或帳戶不存在)，與 INSERT transactions 在同一個 DB transaction。
// NULL 餘額讀取時視為 0.00，比對時也必須視為 0。
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:  db,
		now: time.Now,
	}
}

// AutoMigrate 建立 / 更新資料表
func (s *Store) AutoMigrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&sqlAccount{}, &sqlTransaction{})
}

func (s *Store) CreateAccount(ctx context.Context, accountID int64) error {
	err := s.db.WithContext(ctx).Create(&sqlAccount{ID: accountID, Balance: decimal.NewNullDecimal(decimal.Zero)}).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAccountAlreadyExists
	}
	return domain.StorageError(err)
}

// GetBalance 取得帳戶餘額
func (s *Store) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	var account sqlAccount
	err := s.db.WithContext(ctx).Where("id = ?", accountID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, domain.StorageError(err)
	}
	return domain.NormalizeBalance(account.Balance), nil
}

func (s *Store) SetBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal, tran *domain.Transaction) error {
	row := sqlTransaction{
		RefID:       tran.RefID.String(),
		AccountID:   accountID,
		Amount:      tran.Amount,
		Type:        tran.Type.String(),
		Description: tran.Description,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 條件寫入 (樂觀鎖)，取代原本的 SELECT ... FOR UPDATE
		result := tx.Model(&sqlAccount{}).
			Where("id = ?", accountID).
			Where("COALESCE(balance, 0) = ?", expectedPrior).
			Update("balance", newBalance)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&sqlAccount{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return domain.ErrAccountNotFound
			}
			return domain.ErrConflict
		}

		// 餘額列已被此交易鎖住，同一帳戶的 created_at 嚴格遞增 (DATETIME(6) 精度)
		createdAt, err := s.nextCreatedAt(tx, accountID)
		if err != nil {
			return err
		}
		row.CreatedAt = createdAt
		// 建立交易紀錄
		return tx.Create(&row).Error
	})
	if err != nil {
		return domain.StorageError(err)
	}

	committed, err := row.toDomain()
	if err != nil {
		return domain.StorageError(err)
	}
	*tran = committed
	return nil
}

// nextCreatedAt 取 now 與該帳戶最後一筆 created_at + 1µs 的較大者
// 時鐘倒退或多個實例時鐘不一致時，ListTransactions 的排序仍等於提交順序
func (s *Store) nextCreatedAt(tx *gorm.DB, accountID int64) (time.Time, error) {
	createdAt := s.now().Truncate(time.Microsecond)

	var last sql.NullTime
	err := tx.Model(&sqlTransaction{}).
		Select("MAX(created_at)").
		Where("account_id = ?", accountID).
		Row().
		Scan(&last)
	if err != nil {
		return time.Time{}, err
	}
	if last.Valid && !createdAt.After(last.Time) {
		createdAt = last.Time.Add(time.Microsecond)
	}
	return createdAt, nil
}

// ListTransactions 依 created_at DESC, id DESC 回傳交易
func (s *Store) ListTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	db := s.db.WithContext(ctx)

	var count int64
	if err := db.Model(&sqlAccount{}).Where("id = ?", accountID).Count(&count).Error; err != nil {
		return nil, domain.StorageError(err)
	}
	if count == 0 {
		return nil, domain.ErrAccountNotFound
	}

	query := db.Where("account_id = ?", accountID).Order("created_at DESC").Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []sqlTransaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, domain.StorageError(err)
	}

	trans := make([]domain.Transaction, 0, len(rows))
	for i := range rows {
		tran, err := rows[i].toDomain()
		if err != nil {
			return nil, domain.StorageError(err)
		}
		trans = append(trans, tran)
	}
	return trans, nil
}

var _ usecase.AccountStore = (*Store)(nil)
