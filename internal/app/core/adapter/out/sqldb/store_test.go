package sqldb

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewStore(db), mock
}

func q(sql string) string {
	return regexp.QuoteMeta(sql)
}

// conditionalUpdate 完整的條件寫入語句，少了餘額比對就不會命中
var conditionalUpdate = "^" + q("UPDATE `accounts` SET `balance`=?,`updated_at`=? WHERE id = ? AND COALESCE(balance, 0) = ?") + "$"

const lastCreatedAt = "SELECT MAX(created_at) FROM `transactions` WHERE account_id = ?"

// decimalArg 以數值比對 decimal 參數 ("30" 與 "30.00" 相等)
type decimalArg string

func (a decimalArg) Match(v driver.Value) bool {
	var raw string
	switch x := v.(type) {
	case string:
		raw = x
	case []byte:
		raw = string(x)
	default:
		return false
	}
	got, err := decimal.NewFromString(raw)
	if err != nil {
		return false
	}
	return got.Equal(decimal.RequireFromString(string(a)))
}

func expectConditionalUpdate(mock sqlmock.Sqlmock, accountID int64, newBalance, expectedPrior string, rows int64) {
	mock.ExpectExec(conditionalUpdate).
		WithArgs(decimalArg(newBalance), sqlmock.AnyArg(), accountID, decimalArg(expectedPrior)).
		WillReturnResult(sqlmock.NewResult(0, rows))
}

func expectLastCreatedAt(mock sqlmock.Sqlmock, accountID int64, last any) {
	mock.ExpectQuery(q(lastCreatedAt)).
		WithArgs(accountID).
		WillReturnRows(sqlmock.NewRows([]string{"MAX(created_at)"}).AddRow(last))
}

func TestStore_GetBalance(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock sqlmock.Sqlmock)
		want    string
		wantErr error
	}{
		{
			name: "found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q("SELECT * FROM `accounts` WHERE id = ?")).
					WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "updated_at"}).AddRow(1, "50.00", time.Now()))
			},
			want: "50.00",
		},
		{
			name: "null balance normalized",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q("SELECT * FROM `accounts` WHERE id = ?")).
					WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "updated_at"}).AddRow(1, nil, time.Now()))
			},
			want: "0.00",
		},
		{
			name: "not found",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q("SELECT * FROM `accounts` WHERE id = ?")).
					WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "updated_at"}))
			},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name: "database down",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(q("SELECT * FROM `accounts` WHERE id = ?")).
					WillReturnError(errors.New("driver: bad connection"))
			},
			wantErr: domain.ErrStorageUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)
			tt.setup(mock)

			balance, err := store.GetBalance(context.Background(), 1)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, domain.FormatAmount(balance))
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_SetBalance(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectConditionalUpdate(mock, 1, "30.00", "50.00", 1)
	expectLastCreatedAt(mock, 1, nil)
	mock.ExpectExec(q("INSERT INTO `transactions`")).
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	tran := &domain.Transaction{
		RefID:       uuid.New(),
		Amount:      decimal.RequireFromString("20.00"),
		Type:        domain.TransactionTypeWithdraw,
		Description: "rent",
	}
	err := store.SetBalance(context.Background(), 1, decimal.RequireFromString("30.00"), decimal.RequireFromString("50.00"), tran)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), tran.ID)
	assert.Equal(t, int64(1), tran.AccountID)
	assert.False(t, tran.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetBalanceNoRowsUpdated(t *testing.T) {
	tests := []struct {
		name    string
		count   int
		wantErr error
	}{
		{"balance changed", 1, domain.ErrConflict},
		{"account missing", 0, domain.ErrAccountNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newMockStore(t)

			mock.ExpectBegin()
			expectConditionalUpdate(mock, 1, "40.00", "30.00", 0)
			mock.ExpectQuery(q("SELECT count(*) FROM `accounts` WHERE id = ?")).
				WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(tt.count))
			mock.ExpectRollback()

			tran := &domain.Transaction{RefID: uuid.New(), Amount: decimal.RequireFromString("10.00"), Type: domain.TransactionTypeDeposit}
			err := store.SetBalance(context.Background(), 1, decimal.RequireFromString("40.00"), decimal.RequireFromString("30.00"), tran)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, tran.ID, "rejected commit must not assign an id")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_SetBalanceInsertFailsRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	expectConditionalUpdate(mock, 1, "10.00", "0", 1)
	expectLastCreatedAt(mock, 1, nil)
	mock.ExpectExec(q("INSERT INTO `transactions`")).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	tran := &domain.Transaction{RefID: uuid.New(), Amount: decimal.RequireFromString("10.00"), Type: domain.TransactionTypeDeposit}
	err := store.SetBalance(context.Background(), 1, decimal.RequireFromString("10.00"), decimal.Zero, tran)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListTransactions(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now()
	refID := uuid.New()

	mock.ExpectQuery(q("SELECT count(*) FROM `accounts` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery(q("SELECT * FROM `transactions` WHERE account_id = ? ORDER BY created_at DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ref_id", "account_id", "amount", "type", "description", "created_at"}).
			AddRow(2, refID.String(), 1, "20.00", "withdraw", "rent", now).
			AddRow(1, uuid.New().String(), 1, "50.00", "deposit", "init", now.Add(-time.Minute)))

	trans, err := store.ListTransactions(context.Background(), 1, 5)
	require.NoError(t, err)
	require.Len(t, trans, 2)
	assert.Equal(t, uint64(2), trans[0].ID)
	assert.Equal(t, refID, trans[0].RefID)
	assert.Equal(t, domain.TransactionTypeWithdraw, trans[0].Type)
	assert.Equal(t, "20.00", domain.FormatAmount(trans[0].Amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_ListTransactionsAccountMissing(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(q("SELECT count(*) FROM `accounts` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(0))

	_, err := store.ListTransactions(context.Background(), 9, 5)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetBalanceOnNullBalance(t *testing.T) {
	store, mock := newMockStore(t)

	// NULL 餘額讀成 0.00，條件寫入以 COALESCE(balance, 0) 比對，第一筆存款才能成功
	mock.ExpectQuery(q("SELECT * FROM `accounts` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "updated_at"}).AddRow(1, nil, time.Now()))
	mock.ExpectBegin()
	expectConditionalUpdate(mock, 1, "25.00", "0.00", 1)
	expectLastCreatedAt(mock, 1, nil)
	mock.ExpectExec(q("INSERT INTO `transactions`")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	prior, err := store.GetBalance(context.Background(), 1)
	require.NoError(t, err)
	require.True(t, prior.IsZero())

	tran := &domain.Transaction{RefID: uuid.New(), Amount: decimal.RequireFromString("25.00"), Type: domain.TransactionTypeDeposit}
	err = store.SetBalance(context.Background(), 1, prior.Add(tran.Amount), prior, tran)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), tran.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SetBalanceCreatedAtAfterLastCommit(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	tests := []struct {
		name string
		last any
		want time.Time
	}{
		{"first posting uses now", nil, now},
		{"clock behind last commit", now.Add(time.Second), now.Add(time.Second + time.Microsecond)},
		{"same microsecond", now, now.Add(time.Microsecond)},
		{"clock ahead", now.Add(-time.Second), now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectBegin()
			expectConditionalUpdate(mock, 1, "2.00", "1.00", 1)
			expectLastCreatedAt(mock, 1, tt.last)
			mock.ExpectExec(q("INSERT INTO `transactions`")).
				WillReturnResult(sqlmock.NewResult(7, 1))
			mock.ExpectCommit()

			tran := &domain.Transaction{RefID: uuid.New(), Amount: decimal.RequireFromString("1.00"), Type: domain.TransactionTypeDeposit}
			err := store.SetBalance(context.Background(), 1, decimal.RequireFromString("2.00"), decimal.RequireFromString("1.00"), tran)
			require.NoError(t, err)
			assert.True(t, tran.CreatedAt.Equal(tt.want), "created_at = %s, want %s", tran.CreatedAt, tt.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStore_ListTransactionsCorruptRefID(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(q("SELECT count(*) FROM `accounts` WHERE id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))
	mock.ExpectQuery(q("SELECT * FROM `transactions` WHERE account_id = ?")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ref_id", "account_id", "amount", "type", "description", "created_at"}).
			AddRow(1, "not-a-uuid", 1, "5.00", "deposit", "", time.Now()))

	_, err := store.ListTransactions(context.Background(), 1, 5)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.ErrorContains(t, err, "not-a-uuid")
	assert.NoError(t, mock.ExpectationsWereMet())
}
