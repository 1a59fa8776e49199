// Package storetest 提供 usecase.AccountStore 實作共用的契約測試
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
)

// Factory 每個子測試都會建立一個全新的 Store
type Factory func(t *testing.T) usecase.AccountStore

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTran(accountID int64, amount string, tranType domain.TransactionType, desc string) *domain.Transaction {
	return &domain.Transaction{
		RefID:       uuid.New(),
		AccountID:   accountID,
		Amount:      d(amount),
		Type:        tranType,
		Description: desc,
	}
}

// Run 執行整套 AccountStore 契約測試
func Run(t *testing.T, factory Factory) {
	t.Run("CreateAccount", func(t *testing.T) { testCreateAccount(t, factory(t)) })
	t.Run("GetBalanceNotFound", func(t *testing.T) { testGetBalanceNotFound(t, factory(t)) })
	t.Run("SetBalance", func(t *testing.T) { testSetBalance(t, factory(t)) })
	t.Run("SetBalanceConflict", func(t *testing.T) { testSetBalanceConflict(t, factory(t)) })
	t.Run("SetBalanceNotFound", func(t *testing.T) { testSetBalanceNotFound(t, factory(t)) })
	t.Run("ListTransactions", func(t *testing.T) { testListTransactions(t, factory(t)) })
	t.Run("AccountsIsolated", func(t *testing.T) { testAccountsIsolated(t, factory(t)) })
	t.Run("ConcurrentConditionalWrite", func(t *testing.T) { testConcurrentConditionalWrite(t, factory(t)) })
}

func testCreateAccount(t *testing.T, store usecase.AccountStore) {
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, 1))

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), "new account balance = %s", balance)

	// 無寫入時重複讀取結果相同
	again, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(again))

	err = store.CreateAccount(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrAccountAlreadyExists)
}

func testGetBalanceNotFound(t *testing.T, store usecase.AccountStore) {
	_, err := store.GetBalance(context.Background(), 404)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func testSetBalance(t *testing.T, store usecase.AccountStore) {
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, 1))

	tran := newTran(1, "50.00", domain.TransactionTypeDeposit, "init")
	require.NoError(t, store.SetBalance(ctx, 1, d("50.00"), decimal.Zero, tran))
	assert.NotZero(t, tran.ID)
	assert.False(t, tran.CreatedAt.IsZero())

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("50.00")), "balance = %s", balance)

	trans, err := store.ListTransactions(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, trans, 1)
	assert.Equal(t, tran.ID, trans[0].ID)
	assert.Equal(t, tran.RefID, trans[0].RefID)
	assert.Equal(t, int64(1), trans[0].AccountID)
	assert.True(t, trans[0].Amount.Equal(d("50.00")))
	assert.Equal(t, domain.TransactionTypeDeposit, trans[0].Type)
	assert.Equal(t, "init", trans[0].Description)
}

func testSetBalanceConflict(t *testing.T, store usecase.AccountStore) {
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, 1))
	require.NoError(t, store.SetBalance(ctx, 1, d("30.00"), decimal.Zero, newTran(1, "30.00", domain.TransactionTypeDeposit, "")))

	// expectedPrior 已過期
	err := store.SetBalance(ctx, 1, d("40.00"), decimal.Zero, newTran(1, "40.00", domain.TransactionTypeDeposit, "stale"))
	assert.ErrorIs(t, err, domain.ErrConflict)

	balance, err := store.GetBalance(ctx, 1)
	require.NoError(t, err)
	assert.True(t, balance.Equal(d("30.00")), "balance = %s", balance)

	trans, err := store.ListTransactions(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, trans, 1, "conflicting write must not append a record")
}

func testSetBalanceNotFound(t *testing.T, store usecase.AccountStore) {
	err := store.SetBalance(context.Background(), 404, d("10.00"), decimal.Zero, newTran(404, "10.00", domain.TransactionTypeDeposit, ""))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func testListTransactions(t *testing.T, store usecase.AccountStore) {
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, 1))

	trans, err := store.ListTransactions(ctx, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, trans)

	balance := decimal.Zero
	var committed []uint64
	for i := 1; i <= 7; i++ {
		amount := decimal.NewFromInt(int64(i))
		tran := &domain.Transaction{
			RefID:     uuid.New(),
			AccountID: 1,
			Amount:    amount,
			Type:      domain.TransactionTypeDeposit,
		}
		next := balance.Add(amount)
		require.NoError(t, store.SetBalance(ctx, 1, next, balance, tran))
		balance = next
		committed = append(committed, tran.ID)
	}

	// 提交順序 = ID 遞增
	for i := 1; i < len(committed); i++ {
		assert.Greater(t, committed[i], committed[i-1])
	}

	recent, err := store.ListTransactions(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, recent, 5)
	for i := 1; i < len(recent); i++ {
		assert.True(t, recent[i-1].NewerThan(&recent[i]), "entry %d not newer than %d", i-1, i)
	}
	assert.Equal(t, committed[6], recent[0].ID)
	assert.Equal(t, committed[2], recent[4].ID)

	all, err := store.ListTransactions(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, all, 7)
	assert.True(t, domain.SumSigned(all).Equal(balance))

	_, err = store.ListTransactions(ctx, 404, 5)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func testAccountsIsolated(t *testing.T, store usecase.AccountStore) {
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, 1))
	require.NoError(t, store.CreateAccount(ctx, 2))
	require.NoError(t, store.SetBalance(ctx, 1, d("10.00"), decimal.Zero, newTran(1, "10.00", domain.TransactionTypeDeposit, "")))

	balance, err := store.GetBalance(ctx, 2)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	trans, err := store.ListTransactions(ctx, 2, 0)
	require.NoError(t, err)
	assert.Empty(t, trans)
}

func testConcurrentConditionalWrite(t *testing.T, store usecase.AccountStore) {
	ctx := context.Background()
	require.NoError(t, store.CreateAccount(ctx, 1))

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	wg.Add(writers)
	for i := 0; i < writers; i++ {
		go func() {
			defer wg.Done()
			err := store.SetBalance(ctx, 1, d("10.00"), decimal.Zero, newTran(1, "10.00", domain.TransactionTypeDeposit, ""))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, domain.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)

	trans, err := store.ListTransactions(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, trans, 1)
}
