package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-balance-ledger/pkg/wal"
)

const (
	walOpOpen = "open"
	walOpPost = "post"
)

// walRecord WAL 中的一筆紀錄
type walRecord struct {
	Op          string              `json:"op"`
	AccountID   int64               `json:"account_id"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

// accountState 單一帳戶的狀態，由自己的 mutex 保護
type accountState struct {
	mu      sync.RWMutex
	balance decimal.Decimal
	// history 依提交順序 (舊 -> 新)
	history []domain.Transaction
}

// MutexStore 是一個使用 Mutex 實現的記憶體帳戶儲存
//
// 結構:
//
//	accounts: 帳戶資料 Map
//	mu: 只保護 accounts Map 本身
//	seq: 全域交易序號
//	wal: Write-Ahead Log 實例 (可為 nil)
//
// 每個帳戶各自一把鎖，不同帳戶的交易可以平行提交。
type MutexStore struct {
	accounts map[int64]*accountState
	mu       sync.RWMutex
	seq      atomic.Uint64
	// Write-Ahead Logging
	wal *wal.WAL
	now func() time.Time
}

// NewMutexStore 建立一個新的 MutexStore 實例
//
// 參數:
//
//	wal: Write-Ahead Log 實例，nil 表示不持久化
//
// 回傳:
//
//	*MutexStore: MutexStore 實例
//	error: 初始化錯誤 (如 WAL 恢復失敗)
func NewMutexStore(wal *wal.WAL) (*MutexStore, error) {
	store := &MutexStore{
		accounts: make(map[int64]*accountState),
		wal:      wal,
		now:      time.Now,
	}
	if wal != nil {
		if err := store.recoverFromWAL(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// recoverFromWAL 從 WAL 檔案恢復帳戶狀態
// 只有 NewMutexStore 呼叫，無需 Lock (單執行緒)
func (m *MutexStore) recoverFromWAL() error {
	return m.wal.ReadAll(func(jsonRaw []byte) error {
		var rec walRecord
		if err := json.Unmarshal(jsonRaw, &rec); err != nil {
			return err
		}
		switch rec.Op {
		case walOpOpen:
			if _, ok := m.accounts[rec.AccountID]; !ok {
				m.accounts[rec.AccountID] = &accountState{balance: decimal.Zero}
			}
		case walOpPost:
			state, ok := m.accounts[rec.AccountID]
			if !ok || rec.Transaction == nil {
				return fmt.Errorf("wal: posting for unknown account %d", rec.AccountID)
			}
			tran := *rec.Transaction
			state.balance = state.balance.Add(tran.SignedAmount())
			state.history = append(state.history, tran)
			if tran.ID > m.seq.Load() {
				m.seq.Store(tran.ID)
			}
		default:
			return fmt.Errorf("wal: unknown op %q", rec.Op)
		}
		return nil
	})
}

func (m *MutexStore) account(accountID int64) (*accountState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	state, ok := m.accounts[accountID]
	return state, ok
}

// CreateAccount 建立餘額為 0.00 的帳戶
func (m *MutexStore) CreateAccount(ctx context.Context, accountID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[accountID]; ok {
		return domain.ErrAccountAlreadyExists
	}
	if m.wal != nil {
		if err := m.wal.Write(walRecord{Op: walOpOpen, AccountID: accountID}); err != nil {
			return domain.StorageError(err)
		}
	}
	m.accounts[accountID] = &accountState{balance: decimal.Zero}
	return nil
}

// GetBalance 取得指定帳戶的當前餘額
//
// 參數:
//
//	ctx: 上下文
//	accountID: 帳戶 ID
//
// 回傳:
//
//	decimal.Decimal: 帳戶餘額
//	error: 查詢錯誤 (如帳戶不存在)
func (m *MutexStore) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	state, ok := m.account(accountID)
	if !ok {
		return decimal.Zero, domain.ErrAccountNotFound
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.balance, nil
}

// SetBalance 條件寫入餘額並追加交易紀錄
//
// 順序: 檢查 expectedPrior -> 分配序號/時間 -> 寫 WAL -> 更新記憶體
// WAL 寫入失敗時記憶體狀態不變。
func (m *MutexStore) SetBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal, tran *domain.Transaction) error {
	state, ok := m.account(accountID)
	if !ok {
		return domain.ErrAccountNotFound
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	if !state.balance.Equal(expectedPrior) {
		return domain.ErrConflict
	}

	committed := *tran
	committed.AccountID = accountID
	committed.ID = m.seq.Add(1)
	committed.CreatedAt = m.now()
	// 同一帳戶的提交時間嚴格遞增
	if n := len(state.history); n > 0 {
		last := state.history[n-1].CreatedAt
		if !committed.CreatedAt.After(last) {
			committed.CreatedAt = last.Add(time.Nanosecond)
		}
	}

	// 1. 寫入 WAL (Critical Path)
	if m.wal != nil {
		if err := m.wal.Write(walRecord{Op: walOpPost, AccountID: accountID, Transaction: &committed}); err != nil {
			return domain.StorageError(err)
		}
	}

	// 2. 更新記憶體
	state.balance = newBalance
	state.history = append(state.history, committed)
	*tran = committed
	return nil
}

// ListTransactions 依提交時間由新到舊回傳交易
func (m *MutexStore) ListTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	state, ok := m.account(accountID)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	state.mu.RLock()
	defer state.mu.RUnlock()

	n := len(state.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.Transaction, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, state.history[i])
	}
	return out, nil
}

var _ usecase.AccountStore = (*MutexStore)(nil)
