package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
)

// AccountStore 是帳戶餘額與交易紀錄的儲存介面
//
// 所有實作都必須保證 SetBalance 的「條件寫入 + 追加交易紀錄」是同一個原子單位，
// 底層錯誤一律包成 domain.ErrStorageUnavailable。
type AccountStore interface {
	// CreateAccount 建立餘額為 0.00 的帳戶
	CreateAccount(ctx context.Context, accountID int64) error
	// GetBalance 取得帳戶餘額，帳戶不存在回傳 domain.ErrAccountNotFound
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	// SetBalance 在餘額仍等於 expectedPrior 時寫入 newBalance 並追加 tran。
	// tran.ID 與 tran.CreatedAt 由 Store 在提交時填入。
	// 餘額已變動時回傳 domain.ErrConflict，且不產生任何寫入。
	SetBalance(ctx context.Context, accountID int64, newBalance, expectedPrior decimal.Decimal, tran *domain.Transaction) error
	// ListTransactions 依提交時間由新到舊回傳交易，limit <= 0 表示全部
	ListTransactions(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error)
}

// EventPublisher 發布交易提交事件
type EventPublisher interface {
	PublishTransactionCommitted(ctx context.Context, event domain.TransactionCommitted) error
}

// Metrics 記錄帳務指標
type Metrics interface {
	// ObservePosting 記錄一次 ApplyTransaction 的結果與耗時
	ObservePosting(tranType string, kind domain.Kind, seconds float64)
	// IncRetry 條件寫入衝突後重試
	IncRetry()
	// IncPublishError 事件發布失敗
	IncPublishError()
}

type nopPublisher struct{}

func (nopPublisher) PublishTransactionCommitted(context.Context, domain.TransactionCommitted) error {
	return nil
}

type nopMetrics struct{}

func (nopMetrics) ObservePosting(string, domain.Kind, float64) {}
func (nopMetrics) IncRetry()                                   {}
func (nopMetrics) IncPublishError()                            {}
