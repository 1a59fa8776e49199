package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType 交易類型 (封閉列舉，只接受 deposit / withdraw)
type TransactionType string

const (
	// 存款
	TransactionTypeDeposit TransactionType = "deposit"
	// 提款
	TransactionTypeWithdraw TransactionType = "withdraw"
)

// Valid 檢查交易類型是否合法
// 嚴格比對，不接受 "withdrawal" 之類的別名
func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdraw:
		return true
	}
	return false
}

func (t TransactionType) String() string {
	return string(t)
}

// Signed 依交易類型回傳帶正負號的金額
func (t TransactionType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == TransactionTypeWithdraw {
		return amount.Neg()
	}
	return amount
}

// Transaction 帳本上的一筆交易紀錄，提交後不可變更
type Transaction struct {
	// ID: 由 Store 在提交時分配的遞增序號
	ID uint64 `json:"id"`
	// RefID: 外部追蹤號，同一筆 posting 重試時不變
	RefID     uuid.UUID       `json:"ref_id"`
	AccountID int64           `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      TransactionType `json:"type"`
	// Description: 選填備註
	Description string `json:"description,omitempty"`
	// CreatedAt: 提交時間，歷史查詢的排序鍵
	CreatedAt time.Time `json:"created_at"`
}

// SignedAmount 回傳對餘額的影響量
func (t *Transaction) SignedAmount() decimal.Decimal {
	return t.Type.Signed(t.Amount)
}

// NewerThan 判斷 t 是否排在 other 之前 (created_at DESC, id DESC)
func (t *Transaction) NewerThan(other *Transaction) bool {
	if !t.CreatedAt.Equal(other.CreatedAt) {
		return t.CreatedAt.After(other.CreatedAt)
	}
	return t.ID > other.ID
}

// SumSigned 加總一串交易對餘額的影響
func SumSigned(trans []Transaction) decimal.Decimal {
	sum := decimal.Zero
	for i := range trans {
		sum = sum.Add(trans[i].SignedAmount())
	}
	return sum
}
