package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionCommitted 交易提交後發布的事件
type TransactionCommitted struct {
	TransactionID uint64          `json:"transaction_id"`
	RefID         uuid.UUID       `json:"ref_id"`
	AccountID     int64           `json:"account_id"`
	Type          TransactionType `json:"type"`
	Amount        decimal.Decimal `json:"amount"`
	NewBalance    decimal.Decimal `json:"new_balance"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewTransactionCommitted(tran *Transaction, newBalance decimal.Decimal) TransactionCommitted {
	return TransactionCommitted{
		TransactionID: tran.ID,
		RefID:         tran.RefID,
		AccountID:     tran.AccountID,
		Type:          tran.Type,
		Amount:        tran.Amount,
		NewBalance:    newBalance,
		OccurredAt:    tran.CreatedAt,
	}
}
