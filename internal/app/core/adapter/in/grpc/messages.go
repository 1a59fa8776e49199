package grpc

import (
	"time"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
)

type OpenAccountRequest struct {
	AccountID int64 `json:"account_id"`
}

type OpenAccountResponse struct {
	AccountID int64  `json:"account_id"`
	Balance   string `json:"balance"`
}

// ApplyTransactionRequest 金額以字串傳遞，避免浮點誤差
type ApplyTransactionRequest struct {
	AccountID   int64  `json:"account_id"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

type ApplyTransactionResponse struct {
	NewBalance  string      `json:"new_balance"`
	Transaction Transaction `json:"transaction"`
}

type GetBalanceRequest struct {
	AccountID int64 `json:"account_id"`
}

type GetBalanceResponse struct {
	AccountID int64  `json:"account_id"`
	Balance   string `json:"balance"`
}

type ListRecentRequest struct {
	AccountID int64 `json:"account_id"`
	// Limit 0 表示使用預設筆數
	Limit int32 `json:"limit,omitempty"`
}

type ListRecentResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type Transaction struct {
	ID          uint64    `json:"id"`
	RefID       string    `json:"ref_id"`
	AccountID   int64     `json:"account_id"`
	Amount      string    `json:"amount"`
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toTransaction(tran *domain.Transaction) Transaction {
	return Transaction{
		ID:          tran.ID,
		RefID:       tran.RefID.String(),
		AccountID:   tran.AccountID,
		Amount:      domain.FormatAmount(tran.Amount),
		Type:        tran.Type.String(),
		Description: tran.Description,
		CreatedAt:   tran.CreatedAt,
	}
}
