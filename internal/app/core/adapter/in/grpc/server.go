package grpc

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-balance-ledger/internal/app/core/usecase"
)

// Ledger GrpcServer 依賴的業務介面，由 *usecase.CoreUseCase 實作
type Ledger interface {
	OpenAccount(ctx context.Context, accountID int64) error
	GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error)
	ApplyTransaction(ctx context.Context, accountID int64, amount decimal.Decimal, tranType domain.TransactionType, description string) (*usecase.Result, error)
	ListRecent(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error)
}

type GrpcServer struct {
	core Ledger
}

func NewGrpcServer(core Ledger) *GrpcServer {
	return &GrpcServer{
		core: core,
	}
}

func (s *GrpcServer) OpenAccount(ctx context.Context, req *OpenAccountRequest) (*OpenAccountResponse, error) {
	if err := s.core.OpenAccount(ctx, req.AccountID); err != nil {
		return nil, toStatus(ctx, err)
	}
	return &OpenAccountResponse{
		AccountID: req.AccountID,
		Balance:   domain.FormatAmount(decimal.Zero),
	}, nil
}

func (s *GrpcServer) ApplyTransaction(ctx context.Context, req *ApplyTransactionRequest) (*ApplyTransactionResponse, error) {
	// 1. 金額解析 (非數字 / NaN / 超過兩位小數都是 ErrInvalidAmount)
	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	// 2. 執行交易，type 由 usecase 驗證
	res, err := s.core.ApplyTransaction(ctx, req.AccountID, amount, domain.TransactionType(req.Type), req.Description)
	if err != nil {
		return nil, toStatus(ctx, err)
	}

	return &ApplyTransactionResponse{
		NewBalance:  domain.FormatAmount(res.NewBalance),
		Transaction: toTransaction(&res.Transaction),
	}, nil
}

func (s *GrpcServer) GetBalance(ctx context.Context, req *GetBalanceRequest) (*GetBalanceResponse, error) {
	balance, err := s.core.GetBalance(ctx, req.AccountID)
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	return &GetBalanceResponse{
		AccountID: req.AccountID,
		Balance:   domain.FormatAmount(balance),
	}, nil
}

func (s *GrpcServer) ListRecent(ctx context.Context, req *ListRecentRequest) (*ListRecentResponse, error) {
	trans, err := s.core.ListRecent(ctx, req.AccountID, int(req.Limit))
	if err != nil {
		return nil, toStatus(ctx, err)
	}
	resp := &ListRecentResponse{
		Transactions: make([]Transaction, 0, len(trans)),
	}
	for i := range trans {
		resp.Transactions = append(resp.Transactions, toTransaction(&trans[i]))
	}
	return resp, nil
}

var (
	_ LedgerServiceServer = (*GrpcServer)(nil)
	_ Ledger              = (*usecase.CoreUseCase)(nil)
)
