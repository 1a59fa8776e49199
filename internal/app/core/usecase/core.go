package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-balance-ledger/internal/app/core/domain"
)

// Config Ledger Engine 設定
type Config struct {
	// MaxAttempts 條件寫入衝突時最多嘗試幾次 (含第一次)
	MaxAttempts int `yaml:"max_attempts"`
	// RetryBackoff 每次重試前等待 attempt * RetryBackoff，0 表示立即重試
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// DefaultListLimit ListRecent 未指定 limit 時的筆數
	DefaultListLimit int `yaml:"default_list_limit"`
	// MaxListLimit ListRecent 單次最多筆數
	MaxListLimit int `yaml:"max_list_limit"`
	// PublishTimeout 發布提交事件的上限，逾時只記錄錯誤，不影響已提交的結果
	PublishTimeout time.Duration `yaml:"publish_timeout"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:      5,
		RetryBackoff:     0,
		DefaultListLimit: 5,
		MaxListLimit:     100,
		PublishTimeout:   time.Second,
	}
}

// Result ApplyTransaction 成功提交的結果
type Result struct {
	NewBalance  decimal.Decimal
	Transaction domain.Transaction
}

// Reconciliation 以交易紀錄重算餘額的結果
type Reconciliation struct {
	AccountID     int64
	StoredBalance decimal.Decimal
	LedgerBalance decimal.Decimal
	Transactions  int
}

// Consistent 儲存的餘額是否等於交易紀錄加總
func (r *Reconciliation) Consistent() bool {
	return r.StoredBalance.Equal(r.LedgerBalance)
}

type Option func(*CoreUseCase)

func WithConfig(cfg Config) Option {
	return func(c *CoreUseCase) {
		c.cfg = cfg
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *CoreUseCase) {
		c.logger = logger
	}
}

func WithPublisher(publisher EventPublisher) Option {
	return func(c *CoreUseCase) {
		c.publisher = publisher
	}
}

func WithMetrics(metrics Metrics) Option {
	return func(c *CoreUseCase) {
		c.metrics = metrics
	}
}

// CoreUseCase 是核心業務邏輯層 (Ledger Engine)
//
// 每一筆存提款都以「讀取 -> 計算 -> 條件寫入」完成，
// 條件寫入衝突時從讀取重新開始，最多 MaxAttempts 次。
type CoreUseCase struct {
	store     AccountStore
	publisher EventPublisher
	metrics   Metrics
	logger    *zap.Logger
	cfg       Config
}

func NewCoreUseCase(store AccountStore, opts ...Option) *CoreUseCase {
	c := &CoreUseCase{
		store:     store,
		publisher: nopPublisher{},
		metrics:   nopMetrics{},
		logger:    zap.NewNop(),
		cfg:       DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// 補全預設值
	def := DefaultConfig()
	if c.cfg.MaxAttempts <= 0 {
		c.cfg.MaxAttempts = def.MaxAttempts
	}
	if c.cfg.DefaultListLimit <= 0 {
		c.cfg.DefaultListLimit = def.DefaultListLimit
	}
	if c.cfg.MaxListLimit <= 0 {
		c.cfg.MaxListLimit = def.MaxListLimit
	}
	if c.cfg.PublishTimeout <= 0 {
		c.cfg.PublishTimeout = def.PublishTimeout
	}
	if c.publisher == nil {
		c.publisher = nopPublisher{}
	}
	if c.metrics == nil {
		c.metrics = nopMetrics{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// OpenAccount 建立新帳戶 (餘額 0.00)
func (c *CoreUseCase) OpenAccount(ctx context.Context, accountID int64) error {
	if err := c.store.CreateAccount(ctx, accountID); err != nil {
		return err
	}
	c.logger.Info("account opened", zap.Int64("account_id", accountID))
	return nil
}

// GetBalance 取得帳戶餘額
func (c *CoreUseCase) GetBalance(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	return c.store.GetBalance(ctx, accountID)
}

// ApplyTransaction 以單一原子操作套用一筆存款或提款
//
// 參數:
//
//	ctx: 上下文，只在進入提交前有效；提交開始後一定跑到 Committed 或 Rejected
//	accountID: 已驗證過身分的帳戶 ID
//	amount: 正數且最多兩位小數
//	tranType: deposit / withdraw
//	description: 選填備註
//
// 回傳:
//
//	*Result: 提交後的餘額與交易紀錄
//	error: ErrInvalidAmount / ErrInvalidType / ErrAccountNotFound /
//	       ErrInsufficientFunds / ErrContention / ErrStorageUnavailable
func (c *CoreUseCase) ApplyTransaction(ctx context.Context, accountID int64, amount decimal.Decimal, tranType domain.TransactionType, description string) (res *Result, err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObservePosting(tranType.String(), domain.KindOf(err), time.Since(start).Seconds())
	}()

	// Validating
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	if !tranType.Valid() {
		return nil, domain.ErrInvalidType
	}

	log := c.logger.With(
		zap.Int64("account_id", accountID),
		zap.String("type", tranType.String()),
		zap.String("amount", domain.FormatAmount(amount)),
	)

	// 同一筆 posting 的所有重試共用 RefID
	refID := uuid.New()

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			c.metrics.IncRetry()
			if err := c.backoff(ctx, attempt); err != nil {
				return nil, err
			}
		}
		// 尚未進入提交，呼叫端可以放棄
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Reading
		prior, err := c.store.GetBalance(ctx, accountID)
		if err != nil {
			if errors.Is(err, domain.ErrStorageUnavailable) {
				log.Error("read balance failed", zap.Error(err))
			}
			return nil, err
		}

		// Computing
		account := &domain.Account{ID: accountID, Balance: prior}
		next, err := account.Apply(amount, tranType)
		if err != nil {
			log.Debug("posting rejected", zap.String("balance", domain.FormatAmount(prior)), zap.Error(err))
			return nil, err
		}

		// Committing: 不再受呼叫端取消影響
		commitCtx := context.WithoutCancel(ctx)
		tran := &domain.Transaction{
			RefID:       refID,
			AccountID:   accountID,
			Amount:      amount,
			Type:        tranType,
			Description: description,
		}
		err = c.store.SetBalance(commitCtx, accountID, next, prior, tran)
		switch {
		case err == nil:
			log.Debug("posting committed",
				zap.Uint64("transaction_id", tran.ID),
				zap.String("new_balance", domain.FormatAmount(next)),
				zap.Int("attempt", attempt),
			)
			c.publish(commitCtx, tran, next)
			return &Result{NewBalance: next, Transaction: *tran}, nil
		case errors.Is(err, domain.ErrConflict):
			log.Debug("balance changed concurrently, retrying", zap.Int("attempt", attempt))
			continue
		default:
			log.Error("commit failed", zap.Error(err))
			return nil, err
		}
	}

	log.Warn("posting gave up after retries", zap.Int("attempts", c.cfg.MaxAttempts))
	return nil, domain.ErrContention
}

// ListRecent 依提交時間由新到舊回傳最多 limit 筆交易
func (c *CoreUseCase) ListRecent(ctx context.Context, accountID int64, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = c.cfg.DefaultListLimit
	}
	if limit > c.cfg.MaxListLimit {
		limit = c.cfg.MaxListLimit
	}
	trans, err := c.store.ListTransactions(ctx, accountID, limit)
	if err != nil {
		return nil, err
	}
	if trans == nil {
		trans = []domain.Transaction{}
	}
	return trans, nil
}

// Reconcile 以完整交易紀錄重算餘額並與儲存的餘額比對
// 讀取期間若餘額被修改會重新讀取，最多 MaxAttempts 次
func (c *CoreUseCase) Reconcile(ctx context.Context, accountID int64) (*Reconciliation, error) {
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		before, err := c.store.GetBalance(ctx, accountID)
		if err != nil {
			return nil, err
		}
		trans, err := c.store.ListTransactions(ctx, accountID, 0)
		if err != nil {
			return nil, err
		}
		after, err := c.store.GetBalance(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if !before.Equal(after) {
			continue
		}

		rec := &Reconciliation{
			AccountID:     accountID,
			StoredBalance: after,
			LedgerBalance: domain.SumSigned(trans),
			Transactions:  len(trans),
		}
		if !rec.Consistent() {
			c.logger.Error("ledger out of balance",
				zap.Int64("account_id", accountID),
				zap.String("stored", domain.FormatAmount(rec.StoredBalance)),
				zap.String("ledger", domain.FormatAmount(rec.LedgerBalance)),
			)
		}
		return rec, nil
	}
	return nil, domain.ErrContention
}

func (c *CoreUseCase) backoff(ctx context.Context, attempt int) error {
	if c.cfg.RetryBackoff <= 0 {
		return nil
	}
	timer := time.NewTimer(time.Duration(attempt-1) * c.cfg.RetryBackoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// publish 發布提交事件，失敗只記錄不影響結果
func (c *CoreUseCase) publish(ctx context.Context, tran *domain.Transaction, newBalance decimal.Decimal) {
	event := domain.NewTransactionCommitted(tran, newBalance)
	// ctx 已脫離呼叫端的取消，broker 卡住時以 PublishTimeout 為上限
	ctx, cancel := context.WithTimeout(ctx, c.cfg.PublishTimeout)
	defer cancel()
	if err := c.publisher.PublishTransactionCommitted(ctx, event); err != nil {
		c.metrics.IncPublishError()
		c.logger.Warn("publish transaction committed failed",
			zap.Uint64("transaction_id", tran.ID),
			zap.Error(err),
		)
	}
}
