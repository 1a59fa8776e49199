package domain

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount 金額必須為正數且最多兩位小數
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidType 交易類型不合法
	ErrInvalidType = errors.New("invalid transaction type")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrInsufficientFunds 餘額不足
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrConflict 條件寫入失敗：餘額已被其他交易修改
	// 只在 Store 與 Ledger 之間流動，不會回傳給呼叫端
	ErrConflict = errors.New("balance changed concurrently")

	// ErrContention 重試次數用盡
	ErrContention = errors.New("too much contention on account")

	// ErrStorageUnavailable 底層儲存失敗
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// Kind 錯誤種類，給 log / metrics / transport 使用
type Kind string

const (
	KindOK                 Kind = "ok"
	KindInvalidAmount      Kind = "invalid_amount"
	KindInvalidType        Kind = "invalid_type"
	KindAccountNotFound    Kind = "account_not_found"
	KindAccountExists      Kind = "account_exists"
	KindInsufficientFunds  Kind = "insufficient_funds"
	KindConflict           Kind = "conflict"
	KindContention         Kind = "contention"
	KindStorageUnavailable Kind = "storage_unavailable"
	KindCanceled           Kind = "canceled"
	KindUnknown            Kind = "unknown"
)

var kinds = []struct {
	err  error
	kind Kind
}{
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrInvalidType, KindInvalidType},
	{ErrAccountNotFound, KindAccountNotFound},
	{ErrAccountAlreadyExists, KindAccountExists},
	{ErrInsufficientFunds, KindInsufficientFunds},
	{ErrConflict, KindConflict},
	{ErrContention, KindContention},
	{ErrStorageUnavailable, KindStorageUnavailable},
}

// KindOf 將錯誤對應到種類，nil 為 KindOK
func KindOf(err error) Kind {
	if err == nil {
		return KindOK
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCanceled
	}
	return KindUnknown
}

// ErrorOf 由種類取回對應的 sentinel error，找不到回傳 nil
func ErrorOf(kind Kind) error {
	for _, k := range kinds {
		if k.kind == kind {
			return k.err
		}
	}
	return nil
}

// StorageError 將底層儲存錯誤包成 ErrStorageUnavailable
// context 取消/逾時與已知的 domain 錯誤原樣回傳
func StorageError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}
