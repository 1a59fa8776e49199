package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// AmountScale 金額精度：小數點後 2 位
const AmountScale int32 = 2

// ValidateAmount 檢查金額是否為正數且最多兩位小數
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Truncate(AmountScale)) {
		return ErrInvalidAmount
	}
	return nil
}

// ParseAmount 解析外部傳入的金額字串
// NaN / Inf / 空字串等無法解析的值一律視為 ErrInvalidAmount
func ParseAmount(raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}
	return amount, nil
}

// FormatAmount 固定輸出兩位小數，例如 "50.00"
func FormatAmount(amount decimal.Decimal) string {
	return amount.StringFixed(AmountScale)
}
