package domain

import "github.com/shopspring/decimal"

// Account 帳戶，餘額永遠 >= 0 且等於交易紀錄加總
type Account struct {
	ID      int64
	Balance decimal.Decimal
}

func NewAccount(id int64) *Account {
	return &Account{
		ID:      id,
		Balance: decimal.Zero,
	}
}

// Apply 計算套用一筆交易後的候選餘額 (不修改 Account)
//
// 參數:
//
//	amount: 交易金額 (正數)
//	tranType: 交易類型
//
// 回傳:
//
//	decimal.Decimal: 候選餘額
//	error: 提款後為負數時回傳 ErrInsufficientFunds
func (a *Account) Apply(amount decimal.Decimal, tranType TransactionType) (decimal.Decimal, error) {
	next := a.Balance.Add(tranType.Signed(amount))
	if tranType == TransactionTypeWithdraw && next.IsNegative() {
		return a.Balance, ErrInsufficientFunds
	}
	return next, nil
}

// NormalizeBalance 將 NULL / 未設定的餘額正規化為 0.00
func NormalizeBalance(balance decimal.NullDecimal) decimal.Decimal {
	if !balance.Valid {
		return decimal.Zero
	}
	return balance.Decimal
}
