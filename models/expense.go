package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Expense represents a store running cost.
type Expense struct {
	ID             int64           `json:"id"`
	StoreID        int64           `json:"store_id"`
	ExpenseDate    string          `json:"expense_date"`
	ExpenseType    string          `json:"expense_type"`
	Amount         decimal.Decimal `json:"amount"`
	Description    *string         `json:"description"`
	CreatedByUser  *int64          `json:"created_by_user"`
	CreatedByOwner *int64          `json:"created_by_owner"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ExpenseInput is used for creating/updating expenses.
type ExpenseInput struct {
	ExpenseDate string          `json:"expense_date" validate:"required,datetime=2006-01-02"`
	ExpenseType string          `json:"expense_type" validate:"required,max=120"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
	Description *string         `json:"description"`
}

func (e *ExpenseInput) Validate() string {
	return firstViolation(e)
}
