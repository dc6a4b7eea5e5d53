package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BalanceMode selects how a debt's balance is kept.
type BalanceMode string

const (
	// BalanceStored keeps a running deposited/remaining snapshot on the debt row.
	// Payments correlate to it by (customer, product).
	BalanceStored BalanceMode = "stored"
	// BalanceDerived computes the balance purely from payment history keyed by debt id.
	BalanceDerived BalanceMode = "derived"
)

// Status is the derived settlement state of a debt. It is never persisted.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPartial Status = "partial"
	StatusOwing   Status = "owing"
)

// Debt is an obligation a customer owes the store, optionally tied to a product.
type Debt struct {
	ID           int64           `json:"id"`
	StoreID      int64           `json:"store_id"`
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	PhoneNumber  *string         `json:"phone_number"`
	ProductID    *int64          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Supplier     *string         `json:"supplier"`
	DeviceIDs    []string        `json:"device_ids"`
	Qty          int             `json:"qty"`
	Owed         decimal.Decimal `json:"owed"`
	Deposited    decimal.Decimal `json:"deposited"`
	Remaining    decimal.Decimal `json:"remaining_balance"` // owed minus everything paid, as of the last commit
	BalanceMode  BalanceMode     `json:"balance_mode"`
	PaidTo       *string         `json:"paid_to"` // channel of the latest payment
	Date         *time.Time      `json:"date"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Key is the (customer, product) compound key used by stored-balance debts.
func (d Debt) Key() ObligationKey {
	k := ObligationKey{CustomerID: d.CustomerID}
	if d.ProductID != nil {
		k.ProductID = *d.ProductID
	}
	return k
}

// ObligationKey identifies a debtor/obligation pair.
type ObligationKey struct {
	CustomerID int64
	ProductID  int64 // 0 when the debt is not tied to a product
}

// DebtInput is used for originating debts.
type DebtInput struct {
	CustomerID   int64           `json:"customer_id" validate:"gt=0"`
	CustomerName string          `json:"customer_name" validate:"required,max=180"`
	PhoneNumber  *string         `json:"phone_number"`
	ProductID    *int64          `json:"product_id"`
	ProductName  string          `json:"product_name" validate:"max=200"`
	Supplier     *string         `json:"supplier"`
	DeviceIDs    []string        `json:"device_ids"`
	Qty          int             `json:"qty" validate:"gte=0"`
	Owed         decimal.Decimal `json:"owed" validate:"gt=0"`
	Deposited    decimal.Decimal `json:"deposited"`
	BalanceMode  BalanceMode     `json:"balance_mode" validate:"omitempty,oneof=stored derived"`
}

func (d *DebtInput) Validate() string {
	if msg := firstViolation(d); msg != "" {
		return msg
	}
	if d.Deposited.IsNegative() {
		return "deposited must be non-negative"
	}
	if d.Deposited.GreaterThan(d.Owed) {
		return "deposited must not exceed owed"
	}
	if d.BalanceMode == "" {
		d.BalanceMode = BalanceDerived
	}
	return ""
}
