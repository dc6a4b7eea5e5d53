package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment is one immutable settlement event against a debt.
type Payment struct {
	ID             int64           `json:"id"`
	StoreID        int64           `json:"store_id"`
	DebtID         int64           `json:"debt_id"`
	CustomerID     int64           `json:"customer_id"`
	ProductID      *int64          `json:"product_id"`
	Amount         decimal.Decimal `json:"amount_paid"`
	PaidTo         *string         `json:"paid_to"`
	PaymentDate    time.Time       `json:"payment_date"`
	IdempotencyKey string          `json:"idempotency_key"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Key returns the compound key this payment settles.
func (p Payment) Key() ObligationKey {
	k := ObligationKey{CustomerID: p.CustomerID}
	if p.ProductID != nil {
		k.ProductID = *p.ProductID
	}
	return k
}

// PaymentInput is the request body for recording a payment. Amount is kept as
// text so that non-numeric input is reported as a format error.
type PaymentInput struct {
	Amount         string  `json:"amount"`
	PaidTo         *string `json:"paid_to"`
	IdempotencyKey string  `json:"idempotency_key"`
}

// LedgerRow is a debt enriched with totals derived from its payment history.
type LedgerRow struct {
	Debt
	PaidTotal       decimal.Decimal `json:"paid_total"`
	// Remaining is owed - PaidTotal recomputed from history. It agrees with the
	// remaining_balance snapshot unless Drift is set.
	Remaining       decimal.Decimal `json:"remaining"`
	LastPaymentDate *time.Time      `json:"last_payment_date"`
	Status          Status          `json:"status"`
	PaymentCount    int             `json:"payment_count"`
	// Drift is set when a stored-balance debt's deposited snapshot disagrees
	// with the sum of its payment history.
	Drift           bool            `json:"drift,omitempty"`
}
