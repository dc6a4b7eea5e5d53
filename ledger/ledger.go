// Package ledger reconciles debts with their payment history.
//
// The functions in this file are pure: they never touch the store and never
// mutate their inputs. Service wires them to a store.DebtStore.
package ledger

import (
	"slices"
	"strings"
	"time"

	"github.com/satheeshds/trackey/models"
	"github.com/shopspring/decimal"
)

// StatusOf classifies a balance. An overpaid debt (negative remaining) is paid.
func StatusOf(remaining, paidTotal decimal.Decimal) models.Status {
	switch {
	case !remaining.IsPositive():
		return models.StatusPaid
	case paidTotal.IsPositive():
		return models.StatusPartial
	default:
		return models.StatusOwing
	}
}

// ComputeLedgerView merges debts with their payments. Derived-balance debts
// collect payments by debt id; stored-balance debts by (customer, product).
// Remaining is owed minus the payment sum and is not clamped, so overpayments
// stay visible as a negative balance. Rows come back unresolved first, input
// order otherwise.
func ComputeLedgerView(debts []models.Debt, payments []models.Payment) []models.LedgerRow {
	byDebt := map[int64][]models.Payment{}
	byKey := map[models.ObligationKey][]models.Payment{}
	for _, p := range payments {
		byDebt[p.DebtID] = append(byDebt[p.DebtID], p)
		byKey[p.Key()] = append(byKey[p.Key()], p)
	}

	rows := make([]models.LedgerRow, 0, len(debts))
	for _, d := range debts {
		history := byDebt[d.ID]
		if d.BalanceMode == models.BalanceStored {
			history = byKey[d.Key()]
		}
		rows = append(rows, buildRow(d, history))
	}
	SortUnresolvedFirst(rows)
	return rows
}

func buildRow(d models.Debt, history []models.Payment) models.LedgerRow {
	row := models.LedgerRow{Debt: d, PaidTotal: decimal.Zero, PaymentCount: len(history)}
	row.DeviceIDs = slices.Clone(d.DeviceIDs)

	var last time.Time
	var lastChannel *string
	for _, p := range history {
		row.PaidTotal = row.PaidTotal.Add(p.Amount)
		if p.PaymentDate.After(last) {
			last = p.PaymentDate
			lastChannel = p.PaidTo
		}
	}
	if !last.IsZero() {
		row.LastPaymentDate = &last
		if row.PaidTo == nil {
			row.PaidTo = lastChannel
		}
	}
	row.Remaining = d.Owed.Sub(row.PaidTotal)
	row.Status = StatusOf(row.Remaining, row.PaidTotal)
	if d.BalanceMode == models.BalanceStored {
		row.Drift = !d.Deposited.Equal(row.PaidTotal)
	}
	return row
}

// SortUnresolvedFirst moves debts with a positive balance ahead of settled ones,
// keeping the relative order within each group.
func SortUnresolvedFirst(rows []models.LedgerRow) {
	slices.SortStableFunc(rows, func(a, b models.LedgerRow) int {
		ao, bo := a.Remaining.IsPositive(), b.Remaining.IsPositive()
		switch {
		case ao && !bo:
			return -1
		case !ao && bo:
			return 1
		}
		return 0
	})
}

// Filter keeps rows whose customer, product, device ids or payment channel
// contain q, case-insensitively.
func Filter(rows []models.LedgerRow, q string) []models.LedgerRow {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return rows
	}
	out := make([]models.LedgerRow, 0, len(rows))
	for _, r := range rows {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(r models.LedgerRow, q string) bool {
	if strings.Contains(strings.ToLower(r.CustomerName), q) || strings.Contains(strings.ToLower(r.ProductName), q) {
		return true
	}
	for _, id := range r.DeviceIDs {
		if strings.Contains(strings.ToLower(id), q) {
			return true
		}
	}
	return r.PaidTo != nil && strings.Contains(strings.ToLower(*r.PaidTo), q)
}

// ParseAmount reads a payment amount typed by a user.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, models.NewValidation(models.KindFormat, "amount", "amount is required")
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, models.NewValidation(models.KindFormat, "amount", "amount must be a number", raw)
	}
	if !amount.IsPositive() {
		return decimal.Zero, models.NewValidation(models.KindFormat, "amount", "amount must be greater than zero", raw)
	}
	return amount, nil
}

// CheckPayment enforces 0 < amount <= remaining.
func CheckPayment(remaining, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return models.NewValidation(models.KindFormat, "amount", "amount must be greater than zero", amount.String())
	}
	if amount.GreaterThan(remaining) {
		return &models.ValidationError{
			Kind:   models.KindLimit,
			Field:  "amount",
			Msg:    "amount exceeds remaining balance",
			Values: []string{amount.StringFixed(2) + " > " + remaining.StringFixed(2)},
		}
	}
	return nil
}
