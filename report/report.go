// Package report aggregates a store's ledger, inventory and expenses for the
// dashboard and for offline analysis in DuckDB.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/satheeshds/trackey/ledger"
	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
	"github.com/shopspring/decimal"
)

// Dataset is everything one store holds, with the ledger already reconciled.
type Dataset struct {
	StoreID   int64
	Ledger    []models.LedgerRow
	Products  []models.Product
	Snapshots []models.InventorySnapshot
	Expenses  []models.Expense
}

type Summary struct {
	Debts         int             `json:"debts"`
	Owing         int             `json:"owing"`
	Partial       int             `json:"partial"`
	Paid          int             `json:"paid"`
	Outstanding   decimal.Decimal `json:"outstanding"`
	Collected     decimal.Decimal `json:"collected"`
	Overpaid      decimal.Decimal `json:"overpaid"`
	Drifting      int             `json:"drifting"`
	Products      int             `json:"products"`
	Devices       int             `json:"devices"`
	DevicesSold   int             `json:"devices_sold"`
	DevicesInShop int             `json:"devices_available"`
	Expenses      int             `json:"expenses"`
	ExpenseTotal  decimal.Decimal `json:"expense_total"`
	GeneratedAt   time.Time       `json:"generated_at"`
}

// Collect reads the whole of one store.
func Collect(ctx context.Context, st store.Store, storeID int64) (Dataset, error) {
	ds := Dataset{StoreID: storeID}

	debts, _, err := st.ListDebts(ctx, storeID, store.DebtFilter{})
	if err != nil {
		return ds, fmt.Errorf("collect debts: %w", err)
	}
	payments, err := st.ListPayments(ctx, storeID, nil)
	if err != nil {
		return ds, fmt.Errorf("collect payments: %w", err)
	}
	ds.Ledger = ledger.ComputeLedgerView(debts, payments)

	if ds.Products, _, err = st.ListProducts(ctx, storeID, store.ProductFilter{}); err != nil {
		return ds, fmt.Errorf("collect products: %w", err)
	}
	if ds.Snapshots, err = st.ListSnapshots(ctx, storeID); err != nil {
		return ds, fmt.Errorf("collect snapshots: %w", err)
	}
	if ds.Expenses, err = st.ListExpenses(ctx, storeID, ""); err != nil {
		return ds, fmt.Errorf("collect expenses: %w", err)
	}
	return ds, nil
}

// Summarize totals a dataset.
func Summarize(ds Dataset, now time.Time) Summary {
	s := Summary{
		Outstanding:  decimal.Zero,
		Collected:    decimal.Zero,
		Overpaid:     decimal.Zero,
		ExpenseTotal: decimal.Zero,
		GeneratedAt:  now,
	}

	for _, r := range ds.Ledger {
		s.Debts++
		switch r.Status {
		case models.StatusOwing:
			s.Owing++
		case models.StatusPartial:
			s.Partial++
		case models.StatusPaid:
			s.Paid++
		}
		s.Collected = s.Collected.Add(r.PaidTotal)
		if r.Remaining.IsPositive() {
			s.Outstanding = s.Outstanding.Add(r.Remaining)
		} else {
			s.Overpaid = s.Overpaid.Sub(r.Remaining)
		}
		if r.Drift {
			s.Drifting++
		}
	}

	for _, p := range ds.Products {
		s.Products++
		s.Devices += len(p.DeviceIDs)
	}
	for _, sn := range ds.Snapshots {
		s.DevicesSold += sn.QuantitySold
		s.DevicesInShop += sn.AvailableQty
	}

	for _, e := range ds.Expenses {
		s.Expenses++
		s.ExpenseTotal = s.ExpenseTotal.Add(e.Amount)
	}
	return s
}
