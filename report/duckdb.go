package report

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/shopspring/decimal"
)

var schema = []string{
	`CREATE OR REPLACE TABLE ledger (
		store_id BIGINT,
		debt_id BIGINT,
		customer_id BIGINT,
		customer_name VARCHAR,
		product_name VARCHAR,
		balance_mode VARCHAR,
		owed DECIMAL(14,2),
		paid_total DECIMAL(14,2),
		remaining DECIMAL(14,2),
		status VARCHAR,
		payment_count INTEGER,
		last_payment_date TIMESTAMPTZ,
		drift BOOLEAN
	)`,
	`CREATE OR REPLACE TABLE products (
		store_id BIGINT,
		product_id BIGINT,
		name VARCHAR,
		supplier VARCHAR,
		purchase_price DECIMAL(14,2),
		selling_price DECIMAL(14,2),
		devices INTEGER,
		available_qty INTEGER,
		quantity_sold INTEGER
	)`,
	`CREATE OR REPLACE TABLE expenses (
		store_id BIGINT,
		expense_id BIGINT,
		expense_date DATE,
		expense_type VARCHAR,
		amount DECIMAL(14,2)
	)`,
}

// StatusTotal is one line of the per-status breakdown computed in DuckDB.
type StatusTotal struct {
	Status    string          `json:"status"`
	Debts     int             `json:"debts"`
	Remaining decimal.Decimal `json:"remaining"`
}

// Export writes ds into the DuckDB file at path, replacing earlier tables, and
// returns the per-status breakdown queried back from it.
func Export(ctx context.Context, path string, ds Dataset) ([]StatusTotal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating report directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening report database: %w", err)
	}
	defer db.Close()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("creating report table: %w", err)
		}
	}
	if err := load(ctx, db, ds); err != nil {
		return nil, err
	}

	totals, err := statusTotals(ctx, db)
	if err != nil {
		return nil, err
	}
	slog.Info("report exported", "path", path, "store_id", ds.StoreID,
		"debts", len(ds.Ledger), "products", len(ds.Products), "expenses", len(ds.Expenses))
	return totals, nil
}

func load(ctx context.Context, db *sql.DB, ds Dataset) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin report load: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insert := func(query string, args ...any) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("loading %s: %w", strings.Fields(query)[2], err)
		}
		return nil
	}

	for _, r := range ds.Ledger {
		var lastPaid sql.NullTime
		if r.LastPaymentDate != nil {
			lastPaid = sql.NullTime{Time: *r.LastPaymentDate, Valid: true}
		}
		err := insert(`INSERT INTO ledger VALUES (?, ?, ?, ?, ?, ?, CAST(? AS DECIMAL(14,2)), CAST(? AS DECIMAL(14,2)),
			CAST(? AS DECIMAL(14,2)), ?, ?, ?, ?)`,
			ds.StoreID, r.ID, r.CustomerID, r.CustomerName, r.ProductName, string(r.BalanceMode),
			r.Owed.String(), r.PaidTotal.String(), r.Remaining.String(), string(r.Status), r.PaymentCount,
			lastPaid, r.Drift)
		if err != nil {
			return err
		}
	}

	snaps := make(map[int64][2]int, len(ds.Snapshots))
	for _, sn := range ds.Snapshots {
		snaps[sn.ProductID] = [2]int{sn.AvailableQty, sn.QuantitySold}
	}
	for _, p := range ds.Products {
		sn := snaps[p.ID]
		err := insert(`INSERT INTO products VALUES (?, ?, ?, ?, CAST(? AS DECIMAL(14,2)), CAST(? AS DECIMAL(14,2)), ?, ?, ?)`,
			ds.StoreID, p.ID, p.Name, p.Supplier, p.PurchasePrice.String(), p.SellingPrice.String(),
			len(p.DeviceIDs), sn[0], sn[1])
		if err != nil {
			return err
		}
	}

	for _, e := range ds.Expenses {
		err := insert(`INSERT INTO expenses VALUES (?, ?, CAST(? AS DATE), ?, CAST(? AS DECIMAL(14,2)))`,
			ds.StoreID, e.ID, e.ExpenseDate, e.ExpenseType, e.Amount.String())
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit report load: %w", err)
	}
	return nil
}

func statusTotals(ctx context.Context, db *sql.DB) ([]StatusTotal, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT status, count(*), CAST(COALESCE(sum(remaining), 0) AS VARCHAR)
		FROM ledger
		GROUP BY status
		ORDER BY status`)
	if err != nil {
		return nil, fmt.Errorf("querying status totals: %w", err)
	}
	defer rows.Close()

	var out []StatusTotal
	for rows.Next() {
		var t StatusTotal
		var remaining string
		if err := rows.Scan(&t.Status, &t.Debts, &remaining); err != nil {
			return nil, fmt.Errorf("scanning status totals: %w", err)
		}
		if t.Remaining, err = decimal.NewFromString(remaining); err != nil {
			return nil, fmt.Errorf("parsing status total: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
