package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
)

const debtColumns = `id, store_id, customer_id, customer_name, phone_number, product_id, product_name,
	supplier, device_ids, qty, owed, deposited, remaining_balance, balance_mode, paid_to, date, created_at`

const paymentColumns = `id, store_id, debt_id, customer_id, product_id, amount_paid, paid_to,
	payment_date, idempotency_key, created_at`

func scanDebt(row pgx.Row) (models.Debt, error) {
	var d models.Debt
	err := row.Scan(&d.ID, &d.StoreID, &d.CustomerID, &d.CustomerName, &d.PhoneNumber, &d.ProductID,
		&d.ProductName, &d.Supplier, &d.DeviceIDs, &d.Qty, &d.Owed, &d.Deposited, &d.Remaining,
		&d.BalanceMode, &d.PaidTo, &d.Date, &d.CreatedAt)
	return d, err
}

func scanPayment(row pgx.Row) (models.Payment, error) {
	var p models.Payment
	err := row.Scan(&p.ID, &p.StoreID, &p.DebtID, &p.CustomerID, &p.ProductID, &p.Amount, &p.PaidTo,
		&p.PaymentDate, &p.IdempotencyKey, &p.CreatedAt)
	return p, err
}

func (s *Store) ListDebts(ctx context.Context, storeID int64, f store.DebtFilter) ([]models.Debt, int, error) {
	var total int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM debts
		WHERE store_id = $1 AND ($2::bigint = 0 OR customer_id = $2)`,
		storeID, f.CustomerID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count debts: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+debtColumns+` FROM debts
		WHERE store_id = $1 AND ($2::bigint = 0 OR customer_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT NULLIF($3, 0) OFFSET $4`,
		storeID, f.CustomerID, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query debts: %w", err)
	}
	debts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Debt, error) {
		return scanDebt(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan debts: %w", err)
	}
	return debts, total, nil
}

func (s *Store) GetDebt(ctx context.Context, storeID, id int64) (models.Debt, error) {
	d, err := scanDebt(s.pool.QueryRow(ctx,
		`SELECT `+debtColumns+` FROM debts WHERE id = $1 AND store_id = $2`, id, storeID))
	if err != nil {
		return models.Debt{}, notFound(err)
	}
	return d, nil
}

func (s *Store) CreateDebt(ctx context.Context, d models.Debt, opening *models.Payment) (models.Debt, error) {
	d.Remaining = d.Owed.Sub(d.Deposited)
	if d.DeviceIDs == nil {
		d.DeviceIDs = []string{}
	}
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO debts (store_id, customer_id, customer_name, phone_number, product_id, product_name,
				supplier, device_ids, qty, owed, deposited, remaining_balance, balance_mode, paid_to, date)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			RETURNING id, created_at`,
			d.StoreID, d.CustomerID, d.CustomerName, d.PhoneNumber, d.ProductID, d.ProductName,
			d.Supplier, d.DeviceIDs, d.Qty, d.Owed, d.Deposited, d.Remaining, d.BalanceMode, d.PaidTo, d.Date,
		).Scan(&d.ID, &d.CreatedAt)
		if err != nil {
			if _, ok := isUniqueViolation(err, obligationKey); ok {
				return store.ObligationTakenError(d)
			}
			return fmt.Errorf("insert debt: %w", err)
		}
		if opening == nil {
			return nil
		}
		p := *opening
		p.DebtID, p.StoreID = d.ID, d.StoreID
		_, err = insertPayment(ctx, tx, p)
		return err
	})
	if err != nil {
		return models.Debt{}, err
	}
	return d, nil
}

func insertPayment(ctx context.Context, q querier, p models.Payment) (models.Payment, error) {
	err := q.QueryRow(ctx, `
		INSERT INTO debt_payments (store_id, debt_id, customer_id, product_id, amount_paid, paid_to,
			payment_date, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		p.StoreID, p.DebtID, p.CustomerID, p.ProductID, p.Amount, p.PaidTo, p.PaymentDate, p.IdempotencyKey,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		if _, ok := isUniqueViolation(err, idemKey); ok {
			return models.Payment{}, &models.ConflictError{Field: "idempotency_key", Values: []string{p.IdempotencyKey}}
		}
		return models.Payment{}, fmt.Errorf("insert payment: %w", err)
	}
	return p, nil
}

func (s *Store) ListPayments(ctx context.Context, storeID int64, customerIDs []int64) ([]models.Payment, error) {
	if customerIDs == nil {
		customerIDs = []int64{}
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+paymentColumns+` FROM debt_payments
		WHERE store_id = $1 AND (cardinality($2::bigint[]) = 0 OR customer_id = ANY($2))
		ORDER BY payment_date DESC, id DESC`,
		storeID, customerIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	payments, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Payment, error) {
		return scanPayment(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan payments: %w", err)
	}
	return payments, nil
}

// CommitPayment locks the debt row, so concurrent payments on the same debt
// run their balance check one after another against committed totals.
func (s *Store) CommitPayment(ctx context.Context, p models.Payment, check store.PaymentCheck) (models.Payment, models.Debt, error) {
	var saved models.Payment
	var debt models.Debt
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		d, err := scanDebt(tx.QueryRow(ctx,
			`SELECT `+debtColumns+` FROM debts WHERE id = $1 AND store_id = $2 FOR UPDATE`, p.DebtID, p.StoreID))
		if err != nil {
			return notFound(err)
		}

		if p.IdempotencyKey != "" {
			existing, err := scanPayment(tx.QueryRow(ctx,
				`SELECT `+paymentColumns+` FROM debt_payments WHERE store_id = $1 AND idempotency_key = $2`,
				p.StoreID, p.IdempotencyKey))
			switch {
			case err == nil && existing.DebtID != p.DebtID:
				return store.KeyReusedError(p.IdempotencyKey)
			case err == nil:
				saved, debt = existing, d
				return nil
			case !errors.Is(err, pgx.ErrNoRows):
				return fmt.Errorf("lookup idempotency key: %w", err)
			}
		}

		paid := d.Deposited
		if d.BalanceMode == models.BalanceDerived {
			err := tx.QueryRow(ctx, `
				SELECT COALESCE(sum(amount_paid), 0) FROM debt_payments
				WHERE store_id = $1 AND debt_id = $2`, d.StoreID, d.ID,
			).Scan(&paid)
			if err != nil {
				return fmt.Errorf("sum payments: %w", err)
			}
		}
		if err := check(d, paid); err != nil {
			return err
		}

		saved, err = insertPayment(ctx, tx, p)
		if err != nil {
			return err
		}

		if d.BalanceMode == models.BalanceStored {
			d, err = scanDebt(tx.QueryRow(ctx, `
				UPDATE debts SET
					deposited = deposited + $3,
					remaining_balance = owed - (deposited + $3),
					date = $4,
					paid_to = $5
				WHERE id = $1 AND store_id = $2
				RETURNING `+debtColumns,
				d.ID, d.StoreID, p.Amount, p.PaymentDate, p.PaidTo))
			if err != nil {
				return fmt.Errorf("update debt snapshot: %w", err)
			}
		} else {
			d, err = scanDebt(tx.QueryRow(ctx, `
				UPDATE debts SET remaining_balance = owed - $3
				WHERE id = $1 AND store_id = $2
				RETURNING `+debtColumns,
				d.ID, d.StoreID, paid.Add(p.Amount)))
			if err != nil {
				return fmt.Errorf("update remaining balance: %w", err)
			}
		}
		debt = d
		return nil
	})
	if err != nil {
		return models.Payment{}, models.Debt{}, err
	}
	return saved, debt, nil
}
