package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/satheeshds/trackey/models"
)

const expenseColumns = `id, store_id, to_char(expense_date, 'YYYY-MM-DD'), expense_type, amount, description,
	created_by_user, created_by_owner, created_at`

func scanExpense(row pgx.Row) (models.Expense, error) {
	var e models.Expense
	err := row.Scan(&e.ID, &e.StoreID, &e.ExpenseDate, &e.ExpenseType, &e.Amount, &e.Description,
		&e.CreatedByUser, &e.CreatedByOwner, &e.CreatedAt)
	return e, err
}

func (s *Store) ListExpenses(ctx context.Context, storeID int64, search string) ([]models.Expense, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE store_id = $1
			AND ($2 = '' OR expense_type ILIKE '%' || $2 || '%' OR description ILIKE '%' || $2 || '%')
		ORDER BY expense_date DESC, id DESC`,
		storeID, search,
	)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	expenses, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Expense, error) {
		return scanExpense(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan expenses: %w", err)
	}
	return expenses, nil
}

func (s *Store) GetExpense(ctx context.Context, storeID, id int64) (models.Expense, error) {
	e, err := scanExpense(s.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND store_id = $2`, id, storeID))
	if err != nil {
		return models.Expense{}, notFound(err)
	}
	return e, nil
}

func (s *Store) CreateExpense(ctx context.Context, e models.Expense) (models.Expense, error) {
	out, err := scanExpense(s.pool.QueryRow(ctx, `
		INSERT INTO expenses (store_id, expense_date, expense_type, amount, description, created_by_user, created_by_owner)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7)
		RETURNING `+expenseColumns,
		e.StoreID, e.ExpenseDate, e.ExpenseType, e.Amount, e.Description, e.CreatedByUser, e.CreatedByOwner))
	if err != nil {
		return models.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return out, nil
}

// UpdateExpense never touches the creator columns.
func (s *Store) UpdateExpense(ctx context.Context, e models.Expense) (models.Expense, error) {
	out, err := scanExpense(s.pool.QueryRow(ctx, `
		UPDATE expenses SET expense_date = $3::date, expense_type = $4, amount = $5, description = $6
		WHERE id = $1 AND store_id = $2
		RETURNING `+expenseColumns,
		e.ID, e.StoreID, e.ExpenseDate, e.ExpenseType, e.Amount, e.Description))
	if err != nil {
		return models.Expense{}, notFound(err)
	}
	return out, nil
}

func (s *Store) DeleteExpense(ctx context.Context, storeID, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND store_id = $2`, id, storeID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
