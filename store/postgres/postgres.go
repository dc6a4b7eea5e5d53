// Package postgres implements store.Store on PostgreSQL through a pgx pool.
// Every statement filters on store_id. Uniqueness of device identifiers,
// sales and payment idempotency keys is enforced by the schema; the debt row
// lock in CommitPayment serializes payments against the same debt.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
)

const (
	uniqueViolation = "23505"

	deviceKey     = "product_devices_store_device_key"
	saleKey       = "sales_store_device_key"
	idemKey       = "debt_payments_idempotency_key"
	obligationKey = "debts_stored_obligation_key"
	deviceTaken   = "device ids already exist in other products"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Close() { s.pool.Close() }

// withTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op once committed

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error, constraint string) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint {
		return pgErr, true
	}
	return nil, false
}

// conflictValue pulls the offending device id out of a unique violation
// detail such as "Key (store_id, device_id)=(1, 356789012345678) already exists."
func conflictValue(pgErr *pgconn.PgError) []string {
	_, rest, ok := strings.Cut(pgErr.Detail, ")=(")
	if !ok {
		return nil
	}
	rest, _, _ = strings.Cut(rest, ")")
	parts := strings.Split(rest, ", ")
	return []string{parts[len(parts)-1]}
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}
	return err
}
