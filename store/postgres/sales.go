package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
)

const saleColumns = `id, store_id, device_id, product_id, sold_at`

func scanSale(row pgx.Row) (models.Sale, error) {
	var sale models.Sale
	err := row.Scan(&sale.ID, &sale.StoreID, &sale.DeviceID, &sale.ProductID, &sale.SoldAt)
	return sale, err
}

func (s *Store) SalesFor(ctx context.Context, storeID int64, ids []string) ([]models.Sale, error) {
	if len(ids) == 0 {
		return []models.Sale{}, nil
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE store_id = $1 AND btrim(device_id) = ANY($2)`, storeID, ids)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	sales, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Sale, error) {
		return scanSale(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan sales: %w", err)
	}
	return sales, nil
}

// RecordSale inserts the sale and, when a product of the store holds the
// device, applies fn to that product in the same transaction.
func (s *Store) RecordSale(ctx context.Context, sale models.Sale, fn store.ProductMutation) (models.Sale, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var productID int64
		err := tx.QueryRow(ctx,
			`SELECT product_id FROM product_devices WHERE store_id = $1 AND device_id = $2`,
			sale.StoreID, sale.DeviceID,
		).Scan(&productID)
		switch {
		case err == nil:
			sale.ProductID = &productID
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("find device owner: %w", err)
		}

		inserted, err := scanSale(tx.QueryRow(ctx, `
			INSERT INTO sales (store_id, device_id, product_id, sold_at)
			VALUES ($1, $2, $3, $4)
			RETURNING `+saleColumns,
			sale.StoreID, sale.DeviceID, sale.ProductID, sale.SoldAt))
		if err != nil {
			if _, ok := isUniqueViolation(err, saleKey); ok {
				return &models.ConflictError{Field: "device_id", Values: []string{sale.DeviceID}, Msg: "device already sold"}
			}
			return fmt.Errorf("insert sale: %w", err)
		}
		sale = inserted

		if sale.ProductID == nil {
			return nil
		}
		_, _, err = mutate(ctx, tx, sale.StoreID, *sale.ProductID, fn)
		return err
	})
	if err != nil {
		return models.Sale{}, err
	}
	return sale, nil
}
