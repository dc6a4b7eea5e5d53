package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
)

const productColumns = `p.id, p.store_id, p.name, p.description, p.purchase_price, p.selling_price,
	p.purchase_qty, p.suppliers_name,
	COALESCE((SELECT array_agg(d.device_id ORDER BY d.position) FROM product_devices d WHERE d.product_id = p.id), '{}'),
	p.created_at`

const snapshotColumns = `product_id, store_id, available_qty, quantity_sold, last_updated`

func scanProduct(row pgx.Row) (models.Product, error) {
	var p models.Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.PurchasePrice, &p.SellingPrice,
		&p.PurchaseQty, &p.Supplier, &p.DeviceIDs, &p.CreatedAt)
	return p, err
}

func scanSnapshot(row pgx.Row) (models.InventorySnapshot, error) {
	var sn models.InventorySnapshot
	err := row.Scan(&sn.ProductID, &sn.StoreID, &sn.AvailableQty, &sn.QuantitySold, &sn.LastUpdated)
	return sn, err
}

func (s *Store) ListProducts(ctx context.Context, storeID int64, f store.ProductFilter) ([]models.Product, int, error) {
	const where = `
		WHERE p.store_id = $1 AND ($2 = '' OR p.name ILIKE '%' || $2 || '%' OR EXISTS (
			SELECT 1 FROM product_devices d WHERE d.product_id = p.id AND d.device_id LIKE '%' || $2 || '%'))`

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM products p`+where, storeID, f.Search).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+productColumns+` FROM products p`+where+`
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT NULLIF($3, 0) OFFSET $4`,
		storeID, f.Search, f.Limit, f.Offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("query products: %w", err)
	}
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scan products: %w", err)
	}
	return products, total, nil
}

func (s *Store) GetProduct(ctx context.Context, storeID, id int64) (models.Product, error) {
	p, err := scanProduct(s.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = $1 AND p.store_id = $2`, id, storeID))
	if err != nil {
		return models.Product{}, notFound(err)
	}
	return p, nil
}

func (s *Store) DeviceIDsOutside(ctx context.Context, storeID, excludeProductID int64) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT device_id FROM product_devices WHERE store_id = $1 AND product_id <> $2`, storeID, excludeProductID)
	if err != nil {
		return nil, fmt.Errorf("query device ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan device ids: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

// replaceDevices rewrites a product's identifier rows. A collision with another
// product surfaces as a ConflictError naming the identifier.
func replaceDevices(ctx context.Context, tx pgx.Tx, storeID, productID int64, ids []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM product_devices WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("clear devices: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(ids))
	for i, id := range ids {
		rows = append(rows, []any{storeID, productID, id, i})
	}
	_, err := tx.CopyFrom(ctx,
		pgx.Identifier{"product_devices"},
		[]string{"store_id", "product_id", "device_id", "position"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		if pgErr, ok := isUniqueViolation(err, deviceKey); ok {
			return &models.ConflictError{Field: "device_id", Values: conflictValue(pgErr), Msg: deviceTaken}
		}
		return fmt.Errorf("insert devices: %w", err)
	}
	return nil
}

func saveSnapshot(ctx context.Context, tx pgx.Tx, sn models.InventorySnapshot) (models.InventorySnapshot, error) {
	out, err := scanSnapshot(tx.QueryRow(ctx, `
		INSERT INTO inventory_snapshots (product_id, store_id, available_qty, quantity_sold, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (product_id) DO UPDATE SET
			available_qty = EXCLUDED.available_qty,
			quantity_sold = EXCLUDED.quantity_sold,
			last_updated  = EXCLUDED.last_updated
		RETURNING `+snapshotColumns,
		sn.ProductID, sn.StoreID, sn.AvailableQty, sn.QuantitySold, sn.LastUpdated))
	if err != nil {
		return models.InventorySnapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	return out, nil
}

func getSnapshot(ctx context.Context, q querier, storeID, productID int64) (*models.InventorySnapshot, error) {
	sn, err := scanSnapshot(q.QueryRow(ctx,
		`SELECT `+snapshotColumns+` FROM inventory_snapshots WHERE product_id = $1 AND store_id = $2`, productID, storeID))
	switch {
	case err == nil:
		return &sn, nil
	case errors.Is(err, pgx.ErrNoRows):
		return nil, nil
	}
	return nil, fmt.Errorf("get snapshot: %w", err)
}

func (s *Store) CreateProducts(ctx context.Context, storeID int64, products []models.Product, snap store.SnapshotFunc) ([]models.Product, error) {
	out := make([]models.Product, 0, len(products))
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		for _, p := range products {
			p.StoreID = storeID
			err := tx.QueryRow(ctx, `
				INSERT INTO products (store_id, name, description, purchase_price, selling_price, purchase_qty, suppliers_name)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id, created_at`,
				storeID, p.Name, p.Description, p.PurchasePrice, p.SellingPrice, p.PurchaseQty, p.Supplier,
			).Scan(&p.ID, &p.CreatedAt)
			if err != nil {
				return fmt.Errorf("insert product: %w", err)
			}
			if err := replaceDevices(ctx, tx, storeID, p.ID, p.DeviceIDs); err != nil {
				return err
			}
			sn := snap(p, nil)
			sn.ProductID, sn.StoreID = p.ID, storeID
			if _, err := saveSnapshot(ctx, tx, sn); err != nil {
				return err
			}
			out = append(out, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mutate applies fn to the locked product and persists the result within tx.
func mutate(ctx context.Context, tx pgx.Tx, storeID, productID int64, fn store.ProductMutation) (models.Product, models.InventorySnapshot, error) {
	cur, err := scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products p WHERE p.id = $1 AND p.store_id = $2 FOR UPDATE`, productID, storeID))
	if err != nil {
		return models.Product{}, models.InventorySnapshot{}, notFound(err)
	}
	prev, err := getSnapshot(ctx, tx, storeID, productID)
	if err != nil {
		return models.Product{}, models.InventorySnapshot{}, err
	}

	p := cur
	p.DeviceIDs = append([]string(nil), cur.DeviceIDs...)
	next, err := fn(&p, prev)
	if err != nil {
		return models.Product{}, models.InventorySnapshot{}, err
	}
	if next == nil {
		var sn models.InventorySnapshot
		if prev != nil {
			sn = *prev
		}
		return cur, sn, nil
	}

	_, err = tx.Exec(ctx, `
		UPDATE products SET name = $3, description = $4, purchase_price = $5, selling_price = $6,
			purchase_qty = $7, suppliers_name = $8
		WHERE id = $1 AND store_id = $2`,
		productID, storeID, p.Name, p.Description, p.PurchasePrice, p.SellingPrice, p.PurchaseQty, p.Supplier)
	if err != nil {
		return models.Product{}, models.InventorySnapshot{}, fmt.Errorf("update product: %w", err)
	}
	if err := replaceDevices(ctx, tx, storeID, productID, p.DeviceIDs); err != nil {
		return models.Product{}, models.InventorySnapshot{}, err
	}
	next.ProductID, next.StoreID = productID, storeID
	sn, err := saveSnapshot(ctx, tx, *next)
	if err != nil {
		return models.Product{}, models.InventorySnapshot{}, err
	}
	p.ID, p.StoreID = productID, storeID
	return p, sn, nil
}

func (s *Store) MutateProduct(ctx context.Context, storeID, productID int64, fn store.ProductMutation) (models.Product, models.InventorySnapshot, error) {
	var p models.Product
	var sn models.InventorySnapshot
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var err error
		p, sn, err = mutate(ctx, tx, storeID, productID, fn)
		return err
	})
	return p, sn, err
}

// DeleteProduct relies on ON DELETE CASCADE for devices and the snapshot.
func (s *Store) DeleteProduct(ctx context.Context, storeID, productID int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM products WHERE id = $1 AND store_id = $2`, productID, storeID)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, storeID, productID int64) (models.InventorySnapshot, error) {
	sn, err := getSnapshot(ctx, s.pool, storeID, productID)
	if err != nil {
		return models.InventorySnapshot{}, err
	}
	if sn == nil {
		return models.InventorySnapshot{}, models.ErrNotFound
	}
	return *sn, nil
}

func (s *Store) ListSnapshots(ctx context.Context, storeID int64) ([]models.InventorySnapshot, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+snapshotColumns+` FROM inventory_snapshots WHERE store_id = $1 ORDER BY product_id`, storeID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	snaps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.InventorySnapshot, error) {
		return scanSnapshot(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return snaps, nil
}
