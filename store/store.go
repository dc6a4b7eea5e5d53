// Package store defines the tenant-scoped record store the ledger and
// inventory services run against. Every method takes the store (tenant) id
// and must never read or write outside it.
package store

import (
	"context"
	"strconv"

	"github.com/satheeshds/trackey/models"
	"github.com/shopspring/decimal"
)

// DebtFilter narrows a debt listing. Zero values mean "no limit".
type DebtFilter struct {
	CustomerID int64
	Limit      int
	Offset     int
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	Search string // product name or device id
	Limit  int
	Offset int
}

// ProductMutation edits a locked product and returns the snapshot to persist.
// Returning a nil snapshot aborts the write without error.
type ProductMutation func(p *models.Product, prev *models.InventorySnapshot) (*models.InventorySnapshot, error)

// SnapshotFunc computes the snapshot for a freshly created product.
type SnapshotFunc func(p models.Product, prev *models.InventorySnapshot) models.InventorySnapshot

// PaymentCheck validates a payment against the locked debt and the amount
// already paid on it: the running deposited snapshot for stored-balance debts,
// the payment-history sum for derived ones. It runs inside the committing
// transaction.
type PaymentCheck func(d models.Debt, paid decimal.Decimal) error

// KeyReusedError reports an idempotency key already spent on another debt.
func KeyReusedError(key string) error {
	return &models.ConflictError{Field: "idempotency_key", Values: []string{key}, Msg: "idempotency key already used for another debt"}
}

// ObligationTakenError reports a second stored-balance debt for the same
// (customer, product) key. Stored-balance payments correlate by that key, so
// it may name one obligation only.
func ObligationTakenError(d models.Debt) error {
	v := []string{strconv.FormatInt(d.CustomerID, 10)}
	if d.ProductID != nil {
		v = append(v, strconv.FormatInt(*d.ProductID, 10))
	}
	return &models.ConflictError{Field: "customer_id", Values: v, Msg: "customer already has a stored-balance debt for this product"}
}

type DebtStore interface {
	ListDebts(ctx context.Context, storeID int64, f DebtFilter) ([]models.Debt, int, error)
	GetDebt(ctx context.Context, storeID, id int64) (models.Debt, error)
	// CreateDebt inserts d and, when opening is non-nil, the initial deposit as
	// its first payment in the same transaction. A tenant holds at most one
	// stored-balance debt per (customer, product) key.
	CreateDebt(ctx context.Context, d models.Debt, opening *models.Payment) (models.Debt, error)
	// ListPayments returns the tenant's payments for the given customers, or
	// all of them when customerIDs is empty.
	ListPayments(ctx context.Context, storeID int64, customerIDs []int64) ([]models.Payment, error)
	// CommitPayment locks the debt, recomputes its balance, runs check and, if
	// it passes, appends p and (for stored-balance debts) updates the running
	// snapshot, all in one transaction. A repeated idempotency key returns the
	// earlier payment untouched before any check runs; a key already used on
	// another debt is a conflict.
	CommitPayment(ctx context.Context, p models.Payment, check PaymentCheck) (models.Payment, models.Debt, error)
}

type ProductStore interface {
	ListProducts(ctx context.Context, storeID int64, f ProductFilter) ([]models.Product, int, error)
	GetProduct(ctx context.Context, storeID, id int64) (models.Product, error)
	// DeviceIDsOutside returns every device id of the tenant not owned by
	// excludeProductID (0 excludes nothing).
	DeviceIDsOutside(ctx context.Context, storeID, excludeProductID int64) (map[string]struct{}, error)
	CreateProducts(ctx context.Context, storeID int64, products []models.Product, snap SnapshotFunc) ([]models.Product, error)
	MutateProduct(ctx context.Context, storeID, productID int64, fn ProductMutation) (models.Product, models.InventorySnapshot, error)
	DeleteProduct(ctx context.Context, storeID, productID int64) error
	GetSnapshot(ctx context.Context, storeID, productID int64) (models.InventorySnapshot, error)
	ListSnapshots(ctx context.Context, storeID int64) ([]models.InventorySnapshot, error)
}

type SaleStore interface {
	// SalesFor returns the sales whose device id is among ids.
	SalesFor(ctx context.Context, storeID int64, ids []string) ([]models.Sale, error)
	// RecordSale appends the sale and applies fn to the owning product in the
	// same transaction. A device can be sold once per tenant.
	RecordSale(ctx context.Context, s models.Sale, fn ProductMutation) (models.Sale, error)
}

type ExpenseStore interface {
	ListExpenses(ctx context.Context, storeID int64, search string) ([]models.Expense, error)
	GetExpense(ctx context.Context, storeID, id int64) (models.Expense, error)
	CreateExpense(ctx context.Context, e models.Expense) (models.Expense, error)
	UpdateExpense(ctx context.Context, e models.Expense) (models.Expense, error)
	DeleteExpense(ctx context.Context, storeID, id int64) error
}

// Store is the full record store.
type Store interface {
	DebtStore
	ProductStore
	SaleStore
	ExpenseStore
	Close()
}
