package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/satheeshds/trackey/db"
	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConflictValue(t *testing.T) {
	err := &pgconn.PgError{
		Code:           uniqueViolation,
		ConstraintName: deviceKey,
		Detail:         "Key (store_id, device_id)=(4, 356789012345678) already exists.",
	}
	pgErr, ok := isUniqueViolation(err, deviceKey)
	require.True(t, ok)
	assert.Equal(t, []string{"356789012345678"}, conflictValue(pgErr))

	_, ok = isUniqueViolation(err, saleKey)
	assert.False(t, ok)
	assert.Nil(t, conflictValue(&pgconn.PgError{}))
}

// newTestStore connects to TEST_DATABASE_URL and gives each test its own
// tenant id, so runs do not see each other's rows.
func newTestStore(t *testing.T) (*Store, int64) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := db.Open(ctx, url, 5)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(pool))
	t.Cleanup(pool.Close)
	return New(pool), time.Now().UnixNano()
}

func TestStore_CommitPaymentSerializes(t *testing.T) {
	st, storeID := newTestStore(t)
	ctx := context.Background()

	d, err := st.CreateDebt(ctx, models.Debt{
		StoreID: storeID, CustomerID: 1, CustomerName: "Ada", Owed: decimal.NewFromInt(100),
		BalanceMode: models.BalanceDerived,
	}, nil)
	require.NoError(t, err)

	amount := decimal.NewFromInt(30)
	check := func(d models.Debt, paid decimal.Decimal) error {
		if amount.GreaterThan(d.Owed.Sub(paid)) {
			return models.NewValidation(models.KindLimit, "amount", "amount exceeds remaining balance")
		}
		return nil
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := st.CommitPayment(ctx, models.Payment{
				StoreID: storeID, DebtID: d.ID, CustomerID: 1, Amount: amount,
				PaymentDate: time.Now(), IdempotencyKey: uuid.NewString(),
			}, check)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, ok)
}

func TestStore_DeviceUniqueness(t *testing.T) {
	st, storeID := newTestStore(t)
	ctx := context.Background()
	snap := func(p models.Product, _ *models.InventorySnapshot) models.InventorySnapshot {
		return models.InventorySnapshot{AvailableQty: len(p.DeviceIDs), LastUpdated: time.Now()}
	}

	_, err := st.CreateProducts(ctx, storeID, []models.Product{{Name: "A14", DeviceIDs: []string{"111111111111111"}}}, snap)
	require.NoError(t, err)

	_, err = st.CreateProducts(ctx, storeID, []models.Product{
		{Name: "Tecno", DeviceIDs: []string{"222222222222222"}},
		{Name: "Itel", DeviceIDs: []string{"111111111111111"}},
	}, snap)
	var ce *models.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"111111111111111"}, ce.Values)

	products, total, err := st.ListProducts(ctx, storeID, store.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "the rejected batch left nothing behind")
	assert.Len(t, products, 1)
}

func TestStore_DebtKeys(t *testing.T) {
	st, storeID := newTestStore(t)
	ctx := context.Background()
	stored := models.Debt{
		StoreID: storeID, CustomerID: 7, CustomerName: "Chidi", Owed: decimal.NewFromInt(1000),
		BalanceMode: models.BalanceStored,
	}

	a, err := st.CreateDebt(ctx, stored, nil)
	require.NoError(t, err)
	stored.Owed = decimal.NewFromInt(500)
	_, err = st.CreateDebt(ctx, stored, nil)
	var ce *models.ConflictError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, "customer_id", ce.Field)

	b, err := st.CreateDebt(ctx, models.Debt{
		StoreID: storeID, CustomerID: 7, CustomerName: "Chidi", Owed: decimal.NewFromInt(500),
		BalanceMode: models.BalanceDerived,
	}, nil)
	require.NoError(t, err)

	pass := func(models.Debt, decimal.Decimal) error { return nil }
	key := uuid.NewString()
	_, _, err = st.CommitPayment(ctx, models.Payment{
		StoreID: storeID, DebtID: a.ID, CustomerID: 7, Amount: decimal.NewFromInt(10),
		PaymentDate: time.Now(), IdempotencyKey: key,
	}, pass)
	require.NoError(t, err)
	_, _, err = st.CommitPayment(ctx, models.Payment{
		StoreID: storeID, DebtID: b.ID, CustomerID: 7, Amount: decimal.NewFromInt(10),
		PaymentDate: time.Now(), IdempotencyKey: key,
	}, pass)
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, "idempotency_key", ce.Field)

	payments, err := st.ListPayments(ctx, storeID, []int64{7})
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}
