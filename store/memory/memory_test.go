package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snapFor(p models.Product, _ *models.InventorySnapshot) models.InventorySnapshot {
	return models.InventorySnapshot{AvailableQty: len(p.DeviceIDs)}
}

func TestStore_TenantScoping(t *testing.T) {
	st := New()
	ctx := context.Background()

	d, err := st.CreateDebt(ctx, models.Debt{StoreID: 1, CustomerID: 3, Owed: decimal.NewFromInt(100)}, &models.Payment{
		StoreID: 1, CustomerID: 3, Amount: decimal.NewFromInt(20), IdempotencyKey: "open",
	})
	require.NoError(t, err)

	_, err = st.GetDebt(ctx, 2, d.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	debts, total, err := st.ListDebts(ctx, 2, store.DebtFilter{})
	require.NoError(t, err)
	assert.Empty(t, debts)
	assert.Zero(t, total)

	payments, err := st.ListPayments(ctx, 1, nil)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, d.ID, payments[0].DebtID)

	payments, err = st.ListPayments(ctx, 2, nil)
	require.NoError(t, err)
	assert.Empty(t, payments)

	_, _, err = st.CommitPayment(ctx, models.Payment{StoreID: 2, DebtID: d.ID, Amount: decimal.NewFromInt(1)},
		func(models.Debt, decimal.Decimal) error { return nil })
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_CommitPayment(t *testing.T) {
	tests := []struct {
		name     string
		mode     models.BalanceMode
		wantPaid string
	}{
		// stored debts pass the running snapshot, derived ones the history sum
		{name: "stored", mode: models.BalanceStored, wantPaid: "30"},
		{name: "derived", mode: models.BalanceDerived, wantPaid: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := New()
			ctx := context.Background()
			d, err := st.CreateDebt(ctx, models.Debt{
				StoreID: 1, CustomerID: 3, Owed: decimal.NewFromInt(100),
				Deposited: decimal.NewFromInt(30), BalanceMode: tt.mode,
			}, nil)
			require.NoError(t, err)

			var gotPaid decimal.Decimal
			p, after, err := st.CommitPayment(ctx, models.Payment{
				StoreID: 1, DebtID: d.ID, CustomerID: 3, Amount: decimal.NewFromInt(50),
				PaymentDate: time.Now(), IdempotencyKey: "k1",
			}, func(_ models.Debt, paid decimal.Decimal) error {
				gotPaid = paid
				return nil
			})
			require.NoError(t, err)
			assert.NotZero(t, p.ID)
			assert.Equal(t, tt.wantPaid, gotPaid.String())

			if tt.mode == models.BalanceStored {
				assert.Equal(t, "80", after.Deposited.String())
				assert.Equal(t, "20", after.Remaining.String())
			} else {
				assert.Equal(t, "50", after.Remaining.String(), "remaining_balance follows the history")
			}

			called := false
			again, _, err := st.CommitPayment(ctx, models.Payment{
				StoreID: 1, DebtID: d.ID, CustomerID: 3, Amount: decimal.NewFromInt(50), IdempotencyKey: "k1",
			}, func(models.Debt, decimal.Decimal) error {
				called = true
				return nil
			})
			require.NoError(t, err)
			assert.False(t, called, "a replayed key is not checked again")
			assert.Equal(t, p.ID, again.ID)
		})
	}
}

func TestStore_CommitPaymentRejected(t *testing.T) {
	st := New()
	ctx := context.Background()
	d, err := st.CreateDebt(ctx, models.Debt{StoreID: 1, CustomerID: 3, Owed: decimal.NewFromInt(100), BalanceMode: models.BalanceStored}, nil)
	require.NoError(t, err)

	limit := models.NewValidation(models.KindLimit, "amount", "amount exceeds remaining balance")
	_, _, err = st.CommitPayment(ctx, models.Payment{StoreID: 1, DebtID: d.ID, Amount: decimal.NewFromInt(500)},
		func(models.Debt, decimal.Decimal) error { return limit })
	assert.Equal(t, limit, err)

	payments, err := st.ListPayments(ctx, 1, nil)
	require.NoError(t, err)
	assert.Empty(t, payments)
	unchanged, err := st.GetDebt(ctx, 1, d.ID)
	require.NoError(t, err)
	assert.True(t, unchanged.Deposited.IsZero())
}

func TestStore_DebtKeys(t *testing.T) {
	st := New()
	ctx := context.Background()
	stored := models.Debt{StoreID: 1, CustomerID: 7, Owed: decimal.NewFromInt(1000), BalanceMode: models.BalanceStored}

	a, err := st.CreateDebt(ctx, stored, nil)
	require.NoError(t, err)
	_, err = st.CreateDebt(ctx, stored, nil)
	var ce *models.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"7"}, ce.Values)

	stored.StoreID = 2
	_, err = st.CreateDebt(ctx, stored, nil)
	require.NoError(t, err, "keys are per tenant")

	b, err := st.CreateDebt(ctx, models.Debt{StoreID: 1, CustomerID: 7, Owed: decimal.NewFromInt(500), BalanceMode: models.BalanceDerived}, nil)
	require.NoError(t, err)

	pass := func(models.Debt, decimal.Decimal) error { return nil }
	_, _, err = st.CommitPayment(ctx, models.Payment{StoreID: 1, DebtID: a.ID, Amount: decimal.NewFromInt(10), IdempotencyKey: "k"}, pass)
	require.NoError(t, err)
	_, _, err = st.CommitPayment(ctx, models.Payment{StoreID: 1, DebtID: b.ID, Amount: decimal.NewFromInt(10), IdempotencyKey: "k"}, pass)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "idempotency_key", ce.Field)

	payments, err := st.ListPayments(ctx, 1, nil)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}

func TestStore_DeviceUniqueness(t *testing.T) {
	st := New()
	ctx := context.Background()

	created, err := st.CreateProducts(ctx, 1, []models.Product{{Name: "A14", DeviceIDs: []string{"111111111111111"}}}, snapFor)
	require.NoError(t, err)
	require.Len(t, created, 1)

	_, err = st.CreateProducts(ctx, 1, []models.Product{
		{Name: "Tecno", DeviceIDs: []string{"222222222222222"}},
		{Name: "Itel", DeviceIDs: []string{"222222222222222", "111111111111111"}},
	}, snapFor)
	var ce *models.ConflictError
	require.True(t, errors.As(err, &ce))
	assert.ElementsMatch(t, []string{"222222222222222", "111111111111111"}, ce.Values)

	_, total, err := st.ListProducts(ctx, 1, store.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "a rejected batch writes nothing")

	_, err = st.CreateProducts(ctx, 2, []models.Product{{Name: "A14", DeviceIDs: []string{"111111111111111"}}}, snapFor)
	assert.NoError(t, err, "another store may hold the same id")

	second, err := st.CreateProducts(ctx, 1, []models.Product{{Name: "Spark", DeviceIDs: []string{"333333333333333"}}}, snapFor)
	require.NoError(t, err)
	_, _, err = st.MutateProduct(ctx, 1, second[0].ID, func(p *models.Product, prev *models.InventorySnapshot) (*models.InventorySnapshot, error) {
		p.DeviceIDs = append(p.DeviceIDs, "111111111111111")
		next := *prev
		return &next, nil
	})
	require.True(t, errors.As(err, &ce))

	p, err := st.GetProduct(ctx, 1, second[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"333333333333333"}, p.DeviceIDs)
}

func TestStore_MutateProductNoop(t *testing.T) {
	st := New()
	ctx := context.Background()
	created, err := st.CreateProducts(ctx, 1, []models.Product{{Name: "A14", DeviceIDs: []string{"111111111111111"}}}, snapFor)
	require.NoError(t, err)
	id := created[0].ID

	p, sn, err := st.MutateProduct(ctx, 1, id, func(p *models.Product, prev *models.InventorySnapshot) (*models.InventorySnapshot, error) {
		p.Name = "ignored"
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "A14", p.Name)
	assert.Equal(t, 1, sn.AvailableQty)

	require.NoError(t, st.DeleteProduct(ctx, 1, id))
	_, err = st.GetSnapshot(ctx, 1, id)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStore_SalesAndFaults(t *testing.T) {
	st := New()
	ctx := context.Background()

	sale, err := st.RecordSale(ctx, models.Sale{StoreID: 1, DeviceID: "444444444444444"},
		func(*models.Product, *models.InventorySnapshot) (*models.InventorySnapshot, error) {
			t.Fatal("no product holds the device")
			return nil, nil
		})
	require.NoError(t, err)
	assert.Nil(t, sale.ProductID)

	sales, err := st.SalesFor(ctx, 1, []string{" 444444444444444 "})
	require.NoError(t, err)
	assert.Len(t, sales, 1)

	st.SetFault(errors.New("disk full"))
	_, err = st.SalesFor(ctx, 1, []string{"444444444444444"})
	var se *models.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "list sales", se.Op)

	st.SetFault(nil)
	_, err = st.SalesFor(ctx, 1, nil)
	assert.NoError(t, err)
}

func TestStore_Expenses(t *testing.T) {
	st := New()
	ctx := context.Background()
	owner := int64(1)
	note := "March generator fuel"

	rent, err := st.CreateExpense(ctx, models.Expense{StoreID: 1, ExpenseDate: "2026-03-01", ExpenseType: "Rent", Amount: decimal.NewFromInt(500), CreatedByOwner: &owner})
	require.NoError(t, err)
	_, err = st.CreateExpense(ctx, models.Expense{StoreID: 1, ExpenseDate: "2026-03-05", ExpenseType: "Power", Amount: decimal.NewFromInt(80), Description: &note})
	require.NoError(t, err)

	all, err := st.ListExpenses(ctx, 1, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "2026-03-05", all[0].ExpenseDate, "newest first")

	found, err := st.ListExpenses(ctx, 1, "FUEL")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Power", found[0].ExpenseType)

	updated, err := st.UpdateExpense(ctx, models.Expense{ID: rent.ID, StoreID: 1, ExpenseDate: "2026-03-02", ExpenseType: "Rent", Amount: decimal.NewFromInt(450)})
	require.NoError(t, err)
	require.NotNil(t, updated.CreatedByOwner, "creator survives an update")

	_, err = st.UpdateExpense(ctx, models.Expense{ID: rent.ID, StoreID: 2})
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, st.DeleteExpense(ctx, 2, rent.ID), models.ErrNotFound)
	assert.NoError(t, st.DeleteExpense(ctx, 1, rent.ID))
}
