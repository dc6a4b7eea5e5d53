package inventory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
	"github.com/satheeshds/trackey/store/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scope = models.Scope{StoreID: 1, SessionID: "test"}

func newTestService(t *testing.T, st Store) *Service {
	t.Helper()
	svc := NewService(st, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), 50*time.Millisecond)
	svc.now = func() time.Time { return t0 }
	return svc
}

func phone(name string, ids ...string) models.ProductInput {
	return models.ProductInput{
		Name:          name,
		PurchasePrice: decimal.NewFromInt(300),
		SellingPrice:  decimal.NewFromInt(360),
		Supplier:      "Ikeja Gadgets",
		DeviceIDs:     ids,
	}
}

func TestService_CreateProducts(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newTestService(t, st)

	created, err := svc.CreateProducts(ctx, scope, []models.ProductInput{
		phone("Galaxy A14", imeiA, " "+imeiB),
		phone("Redmi 12", imeiC),
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, []string{imeiA, imeiB}, created[0].DeviceIDs)
	assert.Equal(t, 2, created[0].PurchaseQty)

	row, err := svc.Get(ctx, scope, created[0].ID)
	require.NoError(t, err)
	require.NotNil(t, row.Inventory)
	assert.Equal(t, 2, row.Inventory.AvailableQty)
	assert.Zero(t, row.Inventory.QuantitySold)
}

func TestService_CreateProductsIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newTestService(t, st)
	_, err := svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Galaxy A14", imeiA)})
	require.NoError(t, err)

	cases := map[string]struct {
		inputs []models.ProductInput
		kind   string
	}{
		"conflict with existing": {[]models.ProductInput{phone("Tecno", imeiB), phone("Itel", imeiA)}, "conflict"},
		"duplicate across batch": {[]models.ProductInput{phone("Tecno", imeiB), phone("Itel", imeiB)}, "duplicate"},
		"duplicate in product":   {[]models.ProductInput{phone("Tecno", imeiC, imeiC)}, "duplicate"},
		"bad format":             {[]models.ProductInput{phone("Tecno", "12345")}, "validation"},
		"no devices":             {[]models.ProductInput{phone("Tecno", " ")}, "validation"},
		"no name":                {[]models.ProductInput{phone("", imeiC)}, "validation"},
		"empty batch":            {nil, "validation"},
	}
	for name, tc := range cases {
		_, err := svc.CreateProducts(ctx, scope, tc.inputs)
		assert.Equal(t, tc.kind, models.ErrorKind(err), name)
	}

	page, err := svc.List(ctx, scope, "", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "no identifiers from a rejected batch were written")
}

func TestService_UniqueAcrossTenantsOnly(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	_, err := svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Galaxy A14", imeiA)})
	require.NoError(t, err)

	_, err = svc.CreateProducts(ctx, models.Scope{StoreID: 2}, []models.ProductInput{phone("Galaxy A14", imeiA)})
	assert.NoError(t, err)
}

func TestService_UpdateProduct(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	created, err := svc.CreateProducts(ctx, scope, []models.ProductInput{
		phone("Galaxy A14", imeiA, imeiB),
		phone("Redmi 12", imeiC),
	})
	require.NoError(t, err)
	id := created[0].ID

	_, err = svc.RecordSale(ctx, scope, models.SaleInput{DeviceID: imeiA})
	require.NoError(t, err)

	// Keeping its own identifiers is not a conflict.
	in := phone("Galaxy A14 128GB", imeiA, imeiB, "444444444444444")
	row, err := svc.UpdateProduct(ctx, scope, id, in)
	require.NoError(t, err)
	assert.Equal(t, "Galaxy A14 128GB", row.Name)
	assert.Equal(t, 3, row.Inventory.AvailableQty)
	assert.Equal(t, 1, row.Inventory.QuantitySold, "sold count is preserved")
	assert.Equal(t, created[0].CreatedAt, row.CreatedAt)

	_, err = svc.UpdateProduct(ctx, scope, id, phone("Galaxy A14", imeiA, imeiC))
	assert.Equal(t, "conflict", models.ErrorKind(err))

	_, err = svc.UpdateProduct(ctx, scope, 999, phone("Ghost", "555555555555555"))
	assert.ErrorIs(t, err, models.ErrNotFound)

	row, err = svc.Get(ctx, scope, id)
	require.NoError(t, err)
	assert.Len(t, row.DeviceIDs, 3)
}

func TestService_RemoveDevice(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	created, err := svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Galaxy A14", imeiA, imeiB, imeiC)})
	require.NoError(t, err)
	id := created[0].ID

	row, err := svc.RemoveDevice(ctx, scope, id, imeiB)
	require.NoError(t, err)
	assert.Equal(t, []string{imeiA, imeiC}, row.DeviceIDs)
	assert.Equal(t, 2, row.Inventory.AvailableQty)

	row, err = svc.RemoveDevice(ctx, scope, id, "999999999999999")
	require.NoError(t, err)
	assert.Equal(t, []string{imeiA, imeiC}, row.DeviceIDs)
	assert.Equal(t, 2, row.Inventory.AvailableQty)

	// The freed identifier can go to another product.
	_, err = svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Redmi 12", imeiB)})
	assert.NoError(t, err)
}

func TestService_DeleteProduct(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newTestService(t, st)
	created, err := svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Galaxy A14", imeiA)})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteProduct(ctx, scope, created[0].ID))
	_, err = st.GetSnapshot(ctx, scope.StoreID, created[0].ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteProduct(ctx, scope, created[0].ID), models.ErrNotFound)
}

func TestService_RecordSale(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	created, err := svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Galaxy A14", imeiA, imeiB)})
	require.NoError(t, err)

	sale, err := svc.RecordSale(ctx, scope, models.SaleInput{DeviceID: " " + imeiA})
	require.NoError(t, err)
	require.NotNil(t, sale.ProductID)
	assert.Equal(t, created[0].ID, *sale.ProductID)

	row, err := svc.Get(ctx, scope, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, row.Inventory.AvailableQty)
	assert.Equal(t, 1, row.Inventory.QuantitySold)

	_, err = svc.RecordSale(ctx, scope, models.SaleInput{DeviceID: imeiA})
	assert.Equal(t, "conflict", models.ErrorKind(err))
	_, err = svc.RecordSale(ctx, scope, models.SaleInput{DeviceID: "123"})
	assert.Equal(t, "validation", models.ErrorKind(err))
	_, err = svc.RecordSale(ctx, scope, models.SaleInput{})
	assert.Equal(t, "validation", models.ErrorKind(err))
}

func TestService_DeviceStatus(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())

	ids := make([]string, 0, 25)
	for i := range 25 {
		ids = append(ids, fmt.Sprintf("3567890123%05d", i))
	}
	created, err := svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Galaxy A14", ids...)})
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, scope, models.SaleInput{DeviceID: ids[1]})
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, scope, models.SaleInput{DeviceID: ids[22]})
	require.NoError(t, err)

	report, err := svc.DeviceStatus(ctx, scope, created[0].ID, 1)
	require.NoError(t, err)
	assert.Equal(t, 25, report.Total)
	assert.Equal(t, 2, report.Pages)
	require.Len(t, report.Devices, DevicePageSize)
	assert.False(t, report.Devices[0].Sold)
	assert.True(t, report.Devices[1].Sold)
	assert.False(t, report.SoldStatusUnavailable)

	report, err = svc.DeviceStatus(ctx, scope, created[0].ID, 2)
	require.NoError(t, err)
	require.Len(t, report.Devices, 5)
	assert.True(t, report.Devices[2].Sold)

	report, err = svc.DeviceStatus(ctx, scope, created[0].ID, 9)
	require.NoError(t, err)
	assert.Empty(t, report.Devices)
}

// slowSales blocks the sales lookup until its context ends.
type slowSales struct {
	*memory.Store
}

func (s *slowSales) SalesFor(ctx context.Context, storeID int64, ids []string) ([]models.Sale, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

var _ store.SaleStore = (*slowSales)(nil)

func TestService_DeviceStatusDegradesWhenLookupTimesOut(t *testing.T) {
	ctx := context.Background()
	st := &slowSales{Store: memory.New()}
	svc := newTestService(t, st)
	created, err := svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Galaxy A14", imeiA, imeiB)})
	require.NoError(t, err)

	start := time.Now()
	report, err := svc.DeviceStatus(ctx, scope, created[0].ID, 1)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, report.SoldStatusUnavailable)
	require.Len(t, report.Devices, 2)
	assert.False(t, report.Devices[0].Sold)
}

func TestService_StoreFailure(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	svc := newTestService(t, st)
	st.SetFault(errors.New("timeout"))

	_, err := svc.CreateProducts(ctx, scope, []models.ProductInput{phone("Galaxy A14", imeiA)})
	assert.Equal(t, "store", models.ErrorKind(err))
	_, err = svc.List(ctx, scope, "", 1)
	assert.Equal(t, "store", models.ErrorKind(err))
}

func TestService_ListSearch(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, memory.New())
	_, err := svc.CreateProducts(ctx, scope, []models.ProductInput{
		phone("Galaxy A14", imeiA),
		phone("Redmi 12", imeiB),
	})
	require.NoError(t, err)

	page, err := svc.List(ctx, scope, "redmi", 1)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Redmi 12", page.Rows[0].Name)
	require.NotNil(t, page.Rows[0].Inventory)

	page, err = svc.List(ctx, scope, "11111", 1)
	require.NoError(t, err)
	require.Len(t, page.Rows, 1)
	assert.Equal(t, "Galaxy A14", page.Rows[0].Name)
}
