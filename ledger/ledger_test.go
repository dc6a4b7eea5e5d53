package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/satheeshds/trackey/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func i64(v int64) *int64 { return &v }

func str(s string) *string { return &s }

func derivedDebt(id int64, owed string) models.Debt {
	return models.Debt{ID: id, StoreID: 1, CustomerID: 10 + id, CustomerName: "Customer", Owed: dec(owed), BalanceMode: models.BalanceDerived}
}

func payment(debtID int64, amount string, at time.Time) models.Payment {
	return models.Payment{DebtID: debtID, StoreID: 1, CustomerID: 10 + debtID, Amount: dec(amount), PaymentDate: at}
}

func TestStatusOf(t *testing.T) {
	cases := []struct {
		remaining, paid string
		want            models.Status
	}{
		{"0", "100", models.StatusPaid},
		{"-50", "1050", models.StatusPaid},
		{"450", "550", models.StatusPartial},
		{"1000", "0", models.StatusOwing},
		{"0.01", "999.99", models.StatusPartial},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusOf(dec(tc.remaining), dec(tc.paid)), "remaining=%s paid=%s", tc.remaining, tc.paid)
	}
}

func TestComputeLedgerView_EndToEndScenario(t *testing.T) {
	debts := []models.Debt{derivedDebt(1, "1000")}
	second := day0.Add(48 * time.Hour)
	payments := []models.Payment{
		payment(1, "300", day0),
		payment(1, "250", second),
	}

	rows := ComputeLedgerView(debts, payments)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.True(t, dec("550").Equal(row.PaidTotal))
	assert.True(t, dec("450").Equal(row.Remaining))
	assert.Equal(t, models.StatusPartial, row.Status)
	require.NotNil(t, row.LastPaymentDate)
	assert.Equal(t, second, *row.LastPaymentDate)
	assert.Equal(t, 2, row.PaymentCount)

	// An overpaid history keeps its negative balance.
	payments = append(payments, payment(1, "500", second.Add(time.Hour)))
	row = ComputeLedgerView(debts, payments)[0]
	assert.True(t, dec("-50").Equal(row.Remaining), "got %s", row.Remaining)
	assert.Equal(t, models.StatusPaid, row.Status)
}

func TestComputeLedgerView_OrderIndependent(t *testing.T) {
	debts := []models.Debt{derivedDebt(1, "1000")}
	a := payment(1, "120.50", day0)
	b := payment(1, "79.50", day0.Add(time.Hour))
	c := payment(1, "300", day0.Add(2*time.Hour))

	orders := [][]models.Payment{{a, b, c}, {c, b, a}, {b, c, a}}
	for _, ps := range orders {
		row := ComputeLedgerView(debts, ps)[0]
		assert.True(t, dec("500").Equal(row.Remaining), "got %s", row.Remaining)
		assert.Equal(t, c.PaymentDate, *row.LastPaymentDate)
	}
}

func TestComputeLedgerView_DoesNotMutateInput(t *testing.T) {
	debts := []models.Debt{derivedDebt(1, "100")}
	debts[0].DeviceIDs = []string{"123456789012345"}
	payments := []models.Payment{payment(1, "40", day0)}

	rows := ComputeLedgerView(debts, payments)
	rows[0].DeviceIDs[0] = "changed"

	assert.Equal(t, "123456789012345", debts[0].DeviceIDs[0])
	assert.True(t, debts[0].Remaining.IsZero())
	assert.True(t, dec("40").Equal(payments[0].Amount))
}

func TestComputeLedgerView_CorrelationKeys(t *testing.T) {
	stored := models.Debt{
		ID: 1, StoreID: 1, CustomerID: 7, ProductID: i64(3), Owed: dec("600"),
		Deposited: dec("200"), BalanceMode: models.BalanceStored,
	}
	derived := models.Debt{ID: 2, StoreID: 1, CustomerID: 7, ProductID: i64(3), Owed: dec("90"), BalanceMode: models.BalanceDerived}

	payments := []models.Payment{
		// Stored debts match on (customer, product), whatever the debt id.
		{DebtID: 99, CustomerID: 7, ProductID: i64(3), Amount: dec("200"), PaymentDate: day0},
		{DebtID: 2, CustomerID: 7, ProductID: i64(3), Amount: dec("90"), PaymentDate: day0},
		{DebtID: 1, CustomerID: 7, ProductID: i64(4), Amount: dec("5"), PaymentDate: day0},
	}

	rows := ComputeLedgerView([]models.Debt{stored, derived}, payments)
	require.Len(t, rows, 2)

	byID := map[int64]models.LedgerRow{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	// Payment with DebtID 2 also carries the stored debt's compound key.
	assert.True(t, dec("290").Equal(byID[1].PaidTotal), "got %s", byID[1].PaidTotal)
	assert.True(t, byID[1].Drift)
	assert.True(t, dec("90").Equal(byID[2].PaidTotal))
	assert.Equal(t, models.StatusPaid, byID[2].Status)
	assert.False(t, byID[2].Drift)
}

func TestComputeLedgerView_StoredWithoutDrift(t *testing.T) {
	d := models.Debt{ID: 1, CustomerID: 7, Owed: dec("500"), Deposited: dec("120"), BalanceMode: models.BalanceStored}
	row := ComputeLedgerView([]models.Debt{d}, []models.Payment{{CustomerID: 7, Amount: dec("120"), PaymentDate: day0, PaidTo: str("cash")}})[0]

	assert.False(t, row.Drift)
	assert.True(t, dec("380").Equal(row.Remaining))
	require.NotNil(t, row.PaidTo)
	assert.Equal(t, "cash", *row.PaidTo)
}

func TestComputeLedgerView_UnresolvedFirst(t *testing.T) {
	debts := []models.Debt{derivedDebt(1, "100"), derivedDebt(2, "100"), derivedDebt(3, "100"), derivedDebt(4, "100")}
	payments := []models.Payment{payment(1, "100", day0), payment(3, "100", day0)}

	rows := ComputeLedgerView(debts, payments)
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []int64{2, 4, 1, 3}, ids)
}

func TestFilter(t *testing.T) {
	d1 := derivedDebt(1, "100")
	d1.CustomerName = "Amaka Obi"
	d1.DeviceIDs = []string{"356789012345678"}
	d2 := derivedDebt(2, "100")
	d2.CustomerName = "Tunde"
	d2.ProductName = "Pixel 8"

	rows := ComputeLedgerView([]models.Debt{d1, d2}, []models.Payment{
		{DebtID: 2, CustomerID: 12, Amount: dec("10"), PaymentDate: day0, PaidTo: str("Opay")},
	})

	assert.Len(t, Filter(rows, ""), 2)
	assert.Len(t, Filter(rows, "amaka"), 1)
	assert.Len(t, Filter(rows, "pixel"), 1)
	assert.Len(t, Filter(rows, "9012345"), 1)
	assert.Len(t, Filter(rows, "opay"), 1)
	assert.Empty(t, Filter(rows, "nokia"))
}

func TestParseAmount(t *testing.T) {
	ok := []struct{ in, want string }{
		{"300", "300"},
		{" 250.75 ", "250.75"},
		{"0.01", "0.01"},
	}
	for _, tc := range ok {
		got, err := ParseAmount(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String())
	}

	for _, in := range []string{"", "  ", "abc", "12,5x", "0", "-10"} {
		_, err := ParseAmount(in)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve), "input %q", in)
		assert.Equal(t, models.KindFormat, ve.Kind, "input %q", in)
	}
}

func TestCheckPayment(t *testing.T) {
	assert.NoError(t, CheckPayment(dec("450"), dec("450")))
	assert.NoError(t, CheckPayment(dec("450"), dec("0.01")))

	err := CheckPayment(dec("450"), dec("500"))
	var ve *models.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, models.KindLimit, ve.Kind)
	assert.Contains(t, err.Error(), "amount exceeds remaining balance")
	assert.Equal(t, "limit", models.ErrorKind(err))

	err = CheckPayment(dec("450"), decimal.Zero)
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, models.KindFormat, ve.Kind)

	// Nothing can be paid against a settled debt.
	assert.Error(t, CheckPayment(dec("-50"), dec("1")))
}
