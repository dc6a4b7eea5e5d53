// Package memory is an in-process implementation of store.Store. It enforces
// the same tenant scoping, uniqueness and conditional-payment rules as the
// PostgreSQL store and backs the tests and the --memory dev mode.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
	"github.com/shopspring/decimal"
)

type Store struct {
	mu        sync.Mutex
	now       func() time.Time
	nextID    int64
	fault     error
	debts     map[int64]models.Debt
	payments  []models.Payment
	products  map[int64]models.Product
	snapshots map[int64]models.InventorySnapshot
	sales     []models.Sale
	expenses  map[int64]models.Expense
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:       func() time.Time { return time.Now().UTC() },
		debts:     map[int64]models.Debt{},
		products:  map[int64]models.Product{},
		snapshots: map[int64]models.InventorySnapshot{},
		expenses:  map[int64]models.Expense{},
	}
}

// SetClock replaces the clock used for created_at stamps.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// SetFault makes every following call fail with err until cleared with nil.
func (s *Store) SetFault(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = err
}

func (s *Store) Close() {}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) check(op string) error {
	if s.fault != nil {
		return &models.StoreError{Op: op, Err: s.fault}
	}
	return nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// --- Debts ---

func (s *Store) ListDebts(ctx context.Context, storeID int64, f store.DebtFilter) ([]models.Debt, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list debts"); err != nil {
		return nil, 0, err
	}

	var out []models.Debt
	for _, d := range s.debts {
		if d.StoreID != storeID || (f.CustomerID != 0 && d.CustomerID != f.CustomerID) {
			continue
		}
		out = append(out, cloneDebt(d))
	}
	slices.SortFunc(out, func(a, b models.Debt) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (s *Store) GetDebt(ctx context.Context, storeID, id int64) (models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get debt"); err != nil {
		return models.Debt{}, err
	}
	d, ok := s.debts[id]
	if !ok || d.StoreID != storeID {
		return models.Debt{}, models.ErrNotFound
	}
	return cloneDebt(d), nil
}

func (s *Store) CreateDebt(ctx context.Context, d models.Debt, opening *models.Payment) (models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create debt"); err != nil {
		return models.Debt{}, err
	}
	if d.BalanceMode == models.BalanceStored {
		for _, other := range s.debts {
			if other.StoreID == d.StoreID && other.BalanceMode == models.BalanceStored && other.Key() == d.Key() {
				return models.Debt{}, store.ObligationTakenError(d)
			}
		}
	}
	d.ID = s.id()
	d.CreatedAt = s.now()
	d.Remaining = d.Owed.Sub(d.Deposited)
	s.debts[d.ID] = cloneDebt(d)
	if opening != nil {
		p := *opening
		p.ID = s.id()
		p.DebtID = d.ID
		p.StoreID = d.StoreID
		p.CreatedAt = d.CreatedAt
		s.payments = append(s.payments, p)
	}
	return d, nil
}

func (s *Store) ListPayments(ctx context.Context, storeID int64, customerIDs []int64) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list payments"); err != nil {
		return nil, err
	}

	out := []models.Payment{}
	for _, p := range s.payments {
		if p.StoreID != storeID {
			continue
		}
		if len(customerIDs) > 0 && !slices.Contains(customerIDs, p.CustomerID) {
			continue
		}
		out = append(out, p)
	}
	slices.SortStableFunc(out, func(a, b models.Payment) int {
		return b.PaymentDate.Compare(a.PaymentDate)
	})
	return out, nil
}

func (s *Store) CommitPayment(ctx context.Context, p models.Payment, check store.PaymentCheck) (models.Payment, models.Debt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("commit payment"); err != nil {
		return models.Payment{}, models.Debt{}, err
	}

	d, ok := s.debts[p.DebtID]
	if !ok || d.StoreID != p.StoreID {
		return models.Payment{}, models.Debt{}, models.ErrNotFound
	}
	if p.IdempotencyKey != "" {
		for _, existing := range s.payments {
			if existing.StoreID != p.StoreID || existing.IdempotencyKey != p.IdempotencyKey {
				continue
			}
			if existing.DebtID != p.DebtID {
				return models.Payment{}, models.Debt{}, store.KeyReusedError(p.IdempotencyKey)
			}
			return existing, cloneDebt(d), nil
		}
	}

	paid := d.Deposited
	if d.BalanceMode == models.BalanceDerived {
		paid = decimal.Zero
		for _, existing := range s.payments {
			if existing.StoreID == d.StoreID && existing.DebtID == d.ID {
				paid = paid.Add(existing.Amount)
			}
		}
	}
	if err := check(cloneDebt(d), paid); err != nil {
		return models.Payment{}, models.Debt{}, err
	}

	p.ID = s.id()
	p.CreatedAt = s.now()
	s.payments = append(s.payments, p)

	if d.BalanceMode == models.BalanceStored {
		d.Deposited = d.Deposited.Add(p.Amount)
		d.Remaining = d.Owed.Sub(d.Deposited)
		date := p.PaymentDate
		d.Date = &date
		d.PaidTo = p.PaidTo
	} else {
		d.Remaining = d.Owed.Sub(paid.Add(p.Amount))
	}
	s.debts[d.ID] = cloneDebt(d)
	return p, cloneDebt(d), nil
}

// --- Products ---

func (s *Store) ListProducts(ctx context.Context, storeID int64, f store.ProductFilter) ([]models.Product, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list products"); err != nil {
		return nil, 0, err
	}

	q := strings.ToLower(strings.TrimSpace(f.Search))
	var out []models.Product
	for _, p := range s.products {
		if p.StoreID != storeID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(p.Name), q) &&
			!slices.ContainsFunc(p.DeviceIDs, func(id string) bool { return strings.Contains(id, q) }) {
			continue
		}
		out = append(out, cloneProduct(p))
	}
	slices.SortFunc(out, func(a, b models.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (s *Store) GetProduct(ctx context.Context, storeID, id int64) (models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get product"); err != nil {
		return models.Product{}, err
	}
	p, ok := s.products[id]
	if !ok || p.StoreID != storeID {
		return models.Product{}, models.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (s *Store) DeviceIDsOutside(ctx context.Context, storeID, excludeProductID int64) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list device ids"); err != nil {
		return nil, err
	}
	return s.devicesOutside(storeID, excludeProductID), nil
}

func (s *Store) devicesOutside(storeID, excludeProductID int64) map[string]struct{} {
	ids := map[string]struct{}{}
	for _, p := range s.products {
		if p.StoreID != storeID || p.ID == excludeProductID {
			continue
		}
		for _, id := range p.DeviceIDs {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// conflicts plays the part of the (store_id, device_id) unique index.
func (s *Store) conflicts(storeID, productID int64, ids []string, seen map[string]struct{}) []string {
	taken := s.devicesOutside(storeID, productID)
	var out []string
	for _, id := range ids {
		if _, ok := taken[id]; ok {
			out = append(out, id)
			continue
		}
		if seen != nil {
			if _, ok := seen[id]; ok {
				out = append(out, id)
			}
			seen[id] = struct{}{}
		}
	}
	return out
}

func (s *Store) CreateProducts(ctx context.Context, storeID int64, products []models.Product, snap store.SnapshotFunc) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create products"); err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var clash []string
	for _, p := range products {
		clash = append(clash, s.conflicts(storeID, 0, p.DeviceIDs, seen)...)
	}
	if len(clash) > 0 {
		return nil, &models.ConflictError{Field: "device_id", Values: clash, Msg: "device ids already exist in other products"}
	}

	now := s.now()
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		p.ID = s.id()
		p.StoreID = storeID
		p.CreatedAt = now
		s.products[p.ID] = cloneProduct(p)
		sn := snap(p, nil)
		sn.ProductID, sn.StoreID = p.ID, storeID
		s.snapshots[p.ID] = sn
		out = append(out, p)
	}
	return out, nil
}

func (s *Store) MutateProduct(ctx context.Context, storeID, productID int64, fn store.ProductMutation) (models.Product, models.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update product"); err != nil {
		return models.Product{}, models.InventorySnapshot{}, err
	}

	cur, ok := s.products[productID]
	if !ok || cur.StoreID != storeID {
		return models.Product{}, models.InventorySnapshot{}, models.ErrNotFound
	}
	p := cloneProduct(cur)
	var prev *models.InventorySnapshot
	if sn, ok := s.snapshots[productID]; ok {
		prev = &sn
	}

	next, err := fn(&p, prev)
	if err != nil {
		return models.Product{}, models.InventorySnapshot{}, err
	}
	if next == nil {
		var sn models.InventorySnapshot
		if prev != nil {
			sn = *prev
		}
		return cloneProduct(cur), sn, nil
	}
	if clash := s.conflicts(storeID, productID, p.DeviceIDs, nil); len(clash) > 0 {
		return models.Product{}, models.InventorySnapshot{}, &models.ConflictError{Field: "device_id", Values: clash, Msg: "device ids already exist in other products"}
	}

	p.ID, p.StoreID = productID, storeID
	next.ProductID, next.StoreID = productID, storeID
	s.products[productID] = cloneProduct(p)
	s.snapshots[productID] = *next
	return p, *next, nil
}

func (s *Store) DeleteProduct(ctx context.Context, storeID, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete product"); err != nil {
		return err
	}
	p, ok := s.products[productID]
	if !ok || p.StoreID != storeID {
		return models.ErrNotFound
	}
	delete(s.products, productID)
	delete(s.snapshots, productID)
	return nil
}

func (s *Store) GetSnapshot(ctx context.Context, storeID, productID int64) (models.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get snapshot"); err != nil {
		return models.InventorySnapshot{}, err
	}
	sn, ok := s.snapshots[productID]
	if !ok || sn.StoreID != storeID {
		return models.InventorySnapshot{}, models.ErrNotFound
	}
	return sn, nil
}

func (s *Store) ListSnapshots(ctx context.Context, storeID int64) ([]models.InventorySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list snapshots"); err != nil {
		return nil, err
	}
	out := []models.InventorySnapshot{}
	for _, sn := range s.snapshots {
		if sn.StoreID == storeID {
			out = append(out, sn)
		}
	}
	slices.SortFunc(out, func(a, b models.InventorySnapshot) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return out, nil
}

// --- Sales ---

func (s *Store) SalesFor(ctx context.Context, storeID int64, ids []string) ([]models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list sales"); err != nil {
		return nil, err
	}
	want := map[string]struct{}{}
	for _, id := range ids {
		want[strings.TrimSpace(id)] = struct{}{}
	}
	out := []models.Sale{}
	for _, sale := range s.sales {
		if sale.StoreID != storeID {
			continue
		}
		if _, ok := want[strings.TrimSpace(sale.DeviceID)]; ok {
			out = append(out, sale)
		}
	}
	return out, nil
}

func (s *Store) RecordSale(ctx context.Context, sale models.Sale, fn store.ProductMutation) (models.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("record sale"); err != nil {
		return models.Sale{}, err
	}

	for _, existing := range s.sales {
		if existing.StoreID == sale.StoreID && existing.DeviceID == sale.DeviceID {
			return models.Sale{}, &models.ConflictError{Field: "device_id", Values: []string{sale.DeviceID}, Msg: "device already sold"}
		}
	}

	for id, cur := range s.products {
		if cur.StoreID != sale.StoreID || !slices.Contains(cur.DeviceIDs, sale.DeviceID) {
			continue
		}
		p := cloneProduct(cur)
		var prev *models.InventorySnapshot
		if sn, ok := s.snapshots[id]; ok {
			prev = &sn
		}
		next, err := fn(&p, prev)
		if err != nil {
			return models.Sale{}, err
		}
		if next != nil {
			next.ProductID, next.StoreID = id, sale.StoreID
			s.products[id] = cloneProduct(p)
			s.snapshots[id] = *next
		}
		pid := id
		sale.ProductID = &pid
		break
	}

	sale.ID = s.id()
	if sale.SoldAt.IsZero() {
		sale.SoldAt = s.now()
	}
	s.sales = append(s.sales, sale)
	return sale, nil
}

// --- Expenses ---

func (s *Store) ListExpenses(ctx context.Context, storeID int64, search string) ([]models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("list expenses"); err != nil {
		return nil, err
	}
	q := strings.ToLower(search)
	out := []models.Expense{}
	for _, e := range s.expenses {
		if e.StoreID != storeID {
			continue
		}
		desc := ""
		if e.Description != nil {
			desc = *e.Description
		}
		if q != "" && !strings.Contains(strings.ToLower(e.ExpenseType), q) && !strings.Contains(strings.ToLower(desc), q) {
			continue
		}
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b models.Expense) int {
		if c := strings.Compare(b.ExpenseDate, a.ExpenseDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return out, nil
}

func (s *Store) GetExpense(ctx context.Context, storeID, id int64) (models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("get expense"); err != nil {
		return models.Expense{}, err
	}
	e, ok := s.expenses[id]
	if !ok || e.StoreID != storeID {
		return models.Expense{}, models.ErrNotFound
	}
	return e, nil
}

func (s *Store) CreateExpense(ctx context.Context, e models.Expense) (models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("create expense"); err != nil {
		return models.Expense{}, err
	}
	e.ID = s.id()
	e.CreatedAt = s.now()
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) UpdateExpense(ctx context.Context, e models.Expense) (models.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("update expense"); err != nil {
		return models.Expense{}, err
	}
	cur, ok := s.expenses[e.ID]
	if !ok || cur.StoreID != e.StoreID {
		return models.Expense{}, models.ErrNotFound
	}
	e.CreatedAt = cur.CreatedAt
	e.CreatedByOwner, e.CreatedByUser = cur.CreatedByOwner, cur.CreatedByUser
	s.expenses[e.ID] = e
	return e, nil
}

func (s *Store) DeleteExpense(ctx context.Context, storeID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("delete expense"); err != nil {
		return err
	}
	e, ok := s.expenses[id]
	if !ok || e.StoreID != storeID {
		return models.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func cloneDebt(d models.Debt) models.Debt {
	d.DeviceIDs = slices.Clone(d.DeviceIDs)
	return d
}

func cloneProduct(p models.Product) models.Product {
	p.DeviceIDs = slices.Clone(p.DeviceIDs)
	return p
}
