package ledger

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/satheeshds/trackey/events"
	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageSize = 10

	tableDebts    = "debts"
	tablePayments = "debt_payments"
)

// Service runs ledger reads and payment writes for one tenant at a time.
type Service struct {
	store  store.DebtStore
	events events.Publisher
	log    *slog.Logger
	now    func() time.Time
}

func NewService(st store.DebtStore, pub events.Publisher, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:  st,
		events: pub,
		log:    log.With("component", "ledger"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ViewFilter selects a page of ledger rows.
type ViewFilter struct {
	Search   string
	Page     int
	PageSize int
}

// Page is one page of ledger rows.
type Page struct {
	Rows  []models.LedgerRow `json:"rows"`
	Total int                `json:"total"`
	Page  int                `json:"page"`
	Pages int                `json:"pages"`
}

func (s *Service) publish(table string, t events.ChangeType, storeID, rowID int64) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Change{Table: table, Type: t, StoreID: storeID, RowID: rowID, At: s.now()})
}

func customerIDs(debts []models.Debt) []int64 {
	ids := make([]int64, 0, len(debts))
	for _, d := range debts {
		if !slices.Contains(ids, d.CustomerID) {
			ids = append(ids, d.CustomerID)
		}
	}
	return ids
}

// View reads one page of debts plus the payments that can settle them and
// returns the reconciled rows.
func (s *Service) View(ctx context.Context, scope models.Scope, f ViewFilter) (Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = DefaultPageSize
	}

	// Search runs over computed fields, so a filtered view pages in memory.
	search := strings.TrimSpace(f.Search) != ""
	filter := store.DebtFilter{Limit: f.PageSize, Offset: (f.Page - 1) * f.PageSize}
	if search {
		filter = store.DebtFilter{}
	}
	debts, total, err := s.store.ListDebts(ctx, scope.StoreID, filter)
	if err != nil {
		s.log.Error("failed to fetch debts", "store_id", scope.StoreID, "error", err)
		return Page{}, models.WrapStore("list debts", err)
	}

	var payments []models.Payment
	if len(debts) > 0 {
		payments, err = s.store.ListPayments(ctx, scope.StoreID, customerIDs(debts))
		if err != nil {
			s.log.Error("failed to fetch payments", "store_id", scope.StoreID, "error", err)
			return Page{}, models.WrapStore("list payments", err)
		}
	}

	rows := ComputeLedgerView(debts, payments)
	if search {
		rows = Filter(rows, f.Search)
		total = len(rows)
		lo := min((f.Page-1)*f.PageSize, total)
		rows = rows[lo:min(lo+f.PageSize, total)]
	}
	return Page{
		Rows:  rows,
		Total: total,
		Page:  f.Page,
		Pages: (total + f.PageSize - 1) / f.PageSize,
	}, nil
}

// Get returns the reconciled row for one debt.
func (s *Service) Get(ctx context.Context, scope models.Scope, debtID int64) (models.LedgerRow, error) {
	row, _, err := s.load(ctx, scope, debtID)
	return row, err
}

func (s *Service) load(ctx context.Context, scope models.Scope, debtID int64) (models.LedgerRow, []models.Payment, error) {
	d, err := s.store.GetDebt(ctx, scope.StoreID, debtID)
	if err != nil {
		return models.LedgerRow{}, nil, models.WrapStore("get debt", err)
	}
	payments, err := s.store.ListPayments(ctx, scope.StoreID, []int64{d.CustomerID})
	if err != nil {
		return models.LedgerRow{}, nil, models.WrapStore("list payments", err)
	}

	history := make([]models.Payment, 0, len(payments))
	for _, p := range payments {
		if d.BalanceMode == models.BalanceStored && p.Key() == d.Key() ||
			d.BalanceMode != models.BalanceStored && p.DebtID == d.ID {
			history = append(history, p)
		}
	}
	return ComputeLedgerView([]models.Debt{d}, history)[0], history, nil
}

// History returns the payments settling a debt, newest first.
func (s *Service) History(ctx context.Context, scope models.Scope, debtID int64) ([]models.Payment, error) {
	_, history, err := s.load(ctx, scope, debtID)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(history, func(a, b models.Payment) int {
		return b.PaymentDate.Compare(a.PaymentDate)
	})
	return history, nil
}

// CreateDebt originates a debt. A non-zero deposit is recorded as the debt's
// first payment so that both balance modes agree with the history.
func (s *Service) CreateDebt(ctx context.Context, scope models.Scope, in models.DebtInput) (models.LedgerRow, error) {
	if msg := in.Validate(); msg != "" {
		return models.LedgerRow{}, models.NewValidation(models.KindFormat, "debt", msg)
	}
	now := s.now()
	d := models.Debt{
		StoreID:      scope.StoreID,
		CustomerID:   in.CustomerID,
		CustomerName: strings.TrimSpace(in.CustomerName),
		PhoneNumber:  in.PhoneNumber,
		ProductID:    in.ProductID,
		ProductName:  strings.TrimSpace(in.ProductName),
		Supplier:     in.Supplier,
		DeviceIDs:    cleanIDs(in.DeviceIDs),
		Qty:          in.Qty,
		Owed:         in.Owed,
		Deposited:    in.Deposited,
		BalanceMode:  in.BalanceMode,
		Date:         &now,
	}

	var opening *models.Payment
	if in.Deposited.IsPositive() {
		opening = &models.Payment{
			StoreID:        scope.StoreID,
			CustomerID:     in.CustomerID,
			ProductID:      in.ProductID,
			Amount:         in.Deposited,
			PaymentDate:    now,
			IdempotencyKey: uuid.NewString(),
		}
	}

	created, err := s.store.CreateDebt(ctx, d, opening)
	if err != nil {
		s.log.Error("failed to create debt", "store_id", scope.StoreID, "error", err)
		return models.LedgerRow{}, models.WrapStore("create debt", err)
	}
	s.publish(tableDebts, events.Insert, scope.StoreID, created.ID)
	return s.Get(ctx, scope, created.ID)
}

// RecordPayment appends a payment. The balance check runs inside the store's
// commit under a row lock, so two sessions racing on the same debt cannot both
// overdraw it. Nothing is written when any check fails. Re-sending the same
// idempotency key for the same debt returns the first payment without checking
// the balance again.
func (s *Service) RecordPayment(ctx context.Context, scope models.Scope, debtID int64, in models.PaymentInput) (models.Payment, models.Debt, error) {
	amount, err := ParseAmount(in.Amount)
	if err != nil {
		return models.Payment{}, models.Debt{}, err
	}

	row, err := s.store.GetDebt(ctx, scope.StoreID, debtID)
	if err != nil {
		return models.Payment{}, models.Debt{}, models.WrapStore("get debt", err)
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}
	var channel *string
	if in.PaidTo != nil && strings.TrimSpace(*in.PaidTo) != "" {
		c := strings.TrimSpace(*in.PaidTo)
		channel = &c
	}

	p := models.Payment{
		StoreID:        scope.StoreID,
		DebtID:         row.ID,
		CustomerID:     row.CustomerID,
		ProductID:      row.ProductID,
		Amount:         amount,
		PaidTo:         channel,
		PaymentDate:    s.now(),
		IdempotencyKey: key,
	}
	saved, debt, err := s.store.CommitPayment(ctx, p, func(d models.Debt, paid decimal.Decimal) error {
		return CheckPayment(d.Owed.Sub(paid), amount)
	})
	if err != nil {
		s.log.Warn("payment not recorded", "store_id", scope.StoreID, "debt_id", debtID, "error", err)
		return models.Payment{}, models.Debt{}, models.WrapStore("commit payment", err)
	}

	s.log.Info("payment recorded", "store_id", scope.StoreID, "debt_id", debtID,
		"amount", saved.Amount.String(), "session", scope.SessionID)
	s.publish(tablePayments, events.Insert, scope.StoreID, saved.ID)
	s.publish(tableDebts, events.Update, scope.StoreID, debt.ID)
	return saved, debt, nil
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
