package handlers

import (
	"net/http"

	"github.com/satheeshds/trackey/ledger"
	"github.com/satheeshds/trackey/models"
)

type paymentResult struct {
	Payment models.Payment `json:"payment"`
	Debt    models.Debt    `json:"debt"`
}

// ListDebts lists the store's ledger
// @Summary      List debts
// @Description  Debts with totals reconciled from payment history, unresolved first.
// @Tags         debts
// @Produce      json
// @Param        X-Store-ID  header    int     true   "Store id"
// @Param        search      query     string  false  "Match customer, product, device id or payment channel"
// @Param        page        query     int     false  "Page number, 1-based"
// @Success      200  {object}  Response{data=ledger.Page}
// @Failure      503  {object}  Response
// @Router       /debts [get]
// @Security     BasicAuth
func (h *Handlers) ListDebts(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	page, err := h.ledger.View(r.Context(), scope, ledger.ViewFilter{
		Search: r.URL.Query().Get("search"),
		Page:   queryPage(r),
	})
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetDebt gets one ledger row
// @Summary      Get debt
// @Tags         debts
// @Produce      json
// @Param        X-Store-ID  header  int  true  "Store id"
// @Param        id          path    int  true  "Debt ID"
// @Success      200  {object}  Response{data=models.LedgerRow}
// @Failure      404  {object}  Response
// @Router       /debts/{id} [get]
// @Security     BasicAuth
func (h *Handlers) GetDebt(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	row, err := h.ledger.Get(r.Context(), scope, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// CreateDebt originates a debt
// @Summary      Create debt
// @Description  Create a debt. A non-zero deposit is recorded as its first payment.
// @Tags         debts
// @Accept       json
// @Produce      json
// @Param        X-Store-ID  header  int               true  "Store id"
// @Param        debt        body    models.DebtInput  true  "Debt data"
// @Success      201  {object}  Response{data=models.LedgerRow}
// @Failure      400  {object}  Response
// @Failure      409  {object}  Response
// @Router       /debts [post]
// @Security     BasicAuth
func (h *Handlers) CreateDebt(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	var input models.DebtInput
	if !decode(w, r, &input) {
		return
	}
	row, err := h.ledger.CreateDebt(r.Context(), scope, input)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, row)
}

// ListPayments lists a debt's payment history
// @Summary      List payments
// @Description  Payments settling the debt, newest first.
// @Tags         debts
// @Produce      json
// @Param        X-Store-ID  header  int  true  "Store id"
// @Param        id          path    int  true  "Debt ID"
// @Success      200  {object}  Response{data=[]models.Payment}
// @Failure      404  {object}  Response
// @Router       /debts/{id}/payments [get]
// @Security     BasicAuth
func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	payments, err := h.ledger.History(r.Context(), scope, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}
	writeJSON(w, http.StatusOK, payments)
}

// RecordPayment records a payment
// @Summary      Record payment
// @Description  Append a payment. Amounts above the remaining balance are rejected; a repeated idempotency key on the same debt returns the earlier payment.
// @Tags         debts
// @Accept       json
// @Produce      json
// @Param        X-Store-ID  header  int                  true  "Store id"
// @Param        id          path    int                  true  "Debt ID"
// @Param        payment     body    models.PaymentInput  true  "Payment data"
// @Success      201  {object}  Response{data=paymentResult}
// @Failure      400  {object}  Response
// @Failure      409  {object}  Response
// @Failure      422  {object}  Response
// @Router       /debts/{id}/payments [post]
// @Security     BasicAuth
func (h *Handlers) RecordPayment(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.PaymentInput
	if !decode(w, r, &input) {
		return
	}
	if input.IdempotencyKey == "" {
		input.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}
	p, d, err := h.ledger.RecordPayment(r.Context(), scope, id, input)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, paymentResult{Payment: p, Debt: d})
}

// ListDebtDevices lists the device ids sold on credit with their sold state
// @Summary      List debt devices
// @Tags         debts
// @Produce      json
// @Param        X-Store-ID  header  int  true   "Store id"
// @Param        id          path    int  true   "Debt ID"
// @Param        page        query   int  false  "Page number, 1-based"
// @Success      200  {object}  Response{data=models.DeviceReport}
// @Failure      404  {object}  Response
// @Router       /debts/{id}/devices [get]
// @Security     BasicAuth
func (h *Handlers) ListDebtDevices(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	row, err := h.ledger.Get(r.Context(), scope, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.inventory.DevicePage(r.Context(), scope, row.DeviceIDs, queryPage(r)))
}
