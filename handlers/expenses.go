package handlers

import (
	"net/http"
	"strings"

	"github.com/satheeshds/trackey/events"
	"github.com/satheeshds/trackey/models"
)

const tableExpenses = "expenses"

func (h *Handlers) publish(table string, t events.ChangeType, storeID, rowID int64) {
	if h.hub == nil {
		return
	}
	h.hub.Publish(events.Change{Table: table, Type: t, StoreID: storeID, RowID: rowID, At: h.now()})
}

func expenseFrom(in models.ExpenseInput) models.Expense {
	e := models.Expense{
		ExpenseDate: in.ExpenseDate,
		ExpenseType: strings.TrimSpace(in.ExpenseType),
		Amount:      in.Amount,
	}
	if in.Description != nil {
		if d := strings.TrimSpace(*in.Description); d != "" {
			e.Description = &d
		}
	}
	return e
}

// ListExpenses lists the store's expenses
// @Summary      List expenses
// @Tags         expenses
// @Produce      json
// @Param        X-Store-ID  header  int     true   "Store id"
// @Param        search      query   string  false  "Search by type or description"
// @Success      200  {object}  Response{data=[]models.Expense}
// @Router       /expenses [get]
// @Security     BasicAuth
func (h *Handlers) ListExpenses(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	expenses, err := h.store.ListExpenses(r.Context(), scope.StoreID, strings.TrimSpace(r.URL.Query().Get("search")))
	if err != nil {
		h.writeErr(w, r, models.WrapStore("list expenses", err))
		return
	}
	if expenses == nil {
		expenses = []models.Expense{}
	}
	writeJSON(w, http.StatusOK, expenses)
}

// CreateExpense creates an expense
// @Summary      Create expense
// @Description  The creator is recorded as the acting user, or as the owner when no user id is sent.
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        X-Store-ID  header  int                  true  "Store id"
// @Param        X-User-ID   header  int                  false "Acting staff user"
// @Param        expense     body    models.ExpenseInput  true  "Expense data"
// @Success      201  {object}  Response{data=models.Expense}
// @Failure      400  {object}  Response
// @Router       /expenses [post]
// @Security     BasicAuth
func (h *Handlers) CreateExpense(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	var input models.ExpenseInput
	if !decode(w, r, &input) {
		return
	}
	if msg := input.Validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "validation", msg)
		return
	}

	e := expenseFrom(input)
	e.StoreID = scope.StoreID
	if scope.IsOwner() {
		owner := scope.StoreID
		e.CreatedByOwner = &owner
	} else {
		e.CreatedByUser = scope.UserID
	}

	created, err := h.store.CreateExpense(r.Context(), e)
	if err != nil {
		h.writeErr(w, r, models.WrapStore("create expense", err))
		return
	}
	h.publish(tableExpenses, events.Insert, scope.StoreID, created.ID)
	writeJSON(w, http.StatusCreated, created)
}

// UpdateExpense updates an expense
// @Summary      Update expense
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        X-Store-ID  header  int                  true  "Store id"
// @Param        id          path    int                  true  "Expense ID"
// @Param        expense     body    models.ExpenseInput  true  "Expense data"
// @Success      200  {object}  Response{data=models.Expense}
// @Failure      400  {object}  Response
// @Failure      404  {object}  Response
// @Router       /expenses/{id} [put]
// @Security     BasicAuth
func (h *Handlers) UpdateExpense(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.ExpenseInput
	if !decode(w, r, &input) {
		return
	}
	if msg := input.Validate(); msg != "" {
		writeError(w, http.StatusBadRequest, "validation", msg)
		return
	}

	e := expenseFrom(input)
	e.ID, e.StoreID = id, scope.StoreID
	updated, err := h.store.UpdateExpense(r.Context(), e)
	if err != nil {
		h.writeErr(w, r, models.WrapStore("update expense", err))
		return
	}
	h.publish(tableExpenses, events.Update, scope.StoreID, id)
	writeJSON(w, http.StatusOK, updated)
}

// DeleteExpense deletes an expense
// @Summary      Delete expense
// @Description  Only the store owner may delete expenses.
// @Tags         expenses
// @Param        X-Store-ID  header  int  true   "Store id"
// @Param        X-User-ID   header  int  false  "Acting staff user"
// @Param        id          path    int  true   "Expense ID"
// @Success      204
// @Failure      403  {object}  Response
// @Failure      404  {object}  Response
// @Router       /expenses/{id} [delete]
// @Security     BasicAuth
func (h *Handlers) DeleteExpense(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if !scope.IsOwner() {
		h.writeErr(w, r, models.ErrForbidden)
		return
	}
	if err := h.store.DeleteExpense(r.Context(), scope.StoreID, id); err != nil {
		h.writeErr(w, r, models.WrapStore("delete expense", err))
		return
	}
	h.publish(tableExpenses, events.Delete, scope.StoreID, id)
	w.WriteHeader(http.StatusNoContent)
}
