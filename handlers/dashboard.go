package handlers

import (
	"net/http"
	"slices"

	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/report"
)

type dashboardData struct {
	report.Summary
	RecentDebts []models.LedgerRow `json:"recent_debts"`
}

// GetDashboard retrieves dashboard summary statistics
// @Summary      Get dashboard
// @Description  Debt counts by status, outstanding and collected totals, inventory and expense totals.
// @Tags         dashboard
// @Produce      json
// @Param        X-Store-ID  header  int  true  "Store id"
// @Success      200  {object}  Response{data=dashboardData}
// @Router       /dashboard [get]
// @Security     BasicAuth
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	ds, err := report.Collect(r.Context(), h.store, scope.StoreID)
	if err != nil {
		h.writeErr(w, r, models.WrapStore("dashboard", err))
		return
	}

	recent := slices.Clone(ds.Ledger)
	slices.SortStableFunc(recent, func(a, b models.LedgerRow) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	d := dashboardData{
		Summary:     report.Summarize(ds, h.now()),
		RecentDebts: recent[:min(5, len(recent))],
	}

	writeJSON(w, http.StatusOK, d)
}
