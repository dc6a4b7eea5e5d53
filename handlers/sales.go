package handlers

import (
	"net/http"
	"strings"

	"github.com/satheeshds/trackey/models"
)

// RecordSale records that a device was sold
// @Summary      Record sale
// @Description  Mark a device id as sold and move one unit from available to sold on its product.
// @Tags         sales
// @Accept       json
// @Produce      json
// @Param        X-Store-ID  header  int               true  "Store id"
// @Param        sale        body    models.SaleInput  true  "Sale data"
// @Success      201  {object}  Response{data=models.Sale}
// @Failure      400  {object}  Response
// @Failure      409  {object}  Response
// @Router       /sales [post]
// @Security     BasicAuth
func (h *Handlers) RecordSale(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	var input models.SaleInput
	if !decode(w, r, &input) {
		return
	}
	sale, err := h.inventory.RecordSale(r.Context(), scope, input)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sale)
}

// SoldStatus classifies device ids as sold or available
// @Summary      Sold status
// @Description  When the sales lookup times out every device is reported unsold and sold_status_unavailable is set.
// @Tags         sales
// @Produce      json
// @Param        X-Store-ID  header  int     true  "Store id"
// @Param        ids         query   string  true  "Comma separated device ids"
// @Success      200  {object}  Response{data=models.DeviceReport}
// @Router       /sales/status [get]
// @Security     BasicAuth
func (h *Handlers) SoldStatus(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	var ids []string
	for _, v := range r.URL.Query()["ids"] {
		ids = append(ids, strings.Split(v, ",")...)
	}
	writeJSON(w, http.StatusOK, h.inventory.SoldStatus(r.Context(), scope, ids))
}
