package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/satheeshds/trackey/models"
)

// ListProducts lists products
// @Summary      List products
// @Description  One page of products with their inventory snapshot.
// @Tags         products
// @Produce      json
// @Param        X-Store-ID  header  int     true   "Store id"
// @Param        search      query   string  false  "Search by name or device id"
// @Param        page        query   int     false  "Page number, 1-based"
// @Success      200  {object}  Response{data=inventory.ProductPage}
// @Router       /products [get]
// @Security     BasicAuth
func (h *Handlers) ListProducts(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	page, err := h.inventory.List(r.Context(), scope, r.URL.Query().Get("search"), queryPage(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// GetProduct gets a product by ID
// @Summary      Get product
// @Tags         products
// @Produce      json
// @Param        X-Store-ID  header  int  true  "Store id"
// @Param        id          path    int  true  "Product ID"
// @Success      200  {object}  Response{data=inventory.ProductRow}
// @Failure      404  {object}  Response
// @Router       /products/{id} [get]
// @Security     BasicAuth
func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	row, err := h.inventory.Get(r.Context(), scope, id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// CreateProducts creates a batch of products
// @Summary      Create products
// @Description  Every device id must be 15 digits and unique across the batch and the store, or nothing is created.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        X-Store-ID  header  int                    true  "Store id"
// @Param        products    body    []models.ProductInput  true  "Products"
// @Success      201  {object}  Response{data=[]models.Product}
// @Failure      400  {object}  Response
// @Failure      409  {object}  Response
// @Router       /products [post]
// @Security     BasicAuth
func (h *Handlers) CreateProducts(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	var input []models.ProductInput
	if !decode(w, r, &input) {
		return
	}
	created, err := h.inventory.CreateProducts(r.Context(), scope, input)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateProduct updates a product
// @Summary      Update product
// @Description  Replace the product and its device id list. The sold count is kept.
// @Tags         products
// @Accept       json
// @Produce      json
// @Param        X-Store-ID  header  int                  true  "Store id"
// @Param        id          path    int                  true  "Product ID"
// @Param        product     body    models.ProductInput  true  "Product data"
// @Success      200  {object}  Response{data=inventory.ProductRow}
// @Failure      400  {object}  Response
// @Failure      409  {object}  Response
// @Router       /products/{id} [put]
// @Security     BasicAuth
func (h *Handlers) UpdateProduct(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var input models.ProductInput
	if !decode(w, r, &input) {
		return
	}
	row, err := h.inventory.UpdateProduct(r.Context(), scope, id, input)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// DeleteProduct deletes a product
// @Summary      Delete product
// @Tags         products
// @Param        X-Store-ID  header  int  true  "Store id"
// @Param        id          path    int  true  "Product ID"
// @Success      204
// @Failure      404  {object}  Response
// @Router       /products/{id} [delete]
// @Security     BasicAuth
func (h *Handlers) DeleteProduct(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.inventory.DeleteProduct(r.Context(), scope, id); err != nil {
		h.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDevices lists a product's device ids with their sold state
// @Summary      List devices
// @Tags         products
// @Produce      json
// @Param        X-Store-ID  header  int  true   "Store id"
// @Param        id          path    int  true   "Product ID"
// @Param        page        query   int  false  "Page number, 1-based"
// @Success      200  {object}  Response{data=models.DeviceReport}
// @Failure      404  {object}  Response
// @Router       /products/{id}/devices [get]
// @Security     BasicAuth
func (h *Handlers) ListDevices(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	report, err := h.inventory.DeviceStatus(r.Context(), scope, id, queryPage(r))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// RemoveDevice removes one device id from a product
// @Summary      Remove device
// @Tags         products
// @Produce      json
// @Param        X-Store-ID  header  int     true  "Store id"
// @Param        id          path    int     true  "Product ID"
// @Param        deviceId    path    string  true  "Device id"
// @Success      200  {object}  Response{data=inventory.ProductRow}
// @Failure      404  {object}  Response
// @Router       /products/{id}/devices/{deviceId} [delete]
// @Security     BasicAuth
func (h *Handlers) RemoveDevice(w http.ResponseWriter, r *http.Request, scope models.Scope) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	row, err := h.inventory.RemoveDevice(r.Context(), scope, id, chi.URLParam(r, "deviceId"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}
