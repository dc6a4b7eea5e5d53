package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a batch of identical gadgets, each unit carrying a device identifier.
type Product struct {
	ID            int64           `json:"id"`
	StoreID       int64           `json:"store_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	PurchaseQty   int             `json:"purchase_qty"` // always len(DeviceIDs)
	Supplier      string          `json:"suppliers_name"`
	DeviceIDs     []string        `json:"device_ids"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ProductInput is used for creating/updating products.
type ProductInput struct {
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	SellingPrice  decimal.Decimal `json:"selling_price"`
	Supplier      string          `json:"suppliers_name" validate:"max=180"`
	DeviceIDs     []string        `json:"device_ids"`
}

func (p *ProductInput) Validate() string {
	if msg := firstViolation(p); msg != "" {
		return msg
	}
	if p.PurchasePrice.IsNegative() || p.SellingPrice.IsNegative() {
		return "prices must be non-negative"
	}
	return ""
}

// InventorySnapshot is the denormalized availability counter of a product.
// The product's device list stays authoritative.
type InventorySnapshot struct {
	ProductID    int64     `json:"product_id"`
	StoreID      int64     `json:"store_id"`
	AvailableQty int       `json:"available_qty"`
	QuantitySold int       `json:"quantity_sold"`
	LastUpdated  time.Time `json:"last_updated"`
}

// Sale records that a device identifier was sold.
type Sale struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	DeviceID  string    `json:"device_id"`
	ProductID *int64    `json:"product_id"`
	SoldAt    time.Time `json:"sold_at"`
}

// SaleInput is the request body for recording a device sale.
type SaleInput struct {
	DeviceID string `json:"device_id" validate:"required"`
}

func (s *SaleInput) Validate() string {
	return firstViolation(s)
}

// DeviceStatus is one identifier annotated with its sold state.
type DeviceStatus struct {
	DeviceID string `json:"device_id"`
	Sold     bool   `json:"sold"`
}

// DeviceReport lists a product's identifiers page by page.
type DeviceReport struct {
	ProductID             int64          `json:"product_id"`
	Devices               []DeviceStatus `json:"devices"`
	Total                 int            `json:"total"`
	Page                  int            `json:"page"`
	Pages                 int            `json:"pages"`
	// SoldStatusUnavailable is set when the sales lookup failed or timed out;
	// every device is then reported unsold.
	SoldStatusUnavailable bool           `json:"sold_status_unavailable,omitempty"`
}
