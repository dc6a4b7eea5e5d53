package inventory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/satheeshds/trackey/events"
	"github.com/satheeshds/trackey/models"
	"github.com/satheeshds/trackey/store"
)

const (
	DefaultPageSize   = 10
	DevicePageSize    = 20
	DefaultSoldLookup = 3 * time.Second

	tableProducts  = "products"
	tableSnapshots = "inventory_snapshots"
	tableSales     = "sales"
)

// Store is the part of store.Store the inventory needs.
type Store interface {
	store.ProductStore
	store.SaleStore
}

type Service struct {
	store      Store
	events     events.Publisher
	log        *slog.Logger
	now        func() time.Time
	soldLookup time.Duration
}

// NewService builds an inventory service. soldLookup bounds the sales query
// behind DeviceStatus; zero selects DefaultSoldLookup.
func NewService(st Store, pub events.Publisher, log *slog.Logger, soldLookup time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	if soldLookup <= 0 {
		soldLookup = DefaultSoldLookup
	}
	return &Service{
		store:      st,
		events:     pub,
		log:        log.With("component", "inventory"),
		now:        func() time.Time { return time.Now().UTC() },
		soldLookup: soldLookup,
	}
}

// ProductRow is a product with its inventory snapshot.
type ProductRow struct {
	models.Product
	Inventory *models.InventorySnapshot `json:"inventory"`
}

type ProductPage struct {
	Rows  []ProductRow `json:"rows"`
	Total int          `json:"total"`
	Page  int          `json:"page"`
	Pages int          `json:"pages"`
}

func (s *Service) publish(table string, t events.ChangeType, storeID, rowID int64) {
	if s.events == nil {
		return
	}
	s.events.Publish(events.Change{Table: table, Type: t, StoreID: storeID, RowID: rowID, At: s.now()})
}

// List returns one page of products, searched by name or device id.
func (s *Service) List(ctx context.Context, scope models.Scope, search string, page int) (ProductPage, error) {
	if page < 1 {
		page = 1
	}
	products, total, err := s.store.ListProducts(ctx, scope.StoreID, store.ProductFilter{
		Search: search,
		Limit:  DefaultPageSize,
		Offset: (page - 1) * DefaultPageSize,
	})
	if err != nil {
		s.log.Error("failed to fetch products", "store_id", scope.StoreID, "error", err)
		return ProductPage{}, models.WrapStore("list products", err)
	}
	snaps, err := s.store.ListSnapshots(ctx, scope.StoreID)
	if err != nil {
		return ProductPage{}, models.WrapStore("list snapshots", err)
	}
	byProduct := make(map[int64]models.InventorySnapshot, len(snaps))
	for _, sn := range snaps {
		byProduct[sn.ProductID] = sn
	}

	rows := make([]ProductRow, 0, len(products))
	for _, p := range products {
		row := ProductRow{Product: p}
		if sn, ok := byProduct[p.ID]; ok {
			row.Inventory = &sn
		}
		rows = append(rows, row)
	}
	return ProductPage{
		Rows:  rows,
		Total: total,
		Page:  page,
		Pages: (total + DefaultPageSize - 1) / DefaultPageSize,
	}, nil
}

// Get returns one product with its snapshot.
func (s *Service) Get(ctx context.Context, scope models.Scope, id int64) (ProductRow, error) {
	p, err := s.store.GetProduct(ctx, scope.StoreID, id)
	if err != nil {
		return ProductRow{}, models.WrapStore("get product", err)
	}
	row := ProductRow{Product: p}
	sn, err := s.store.GetSnapshot(ctx, scope.StoreID, id)
	switch {
	case err == nil:
		row.Inventory = &sn
	case !errors.Is(err, models.ErrNotFound):
		return ProductRow{}, models.WrapStore("get snapshot", err)
	}
	return row, nil
}

// CreateProducts adds a batch of products. An identifier repeated anywhere in
// the batch, or already owned by an existing product, rejects the whole batch.
func (s *Service) CreateProducts(ctx context.Context, scope models.Scope, inputs []models.ProductInput) ([]models.Product, error) {
	if len(inputs) == 0 {
		return nil, models.NewValidation(models.KindFormat, "products", "at least one product is required")
	}

	products := make([]models.Product, 0, len(inputs))
	var all []string
	for i := range inputs {
		in := &inputs[i]
		if msg := in.Validate(); msg != "" {
			return nil, models.NewValidation(models.KindFormat, "product", msg)
		}
		ids := CleanIDs(in.DeviceIDs)
		if len(ids) == 0 {
			return nil, models.NewValidation(models.KindFormat, "device_ids", "each product needs at least one device id", in.Name)
		}
		all = append(all, ids...)
		products = append(products, productFrom(*in, ids))
	}

	existing, err := s.store.DeviceIDsOutside(ctx, scope.StoreID, 0)
	if err != nil {
		return nil, models.WrapStore("list device ids", err)
	}
	if _, err := ValidateDeviceIDSet(all, existing); err != nil {
		return nil, err
	}

	now := s.now()
	created, err := s.store.CreateProducts(ctx, scope.StoreID, products, func(p models.Product, prev *models.InventorySnapshot) models.InventorySnapshot {
		return ApplyDeviceIDSet(prev, p.ID, p.DeviceIDs, now)
	})
	if err != nil {
		s.log.Error("failed to create products", "store_id", scope.StoreID, "error", err)
		return nil, models.WrapStore("create products", err)
	}
	for _, p := range created {
		s.publish(tableProducts, events.Insert, scope.StoreID, p.ID)
	}
	s.log.Info("products created", "store_id", scope.StoreID, "count", len(created), "devices", len(all))
	return created, nil
}

// UpdateProduct replaces a product's fields and identifier list.
func (s *Service) UpdateProduct(ctx context.Context, scope models.Scope, id int64, in models.ProductInput) (ProductRow, error) {
	if msg := in.Validate(); msg != "" {
		return ProductRow{}, models.NewValidation(models.KindFormat, "product", msg)
	}
	existing, err := s.store.DeviceIDsOutside(ctx, scope.StoreID, id)
	if err != nil {
		return ProductRow{}, models.WrapStore("list device ids", err)
	}
	ids, err := ValidateDeviceIDSet(in.DeviceIDs, existing)
	if err != nil {
		return ProductRow{}, err
	}

	now := s.now()
	p, sn, err := s.store.MutateProduct(ctx, scope.StoreID, id, func(p *models.Product, prev *models.InventorySnapshot) (*models.InventorySnapshot, error) {
		next := productFrom(in, ids)
		next.ID, next.StoreID, next.CreatedAt = p.ID, p.StoreID, p.CreatedAt
		*p = next
		snap := ApplyDeviceIDSet(prev, p.ID, ids, now)
		return &snap, nil
	})
	if err != nil {
		return ProductRow{}, models.WrapStore("update product", err)
	}
	s.publish(tableProducts, events.Update, scope.StoreID, id)
	s.publish(tableSnapshots, events.Update, scope.StoreID, id)
	return ProductRow{Product: p, Inventory: &sn}, nil
}

// RemoveDevice drops one identifier from a product. Removing an identifier the
// product does not hold changes nothing.
func (s *Service) RemoveDevice(ctx context.Context, scope models.Scope, productID int64, deviceID string) (ProductRow, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return ProductRow{}, models.NewValidation(models.KindFormat, "device_id", "device id is required")
	}

	now := s.now()
	removed := false
	p, sn, err := s.store.MutateProduct(ctx, scope.StoreID, productID, func(p *models.Product, prev *models.InventorySnapshot) (*models.InventorySnapshot, error) {
		var cur models.InventorySnapshot
		if prev != nil {
			cur = *prev
		} else {
			cur = ApplyDeviceIDSet(nil, p.ID, p.DeviceIDs, now)
		}
		rest, next, ok := RemoveDeviceID(p.DeviceIDs, cur, deviceID, now)
		if !ok {
			return nil, nil
		}
		removed = true
		p.DeviceIDs = rest
		p.PurchaseQty = len(rest)
		return &next, nil
	})
	if err != nil {
		return ProductRow{}, models.WrapStore("remove device", err)
	}
	if removed {
		s.log.Info("device removed", "store_id", scope.StoreID, "product_id", productID, "device_id", deviceID)
		s.publish(tableProducts, events.Update, scope.StoreID, productID)
		s.publish(tableSnapshots, events.Update, scope.StoreID, productID)
	}
	return ProductRow{Product: p, Inventory: &sn}, nil
}

// DeleteProduct removes a product together with its identifiers and snapshot.
func (s *Service) DeleteProduct(ctx context.Context, scope models.Scope, productID int64) error {
	if err := s.store.DeleteProduct(ctx, scope.StoreID, productID); err != nil {
		return models.WrapStore("delete product", err)
	}
	s.publish(tableProducts, events.Delete, scope.StoreID, productID)
	return nil
}

// DeviceStatus lists one page of a product's identifiers with their sold flag.
// The sales lookup is bounded by the service timeout; when it fails the listing
// is still returned with every device unsold and SoldStatusUnavailable set.
func (s *Service) DeviceStatus(ctx context.Context, scope models.Scope, productID int64, page int) (models.DeviceReport, error) {
	p, err := s.store.GetProduct(ctx, scope.StoreID, productID)
	if err != nil {
		return models.DeviceReport{}, models.WrapStore("get product", err)
	}
	report := s.DevicePage(ctx, scope, p.DeviceIDs, page)
	report.ProductID = productID
	return report, nil
}

// DevicePage classifies one DevicePageSize page of ids.
func (s *Service) DevicePage(ctx context.Context, scope models.Scope, ids []string, page int) models.DeviceReport {
	if page < 1 {
		page = 1
	}
	total := len(ids)
	lo := min((page-1)*DevicePageSize, total)

	report := s.SoldStatus(ctx, scope, ids[lo:min(lo+DevicePageSize, total)])
	report.Total = total
	report.Page = page
	report.Pages = (total + DevicePageSize - 1) / DevicePageSize
	return report
}

// SoldStatus classifies arbitrary identifiers as sold or available.
func (s *Service) SoldStatus(ctx context.Context, scope models.Scope, ids []string) models.DeviceReport {
	ids = CleanIDs(ids)
	report := models.DeviceReport{Devices: make([]models.DeviceStatus, 0, len(ids)), Total: len(ids), Page: 1}
	if len(ids) > 0 {
		report.Pages = 1
	}

	var sold map[string]struct{}
	if len(ids) > 0 {
		lookupCtx, cancel := context.WithTimeout(ctx, s.soldLookup)
		defer cancel()
		sales, err := s.store.SalesFor(lookupCtx, scope.StoreID, ids)
		if err != nil {
			s.log.Warn("sold status unavailable", "store_id", scope.StoreID, "error", err)
			report.SoldStatusUnavailable = true
		} else {
			sold = ClassifySoldStatus(ids, sales)
		}
	}
	for _, id := range ids {
		_, isSold := sold[id]
		report.Devices = append(report.Devices, models.DeviceStatus{DeviceID: id, Sold: isSold})
	}
	return report
}

// RecordSale marks a device as sold and moves one unit from available to sold
// on its product's snapshot. A device can be sold once.
func (s *Service) RecordSale(ctx context.Context, scope models.Scope, in models.SaleInput) (models.Sale, error) {
	if msg := in.Validate(); msg != "" {
		return models.Sale{}, models.NewValidation(models.KindFormat, "device_id", msg)
	}
	id := strings.TrimSpace(in.DeviceID)
	if !ValidateIMEI(id) {
		return models.Sale{}, models.NewValidation(models.KindFormat, "device_id", "device ids must be exactly 15 digits", id)
	}

	now := s.now()
	sale, err := s.store.RecordSale(ctx, models.Sale{StoreID: scope.StoreID, DeviceID: id, SoldAt: now},
		func(p *models.Product, prev *models.InventorySnapshot) (*models.InventorySnapshot, error) {
			next := ApplyDeviceIDSet(nil, p.ID, p.DeviceIDs, now)
			if prev != nil {
				next = *prev
			}
			next.QuantitySold++
			next.AvailableQty = max(0, next.AvailableQty-1)
			next.LastUpdated = now
			return &next, nil
		})
	if err != nil {
		return models.Sale{}, models.WrapStore("record sale", err)
	}
	s.publish(tableSales, events.Insert, scope.StoreID, sale.ID)
	if sale.ProductID != nil {
		s.publish(tableSnapshots, events.Update, scope.StoreID, *sale.ProductID)
	}
	return sale, nil
}

func productFrom(in models.ProductInput, ids []string) models.Product {
	return models.Product{
		Name:          strings.TrimSpace(in.Name),
		Description:   strings.TrimSpace(in.Description),
		PurchasePrice: in.PurchasePrice,
		SellingPrice:  in.SellingPrice,
		PurchaseQty:   len(ids),
		Supplier:      strings.TrimSpace(in.Supplier),
		DeviceIDs:     ids,
	}
}
