// Package inventory keeps the device identifiers of each product batch unique
// within a store and the availability counters in line with them.
package inventory

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/satheeshds/trackey/models"
)

var imeiPattern = regexp.MustCompile(`^\d{15}$`)

// ValidateIMEI reports whether id is exactly 15 digits.
func ValidateIMEI(id string) bool {
	return imeiPattern.MatchString(id)
}

// CleanIDs trims every identifier and drops the blank ones.
func CleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// ValidateDeviceIDSet checks a submitted identifier list before anything is
// written: every id must be 15 digits, no id may repeat within the list and
// none may belong to another product of the store. The first failing check
// aborts the whole list. The cleaned list is returned on success.
func ValidateDeviceIDSet(candidates []string, existingOutside map[string]struct{}) ([]string, error) {
	ids := CleanIDs(candidates)

	var invalid []string
	for _, id := range ids {
		if !ValidateIMEI(id) {
			invalid = append(invalid, id)
		}
	}
	if len(invalid) > 0 {
		return nil, models.NewValidation(models.KindFormat, "device_ids", "device ids must be exactly 15 digits", invalid...)
	}

	seen := make(map[string]int, len(ids))
	var dups []string
	for _, id := range ids {
		seen[id]++
		if seen[id] == 2 {
			dups = append(dups, id)
		}
	}
	if len(dups) > 0 {
		return nil, models.NewValidation(models.KindDuplicate, "device_ids", "duplicate device ids", dups...)
	}

	var taken []string
	for _, id := range ids {
		if _, ok := existingOutside[id]; ok {
			taken = append(taken, id)
		}
	}
	if len(taken) > 0 {
		return nil, &models.ConflictError{Field: "device_id", Values: taken, Msg: "device ids already exist in other products"}
	}
	return ids, nil
}

// ApplyDeviceIDSet computes the snapshot after a product's identifier list has
// been replaced. Available quantity follows the list; the sold count is history
// and carries over from prev.
func ApplyDeviceIDSet(prev *models.InventorySnapshot, productID int64, ids []string, now time.Time) models.InventorySnapshot {
	snap := models.InventorySnapshot{ProductID: productID, AvailableQty: len(ids), LastUpdated: now}
	if prev != nil {
		snap.StoreID = prev.StoreID
		snap.QuantitySold = prev.QuantitySold
	}
	return snap
}

// RemoveDeviceID drops one occurrence of id. The available counter goes down by
// one but never below zero. ok is false, and nothing changes, when id is not in
// the list.
func RemoveDeviceID(ids []string, snap models.InventorySnapshot, id string, now time.Time) (rest []string, next models.InventorySnapshot, ok bool) {
	id = strings.TrimSpace(id)
	i := slices.Index(ids, id)
	if i < 0 {
		return ids, snap, false
	}
	rest = slices.Delete(slices.Clone(ids), i, i+1)
	snap.AvailableQty = max(0, snap.AvailableQty-1)
	snap.LastUpdated = now
	return rest, snap, true
}

// ClassifySoldStatus returns the subset of deviceIDs that have a sale record.
func ClassifySoldStatus(deviceIDs []string, sales []models.Sale) map[string]struct{} {
	soldIDs := make(map[string]struct{}, len(sales))
	for _, s := range sales {
		soldIDs[strings.TrimSpace(s.DeviceID)] = struct{}{}
	}
	sold := map[string]struct{}{}
	for _, id := range deviceIDs {
		id = strings.TrimSpace(id)
		if _, ok := soldIDs[id]; ok {
			sold[id] = struct{}{}
		}
	}
	return sold
}
