package inventory

import (
	"errors"
	"testing"
	"time"

	"github.com/satheeshds/trackey/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	imeiA = "111111111111111"
	imeiB = "222222222222222"
	imeiC = "333333333333333"
)

var t0 = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func TestValidateIMEI(t *testing.T) {
	cases := map[string]bool{
		"123456789012345":  true,
		"12345678901234":   false,
		"12345678901234a":  false,
		"1234567890123456": false,
		"":                 false,
		" 23456789012345":  false,
		"１２３４５６７８９０１２３４５": false,
	}
	for in, want := range cases {
		assert.Equal(t, want, ValidateIMEI(in), "%q", in)
	}
}

func TestValidateDeviceIDSet(t *testing.T) {
	t.Run("cleans and accepts", func(t *testing.T) {
		ids, err := ValidateDeviceIDSet([]string{" " + imeiA, "", imeiB + " ", "   "}, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{imeiA, imeiB}, ids)
	})

	t.Run("format", func(t *testing.T) {
		_, err := ValidateDeviceIDSet([]string{imeiA, "12345678901234", "12345678901234a"}, nil)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, models.KindFormat, ve.Kind)
		assert.Equal(t, []string{"12345678901234", "12345678901234a"}, ve.Values)
	})

	t.Run("within batch duplicate", func(t *testing.T) {
		_, err := ValidateDeviceIDSet([]string{imeiA, imeiA, imeiB, imeiA}, nil)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, models.KindDuplicate, ve.Kind)
		assert.Equal(t, []string{imeiA}, ve.Values)
		assert.Equal(t, "duplicate", models.ErrorKind(err))
	})

	t.Run("format is checked before duplicates", func(t *testing.T) {
		_, err := ValidateDeviceIDSet([]string{imeiA, imeiA, "bad"}, nil)
		var ve *models.ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, models.KindFormat, ve.Kind)
	})

	t.Run("conflict with other products", func(t *testing.T) {
		existing := map[string]struct{}{imeiB: {}, imeiC: {}}
		_, err := ValidateDeviceIDSet([]string{imeiA, imeiB, imeiC}, existing)
		var ce *models.ConflictError
		require.True(t, errors.As(err, &ce))
		assert.Equal(t, []string{imeiB, imeiC}, ce.Values)
		assert.Contains(t, err.Error(), imeiB)
	})
}

func TestApplyDeviceIDSet(t *testing.T) {
	snap := ApplyDeviceIDSet(nil, 7, []string{imeiA, imeiB}, t0)
	assert.Equal(t, models.InventorySnapshot{ProductID: 7, AvailableQty: 2, LastUpdated: t0}, snap)

	prev := &models.InventorySnapshot{ProductID: 7, StoreID: 3, AvailableQty: 1, QuantitySold: 4}
	snap = ApplyDeviceIDSet(prev, 7, []string{imeiA, imeiB, imeiC}, t0)
	assert.Equal(t, 3, snap.AvailableQty)
	assert.Equal(t, 4, snap.QuantitySold)
	assert.Equal(t, int64(3), snap.StoreID)
}

func TestRemoveDeviceID(t *testing.T) {
	ids := []string{imeiA, imeiB, imeiC}
	snap := models.InventorySnapshot{ProductID: 1, AvailableQty: 3}

	rest, next, ok := RemoveDeviceID(ids, snap, imeiB, t0)
	require.True(t, ok)
	assert.Equal(t, []string{imeiA, imeiC}, rest)
	assert.Equal(t, 2, next.AvailableQty)
	assert.Equal(t, t0, next.LastUpdated)
	assert.Equal(t, []string{imeiA, imeiB, imeiC}, ids, "input untouched")

	rest, next, ok = RemoveDeviceID(ids, snap, "999999999999999", t0)
	assert.False(t, ok)
	assert.Equal(t, ids, rest)
	assert.Equal(t, snap, next)

	// A drifted counter never goes below zero.
	_, next, ok = RemoveDeviceID([]string{imeiA}, models.InventorySnapshot{AvailableQty: 0}, imeiA, t0)
	require.True(t, ok)
	assert.Zero(t, next.AvailableQty)
}

func TestClassifySoldStatus(t *testing.T) {
	sales := []models.Sale{{DeviceID: imeiB + " "}, {DeviceID: "444444444444444"}}
	sold := ClassifySoldStatus([]string{imeiA, imeiB, imeiC}, sales)
	assert.Equal(t, map[string]struct{}{imeiB: {}}, sold)

	assert.Empty(t, ClassifySoldStatus([]string{imeiA}, nil))
}
