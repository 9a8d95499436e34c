// Package repository persists raw listings, products, versions and change logs.
package repository

import (
	"errors"
	"strings"

	"lumenwatch/internal/model"
)

var (
	ErrVersionConflict = model.ErrVersionConflict
	ErrNotFound        = model.ErrNotFound
	// ErrProductExists is returned when (brand, model, state_province) is already stored.
	ErrProductExists = errors.New("product already exists")
)

const (
	syncPending   = "S"
	syncProcessed = "N"
)

// productKey identifies a per-region product row. Brand and model compare
// case-insensitively, matching the products_identity_idx index.
func productKey(brand, modelName, stateProvince string) string {
	return strings.Join([]string{model.NameKey(brand), model.NameKey(modelName), strings.TrimSpace(stateProvince)}, "\x00")
}
