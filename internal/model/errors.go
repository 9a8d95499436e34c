package model

import "errors"

var (
	// ErrVersionConflict is returned by a store when (product, version number) already exists.
	ErrVersionConflict = errors.New("product version already exists")
	// ErrNotFound is returned when a referenced product does not exist.
	ErrNotFound = errors.New("product not found")
)
