package domain

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrProductNotFound        = errors.New("product not found")
	ErrProductExists          = errors.New("product already exists")
	ErrWarehouseNotFound      = errors.New("warehouse not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrInvalidConfiguration   = errors.New("invalid configuration")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrInvalidSalesRecord     = errors.New("invalid sales record")
	ErrInvalidCandidate       = errors.New("invalid warehouse candidate")
	ErrConcurrentModification = errors.New("product was modified concurrently")
	ErrLockNotAcquired        = errors.New("sku lock not acquired")
	ErrPlanNotApplicable      = errors.New("approved plan no longer applies")
)

// InsufficientStockError reports a commit whose total exceeds the units on hand.
// It matches ErrInsufficientStock with errors.Is.
type InsufficientStockError struct {
	SKU       string
	Attempted int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: attempted %d, available %d", e.SKU, e.Attempted, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// ConfigurationError names the policy field that failed validation.
// It matches ErrInvalidConfiguration with errors.Is.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrInvalidConfiguration }
