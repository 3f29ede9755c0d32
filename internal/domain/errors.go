package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	ErrCartNotFound    = fmt.Errorf("cart %w", ErrNotFound)
	ErrItemNotFound    = fmt.Errorf("item %w in cart", ErrNotFound)

	ErrProductInactive     = errors.New("product is not active")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrUpstreamUnavailable = errors.New("catalog service unavailable")

	ErrValidationFailed      = errors.New("validation failed")
	ErrQuantityLimitExceeded = fmt.Errorf("%w: quantity exceeds the per-item limit", ErrValidationFailed)
)

// InsufficientStockError reports a requested quantity the catalog cannot cover.
type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}
