package checkout

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart is returned when checkout is initialized on a cart with no
	// items.
	ErrEmptyCart = errors.New("cart is empty")

	// ErrStaleProduct is returned when a cart still references a product that
	// is no longer purchasable.
	ErrStaleProduct = errors.New("cart references an unavailable product")

	// ErrNotFound is returned when no checkout record matches the lookup.
	ErrNotFound = errors.New("checkout record not found")
)

// InvalidStateError reports an operation attempted against a record that has
// already settled. Current names the status the record is actually in.
type InvalidStateError struct {
	Current Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("order is already %s", e.Current)
}
