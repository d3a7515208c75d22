package wishlist

import (
	"context"
	"time"

	"mercato/internal/domain/products"
)

// Entry is a single wishlisted product for a user.
type Entry struct {
	Product products.Product `json:"product"`
	AddedAt time.Time        `json:"added_at"`
}

type Store interface {
	Contains(ctx context.Context, userID, productID int64) (bool, error)
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) error
	ListByUser(ctx context.Context, userID int64) ([]Entry, error)
}
