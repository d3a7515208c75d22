package carts

import (
	"context"
	"time"
)

type Cart struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	TotalCents int64     `json:"total_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type CartView struct {
	Cart       Cart       `json:"cart"`
	Items      []CartLine `json:"items"`
	TotalCents int64      `json:"total_cents"`
}

type CartLine struct {
	ItemID         int64   `json:"item_id"`
	ProductID      int64   `json:"product_id"`
	ProductName    string  `json:"product_name"`
	Quantity       int     `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	LineTotalCents int64   `json:"line_total_cents"`
	ImageURL       *string `json:"image_url,omitempty"`
}

type Store interface {
	// --- User-level operations ---
	GetOrCreate(ctx context.Context, userID int64) (int64, error)
	AddItem(ctx context.Context, userID, productID int64, qty int) error
	UpdateItemQty(ctx context.Context, userID, itemID int64, qty int) error
	RemoveItem(ctx context.Context, userID, itemID int64) error
	Clear(ctx context.Context, userID int64) error
	GetView(ctx context.Context, userID int64) (*CartView, error)

	// --- Internal operations ---
	// ClearByID empties the cart's items and zeroes its total. Idempotent,
	// including when the cart no longer exists.
	ClearByID(ctx context.Context, cartID int64) error
}
