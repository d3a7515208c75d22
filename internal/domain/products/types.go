package products

import "time"

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	ImageURL    *string   `json:"image_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SnapshotInfo is the slice of a product a checkout snapshot captures.
// Resolved once at initialization time, never re-derived afterwards.
type SnapshotInfo struct {
	ID         int64
	Name       string
	PriceCents int64
	Stock      int
	ImageURL   *string
}
