package wishlist

import (
	"context"
	"fmt"

	"mercato/internal/infra/dbx"
)

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

// Contains reports whether the product is already on the user's wishlist.
func (r *Repository) Contains(ctx context.Context, userID, productID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM wishlist_items
			WHERE user_id = $1 AND product_id = $2
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, userID, productID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check wishlist: %w", err)
	}
	return exists, nil
}

func (r *Repository) Add(ctx context.Context, userID, productID int64) error {
	query := `
		INSERT INTO wishlist_items (user_id, product_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	_, err := r.db.Exec(ctx, query, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}
	return nil
}

func (r *Repository) Remove(ctx context.Context, userID, productID int64) error {
	query := `
		DELETE FROM wishlist_items
		WHERE user_id = $1 AND product_id = $2
	`
	_, err := r.db.Exec(ctx, query, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", err)
	}
	return nil
}

// ListByUser returns all wishlisted products for a user, newest first.
// Products that were soft-deleted since being wishlisted are excluded.
func (r *Repository) ListByUser(ctx context.Context, userID int64) ([]Entry, error) {
	query := `
		SELECT p.id, p.name, p.slug, p.description, p.price_cents, p.stock,
		       p.image_url, p.is_active, p.created_at, p.updated_at,
		       w.created_at
		FROM products p
		JOIN wishlist_items w ON p.id = w.product_id
		WHERE w.user_id = $1 AND p.is_active = true
		ORDER BY w.created_at DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.Product.ID, &e.Product.Name, &e.Product.Slug, &e.Product.Description,
			&e.Product.PriceCents, &e.Product.Stock, &e.Product.ImageURL,
			&e.Product.IsActive, &e.Product.CreatedAt, &e.Product.UpdatedAt,
			&e.AddedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist row: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
