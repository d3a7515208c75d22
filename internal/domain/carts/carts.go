package carts

import (
	"context"
	"errors"
	"fmt"

	"mercato/internal/infra/dbx"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var ErrItemNotFound = errors.New("cart item not found")

type Repository struct {
	db dbx.Querier
}

func NewRepository(q dbx.Querier) *Repository {
	return &Repository{db: q}
}

// GetOrCreate returns the user's cart id, creating the cart lazily.
//
// A UNIQUE constraint on carts(user_id) guarantees at most one cart per
// account. Under concurrency two callers can race the insert: the loser hits
// the unique violation and simply fetches the winning row.
func (r *Repository) GetOrCreate(ctx context.Context, userID int64) (int64, error) {
	var id int64

	err := r.db.QueryRow(ctx, `
SELECT id FROM carts WHERE user_id = $1
`, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("get cart: %w", err)
	}

	err = r.db.QueryRow(ctx, `
INSERT INTO carts (user_id) VALUES ($1) RETURNING id
`, userID).Scan(&id)
	if err == nil {
		return id, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		if serr := r.db.QueryRow(ctx, `
SELECT id FROM carts WHERE user_id = $1
`, userID).Scan(&id); serr != nil {
			return 0, fmt.Errorf("get cart after conflict: %w", serr)
		}
		return id, nil
	}

	return 0, fmt.Errorf("create cart: %w", err)
}

func (r *Repository) AddItem(ctx context.Context, userID, productID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("qty must be > 0")
	}

	cartID, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return err
	}

	const q = `
WITH p AS (
  SELECT id FROM products WHERE id = $1 AND is_active = true
)
INSERT INTO cart_items (cart_id, product_id, quantity)
SELECT $2, p.id, $3
FROM p
ON CONFLICT (cart_id, product_id)
DO UPDATE SET
  quantity   = cart_items.quantity + EXCLUDED.quantity,
  updated_at = now();
`

	tag, err := r.db.Exec(ctx, q, productID, cartID, qty)
	if err != nil {
		return fmt.Errorf("add item: %w", err)
	}

	// If the p CTE returned no rows (product missing or inactive), INSERT affects 0 rows
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("product not found or inactive")
	}

	return r.recomputeTotal(ctx, cartID)
}

func (r *Repository) UpdateItemQty(ctx context.Context, userID, itemID int64, qty int) error {
	if qty <= 0 {
		return fmt.Errorf("qty must be > 0")
	}

	var cartID int64
	err := r.db.QueryRow(ctx, `
UPDATE cart_items ci
SET quantity = $3,
    updated_at = now()
WHERE ci.id = $2
  AND ci.cart_id = (SELECT id FROM carts WHERE user_id = $1)
RETURNING ci.cart_id
`, userID, itemID, qty).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		return fmt.Errorf("update qty: %w", err)
	}

	return r.recomputeTotal(ctx, cartID)
}

func (r *Repository) RemoveItem(ctx context.Context, userID, itemID int64) error {
	var cartID int64
	err := r.db.QueryRow(ctx, `
DELETE FROM cart_items
WHERE id = $2
  AND cart_id = (SELECT id FROM carts WHERE user_id = $1)
RETURNING cart_id
`, userID, itemID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrItemNotFound
		}
		return fmt.Errorf("remove item: %w", err)
	}

	return r.recomputeTotal(ctx, cartID)
}

func (r *Repository) Clear(ctx context.Context, userID int64) error {
	var cartID int64
	err := r.db.QueryRow(ctx, `
SELECT id FROM carts WHERE user_id = $1
`, userID).Scan(&cartID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get cart: %w", err)
	}

	return r.ClearByID(ctx, cartID)
}

// ClearByID is the reconciler entry point: it empties exactly the cart a
// completed checkout was snapshotted from. Absent carts are a no-op.
func (r *Repository) ClearByID(ctx context.Context, cartID int64) error {
	if _, err := r.db.Exec(ctx, `
DELETE FROM cart_items WHERE cart_id = $1
`, cartID); err != nil {
		return fmt.Errorf("clear cart items: %w", err)
	}

	if _, err := r.db.Exec(ctx, `
UPDATE carts SET total_cents = 0, updated_at = now() WHERE id = $1
`, cartID); err != nil {
		return fmt.Errorf("zero cart total: %w", err)
	}

	return nil
}

// recomputeTotal reconciles the cached total against current catalog prices.
// The cached value can go stale between a catalog price change and the next
// cart mutation; it is a cache, not authoritative pricing.
func (r *Repository) recomputeTotal(ctx context.Context, cartID int64) error {
	_, err := r.db.Exec(ctx, `
UPDATE carts
SET total_cents = (
  SELECT COALESCE(SUM(ci.quantity * p.price_cents), 0)
  FROM cart_items ci
  JOIN products p ON p.id = ci.product_id
  WHERE ci.cart_id = carts.id
),
    updated_at = now()
WHERE id = $1
`, cartID)
	if err != nil {
		return fmt.Errorf("recompute cart total: %w", err)
	}
	return nil
}

// GetView returns the user's cart with priced lines, or nil if no cart exists.
func (r *Repository) GetView(ctx context.Context, userID int64) (*CartView, error) {
	var v CartView

	err := r.db.QueryRow(ctx, `
SELECT id, user_id, total_cents, created_at, updated_at
FROM carts
WHERE user_id = $1
`, userID).Scan(&v.Cart.ID, &v.Cart.UserID, &v.Cart.TotalCents, &v.Cart.CreatedAt, &v.Cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return r.fillLines(ctx, &v)
}

func (r *Repository) fillLines(ctx context.Context, v *CartView) (*CartView, error) {
	rows, err := r.db.Query(ctx, `
SELECT
  ci.id,
  p.id,
  p.name,
  ci.quantity,
  p.price_cents,
  (ci.quantity * p.price_cents) AS line_total_cents,
  p.image_url
FROM cart_items ci
JOIN products p ON p.id = ci.product_id
WHERE ci.cart_id = $1
ORDER BY ci.id ASC
`, v.Cart.ID)
	if err != nil {
		return nil, fmt.Errorf("cart lines: %w", err)
	}
	defer rows.Close()

	v.Items = nil
	v.TotalCents = 0

	for rows.Next() {
		var line CartLine
		if err := rows.Scan(
			&line.ItemID,
			&line.ProductID,
			&line.ProductName,
			&line.Quantity,
			&line.UnitPriceCents,
			&line.LineTotalCents,
			&line.ImageURL,
		); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}

		v.TotalCents += line.LineTotalCents
		v.Items = append(v.Items, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cart lines rows error: %w", err)
	}

	return v, nil
}
