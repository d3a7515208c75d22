package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("product not found")
	ErrDuplicateSlug = errors.New("slug already exists")
)

// Store is the data access abstraction for the products domain.
// Implemented by Repository (which uses pgxpool.Pool).
type Store interface {
	Create(ctx context.Context, p *Product) (*Product, error)
	GetByID(ctx context.Context, id int64) (*Product, error)
	GetBySlug(ctx context.Context, slug string) (*Product, error)
	List(ctx context.Context, limit, offset int) ([]*Product, int, error)
	Update(ctx context.Context, p *Product) (*Product, error)
	Delete(ctx context.Context, id int64) error
	SetImage(ctx context.Context, id int64, url string) error

	// FindForSnapshot resolves the fields a checkout snapshot captures.
	// Returns ErrNotFound for deleted or deactivated products.
	FindForSnapshot(ctx context.Context, id int64) (*SnapshotInfo, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, p *Product) (*Product, error) {
	err := r.db.QueryRow(ctx, `
INSERT INTO products (name, slug, description, price_cents, stock, image_url)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, is_active, created_at, updated_at
`, p.Name, p.Slug, p.Description, p.PriceCents, p.Stock, p.ImageURL).
		Scan(&p.ID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

func (r *Repository) GetByID(ctx context.Context, id int64) (*Product, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Product, error) {
	return r.getBy(ctx, "slug = $1", slug)
}

func (r *Repository) getBy(ctx context.Context, where string, arg any) (*Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, fmt.Sprintf(`
SELECT id, name, slug, description, price_cents, stock, image_url, is_active, created_at, updated_at
FROM products
WHERE %s AND is_active = true
`, where), arg).Scan(
		&p.ID, &p.Name, &p.Slug, &p.Description, &p.PriceCents, &p.Stock, &p.ImageURL,
		&p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]*Product, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, `
SELECT id, name, slug, description, price_cents, stock, image_url, is_active, created_at, updated_at,
       COUNT(*) OVER() AS total
FROM products
WHERE is_active = true
ORDER BY id DESC
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var out []*Product
	total := 0

	for rows.Next() {
		var p Product
		var t int
		if err := rows.Scan(
			&p.ID, &p.Name, &p.Slug, &p.Description, &p.PriceCents, &p.Stock, &p.ImageURL,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt, &t,
		); err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return out, total, nil
}

func (r *Repository) Update(ctx context.Context, p *Product) (*Product, error) {
	err := r.db.QueryRow(ctx, `
UPDATE products
SET name = $2, slug = $3, description = $4, price_cents = $5, stock = $6, updated_at = now()
WHERE id = $1 AND is_active = true
RETURNING updated_at
`, p.ID, p.Name, p.Slug, p.Description, p.PriceCents, p.Stock).Scan(&p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateSlug
		}
		return nil, fmt.Errorf("update product: %w", err)
	}
	return p, nil
}

// Delete deactivates the product. Checkout snapshots taken earlier keep their
// captured name/price; new snapshot resolution fails with ErrNotFound.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `
UPDATE products SET is_active = false, updated_at = now() WHERE id = $1 AND is_active = true
`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) SetImage(ctx context.Context, id int64, url string) error {
	tag, err := r.db.Exec(ctx, `
UPDATE products SET image_url = $2, updated_at = now() WHERE id = $1
`, id, url)
	if err != nil {
		return fmt.Errorf("set product image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) FindForSnapshot(ctx context.Context, id int64) (*SnapshotInfo, error) {
	var s SnapshotInfo
	err := r.db.QueryRow(ctx, `
SELECT id, name, price_cents, stock, image_url
FROM products
WHERE id = $1 AND is_active = true
`, id).Scan(&s.ID, &s.Name, &s.PriceCents, &s.Stock, &s.ImageURL)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product for snapshot: %w", err)
	}
	return &s, nil
}
