package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const recordColumns = `
id, user_id, cart_id, order_number, reference, provider, status,
amount_cents, currency, email,
shipping_name, shipping_phone, shipping_address, shipping_city,
shipping_postal_code, shipping_country,
paid_at, channel, gateway_tx_id, failure_reason, cancelled_at,
created_at, updated_at`

func scanRecord(row pgx.Row, rec *Record) error {
	return row.Scan(
		&rec.ID, &rec.UserID, &rec.CartID, &rec.OrderNumber, &rec.Reference,
		&rec.Provider, &rec.Status,
		&rec.AmountCents, &rec.Currency, &rec.Email,
		&rec.Shipping.Name, &rec.Shipping.Phone, &rec.Shipping.Address,
		&rec.Shipping.City, &rec.Shipping.PostalCode, &rec.Shipping.Country,
		&rec.PaidAt, &rec.Channel, &rec.GatewayTxID, &rec.FailReason,
		&rec.CancelledAt, &rec.CreatedAt, &rec.UpdatedAt,
	)
}

// Create persists the record and its frozen line items in one transaction.
func (r *Repository) Create(ctx context.Context, rec *Record, items []LineItem) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.QueryRow(ctx, `
		INSERT INTO checkout_records (
		  user_id, cart_id, order_number, reference, provider, status,
		  amount_cents, currency, email,
		  shipping_name, shipping_phone, shipping_address, shipping_city,
		  shipping_postal_code, shipping_country
		) VALUES (
		  $1, $2, $3, $4, $5, 'pending'::checkout_status,
		  $6, $7, $8,
		  $9, $10, $11, $12, $13, $14
		)
		RETURNING id, status, created_at, updated_at
	`,
		rec.UserID, rec.CartID, rec.OrderNumber, rec.Reference, rec.Provider,
		rec.AmountCents, rec.Currency, rec.Email,
		rec.Shipping.Name, rec.Shipping.Phone, rec.Shipping.Address,
		rec.Shipping.City, rec.Shipping.PostalCode, rec.Shipping.Country,
	).Scan(&rec.ID, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return fmt.Errorf("create checkout record: %w", err)
	}

	for i := range items {
		items[i].RecordID = rec.ID
		if err := tx.QueryRow(ctx, `
			INSERT INTO checkout_items (
			  record_id, product_id, product_name, quantity,
			  unit_price_cents, total_price_cents, image_url
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`,
			items[i].RecordID, items[i].ProductID, items[i].ProductName,
			items[i].Quantity, items[i].UnitPriceCents, items[i].TotalPriceCents,
			items[i].ImageURL,
		).Scan(&items[i].ID); err != nil {
			return fmt.Errorf("create checkout item: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func (r *Repository) GetByReference(ctx context.Context, reference string) (*Record, error) {
	var rec Record
	err := scanRecord(r.db.QueryRow(ctx, `
SELECT`+recordColumns+`
FROM checkout_records
WHERE reference = $1
`, reference), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkout by reference: %w", err)
	}
	return &rec, nil
}

func (r *Repository) GetForUser(ctx context.Context, userID, recordID int64) (*Detail, error) {
	var rec Record
	err := scanRecord(r.db.QueryRow(ctx, `
SELECT`+recordColumns+`
FROM checkout_records
WHERE id = $1 AND user_id = $2
`, recordID, userID), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkout for user: %w", err)
	}

	items, err := r.loadItems(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Record: rec, Items: items}, nil
}

func (r *Repository) ListByUser(ctx context.Context, userID int64, status string, limit, offset int) ([]Record, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, `
SELECT`+recordColumns+`,
       COUNT(*) OVER() AS total_count
FROM checkout_records
WHERE user_id = $1
  AND ($2 = '' OR status::text = $2)
ORDER BY created_at DESC, id DESC
LIMIT $3 OFFSET $4
`, userID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list checkouts: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (r *Repository) ListAll(ctx context.Context, status string, limit, offset int) ([]Record, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.Query(ctx, `
SELECT`+recordColumns+`,
       COUNT(*) OVER() AS total_count
FROM checkout_records
WHERE ($1 = '' OR status::text = $1)
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("admin list checkouts: %w", err)
	}
	defer rows.Close()

	return collectRecords(rows)
}

func collectRecords(rows pgx.Rows) ([]Record, int, error) {
	var (
		out   []Record
		total int
	)
	for rows.Next() {
		var rec Record
		var t int
		if err := rows.Scan(
			&rec.ID, &rec.UserID, &rec.CartID, &rec.OrderNumber, &rec.Reference,
			&rec.Provider, &rec.Status,
			&rec.AmountCents, &rec.Currency, &rec.Email,
			&rec.Shipping.Name, &rec.Shipping.Phone, &rec.Shipping.Address,
			&rec.Shipping.City, &rec.Shipping.PostalCode, &rec.Shipping.Country,
			&rec.PaidAt, &rec.Channel, &rec.GatewayTxID, &rec.FailReason,
			&rec.CancelledAt, &rec.CreatedAt, &rec.UpdatedAt,
			&t,
		); err != nil {
			return nil, 0, fmt.Errorf("scan checkout record: %w", err)
		}
		if total == 0 {
			total = t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repository) GetDetail(ctx context.Context, recordID int64) (*Detail, error) {
	var rec Record
	err := scanRecord(r.db.QueryRow(ctx, `
SELECT`+recordColumns+`
FROM checkout_records
WHERE id = $1
`, recordID), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get checkout detail: %w", err)
	}

	items, err := r.loadItems(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	return &Detail{Record: rec, Items: items}, nil
}

func (r *Repository) loadItems(ctx context.Context, recordID int64) ([]LineItem, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, record_id, product_id, product_name, quantity,
       unit_price_cents, total_price_cents, image_url
FROM checkout_items
WHERE record_id = $1
ORDER BY id ASC
`, recordID)
	if err != nil {
		return nil, fmt.Errorf("checkout items: %w", err)
	}
	defer rows.Close()

	var items []LineItem
	for rows.Next() {
		var it LineItem
		if err := rows.Scan(
			&it.ID, &it.RecordID, &it.ProductID, &it.ProductName,
			&it.Quantity, &it.UnitPriceCents, &it.TotalPriceCents, &it.ImageURL,
		); err != nil {
			return nil, fmt.Errorf("scan checkout item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Complete moves pending->completed and writes the gateway confirmation in
// one statement. The WHERE status='pending' clause is the whole concurrency
// story: of N racing confirmations exactly one sees RowsAffected=1, and only
// that caller gets a non-nil record back.
func (r *Repository) Complete(ctx context.Context, recordID int64, conf Confirmation) (*Record, error) {
	var rec Record
	err := scanRecord(r.db.QueryRow(ctx, `
UPDATE checkout_records
   SET status        = 'completed'::checkout_status,
       gateway_tx_id = $2,
       paid_at       = $3,
       channel       = $4,
       updated_at    = now()
 WHERE id = $1
   AND status = 'pending'::checkout_status
RETURNING`+recordColumns+`
`, recordID, conf.TransactionID, conf.PaidAt, conf.Channel), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("complete checkout: %w", err)
	}
	return &rec, nil
}

// Fail moves pending->failed. Returns (nil, nil) when the record already
// settled.
func (r *Repository) Fail(ctx context.Context, recordID int64, reason string) (*Record, error) {
	var rec Record
	err := scanRecord(r.db.QueryRow(ctx, `
UPDATE checkout_records
   SET status         = 'failed'::checkout_status,
       failure_reason = $2,
       updated_at     = now()
 WHERE id = $1
   AND status = 'pending'::checkout_status
RETURNING`+recordColumns+`
`, recordID, reason), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fail checkout: %w", err)
	}
	return &rec, nil
}

// Cancel moves pending->cancelled. Returns (nil, nil) when the record already
// settled.
func (r *Repository) Cancel(ctx context.Context, recordID int64) (*Record, error) {
	var rec Record
	err := scanRecord(r.db.QueryRow(ctx, `
UPDATE checkout_records
   SET status       = 'cancelled'::checkout_status,
       cancelled_at = now(),
       updated_at   = now()
 WHERE id = $1
   AND status = 'pending'::checkout_status
RETURNING`+recordColumns+`
`, recordID), &rec)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("cancel checkout: %w", err)
	}
	return &rec, nil
}
