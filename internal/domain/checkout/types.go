package checkout

import (
	"context"
	"time"
)

// Record is the immutable checkout snapshot created when a user initiates
// payment. Line items and the total are frozen at initialization and never
// re-derived from the catalog afterwards.
type Record struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	CartID      int64      `json:"-"`
	OrderNumber string     `json:"order_number"`
	Reference   string     `json:"reference"`
	Provider    string     `json:"provider"`
	Status      Status     `json:"status"`
	AmountCents int64      `json:"amount_cents"`
	Currency    string     `json:"currency"`
	Email       string     `json:"email"`
	Shipping    Shipping   `json:"shipping"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	Channel     *string    `json:"channel,omitempty"`
	GatewayTxID *string    `json:"gateway_transaction_id,omitempty"`
	FailReason  *string    `json:"failure_reason,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

type Shipping struct {
	Name       string  `json:"name"`
	Phone      string  `json:"phone"`
	Address    string  `json:"address"`
	City       string  `json:"city"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    *string `json:"country,omitempty"`
}

// LineItem is one frozen line of the snapshot. Unit price, name and image
// are captured from the catalog at initialization time.
type LineItem struct {
	ID              int64   `json:"id"`
	RecordID        int64   `json:"-"`
	ProductID       int64   `json:"product_id"`
	ProductName     string  `json:"product_name"`
	Quantity        int     `json:"quantity"`
	UnitPriceCents  int64   `json:"unit_price_cents"`
	TotalPriceCents int64   `json:"total_price_cents"`
	ImageURL        *string `json:"image_url,omitempty"`
}

// Detail is the record plus its line items.
type Detail struct {
	Record Record     `json:"order"`
	Items  []LineItem `json:"items"`
}

// Confirmation carries the gateway-sourced fields written by the winning
// pending->completed transition.
type Confirmation struct {
	TransactionID string
	PaidAt        time.Time
	Channel       string
}

type Store interface {
	// Create persists the record and its items in one transaction.
	Create(ctx context.Context, rec *Record, items []LineItem) error

	GetByReference(ctx context.Context, reference string) (*Record, error)

	// USER-facing
	GetForUser(ctx context.Context, userID, recordID int64) (*Detail, error)
	ListByUser(ctx context.Context, userID int64, status string, limit, offset int) ([]Record, int, error)

	// ADMIN-facing
	ListAll(ctx context.Context, status string, limit, offset int) ([]Record, int, error)
	GetDetail(ctx context.Context, recordID int64) (*Detail, error)

	// Conditional transitions. Each succeeds only while the record is still
	// pending and returns (nil, nil) when another caller settled it first.
	Complete(ctx context.Context, recordID int64, conf Confirmation) (*Record, error)
	Fail(ctx context.Context, recordID int64, reason string) (*Record, error)
	Cancel(ctx context.Context, recordID int64) (*Record, error)
}
