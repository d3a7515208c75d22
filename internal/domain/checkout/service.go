package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mercato/internal/domain/carts"
	"mercato/internal/domain/products"
	"mercato/internal/payments"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartStore is the slice of the cart repository the checkout flow needs.
type CartStore interface {
	GetView(ctx context.Context, userID int64) (*carts.CartView, error)
	ClearByID(ctx context.Context, cartID int64) error
}

// Catalog resolves the product fields a snapshot captures.
type Catalog interface {
	FindForSnapshot(ctx context.Context, id int64) (*products.SnapshotInfo, error)
}

// GatewayManager is satisfied by payments.Manager.
type GatewayManager interface {
	Supported(method string) bool
	Initialize(ctx context.Context, method string, req payments.InitializeRequest) (payments.InitializeResponse, error)
	Verify(ctx context.Context, method, reference string) (payments.VerifyResponse, error)
}

// Notifier receives the completed record exactly once, from whichever of the
// racing confirmation paths won the transition. Implementations must be
// best-effort; a slow or failing notifier never blocks settlement.
type Notifier interface {
	CheckoutCompleted(rec *Record)
}

// Service drives the checkout lifecycle: snapshot creation, settlement via
// gateway poll or webhook, cancellation, and clearing the source cart exactly
// once per completed checkout.
type Service struct {
	store    Store
	carts    CartStore
	catalog  Catalog
	gateways GatewayManager
	gen      *OrderNumberGenerator
	notifier Notifier
	logger   *zap.SugaredLogger
}

func NewService(
	store Store,
	cartStore CartStore,
	catalog Catalog,
	gateways GatewayManager,
	gen *OrderNumberGenerator,
	notifier Notifier,
	logger *zap.SugaredLogger,
) *Service {
	return &Service{
		store:    store,
		carts:    cartStore,
		catalog:  catalog,
		gateways: gateways,
		gen:      gen,
		notifier: notifier,
		logger:   logger,
	}
}

// InitializeInput is everything the user supplies to start a checkout.
type InitializeInput struct {
	UserID   int64
	Email    string
	Provider string
	Currency string
	Shipping Shipping
}

// InitializeResult is the pending record plus the redirect handle from the
// gateway.
type InitializeResult struct {
	Record           *Record    `json:"order"`
	Items            []LineItem `json:"items"`
	AuthorizationURL string     `json:"authorization_url"`
	AccessCode       string     `json:"access_code"`
}

// Initialize snapshots the user's cart into an immutable pending record and
// opens a gateway transaction for it.
//
// The gateway call happens BEFORE anything is persisted: if the provider is
// down we return a GatewayError and the store holds no orphaned pending
// record the user would later trip over.
func (s *Service) Initialize(ctx context.Context, in InitializeInput) (*InitializeResult, error) {
	if !s.gateways.Supported(in.Provider) {
		return nil, fmt.Errorf("unsupported payment provider: %s", in.Provider)
	}

	view, err := s.carts.GetView(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	if view == nil || len(view.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Freeze each line against the catalog as it stands right now. The cart
	// caches prices but the snapshot is re-resolved so a product retired
	// after being carted is caught here, not at the gateway.
	items := make([]LineItem, 0, len(view.Items))
	var total int64
	for _, line := range view.Items {
		snap, err := s.catalog.FindForSnapshot(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, products.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %d", ErrStaleProduct, line.ProductID)
			}
			return nil, err
		}

		it := LineItem{
			ProductID:       snap.ID,
			ProductName:     snap.Name,
			Quantity:        line.Quantity,
			UnitPriceCents:  snap.PriceCents,
			TotalPriceCents: int64(line.Quantity) * snap.PriceCents,
			ImageURL:        snap.ImageURL,
		}
		total += it.TotalPriceCents
		items = append(items, it)
	}

	if total <= 0 {
		return nil, ErrEmptyCart
	}

	rec := &Record{
		UserID:      in.UserID,
		CartID:      view.Cart.ID,
		OrderNumber: s.gen.Generate(in.UserID),
		Reference:   uuid.NewString(),
		Provider:    in.Provider,
		Status:      StatusPending,
		AmountCents: total,
		Currency:    in.Currency,
		Email:       in.Email,
		Shipping:    in.Shipping,
	}

	initRes, err := s.gateways.Initialize(ctx, in.Provider, payments.InitializeRequest{
		AmountMinor:   total,
		Currency:      in.Currency,
		CustomerEmail: in.Email,
		Reference:     rec.Reference,
		Metadata: map[string]any{
			"order_number": rec.OrderNumber,
			"user_id":      in.UserID,
		},
	})
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, rec, items); err != nil {
		return nil, err
	}

	s.logger.Infow("checkout initialized",
		"order_number", rec.OrderNumber,
		"reference", rec.Reference,
		"user_id", in.UserID,
		"amount_cents", total,
	)

	return &InitializeResult{
		Record:           rec,
		Items:            items,
		AuthorizationURL: initRes.AuthorizationURL,
		AccessCode:       initRes.AccessCode,
	}, nil
}

// ConfirmByReference asks the gateway for the authoritative state of a
// reference and settles the record accordingly. Safe to call any number of
// times from any number of goroutines: settled records are returned as-is
// and the conditional transition serializes concurrent winners.
func (s *Service) ConfirmByReference(ctx context.Context, reference string) (*Record, error) {
	rec, err := s.store.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	verify, err := s.gateways.Verify(ctx, rec.Provider, reference)
	if err != nil {
		return nil, err
	}

	switch verify.Status {
	case payments.StatusSuccess:
		return s.applyCompletion(ctx, rec, Confirmation{
			TransactionID: verify.TransactionID,
			PaidAt:        verify.PaidAt,
			Channel:       verify.Channel,
		})
	case payments.StatusFailed:
		return s.applyFailure(ctx, rec, verify.RawState)
	default:
		// Gateway still settling; the record stays pending.
		return rec, nil
	}
}

// HandleWebhookEvent applies a signature-verified gateway notification.
// Unknown references are acknowledged silently so the provider stops
// retrying; the signature already proved the event is theirs.
func (s *Service) HandleWebhookEvent(ctx context.Context, evt payments.WebhookEvent) error {
	rec, err := s.store.GetByReference(ctx, evt.Data.Reference)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Infow("webhook for unknown reference", "reference", evt.Data.Reference, "event", evt.Event)
			return nil
		}
		return err
	}
	if rec.Status.Terminal() {
		return nil
	}

	switch evt.Event {
	case "charge.success":
		paidAt, err := time.Parse(time.RFC3339, evt.Data.PaidAt)
		if err != nil {
			paidAt = time.Now()
		}
		_, err = s.applyCompletion(ctx, rec, Confirmation{
			TransactionID: fmt.Sprintf("%d", evt.Data.ID),
			PaidAt:        paidAt,
			Channel:       evt.Data.Channel,
		})
		return err
	default:
		s.logger.Infow("ignoring webhook event", "event", evt.Event, "reference", evt.Data.Reference)
		return nil
	}
}

// Cancel abandons a pending checkout the user owns. Settled records are
// rejected with the status they are actually in.
func (s *Service) Cancel(ctx context.Context, userID, recordID int64) (*Record, error) {
	detail, err := s.store.GetForUser(ctx, userID, recordID)
	if err != nil {
		return nil, err
	}
	if detail.Record.Status.Terminal() {
		return nil, &InvalidStateError{Current: detail.Record.Status}
	}

	rec, err := s.store.Cancel(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Lost the race to a confirmation path between our read and the
		// conditional update.
		cur, err := s.store.GetForUser(ctx, userID, recordID)
		if err != nil {
			return nil, err
		}
		return nil, &InvalidStateError{Current: cur.Record.Status}
	}

	s.logger.Infow("checkout cancelled", "order_number", rec.OrderNumber, "user_id", userID)
	return rec, nil
}

// applyCompletion runs the conditional pending->completed transition. Only
// the winner clears the source cart and notifies; losers read back whatever
// terminal state won.
func (s *Service) applyCompletion(ctx context.Context, rec *Record, conf Confirmation) (*Record, error) {
	won, err := s.store.Complete(ctx, rec.ID, conf)
	if err != nil {
		return nil, err
	}
	if won == nil {
		return s.store.GetByReference(ctx, rec.Reference)
	}

	if err := s.carts.ClearByID(ctx, won.CartID); err != nil {
		// The order is paid either way; an unswept cart is an annoyance,
		// not a correctness problem.
		s.logger.Errorw("failed to clear cart after completed checkout",
			"cart_id", won.CartID,
			"order_number", won.OrderNumber,
			"error", err,
		)
	}

	if s.notifier != nil {
		s.notifier.CheckoutCompleted(won)
	}

	s.logger.Infow("checkout completed",
		"order_number", won.OrderNumber,
		"reference", won.Reference,
		"gateway_tx_id", conf.TransactionID,
	)
	return won, nil
}

func (s *Service) applyFailure(ctx context.Context, rec *Record, reason string) (*Record, error) {
	won, err := s.store.Fail(ctx, rec.ID, reason)
	if err != nil {
		return nil, err
	}
	if won == nil {
		return s.store.GetByReference(ctx, rec.Reference)
	}

	s.logger.Infow("checkout failed",
		"order_number", won.OrderNumber,
		"reference", won.Reference,
		"reason", reason,
	)
	return won, nil
}
