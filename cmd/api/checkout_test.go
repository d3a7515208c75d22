package main

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mercato/internal/domain/carts"
	"mercato/internal/domain/checkout"
	"mercato/internal/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const webhookSecret = "sk_test_webhook"

// webhookStore holds a single record and mimics the conditional transition
// contract of the real repository.
type webhookStore struct {
	mu  sync.Mutex
	rec *checkout.Record
}

func (s *webhookStore) Create(_ context.Context, rec *checkout.Record, _ []checkout.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec = rec
	return nil
}

func (s *webhookStore) GetByReference(_ context.Context, reference string) (*checkout.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.Reference != reference {
		return nil, checkout.ErrNotFound
	}
	cp := *s.rec
	return &cp, nil
}

func (s *webhookStore) GetForUser(_ context.Context, _, _ int64) (*checkout.Detail, error) {
	return nil, checkout.ErrNotFound
}

func (s *webhookStore) ListByUser(_ context.Context, _ int64, _ string, _, _ int) ([]checkout.Record, int, error) {
	return nil, 0, nil
}

func (s *webhookStore) ListAll(_ context.Context, _ string, _, _ int) ([]checkout.Record, int, error) {
	return nil, 0, nil
}

func (s *webhookStore) GetDetail(_ context.Context, _ int64) (*checkout.Detail, error) {
	return nil, checkout.ErrNotFound
}

func (s *webhookStore) Complete(_ context.Context, recordID int64, conf checkout.Confirmation) (*checkout.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.ID != recordID {
		return nil, checkout.ErrNotFound
	}
	if s.rec.Status != checkout.StatusPending {
		return nil, nil
	}
	s.rec.Status = checkout.StatusCompleted
	tx := conf.TransactionID
	s.rec.GatewayTxID = &tx
	paidAt := conf.PaidAt
	s.rec.PaidAt = &paidAt
	cp := *s.rec
	return &cp, nil
}

func (s *webhookStore) Fail(_ context.Context, recordID int64, reason string) (*checkout.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec == nil || s.rec.ID != recordID {
		return nil, checkout.ErrNotFound
	}
	if s.rec.Status != checkout.StatusPending {
		return nil, nil
	}
	s.rec.Status = checkout.StatusFailed
	s.rec.FailReason = &reason
	cp := *s.rec
	return &cp, nil
}

func (s *webhookStore) Cancel(_ context.Context, _ int64) (*checkout.Record, error) {
	return nil, nil
}

func (s *webhookStore) status() checkout.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Status
}

// cartSweeper satisfies checkout.CartStore for the webhook path.
type cartSweeper struct {
	mu     sync.Mutex
	swept  int
	lastID int64
}

func (c *cartSweeper) GetView(_ context.Context, _ int64) (*carts.CartView, error) { return nil, nil }

func (c *cartSweeper) ClearByID(_ context.Context, cartID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swept++
	c.lastID = cartID
	return nil
}

func newWebhookTestApp(t *testing.T) (*application, *webhookStore, *cartSweeper) {
	t.Helper()

	store := &webhookStore{
		rec: &checkout.Record{
			ID:          1,
			UserID:      7,
			CartID:      42,
			OrderNumber: "MRC-TESTORDER",
			Reference:   "ref-webhook-1",
			Provider:    "paystack",
			Status:      checkout.StatusPending,
			AmountCents: 8000,
			Currency:    "NGN",
			Email:       "buyer@example.com",
		},
	}

	manager := payments.NewManager()
	manager.Register("paystack", payments.NewPaystackAdapter(webhookSecret, ""))

	gen, err := checkout.NewOrderNumberGenerator("test-salt")
	require.NoError(t, err)

	sweeper := &cartSweeper{}
	logger := zap.NewNop().Sugar()

	app := &application{
		logger:   logger,
		payments: manager,
		checkout: checkout.NewService(store, sweeper, nil, manager, gen, nil, logger),
	}
	return app, store, sweeper
}

func signBody(body []byte) string {
	mac := hmac.New(sha512.New, []byte(webhookSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func postWebhook(app *application, body []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/store/payments/webhook", bytes.NewReader(body))
	if signature != "" {
		req.Header.Set(payments.SignatureHeader, signature)
	}
	rr := httptest.NewRecorder()
	app.paymentWebhookHandler(rr, req)
	return rr
}

func TestPaymentWebhook_InvalidSignature(t *testing.T) {
	app, store, sweeper := newWebhookTestApp(t)

	body := []byte(`{"event":"charge.success","data":{"id":9,"reference":"ref-webhook-1"}}`)

	rr := postWebhook(app, body, "not-a-real-signature")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = postWebhook(app, body, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// A forged delivery must not move the record.
	assert.Equal(t, checkout.StatusPending, store.status())
	assert.Zero(t, sweeper.swept)
}

func TestPaymentWebhook_ChargeSuccess(t *testing.T) {
	app, store, sweeper := newWebhookTestApp(t)

	body := []byte(`{"event":"charge.success","data":{"id":4099260516,"reference":"ref-webhook-1","status":"success","paid_at":"` +
		time.Now().Format(time.RFC3339) + `","channel":"card","currency":"NGN","amount":8000}}`)

	rr := postWebhook(app, body, signBody(body))
	assert.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, checkout.StatusCompleted, store.status())
	assert.Equal(t, 1, sweeper.swept)
	assert.Equal(t, int64(42), sweeper.lastID)
}

func TestPaymentWebhook_UnknownReferenceAcknowledged(t *testing.T) {
	app, store, _ := newWebhookTestApp(t)

	body := []byte(`{"event":"charge.success","data":{"id":1,"reference":"never-issued"}}`)

	rr := postWebhook(app, body, signBody(body))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, checkout.StatusPending, store.status())
}

func TestPaymentWebhook_MalformedBodyAcknowledged(t *testing.T) {
	app, store, _ := newWebhookTestApp(t)

	body := []byte(`{{{not json`)

	rr := postWebhook(app, body, signBody(body))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, checkout.StatusPending, store.status())
}

func TestPaymentWebhook_TamperedBody(t *testing.T) {
	app, store, _ := newWebhookTestApp(t)

	body := []byte(`{"event":"charge.success","data":{"id":1,"reference":"ref-webhook-1"}}`)
	sig := signBody(body)

	tampered := bytes.Replace(body, []byte("ref-webhook-1"), []byte("ref-attacker-9"), 1)

	rr := postWebhook(app, tampered, sig)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, checkout.StatusPending, store.status())
}
