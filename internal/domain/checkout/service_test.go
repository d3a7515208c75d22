package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mercato/internal/domain/carts"
	"mercato/internal/domain/products"
	"mercato/internal/payments"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func testFixtures(t *testing.T) (*Service, *memStore, *mockCartStore, *mockCatalog, *mockGateways, *countingNotifier) {
	t.Helper()

	store := newMemStore()
	cartStore := &mockCartStore{
		view: &carts.CartView{
			Cart: carts.Cart{ID: 42, UserID: 7},
			Items: []carts.CartLine{
				{ItemID: 1, ProductID: 100, ProductName: "Espresso Beans", Quantity: 2, UnitPriceCents: 1500},
				{ItemID: 2, ProductID: 101, ProductName: "Moka Pot", Quantity: 1, UnitPriceCents: 5000},
			},
		},
	}
	catalog := &mockCatalog{snapshots: map[int64]*products.SnapshotInfo{
		100: {ID: 100, Name: "Espresso Beans", PriceCents: 1500, Stock: 10, ImageURL: strPtr("https://img/beans.jpg")},
		101: {ID: 101, Name: "Moka Pot", PriceCents: 5000, Stock: 3},
	}}
	gateways := &mockGateways{
		initRes: payments.InitializeResponse{
			AuthorizationURL: "https://checkout.paystack.com/abc",
			AccessCode:       "abc",
		},
	}
	notifier := &countingNotifier{}

	gen, err := NewOrderNumberGenerator("test-salt")
	require.NoError(t, err)

	svc := NewService(store, cartStore, catalog, gateways, gen, notifier, zap.NewNop().Sugar())
	return svc, store, cartStore, catalog, gateways, notifier
}

func initPending(t *testing.T, svc *Service) *Record {
	t.Helper()
	res, err := svc.Initialize(context.Background(), InitializeInput{
		UserID:   7,
		Email:    "buyer@example.com",
		Provider: "paystack",
		Currency: "NGN",
		Shipping: Shipping{Name: "Ada", Phone: "0800000000", Address: "1 Market St", City: "Lagos"},
	})
	require.NoError(t, err)
	return res.Record
}

func TestInitialize_SnapshotsCart(t *testing.T) {
	svc, store, _, _, _, _ := testFixtures(t)

	res, err := svc.Initialize(context.Background(), InitializeInput{
		UserID:   7,
		Email:    "buyer@example.com",
		Provider: "paystack",
		Currency: "NGN",
		Shipping: Shipping{Name: "Ada", Phone: "0800000000", Address: "1 Market St", City: "Lagos"},
	})

	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Record.Status)
	assert.Equal(t, int64(2*1500+5000), res.Record.AmountCents)
	assert.NotEmpty(t, res.Record.Reference)
	assert.Contains(t, res.Record.OrderNumber, "MRC-")
	assert.Equal(t, "https://checkout.paystack.com/abc", res.AuthorizationURL)

	require.Len(t, res.Items, 2)
	assert.Equal(t, int64(3000), res.Items[0].TotalPriceCents)
	assert.Equal(t, int64(5000), res.Items[1].TotalPriceCents)

	// Persisted, not just returned.
	rec, err := store.GetByReference(context.Background(), res.Record.Reference)
	require.NoError(t, err)
	assert.Equal(t, res.Record.AmountCents, rec.AmountCents)
}

func TestInitialize_EmptyCart(t *testing.T) {
	svc, _, cartStore, _, _, _ := testFixtures(t)
	cartStore.view = &carts.CartView{Cart: carts.Cart{ID: 42, UserID: 7}}

	_, err := svc.Initialize(context.Background(), InitializeInput{UserID: 7, Provider: "paystack"})
	assert.ErrorIs(t, err, ErrEmptyCart)

	cartStore.view = nil
	_, err = svc.Initialize(context.Background(), InitializeInput{UserID: 7, Provider: "paystack"})
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestInitialize_StaleProduct(t *testing.T) {
	svc, store, _, catalog, _, _ := testFixtures(t)
	delete(catalog.snapshots, 101)

	_, err := svc.Initialize(context.Background(), InitializeInput{UserID: 7, Provider: "paystack"})
	assert.ErrorIs(t, err, ErrStaleProduct)
	assert.Zero(t, store.createCalls)
}

func TestInitialize_UnsupportedProvider(t *testing.T) {
	svc, _, _, _, gateways, _ := testFixtures(t)

	_, err := svc.Initialize(context.Background(), InitializeInput{UserID: 7, Provider: "esewa"})
	require.Error(t, err)
	assert.Zero(t, gateways.initCalls)
}

func TestInitialize_GatewayDownPersistsNothing(t *testing.T) {
	svc, store, _, _, gateways, _ := testFixtures(t)
	gateways.initErr = &payments.GatewayError{Provider: "paystack", Op: "initialize", Err: errors.New("connection refused")}

	_, err := svc.Initialize(context.Background(), InitializeInput{UserID: 7, Provider: "paystack"})
	require.Error(t, err)

	var gwErr *payments.GatewayError
	assert.ErrorAs(t, err, &gwErr)
	assert.Zero(t, store.createCalls, "no pending record should exist when the gateway rejected the initialize")
}

func TestConfirmByReference_Success(t *testing.T) {
	svc, _, cartStore, _, gateways, notifier := testFixtures(t)
	rec := initPending(t, svc)

	gateways.verifyRes = payments.VerifyResponse{
		Status:        payments.StatusSuccess,
		TransactionID: "9912345",
		PaidAt:        time.Now(),
		Channel:       "card",
	}

	got, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.GatewayTxID)
	assert.Equal(t, "9912345", *got.GatewayTxID)
	assert.NotNil(t, got.PaidAt)

	assert.Equal(t, 1, cartStore.clears())
	assert.Equal(t, []int64{42}, cartStore.clearedIDs)
	assert.Equal(t, 1, notifier.count())
}

func TestConfirmByReference_Idempotent(t *testing.T) {
	svc, _, cartStore, _, gateways, notifier := testFixtures(t)
	rec := initPending(t, svc)

	gateways.verifyRes = payments.VerifyResponse{Status: payments.StatusSuccess, TransactionID: "1", PaidAt: time.Now()}

	first, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	second, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, 1, cartStore.clears(), "cart must be swept exactly once")
	assert.Equal(t, 1, notifier.count(), "confirmation email must go out exactly once")
}

func TestConfirmByReference_Failed(t *testing.T) {
	svc, _, cartStore, _, gateways, notifier := testFixtures(t)
	rec := initPending(t, svc)

	gateways.verifyRes = payments.VerifyResponse{Status: payments.StatusFailed, RawState: "abandoned"}

	got, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Status)
	require.NotNil(t, got.FailReason)
	assert.Equal(t, "abandoned", *got.FailReason)

	assert.Zero(t, cartStore.clears(), "a failed checkout keeps the cart intact")
	assert.Zero(t, notifier.count())
}

func TestConfirmByReference_StillPending(t *testing.T) {
	svc, _, _, _, gateways, _ := testFixtures(t)
	rec := initPending(t, svc)

	gateways.verifyRes = payments.VerifyResponse{Status: payments.StatusPending, RawState: "ongoing"}

	got, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestConfirmByReference_UnknownReference(t *testing.T) {
	svc, _, _, _, _, _ := testFixtures(t)

	_, err := svc.ConfirmByReference(context.Background(), "no-such-ref")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSnapshotImmuneToCatalogChange(t *testing.T) {
	svc, store, _, catalog, gateways, _ := testFixtures(t)
	rec := initPending(t, svc)
	frozen := rec.AmountCents

	// Reprice after the snapshot was taken.
	catalog.setPrice(100, 99999)

	gateways.verifyRes = payments.VerifyResponse{Status: payments.StatusSuccess, TransactionID: "1", PaidAt: time.Now()}
	got, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, frozen, got.AmountCents)

	stored, err := store.GetByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, frozen, stored.AmountCents)
}

func TestHandleWebhookEvent_ChargeSuccess(t *testing.T) {
	svc, _, cartStore, _, _, notifier := testFixtures(t)
	rec := initPending(t, svc)

	err := svc.HandleWebhookEvent(context.Background(), payments.WebhookEvent{
		Event: "charge.success",
		Data: payments.WebhookEventData{
			ID:        555,
			Reference: rec.Reference,
			Status:    "success",
			PaidAt:    time.Now().Format(time.RFC3339),
			Channel:   "bank_transfer",
		},
	})
	require.NoError(t, err)

	got, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	require.NotNil(t, got.GatewayTxID)
	assert.Equal(t, "555", *got.GatewayTxID)
	assert.Equal(t, 1, cartStore.clears())
	assert.Equal(t, 1, notifier.count())
}

func TestHandleWebhookEvent_UnknownReferenceAcknowledged(t *testing.T) {
	svc, _, _, _, _, _ := testFixtures(t)

	err := svc.HandleWebhookEvent(context.Background(), payments.WebhookEvent{
		Event: "charge.success",
		Data:  payments.WebhookEventData{Reference: "never-seen"},
	})
	assert.NoError(t, err, "unknown reference is acknowledged so the gateway stops retrying")
}

func TestHandleWebhookEvent_IgnoredEvent(t *testing.T) {
	svc, _, cartStore, _, _, _ := testFixtures(t)
	rec := initPending(t, svc)

	err := svc.HandleWebhookEvent(context.Background(), payments.WebhookEvent{
		Event: "transfer.success",
		Data:  payments.WebhookEventData{Reference: rec.Reference},
	})
	require.NoError(t, err)

	got, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
	assert.Zero(t, cartStore.clears())
}

func TestWebhookAfterSettlementIsNoOp(t *testing.T) {
	svc, _, cartStore, _, gateways, notifier := testFixtures(t)
	rec := initPending(t, svc)

	gateways.verifyRes = payments.VerifyResponse{Status: payments.StatusSuccess, TransactionID: "1", PaidAt: time.Now()}
	_, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)

	// A late duplicate delivery for the already settled record.
	err = svc.HandleWebhookEvent(context.Background(), payments.WebhookEvent{
		Event: "charge.success",
		Data:  payments.WebhookEventData{ID: 1, Reference: rec.Reference},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, cartStore.clears())
	assert.Equal(t, 1, notifier.count())
}

func TestConcurrentPollAndWebhook_SettleOnce(t *testing.T) {
	svc, _, cartStore, _, gateways, notifier := testFixtures(t)
	rec := initPending(t, svc)

	gateways.verifyRes = payments.VerifyResponse{Status: payments.StatusSuccess, TransactionID: "77", PaidAt: time.Now()}

	const racers = 16
	var wg sync.WaitGroup
	wg.Add(racers)
	for i := 0; i < racers; i++ {
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = svc.ConfirmByReference(context.Background(), rec.Reference)
			} else {
				_ = svc.HandleWebhookEvent(context.Background(), payments.WebhookEvent{
					Event: "charge.success",
					Data:  payments.WebhookEventData{ID: 77, Reference: rec.Reference, PaidAt: time.Now().Format(time.RFC3339)},
				})
			}
		}(i)
	}
	wg.Wait()

	got, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1, cartStore.clears(), "only the winning transition sweeps the cart")
	assert.Equal(t, 1, notifier.count(), "only the winning transition notifies")
}

func TestCancel_Pending(t *testing.T) {
	svc, _, _, _, _, _ := testFixtures(t)
	rec := initPending(t, svc)

	got, err := svc.Cancel(context.Background(), 7, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.NotNil(t, got.CancelledAt)
}

func TestCancel_AlreadyCompleted(t *testing.T) {
	svc, _, _, _, gateways, _ := testFixtures(t)
	rec := initPending(t, svc)

	gateways.verifyRes = payments.VerifyResponse{Status: payments.StatusSuccess, TransactionID: "1", PaidAt: time.Now()}
	_, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), 7, rec.ID)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusCompleted, stateErr.Current)
	assert.Equal(t, "order is already completed", stateErr.Error())
}

func TestCancel_WrongUser(t *testing.T) {
	svc, _, _, _, _, _ := testFixtures(t)
	rec := initPending(t, svc)

	_, err := svc.Cancel(context.Background(), 999, rec.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCancel_LosesRaceToConfirmation(t *testing.T) {
	svc, store, _, _, _, _ := testFixtures(t)
	rec := initPending(t, svc)

	// Settle between the ownership read and the conditional cancel by
	// completing directly on the store.
	won, err := store.Complete(context.Background(), rec.ID, Confirmation{TransactionID: "1", PaidAt: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, won)

	_, err = svc.Cancel(context.Background(), 7, rec.ID)
	var stateErr *InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	assert.Equal(t, StatusCompleted, stateErr.Current)
}

func TestClearFailureDoesNotFailSettlement(t *testing.T) {
	svc, _, cartStore, _, gateways, notifier := testFixtures(t)
	rec := initPending(t, svc)

	cartStore.clearErr = errors.New("connection reset")
	gateways.verifyRes = payments.VerifyResponse{Status: payments.StatusSuccess, TransactionID: "1", PaidAt: time.Now()}

	got, err := svc.ConfirmByReference(context.Background(), rec.Reference)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 1, notifier.count())
}
