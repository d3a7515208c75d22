package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"mercato/internal/domain/checkout"
	"mercato/internal/mailer"
	"mercato/internal/params"
	"mercato/internal/payments"

	"github.com/go-chi/chi/v5"
)

type CheckoutPayload struct {
	Provider string `json:"provider" validate:"required"`
	Shipping struct {
		Name       string  `json:"name" validate:"required,max=100"`
		Phone      string  `json:"phone" validate:"required,max=20"`
		Address    string  `json:"address" validate:"required,max=255"`
		City       string  `json:"city" validate:"required,max=100"`
		PostalCode *string `json:"postal_code"`
		Country    *string `json:"country"`
	} `json:"shipping"`
}

// checkoutHandler godoc
//
//	@Summary		Start checkout
//	@Description	Freezes the cart into an order snapshot, opens a gateway transaction and returns the authorization URL to redirect the user to.
//	@Tags			checkout
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CheckoutPayload	true	"Provider and shipping details"
//	@Success		201		{object}	checkout.InitializeResult
//	@Failure		400		{object}	error	"Empty cart or invalid payload"
//	@Failure		409		{object}	error	"Cart references an unavailable product"
//	@Failure		502		{object}	error	"Payment provider unavailable"
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/checkout [post]
func (app *application) checkoutHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	user := getUserFromContext(r)

	var payload CheckoutPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if !app.payments.Supported(payload.Provider) {
		app.badRequestResponse(w, r, fmt.Errorf("unsupported payment provider: %s", payload.Provider))
		return
	}

	result, err := app.checkout.Initialize(ctx, checkout.InitializeInput{
		UserID:   user.ID,
		Email:    user.Email,
		Provider: payload.Provider,
		Currency: app.config.payment.currency,
		Shipping: checkout.Shipping{
			Name:       payload.Shipping.Name,
			Phone:      payload.Shipping.Phone,
			Address:    payload.Shipping.Address,
			City:       payload.Shipping.City,
			PostalCode: payload.Shipping.PostalCode,
			Country:    payload.Shipping.Country,
		},
	})
	if err != nil {
		app.checkoutErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusCreated, result)
}

// verifyPaymentHandler godoc
//
//	@Summary		Verify a payment by reference
//	@Description	Polls the gateway for the authoritative transaction state after the user returns from the payment page. Idempotent.
//	@Tags			checkout
//	@Produce		json
//	@Param			reference	path		string	true	"Gateway reference"
//	@Success		200			{object}	checkout.Record
//	@Failure		404			{object}	error
//	@Failure		502			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/payments/verify/{reference} [get]
func (app *application) verifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	reference := chi.URLParam(r, "reference")
	if reference == "" {
		app.badRequestResponse(w, r, fmt.Errorf("reference is required"))
		return
	}

	rec, err := app.checkout.ConfirmByReference(ctx, reference)
	if err != nil {
		app.checkoutErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, rec)
}

// paymentWebhookHandler receives signed gateway notifications.
//
// The signature is checked over the RAW body before anything else happens; a
// request that fails it gets a 401 and touches no state. Once the signature
// passes we always return 200, even for unknown references, so the provider
// stops retrying deliveries we cannot use.
func (app *application) paymentWebhookHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1_048_578))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("read webhook body: %w", err))
		return
	}

	signature := r.Header.Get(payments.SignatureHeader)
	if !app.payments.VerifyWebhookSignature("paystack", body, signature) {
		app.logger.Warnw("webhook signature rejected", "remote", r.RemoteAddr)
		writeJSONError(w, http.StatusUnauthorized, payments.ErrInvalidSignature.Error())
		return
	}

	evt, err := payments.ParseWebhookEvent(body)
	if err != nil {
		// Authenticated but malformed; nothing to retry.
		app.logger.Errorw("webhook body unparseable", "error", err)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
		return
	}

	if err := app.checkout.HandleWebhookEvent(ctx, *evt); err != nil {
		app.logger.Errorw("webhook apply failed", "event", evt.Event, "reference", evt.Data.Reference, "error", err)
		// Return 5xx so the gateway retries (typical webhook behavior)
		http.Error(w, "failed to apply event", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// cancelOrderHandler godoc
//
//	@Summary		Cancel a pending order
//	@Description	Abandons a checkout the user owns while it is still pending. Settled orders are rejected with their current status.
//	@Tags			checkout
//	@Produce		json
//	@Param			orderID	path		int	true	"Order ID"
//	@Success		200		{object}	checkout.Record
//	@Failure		404		{object}	error
//	@Failure		409		{object}	error	"Order already settled"
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/orders/{orderID}/cancel [post]
func (app *application) cancelOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user := getUserFromContext(r)

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid orderID"))
		return
	}

	rec, err := app.checkout.Cancel(ctx, user.ID, orderID)
	if err != nil {
		app.checkoutErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, rec)
}

// listMyOrdersHandler godoc
//
//	@Summary		List my orders
//	@Tags			orders
//	@Produce		json
//	@Param			status	query		string	false	"Filter: pending|completed|failed|cancelled"
//	@Param			page	query		int		false	"Page"
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/orders [get]
func (app *application) listMyOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user := getUserFromContext(r)

	p := params.ParsePagination(r.URL.Query())

	status, err := normalizeStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	list, total, err := app.store.Checkout.ListByUser(ctx, user.ID, status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"filters": map[string]any{
			"status": status, // will be "" when no filter
		},
		"orders":     list,
		"pagination": p,
	})
}

// getMyOrderHandler godoc
//
//	@Summary		Get my order detail
//	@Description	Returns order detail (order + frozen line items) for the authenticated user.
//	@Tags			orders
//	@Produce		json
//	@Param			orderID	path		int	true	"Order ID"	minimum(1)
//	@Success		200		{object}	checkout.Detail
//	@Failure		400		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/orders/{orderID} [get]
func (app *application) getMyOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user := getUserFromContext(r)

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid orderID"))
		return
	}

	detail, err := app.store.Checkout.GetForUser(ctx, user.ID, orderID)
	if err != nil {
		app.checkoutErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, detail)
}

// CheckoutCompleted sends the order confirmation email. Called exactly once
// per completed checkout, by whichever confirmation path won the transition.
func (app *application) CheckoutCompleted(rec *checkout.Record) {
	vars := struct {
		Username    string
		OrderNumber string
		Total       string
	}{
		Username:    rec.Shipping.Name,
		OrderNumber: rec.OrderNumber,
		Total:       fmt.Sprintf("%s %.2f", rec.Currency, float64(rec.AmountCents)/100.0),
	}

	go func() {
		status, err := app.mailer.Send(mailer.OrderConfirmationTemplate, vars.Username, rec.Email, vars)
		if err != nil {
			app.logger.Errorw("error sending order confirmation email", "order_number", rec.OrderNumber, "error", err)
			return
		}
		app.logger.Infow("order confirmation email sent", "order_number", rec.OrderNumber, "status code", status)
	}()
}

func normalizeStatusFilter(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	s := checkout.Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("invalid status filter: %s", raw)
	}
	return raw, nil
}
