package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mercato/internal/params"

	"github.com/go-chi/chi/v5"
)

// adminListOrdersHandler godoc
//
//	@Summary		List all orders (admin)
//	@Tags			admin-orders
//	@Produce		json
//	@Param			status	query		string	false	"Filter: pending|completed|failed|cancelled"
//	@Param			page	query		int		false	"Page"
//	@Param			limit	query		int		false	"Page size"
//	@Success		200		{object}	map[string]any
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/orders [get]
func (app *application) adminListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	p := params.ParsePagination(r.URL.Query())

	status, err := normalizeStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	list, total, err := app.store.Checkout.ListAll(ctx, status, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"filters": map[string]any{
			"status": status,
		},
		"orders":     list,
		"pagination": p,
	})
}

// adminGetOrderHandler godoc
//
//	@Summary		Get any order's detail (admin)
//	@Tags			admin-orders
//	@Produce		json
//	@Param			orderID	path		int	true	"Order ID"
//	@Success		200		{object}	checkout.Detail
//	@Failure		400		{object}	error
//	@Failure		403		{object}	error
//	@Failure		404		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/admin/orders/{orderID} [get]
func (app *application) adminGetOrderHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	orderID, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || orderID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid orderID"))
		return
	}

	detail, err := app.store.Checkout.GetDetail(ctx, orderID)
	if err != nil {
		app.checkoutErrorResponse(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, detail)
}
