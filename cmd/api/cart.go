package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mercato/internal/domain/carts"

	"github.com/go-chi/chi/v5"
)

// getCartHandler godoc
//
//	@Summary		Get user's cart
//	@Description	Retrieves the current user's shopping cart, creating an empty one on first access
//	@Tags			cart
//	@Produce		json
//	@Success		200	{object}	carts.CartView
//	@Failure		401	{object}	error
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/store/cart [get]
func (app *application) getCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := getUserFromContext(r)
	userID := user.ID

	view, err := app.store.Carts.GetView(ctx, userID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if view == nil {
		// Create a new cart
		if _, err := app.store.Carts.GetOrCreate(ctx, userID); err != nil {
			app.internalServerError(w, r, err)
			return
		}

		view, err = app.store.Carts.GetView(ctx, userID)
		if err != nil {
			app.internalServerError(w, r, err)
			return
		}
	}

	app.jsonResponse(w, http.StatusOK, view)
}

// POST /v1/store/cart/items  {product_id, qty}
func (app *application) addCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := getUserFromContext(r)
	userID := user.ID

	var in struct {
		ProductID int64 `json:"product_id"`
		Qty       int   `json:"qty"`
	}
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if in.ProductID <= 0 || in.Qty <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("product_id and qty are required"))
		return
	}

	if err := app.store.Carts.AddItem(ctx, userID, in.ProductID, in.Qty); err != nil {
		if strings.Contains(err.Error(), "not found") {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusCreated, map[string]string{"message": "item added"})
}

// PATCH /v1/store/cart/items/{itemID}
func (app *application) updateCartItemQtyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := getUserFromContext(r)
	userID := user.ID

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid itemID"))
		return
	}

	var in struct {
		Qty int `json:"qty"`
	}
	if err := readJSON(w, r, &in); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}
	if in.Qty <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("qty must be > 0"))
		return
	}

	if err := app.store.Carts.UpdateItemQty(ctx, userID, itemID, in.Qty); err != nil {
		if errors.Is(err, carts.ErrItemNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "updated"})
}

// DELETE /v1/store/cart/items/{itemID}
func (app *application) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := getUserFromContext(r)
	userID := user.ID

	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil || itemID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid itemID"))
		return
	}

	if err := app.store.Carts.RemoveItem(ctx, userID, itemID); err != nil {
		if errors.Is(err, carts.ErrItemNotFound) {
			app.notFoundResponse(w, r, err)
			return
		}
		app.internalServerError(w, r, err)
		return
	}
	app.jsonResponse(w, http.StatusOK, map[string]string{"message": "removed"})
}

// DELETE /v1/store/cart
func (app *application) clearCartHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := getUserFromContext(r)
	userID := user.ID

	if err := app.store.Carts.Clear(ctx, userID); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]string{
		"message": "cart cleared",
	})
}
