package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mercato/internal/domain/products"

	"github.com/go-chi/chi/v5"
)

// listWishlistHandler godoc
//
//	@Summary		List wishlisted products
//	@Tags			wishlist
//	@Produce		json
//	@Success		200	{object}	map[string]any
//	@Failure		500	{object}	error
//	@Security		ApiKeyAuth
//	@Router			/wishlist [get]
func (app *application) listWishlistHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := getUserFromContext(r)

	entries, err := app.store.Wishlist.ListByUser(ctx, user.ID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"wishlist": entries,
	})
}

// toggleWishlistHandler godoc
//
//	@Summary		Toggle a product on the wishlist
//	@Description	Adds the product if absent, removes it if present. Responds with the resulting membership.
//	@Tags			wishlist
//	@Produce		json
//	@Param			productID	path		int	true	"Product ID"
//	@Success		200			{object}	map[string]any
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/wishlist/{productID}/toggle [post]
func (app *application) toggleWishlistHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := getUserFromContext(r)

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid productID"))
		return
	}

	if _, err := app.store.Products.GetByID(ctx, productID); err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	// Explicit lookup then branch; membership decides the action.
	exists, err := app.store.Wishlist.Contains(ctx, user.ID, productID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if exists {
		if err := app.store.Wishlist.Remove(ctx, user.ID, productID); err != nil {
			app.internalServerError(w, r, err)
			return
		}
	} else {
		if err := app.store.Wishlist.Add(ctx, user.ID, productID); err != nil {
			app.internalServerError(w, r, err)
			return
		}
	}

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"product_id": productID,
		"wishlisted": !exists,
	})
}
