package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"mercato/internal/domain/products"
	"mercato/internal/params"

	"github.com/go-chi/chi/v5"
)

type CreateProductPayload struct {
	Name        string  `json:"name" validate:"required,max=255"`
	Slug        string  `json:"slug" validate:"required,max=255"`
	Description *string `json:"description"`
	PriceCents  int64   `json:"price_cents" validate:"required,gt=0"`
	Stock       int     `json:"stock" validate:"gte=0"`
}

// listProductsHandler godoc
//
//	@Summary		List products
//	@Description	Lists active products with pagination
//	@Tags			products
//	@Produce		json
//	@Param			page	query		int	false	"Page"
//	@Param			limit	query		int	false	"Page size"
//	@Success		200		{object}	map[string]any
//	@Failure		500		{object}	error
//	@Router			/products [get]
func (app *application) listProductsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p := params.ParsePagination(r.URL.Query())

	list, total, err := app.store.Products.List(ctx, p.Limit, p.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	p.ComputeMeta(total)

	app.jsonResponse(w, http.StatusOK, map[string]any{
		"products":   list,
		"pagination": p,
	})
}

// getProductHandler godoc
//
//	@Summary		Get product detail
//	@Tags			products
//	@Produce		json
//	@Param			productID	path		int	true	"Product ID"
//	@Success		200			{object}	products.Product
//	@Failure		404			{object}	error
//	@Failure		500			{object}	error
//	@Router			/products/{productID} [get]
func (app *application) getProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid productID"))
		return
	}

	product, err := app.store.Products.GetByID(ctx, productID)
	if err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.jsonResponse(w, http.StatusOK, product)
}

// createProductHandler godoc
//
//	@Summary		Create a product
//	@Tags			admin-products
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		CreateProductPayload	true	"Product fields"
//	@Success		201		{object}	products.Product
//	@Failure		400		{object}	error
//	@Failure		409		{object}	error
//	@Failure		500		{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products [post]
func (app *application) createProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var payload CreateProductPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product := &products.Product{
		Name:        payload.Name,
		Slug:        payload.Slug,
		Description: payload.Description,
		PriceCents:  payload.PriceCents,
		Stock:       payload.Stock,
	}

	product, err := app.store.Products.Create(ctx, product)
	if err != nil {
		switch {
		case errors.Is(err, products.ErrDuplicateSlug):
			app.conflictResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	app.jsonResponse(w, http.StatusCreated, product)
}

// updateProductHandler godoc
//
//	@Summary		Update a product
//	@Tags			admin-products
//	@Accept			json
//	@Produce		json
//	@Param			productID	path		int		true	"Product ID"
//	@Param			payload		body		object	true	"Fields to update: name, description, price_cents, stock, is_active"
//	@Success		200			{object}	products.Product
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{productID} [patch]
func (app *application) updateProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid productID"))
		return
	}

	var payload struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		PriceCents  *int64  `json:"price_cents"`
		Stock       *int    `json:"stock"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	product, err := app.store.Products.GetByID(ctx, productID)
	if err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if payload.Name != nil {
		product.Name = *payload.Name
	}
	if payload.Description != nil {
		product.Description = payload.Description
	}
	if payload.PriceCents != nil {
		if *payload.PriceCents <= 0 {
			app.badRequestResponse(w, r, fmt.Errorf("price_cents must be > 0"))
			return
		}
		product.PriceCents = *payload.PriceCents
	}
	if payload.Stock != nil {
		if *payload.Stock < 0 {
			app.badRequestResponse(w, r, fmt.Errorf("stock must be >= 0"))
			return
		}
		product.Stock = *payload.Stock
	}
	if payload.IsActive != nil {
		product.IsActive = *payload.IsActive
	}

	product, err = app.store.Products.Update(ctx, product)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	app.jsonResponse(w, http.StatusOK, product)
}

// deleteProductHandler godoc
//
//	@Summary		Delete a product
//	@Description	Soft-deletes a product. Existing checkout snapshots keep their frozen copy.
//	@Tags			admin-products
//	@Produce		json
//	@Param			productID	path		int		true	"Product ID"
//	@Success		204			{string}	string	"deleted"
//	@Failure		400			{object}	error
//	@Failure		404			{object}	error
//	@Failure		500			{object}	error
//	@Security		ApiKeyAuth
//	@Router			/products/{productID} [delete]
func (app *application) deleteProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		app.badRequestResponse(w, r, fmt.Errorf("invalid productID"))
		return
	}

	if err := app.store.Products.Delete(ctx, productID); err != nil {
		switch {
		case errors.Is(err, products.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
