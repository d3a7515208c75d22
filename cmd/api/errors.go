package main

import (
	"errors"
	"net/http"

	"mercato/internal/domain/checkout"
	"mercato/internal/payments"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnf("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnf("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, "not found")
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorf("conflict response", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, err.Error())
}

func (app *application) unauthorizedErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnf("unauthorized error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnf("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) forbiddenResponse(w http.ResponseWriter, r *http.Request) {
	app.logger.Warnw("forbidden", "method", r.Method, "path", r.URL.Path)

	writeJSONError(w, http.StatusForbidden, "forbidden")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter string) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", retryAfter)

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter)
}

// checkoutErrorResponse maps the checkout and gateway error taxonomy onto
// HTTP statuses. Anything unrecognized is a 500.
func (app *application) checkoutErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var stateErr *checkout.InvalidStateError
	var gatewayErr *payments.GatewayError

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, checkout.ErrStaleProduct):
		app.conflictResponse(w, r, err)
	case errors.Is(err, checkout.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.As(err, &stateErr):
		app.conflictResponse(w, r, err)
	case errors.As(err, &gatewayErr):
		app.logger.Errorw("gateway error", "provider", gatewayErr.Provider, "op", gatewayErr.Op, "error", err.Error())
		writeJSONError(w, http.StatusBadGateway, "payment provider is unavailable")
	default:
		app.internalServerError(w, r, err)
	}
}
