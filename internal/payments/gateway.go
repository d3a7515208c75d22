package payments

import (
	"context"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned when an inbound webhook fails its
// authenticity check. It must never carry gateway internals to the caller.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// GatewayError wraps any outbound failure talking to a payment provider,
// network or malformed response alike.
type GatewayError struct {
	Provider string
	Op       string
	Err      error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// Gateway defines a common interface for all payment providers.
type Gateway interface {
	// Initialize opens a transaction and returns the authorization handle.
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResponse, error)
	// Verify asks the provider for the authoritative status of a reference.
	Verify(ctx context.Context, reference string) (VerifyResponse, error)
	// VerifyWebhookSignature checks the MAC over the raw webhook body.
	// It is side-effect free and must be called before any state mutation.
	VerifyWebhookSignature(body []byte, signature string) bool
}
