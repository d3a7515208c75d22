package payments

import (
	"encoding/json"
	"fmt"
	"time"
)

// InitializeRequest carries everything a gateway needs to open a transaction.
// Amount is always in the gateway's minor currency unit.
type InitializeRequest struct {
	AmountMinor   int64
	Currency      string
	CustomerEmail string
	Reference     string
	CallbackURL   string
	Metadata      map[string]any
}

// InitializeResponse is the authorization handle the client is redirected with.
type InitializeResponse struct {
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
}

// VerifyResponse is the gateway's authoritative status for a reference.
type VerifyResponse struct {
	Status        Status
	TransactionID string
	AmountMinor   int64
	PaidAt        time.Time
	Channel       string
	Currency      string
	IPAddress     string
	RawState      string
}

// Status is the gateway state normalized across providers.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// ParseWebhookEvent decodes a raw webhook body. Callers must have verified
// the signature over the same bytes first.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, fmt.Errorf("parse webhook event: %w", err)
	}
	if evt.Event == "" {
		return nil, fmt.Errorf("webhook event missing event field")
	}
	return &evt, nil
}

// WebhookEvent is the signed notification body a gateway POSTs to us.
type WebhookEvent struct {
	Event string           `json:"event"`
	Data  WebhookEventData `json:"data"`
}

type WebhookEventData struct {
	ID        int64  `json:"id"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	PaidAt    string `json:"paid_at"`
	Channel   string `json:"channel"`
	Currency  string `json:"currency"`
	Amount    int64  `json:"amount"`
}
