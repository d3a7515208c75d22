package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const paystackBaseURL = "https://api.paystack.co"

// SignatureHeader is the header Paystack signs webhook deliveries with.
const SignatureHeader = "X-Paystack-Signature"

type PaystackAdapter struct {
	secretKey   string
	callbackURL string
	baseURL     string
	httpClient  *http.Client
}

func NewPaystackAdapter(secret, callbackURL string) *PaystackAdapter {
	return &PaystackAdapter{
		secretKey:   secret,
		callbackURL: callbackURL,
		baseURL:     paystackBaseURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *PaystackAdapter) Initialize(ctx context.Context, req InitializeRequest) (InitializeResponse, error) {
	callback := req.CallbackURL
	if callback == "" {
		callback = p.callbackURL
	}

	payload := map[string]any{
		"amount":       req.AmountMinor,
		"email":        req.CustomerEmail,
		"reference":    req.Reference,
		"callback_url": callback,
		"metadata":     req.Metadata,
	}
	if req.Currency != "" {
		payload["currency"] = req.Currency
	}

	body, _ := json.Marshal(payload)

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transaction/initialize", bytes.NewBuffer(body))
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return InitializeResponse{}, &GatewayError{Provider: "paystack", Op: "initialize", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return InitializeResponse{}, &GatewayError{
			Provider: "paystack",
			Op:       "initialize",
			Err:      fmt.Errorf("http=%d body=%s", resp.StatusCode, string(raw)),
		}
	}

	var res struct {
		Status  bool   `json:"status"`
		Message string `json:"message"`
		Data    struct {
			AuthorizationURL string `json:"authorization_url"`
			AccessCode       string `json:"access_code"`
			Reference        string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return InitializeResponse{}, &GatewayError{Provider: "paystack", Op: "initialize decode", Err: err}
	}
	if !res.Status || res.Data.Reference == "" {
		return InitializeResponse{}, &GatewayError{
			Provider: "paystack",
			Op:       "initialize",
			Err:      fmt.Errorf("rejected: %s", res.Message),
		}
	}

	return InitializeResponse{
		Reference:        res.Data.Reference,
		AuthorizationURL: res.Data.AuthorizationURL,
		AccessCode:       res.Data.AccessCode,
	}, nil
}

func (p *PaystackAdapter) Verify(ctx context.Context, reference string) (VerifyResponse, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return VerifyResponse{}, &GatewayError{Provider: "paystack", Op: "verify", Err: fmt.Errorf("reference is required")}
	}

	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/transaction/verify/"+reference, nil)
	httpReq.Header.Set("Authorization", "Bearer "+p.secretKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return VerifyResponse{}, &GatewayError{Provider: "paystack", Op: "verify", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return VerifyResponse{}, &GatewayError{
			Provider: "paystack",
			Op:       "verify",
			Err:      fmt.Errorf("http=%d body=%s", resp.StatusCode, string(raw)),
		}
	}

	var res struct {
		Status bool `json:"status"`
		Data   struct {
			ID        int64  `json:"id"`
			Status    string `json:"status"` // success, failed, abandoned, reversed, ongoing, pending
			Reference string `json:"reference"`
			Amount    int64  `json:"amount"`
			PaidAt    string `json:"paid_at"`
			Channel   string `json:"channel"`
			Currency  string `json:"currency"`
			IPAddress string `json:"ip_address"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return VerifyResponse{}, &GatewayError{Provider: "paystack", Op: "verify decode", Err: err}
	}

	state := strings.ToLower(strings.TrimSpace(res.Data.Status))

	out := VerifyResponse{
		TransactionID: fmt.Sprintf("%d", res.Data.ID),
		AmountMinor:   res.Data.Amount,
		Channel:       res.Data.Channel,
		Currency:      res.Data.Currency,
		IPAddress:     res.Data.IPAddress,
		RawState:      state,
	}

	switch state {
	case "success":
		out.Status = StatusSuccess
	case "failed", "abandoned", "reversed":
		out.Status = StatusFailed
	default:
		// ongoing, pending, queued, anything unknown: hold and re-check
		out.Status = StatusPending
	}

	if res.Data.PaidAt != "" {
		if ts, err := time.Parse(time.RFC3339, res.Data.PaidAt); err == nil {
			out.PaidAt = ts
		}
	}

	return out, nil
}

// VerifyWebhookSignature checks the HMAC-SHA512 hex digest Paystack computes
// over the raw request body with the account secret key.
func (p *PaystackAdapter) VerifyWebhookSignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}

	mac := hmac.New(sha512.New, []byte(p.secretKey))
	_, _ = mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(want), []byte(signature))
}
