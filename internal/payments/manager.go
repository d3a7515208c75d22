package payments

import (
	"context"
	"fmt"
)

type Manager struct {
	gateways map[string]Gateway
}

func NewManager() *Manager {
	return &Manager{gateways: make(map[string]Gateway)}
}

func (m *Manager) Register(method string, gateway Gateway) {
	m.gateways[method] = gateway
}

func (m *Manager) Supported(method string) bool {
	_, ok := m.gateways[method]
	return ok
}

func (m *Manager) Initialize(ctx context.Context, method string, req InitializeRequest) (InitializeResponse, error) {
	gateway, ok := m.gateways[method]
	if !ok {
		return InitializeResponse{}, fmt.Errorf("gateway not registered: %s", method)
	}
	return gateway.Initialize(ctx, req)
}

func (m *Manager) Verify(ctx context.Context, method, reference string) (VerifyResponse, error) {
	gateway, ok := m.gateways[method]
	if !ok {
		return VerifyResponse{}, fmt.Errorf("gateway not registered: %s", method)
	}
	return gateway.Verify(ctx, reference)
}

func (m *Manager) VerifyWebhookSignature(method string, body []byte, signature string) bool {
	gateway, ok := m.gateways[method]
	if !ok {
		return false
	}
	return gateway.VerifyWebhookSignature(body, signature)
}
