package checkout

import (
	"context"
	"sync"
	"time"

	"mercato/internal/domain/carts"
	"mercato/internal/domain/products"
	"mercato/internal/payments"
)

// memStore is an in-memory Store whose conditional transitions behave like
// the SQL ones: under a single mutex, only a still-pending record moves, and
// losers get (nil, nil).
type memStore struct {
	mu      sync.Mutex
	nextID  int64
	records map[int64]*Record
	items   map[int64][]LineItem

	createErr   error
	createCalls int
}

func newMemStore() *memStore {
	return &memStore{
		nextID:  1,
		records: make(map[int64]*Record),
		items:   make(map[int64][]LineItem),
	}
}

func (m *memStore) Create(_ context.Context, rec *Record, items []LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if m.createErr != nil {
		return m.createErr
	}
	rec.ID = m.nextID
	m.nextID++
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	cp := *rec
	m.records[rec.ID] = &cp
	m.items[rec.ID] = items
	return nil
}

func (m *memStore) GetByReference(_ context.Context, reference string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.records {
		if rec.Reference == reference {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) GetForUser(_ context.Context, userID, recordID int64) (*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordID]
	if !ok || rec.UserID != userID {
		return nil, ErrNotFound
	}
	return &Detail{Record: *rec, Items: m.items[recordID]}, nil
}

func (m *memStore) ListByUser(_ context.Context, userID int64, status string, limit, offset int) ([]Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.UserID != userID {
			continue
		}
		if status != "" && string(rec.Status) != status {
			continue
		}
		out = append(out, *rec)
	}
	return out, len(out), nil
}

func (m *memStore) ListAll(_ context.Context, status string, limit, offset int) ([]Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if status != "" && string(rec.Status) != status {
			continue
		}
		out = append(out, *rec)
	}
	return out, len(out), nil
}

func (m *memStore) GetDetail(_ context.Context, recordID int64) (*Detail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	return &Detail{Record: *rec, Items: m.items[recordID]}, nil
}

func (m *memStore) Complete(_ context.Context, recordID int64, conf Confirmation) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Status != StatusPending {
		return nil, nil
	}
	rec.Status = StatusCompleted
	paidAt := conf.PaidAt
	rec.PaidAt = &paidAt
	if conf.Channel != "" {
		ch := conf.Channel
		rec.Channel = &ch
	}
	tx := conf.TransactionID
	rec.GatewayTxID = &tx
	rec.UpdatedAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (m *memStore) Fail(_ context.Context, recordID int64, reason string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Status != StatusPending {
		return nil, nil
	}
	rec.Status = StatusFailed
	rec.FailReason = &reason
	rec.UpdatedAt = time.Now()
	cp := *rec
	return &cp, nil
}

func (m *memStore) Cancel(_ context.Context, recordID int64) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[recordID]
	if !ok {
		return nil, ErrNotFound
	}
	if rec.Status != StatusPending {
		return nil, nil
	}
	rec.Status = StatusCancelled
	now := time.Now()
	rec.CancelledAt = &now
	rec.UpdatedAt = now
	cp := *rec
	return &cp, nil
}

// mockCartStore counts ClearByID calls so tests can assert at-most-once
// sweeping.
type mockCartStore struct {
	mu         sync.Mutex
	view       *carts.CartView
	viewErr    error
	clearCalls int
	clearErr   error
	clearedIDs []int64
}

func (m *mockCartStore) GetView(_ context.Context, _ int64) (*carts.CartView, error) {
	return m.view, m.viewErr
}

func (m *mockCartStore) ClearByID(_ context.Context, cartID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearCalls++
	m.clearedIDs = append(m.clearedIDs, cartID)
	return m.clearErr
}

func (m *mockCartStore) clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clearCalls
}

type mockCatalog struct {
	mu        sync.Mutex
	snapshots map[int64]*products.SnapshotInfo
}

func (m *mockCatalog) FindForSnapshot(_ context.Context, id int64) (*products.SnapshotInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.snapshots[id]
	if !ok {
		return nil, products.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

func (m *mockCatalog) setPrice(id, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[id].PriceCents = price
}

type mockGateways struct {
	initErr   error
	initCalls int
	initRes   payments.InitializeResponse
	verifyRes payments.VerifyResponse
	verifyErr error
}

func (m *mockGateways) Supported(method string) bool { return method == "paystack" }

func (m *mockGateways) Initialize(_ context.Context, _ string, _ payments.InitializeRequest) (payments.InitializeResponse, error) {
	m.initCalls++
	if m.initErr != nil {
		return payments.InitializeResponse{}, m.initErr
	}
	return m.initRes, nil
}

func (m *mockGateways) Verify(_ context.Context, _, _ string) (payments.VerifyResponse, error) {
	return m.verifyRes, m.verifyErr
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
	last  *Record
}

func (n *countingNotifier) CheckoutCompleted(rec *Record) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	n.last = rec
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}
