package order

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Antone-2/supplies-core/internal/cart"
	"github.com/Antone-2/supplies-core/internal/events"
	"github.com/Antone-2/supplies-core/internal/identity"
)

type mockOrderRepository struct {
	m      sync.RWMutex
	orders map[uuid.UUID]*Order
	err    error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[uuid.UUID]*Order)}
}

func (m *mockOrderRepository) CreateOrder(_ context.Context, order *Order) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if order.IdempotencyKey != "" {
		for _, o := range m.orders {
			if o.IdempotencyKey == order.IdempotencyKey {
				return ErrDuplicateIdempotencyKey
			}
		}
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	copied := *order
	m.orders[order.ID] = &copied
	return nil
}

func (m *mockOrderRepository) GetOrderByID(_ context.Context, id uuid.UUID) (*Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) GetOrderByIdempotencyKey(_ context.Context, key string) (*Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.IdempotencyKey == key {
			copied := *o
			return &copied, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *mockOrderRepository) GetOrderByTrackingID(_ context.Context, trackingID string) (*Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, o := range m.orders {
		if o.TrackingID == trackingID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, ErrOrderNotFound
}

func (m *mockOrderRepository) ListOrders(_ context.Context, filter ListFilter) ([]*Order, int, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, 0, m.err
	}
	var out []*Order
	for _, o := range m.orders {
		if filter.OwnerKey != "" && o.OwnerKey != filter.OwnerKey {
			continue
		}
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && o.PaymentStatus != filter.PaymentStatus {
			continue
		}
		copied := *o
		out = append(out, &copied)
	}
	return out, len(out), nil
}

func (m *mockOrderRepository) SetTrackingID(_ context.Context, id uuid.UUID, trackingID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, o := range m.orders {
		if o.TrackingID == trackingID && o.ID != id {
			return ErrDuplicateTrackingID
		}
	}
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	o.TrackingID = trackingID
	o.UpdatedAt = time.Now()
	return nil
}

func (m *mockOrderRepository) UpdateOrderStatus(_ context.Context, id uuid.UUID, from, to OrderStatus, deliveredAt *time.Time) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return false, m.err
	}
	o, ok := m.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.DeliveredAt = deliveredAt
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockOrderRepository) UpdatePaymentStatus(_ context.Context, id uuid.UUID, from, to PaymentStatus) (bool, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return false, m.err
	}
	o, ok := m.orders[id]
	if !ok || o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	o.UpdatedAt = time.Now()
	return true, nil
}

func (m *mockOrderRepository) ListUnsettled(_ context.Context, olderThan time.Duration, limit int) ([]*Order, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cutoff := time.Now().Add(-olderThan)
	var out []*Order
	for _, o := range m.orders {
		if o.PaymentStatus != PaymentStatusPending {
			continue
		}
		if o.Status == OrderStatusCancelled || o.Status == OrderStatusDelivered {
			continue
		}
		if o.UpdatedAt.After(cutoff) {
			continue
		}
		copied := *o
		out = append(out, &copied)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// seed stores an order directly, bypassing CreateOrder's checks.
func (m *mockOrderRepository) seed(o *Order) {
	m.m.Lock()
	defer m.m.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now()
	}
	if o.UpdatedAt.IsZero() {
		o.UpdatedAt = o.CreatedAt
	}
	copied := *o
	m.orders[o.ID] = &copied
}

type mockCartSource struct {
	m       sync.Mutex
	views   map[string]*cart.View
	cleared map[string]bool
	getErr  error
}

func newMockCartSource() *mockCartSource {
	return &mockCartSource{
		views:   make(map[string]*cart.View),
		cleared: make(map[string]bool),
	}
}

func (m *mockCartSource) Get(_ context.Context, owner identity.Identity) (*cart.View, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.views[owner.Key()]
	if !ok {
		return &cart.View{OwnerKey: owner.Key()}, nil
	}
	return v, nil
}

func (m *mockCartSource) Clear(_ context.Context, owner identity.Identity) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.views, owner.Key())
	m.cleared[owner.Key()] = true
	return nil
}

type mockGateway struct {
	m           sync.Mutex
	initiateErr error
	statusErr   error
	statusCode  int
	initiated   []PaymentRequest
	checked     []string
}

func (m *mockGateway) InitiatePayment(_ context.Context, req PaymentRequest) (string, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.initiateErr != nil {
		return "", m.initiateErr
	}
	m.initiated = append(m.initiated, req)
	return "track-" + req.MerchantReference, nil
}

func (m *mockGateway) CheckPaymentStatus(_ context.Context, trackingID string) (int, error) {
	m.m.Lock()
	defer m.m.Unlock()
	if m.statusErr != nil {
		return 0, m.statusErr
	}
	m.checked = append(m.checked, trackingID)
	return m.statusCode, nil
}

type mockPublisher struct {
	m      sync.Mutex
	events []events.Event
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, event events.Event) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockPublisher) byType(eventType string) []events.Event {
	m.m.Lock()
	defer m.m.Unlock()
	var out []events.Event
	for _, e := range m.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
