package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ListFilter struct {
	OwnerKey      string // empty = all owners (admin)
	Status        OrderStatus
	PaymentStatus PaymentStatus
	Page          int
	PageSize      int
	SortBy        string
	SortDesc      bool
}

// Repository defines the interface for order data operations
// Consumers define this interface, not the Postgres implementation
type Repository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrderByID(ctx context.Context, id uuid.UUID) (*Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*Order, error)
	GetOrderByTrackingID(ctx context.Context, trackingID string) (*Order, error)
	ListOrders(ctx context.Context, filter ListFilter) ([]*Order, int, error)
	SetTrackingID(ctx context.Context, id uuid.UUID, trackingID string) error
	// UpdateOrderStatus applies from→to only if the row is still at the
	// expected source state; returns false when another writer got there
	// first. deliveredAt is stamped alongside a DELIVERED target.
	UpdateOrderStatus(ctx context.Context, id uuid.UUID, from, to OrderStatus, deliveredAt *time.Time) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, from, to PaymentStatus) (bool, error)
	// ListUnsettled returns orders still awaiting payment settlement, for
	// the status sweep poller.
	ListUnsettled(ctx context.Context, olderThan time.Duration, limit int) ([]*Order, error)
}
