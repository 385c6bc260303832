// Package events publishes order lifecycle events for downstream consumers
// (transactional email, notifications). Publishing is best-effort: the
// checkout pipeline never fails over a lost event.
package events

import (
	"context"
	"time"
)

const (
	TypeOrderCreated         = "order.created"
	TypeOrderStatusChanged   = "order.status_changed"
	TypePaymentStatusChanged = "payment.status_changed"
)

type Event struct {
	Type       string                 `json:"type"`
	OrderID    string                 `json:"order_id"`
	OwnerKey   string                 `json:"owner_key,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
