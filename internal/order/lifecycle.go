package order

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/Antone-2/supplies-core/internal/events"
)

// Lifecycle owns the order/payment state machine. Fulfillment transitions
// come from admin actions; payment transitions come only from gateway
// reports (webhook or poll) and explicit refunds. All transitions are
// idempotent under concurrent application.
type Lifecycle struct {
	repo    Repository
	events  events.Publisher
	methods map[string]PaymentMethod
}

func NewLifecycle(repo Repository, publisher events.Publisher, methods []PaymentMethod) *Lifecycle {
	byName := make(map[string]PaymentMethod, len(methods))
	for _, m := range methods {
		byName[m.Name] = m
	}
	return &Lifecycle{
		repo:    repo,
		events:  publisher,
		methods: byName,
	}
}

// SetOrderStatus advances fulfillment along the transition graph. An order
// may not reach SHIPPED or DELIVERED while unpaid unless its payment method
// collects on delivery.
func (l *Lifecycle) SetOrderStatus(ctx context.Context, id uuid.UUID, target OrderStatus) (*Order, error) {
	if !target.Valid() {
		return nil, &ValidationError{Fields: []FieldError{
			{Field: "status", Reason: "unknown order status"},
		}}
	}

	order, err := l.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !order.Status.CanTransitionTo(target) {
		return nil, &TransitionError{From: order.Status.String(), To: target.String()}
	}

	if target == OrderStatusShipped || target == OrderStatusDelivered {
		if order.PaymentStatus != PaymentStatusPaid && !l.collectOnDelivery(order.PaymentMethod) {
			return nil, &TransitionError{
				From:   order.Status.String(),
				To:     target.String(),
				Reason: "payment not settled",
			}
		}
	}

	var deliveredAt *time.Time
	if target == OrderStatusDelivered {
		now := time.Now()
		deliveredAt = &now
	}

	applied, err := l.repo.UpdateOrderStatus(ctx, id, order.Status, target, deliveredAt)
	if err != nil {
		return nil, err
	}
	if !applied {
		// Someone moved the order between our read and write.
		current, errGet := l.repo.GetOrderByID(ctx, id)
		if errGet != nil {
			return nil, errGet
		}
		if current.Status == target {
			return current, nil // the same transition already landed
		}
		return nil, &TransitionError{From: current.Status.String(), To: target.String()}
	}

	updated, err := l.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	l.publish(ctx, events.Event{
		Type:     events.TypeOrderStatusChanged,
		OrderID:  updated.ID.String(),
		OwnerKey: updated.OwnerKey,
		Data: map[string]interface{}{
			"status": updated.Status.String(),
		},
	})

	return updated, nil
}

// ApplyGatewayReport reconciles a gateway status report (webhook or poll)
// with local payment state. Duplicate and stale reports are no-ops.
func (l *Lifecycle) ApplyGatewayReport(ctx context.Context, trackingID string, code int) (*Order, error) {
	order, err := l.repo.GetOrderByTrackingID(ctx, trackingID)
	if err != nil {
		return nil, err
	}

	var target PaymentStatus
	switch code {
	case GatewayCodeCompleted:
		target = PaymentStatusPaid
	case GatewayCodeFailed:
		target = PaymentStatusFailed
	case GatewayCodePending:
		return order, nil // nothing to reconcile yet
	default:
		log.Printf("ignoring gateway report with code %d for tracking id %s", code, trackingID)
		return order, nil
	}

	if order.PaymentStatus == target {
		return order, nil // duplicate report
	}
	if order.PaymentStatus != PaymentStatusPending {
		// Settled and possibly refunded already; a late report must not
		// rewind it.
		log.Printf("stale gateway report %s for order %v at %s", target, order.ID, order.PaymentStatus)
		return order, nil
	}

	applied, err := l.repo.UpdatePaymentStatus(ctx, order.ID, PaymentStatusPending, target)
	if err != nil {
		return nil, err
	}
	if !applied {
		// The race loser: the webhook and the poller both reported. Whatever
		// landed first stands.
		return l.repo.GetOrderByID(ctx, order.ID)
	}

	updated, err := l.repo.GetOrderByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}

	l.publish(ctx, events.Event{
		Type:     events.TypePaymentStatusChanged,
		OrderID:  updated.ID.String(),
		OwnerKey: updated.OwnerKey,
		Data: map[string]interface{}{
			"payment_status": updated.PaymentStatus.String(),
			"tracking_id":    trackingID,
		},
	})

	return updated, nil
}

// Refund records an admin-initiated refund. Only paid orders can be
// refunded; the amount decides full versus partial.
func (l *Lifecycle) Refund(ctx context.Context, id uuid.UUID, amount float64) (*Order, error) {
	order, err := l.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus != PaymentStatusPaid {
		return nil, &TransitionError{
			From:   order.PaymentStatus.String(),
			To:     PaymentStatusRefunded.String(),
			Reason: "only paid orders can be refunded",
		}
	}

	if amount <= 0 || amount > order.TotalAmount+totalTolerance {
		return nil, &ValidationError{Fields: []FieldError{
			{Field: "amount", Reason: "must be positive and at most the order total"},
		}}
	}

	target := PaymentStatusPartiallyRefunded
	if math.Abs(amount-order.TotalAmount) <= totalTolerance {
		target = PaymentStatusRefunded
	}

	applied, err := l.repo.UpdatePaymentStatus(ctx, id, PaymentStatusPaid, target)
	if err != nil {
		return nil, err
	}
	if !applied {
		current, errGet := l.repo.GetOrderByID(ctx, id)
		if errGet != nil {
			return nil, errGet
		}
		return nil, &TransitionError{
			From:   current.PaymentStatus.String(),
			To:     target.String(),
			Reason: "payment state changed concurrently",
		}
	}

	updated, err := l.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	l.publish(ctx, events.Event{
		Type:     events.TypePaymentStatusChanged,
		OrderID:  updated.ID.String(),
		OwnerKey: updated.OwnerKey,
		Data: map[string]interface{}{
			"payment_status": updated.PaymentStatus.String(),
			"refund_amount":  amount,
		},
	})

	return updated, nil
}

func (l *Lifecycle) collectOnDelivery(methodName string) bool {
	method, ok := l.methods[methodName]
	return ok && method.CollectOnDelivery
}

func (l *Lifecycle) publish(ctx context.Context, event events.Event) {
	if l.events == nil {
		return
	}
	if err := l.events.Publish(ctx, event); err != nil {
		log.Printf("failed to publish %s for order %s: %v", event.Type, event.OrderID, err)
	}
}
