package order

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"

	"github.com/google/uuid"

	"github.com/Antone-2/supplies-core/internal/cart"
	"github.com/Antone-2/supplies-core/internal/events"
	"github.com/Antone-2/supplies-core/internal/identity"
)

// totalTolerance is how far a client-supplied total may drift from the
// server-computed one before the order is rejected.
const totalTolerance = 0.005

// Gateway status codes as reported by webhook or poll.
const (
	GatewayCodePending   = 0
	GatewayCodeCompleted = 1
	GatewayCodeFailed    = 2
	GatewayCodeInvalid   = 3
)

// CartSource is the slice of the cart service order assembly needs.
type CartSource interface {
	Get(ctx context.Context, owner identity.Identity) (*cart.View, error)
	Clear(ctx context.Context, owner identity.Identity) error
}

// PaymentRequest carries what the gateway needs to open a payment order.
// MerchantReference is the local order id and doubles as the idempotency
// key on the gateway side.
type PaymentRequest struct {
	MerchantReference string
	Amount            float64
	Currency          string
	Phone             string
	Email             string
	Description       string
}

type PaymentGateway interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (trackingID string, err error)
	CheckPaymentStatus(ctx context.Context, trackingID string) (int, error)
}

type CreateOrderRequest struct {
	Owner          identity.Identity
	Shipping       ShippingAddress
	PaymentMethod  string
	ClientTotal    *float64 // advisory; server total is authoritative
	IdempotencyKey string
}

// Assembler turns a cart into an immutable order and hands it to the
// payment gateway. Order creation and payment initiation are two separate,
// independently retryable steps: a failed initiation leaves the order at
// payment status PENDING.
type Assembler struct {
	repo     Repository
	carts    CartSource
	gateway  PaymentGateway
	events   events.Publisher
	methods  map[string]PaymentMethod
	currency string
}

func NewAssembler(repo Repository, carts CartSource, gateway PaymentGateway, publisher events.Publisher, methods []PaymentMethod, currency string) *Assembler {
	byName := make(map[string]PaymentMethod, len(methods))
	for _, m := range methods {
		byName[m.Name] = m
	}
	return &Assembler{
		repo:     repo,
		carts:    carts,
		gateway:  gateway,
		events:   publisher,
		methods:  byName,
		currency: currency,
	}
}

func (a *Assembler) Method(name string) (PaymentMethod, bool) {
	m, ok := a.methods[name]
	return m, ok
}

func (a *Assembler) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	// Replay: a retry with the same idempotency key returns the order the
	// first attempt created, cleared cart or not.
	if req.IdempotencyKey != "" {
		existing, err := a.repo.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, ErrOrderNotFound) {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
	}

	view, err := a.carts.Get(ctx, req.Owner)
	if err != nil {
		return nil, err
	}
	if len(view.Items) == 0 {
		return nil, ErrEmptyCart
	}

	if vErr := req.Shipping.Validate(); vErr != nil {
		return nil, vErr
	}

	if _, ok := a.methods[req.PaymentMethod]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedPaymentMethod, req.PaymentMethod)
	}

	// Snapshot the cart lines; prices are the ones captured in the cart at
	// this instant, never re-fetched from the catalog afterwards.
	items := make([]OrderItem, 0, len(view.Items))
	var total float64
	for _, line := range view.Items {
		items = append(items, OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
		total += line.UnitPrice * float64(line.Quantity)
	}

	if req.ClientTotal != nil && math.Abs(*req.ClientTotal-total) > totalTolerance {
		return nil, &ValidationError{Fields: []FieldError{
			{Field: "total_amount", Reason: "does not match the server-computed total"},
		}}
	}

	order := &Order{
		ID:             uuid.New(),
		OwnerKey:       req.Owner.Key(),
		Items:          items,
		Shipping:       req.Shipping,
		TotalAmount:    total,
		Currency:       a.currency,
		PaymentMethod:  req.PaymentMethod,
		Status:         OrderStatusPending,
		PaymentStatus:  PaymentStatusPending,
		IdempotencyKey: req.IdempotencyKey,
	}

	if errCreate := a.repo.CreateOrder(ctx, order); errCreate != nil {
		if errors.Is(errCreate, ErrDuplicateIdempotencyKey) && req.IdempotencyKey != "" {
			// Lost a race against our own retry; return the winner.
			return a.repo.GetOrderByIdempotencyKey(ctx, req.IdempotencyKey)
		}
		return nil, errCreate
	}

	if errClear := a.carts.Clear(ctx, req.Owner); errClear != nil {
		log.Printf("failed to clear cart after order %v: %v", order.ID, errClear)
	}

	a.publish(ctx, events.Event{
		Type:     events.TypeOrderCreated,
		OrderID:  order.ID.String(),
		OwnerKey: order.OwnerKey,
		Data: map[string]interface{}{
			"total_amount": order.TotalAmount,
			"currency":     order.Currency,
			"email":        order.Shipping.Email,
		},
	})

	// Payment initiation failures are logged, not returned; the order
	// stands and InitiatePayment can be retried against it.
	if errPay := a.InitiatePayment(ctx, order); errPay != nil {
		log.Printf("payment initiation failed for order %v: %v", order.ID, errPay)
	}

	return order, nil
}

// InitiatePayment opens a gateway payment order for an order that does not
// have one yet and records the returned tracking id. Safe to call again
// after a failure.
func (a *Assembler) InitiatePayment(ctx context.Context, order *Order) error {
	if order.PaymentStatus != PaymentStatusPending {
		return &TransitionError{
			From:   order.PaymentStatus.String(),
			To:     PaymentStatusPending.String(),
			Reason: "payment already settled",
		}
	}
	if order.TrackingID != "" {
		return nil // already initiated
	}

	trackingID, err := a.gateway.InitiatePayment(ctx, PaymentRequest{
		MerchantReference: order.ID.String(),
		Amount:            order.TotalAmount,
		Currency:          order.Currency,
		Phone:             order.Shipping.Phone,
		Email:             order.Shipping.Email,
		Description:       fmt.Sprintf("order %s", order.ID),
	})
	if err != nil {
		return err
	}

	if errSet := a.repo.SetTrackingID(ctx, order.ID, trackingID); errSet != nil {
		if errors.Is(errSet, ErrDuplicateTrackingID) {
			// A concurrent initiation already stored it; the gateway deduped
			// on the merchant reference so the id is the same order.
			return nil
		}
		return errSet
	}
	order.TrackingID = trackingID
	return nil
}

func (a *Assembler) GetOrder(ctx context.Context, id uuid.UUID) (*Order, error) {
	return a.repo.GetOrderByID(ctx, id)
}

func (a *Assembler) ListOrders(ctx context.Context, filter ListFilter) ([]*Order, int, error) {
	return a.repo.ListOrders(ctx, filter)
}

func (a *Assembler) publish(ctx context.Context, event events.Event) {
	if a.events == nil {
		return
	}
	if err := a.events.Publish(ctx, event); err != nil {
		log.Printf("failed to publish %s for order %s: %v", event.Type, event.OrderID, err)
	}
}
