package order

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Antone-2/supplies-core/internal/events"
)

type lifecycleFixture struct {
	repo      *mockOrderRepository
	publisher *mockPublisher
	lifecycle *Lifecycle
}

func newLifecycleFixture() *lifecycleFixture {
	repo := newMockOrderRepository()
	publisher := &mockPublisher{}
	return &lifecycleFixture{
		repo:      repo,
		publisher: publisher,
		lifecycle: NewLifecycle(repo, publisher, testMethods),
	}
}

func (f *lifecycleFixture) seedOrder(status OrderStatus, payment PaymentStatus) *Order {
	o := &Order{
		ID:            uuid.New(),
		OwnerKey:      "user:u-1",
		Items:         []OrderItem{{ProductID: 1, Quantity: 2, UnitPrice: 100}},
		TotalAmount:   200,
		Currency:      "KES",
		PaymentMethod: "pesapal",
		Status:        status,
		PaymentStatus: payment,
		TrackingID:    "track-" + uuid.NewString(),
	}
	f.repo.seed(o)
	return o
}

func TestSetOrderStatus_HappyPath(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPaid)
	ctx := context.Background()

	updated, err := f.lifecycle.SetOrderStatus(ctx, o.ID, OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusProcessing, updated.Status)

	updated, err = f.lifecycle.SetOrderStatus(ctx, o.ID, OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, updated.Status)

	updated, err = f.lifecycle.SetOrderStatus(ctx, o.ID, OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusDelivered, updated.Status)
	assert.NotNil(t, updated.DeliveredAt)

	assert.Len(t, f.publisher.byType(events.TypeOrderStatusChanged), 3)
}

func TestSetOrderStatus_UnknownStatus(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPaid)

	_, err := f.lifecycle.SetOrderStatus(context.Background(), o.ID, OrderStatus("TELEPORTED"))

	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestSetOrderStatus_IllegalTransition(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPaid)

	_, err := f.lifecycle.SetOrderStatus(context.Background(), o.ID, OrderStatusDelivered)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "PENDING", terr.From)
	assert.Equal(t, "DELIVERED", terr.To)
}

func TestSetOrderStatus_CancelledOrderStaysCancelled(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusCancelled, PaymentStatusPending)

	_, err := f.lifecycle.SetOrderStatus(context.Background(), o.ID, OrderStatusProcessing)

	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)
}

func TestSetOrderStatus_UnpaidOrderCannotShip(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusProcessing, PaymentStatusPending)

	_, err := f.lifecycle.SetOrderStatus(context.Background(), o.ID, OrderStatusShipped)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "payment not settled", terr.Reason)
}

func TestSetOrderStatus_CollectOnDeliveryShipsUnpaid(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusProcessing, PaymentStatusPending)
	f.repo.m.Lock()
	f.repo.orders[o.ID].PaymentMethod = "cod"
	f.repo.m.Unlock()

	updated, err := f.lifecycle.SetOrderStatus(context.Background(), o.ID, OrderStatusShipped)

	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, updated.Status)
}

func TestSetOrderStatus_ConcurrentSameTargetIsIdempotent(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPaid)
	ctx := context.Background()

	// Another writer lands the same transition between our read and write.
	_, err := f.lifecycle.SetOrderStatus(ctx, o.ID, OrderStatusProcessing)
	require.NoError(t, err)

	updated, err := f.lifecycle.SetOrderStatus(ctx, o.ID, OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, OrderStatusShipped, updated.Status)

	// Re-applying the transition the order already holds is a conflict from
	// PROCESSING's point of view, not from SHIPPED's.
	_, err = f.lifecycle.SetOrderStatus(ctx, o.ID, OrderStatusShipped)
	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)
}

func TestSetOrderStatus_OrderNotFound(t *testing.T) {
	f := newLifecycleFixture()

	_, err := f.lifecycle.SetOrderStatus(context.Background(), uuid.New(), OrderStatusProcessing)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestApplyGatewayReport_CompletedMarksPaid(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPending)

	updated, err := f.lifecycle.ApplyGatewayReport(context.Background(), o.TrackingID, GatewayCodeCompleted)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, updated.PaymentStatus)
	assert.Len(t, f.publisher.byType(events.TypePaymentStatusChanged), 1)
}

func TestApplyGatewayReport_FailedMarksFailed(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPending)

	updated, err := f.lifecycle.ApplyGatewayReport(context.Background(), o.TrackingID, GatewayCodeFailed)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusFailed, updated.PaymentStatus)
}

func TestApplyGatewayReport_PendingIsNoop(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPending)

	updated, err := f.lifecycle.ApplyGatewayReport(context.Background(), o.TrackingID, GatewayCodePending)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, updated.PaymentStatus)
	assert.Empty(t, f.publisher.byType(events.TypePaymentStatusChanged))
}

func TestApplyGatewayReport_DuplicateIsNoop(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPending)
	ctx := context.Background()

	_, err := f.lifecycle.ApplyGatewayReport(ctx, o.TrackingID, GatewayCodeCompleted)
	require.NoError(t, err)

	updated, err := f.lifecycle.ApplyGatewayReport(ctx, o.TrackingID, GatewayCodeCompleted)
	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPaid, updated.PaymentStatus)
	assert.Len(t, f.publisher.byType(events.TypePaymentStatusChanged), 1, "duplicate report must not publish again")
}

func TestApplyGatewayReport_StaleReportDoesNotRewindRefund(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusRefunded)

	updated, err := f.lifecycle.ApplyGatewayReport(context.Background(), o.TrackingID, GatewayCodeCompleted)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusRefunded, updated.PaymentStatus)
}

func TestApplyGatewayReport_UnknownCodeIgnored(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPending)

	updated, err := f.lifecycle.ApplyGatewayReport(context.Background(), o.TrackingID, 42)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPending, updated.PaymentStatus)
}

func TestApplyGatewayReport_UnknownTrackingID(t *testing.T) {
	f := newLifecycleFixture()

	_, err := f.lifecycle.ApplyGatewayReport(context.Background(), "track-nope", GatewayCodeCompleted)

	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRefund_FullAmount(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPaid)

	updated, err := f.lifecycle.Refund(context.Background(), o.ID, 200)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusRefunded, updated.PaymentStatus)
}

func TestRefund_PartialAmount(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPaid)

	updated, err := f.lifecycle.Refund(context.Background(), o.ID, 50)

	require.NoError(t, err)
	assert.Equal(t, PaymentStatusPartiallyRefunded, updated.PaymentStatus)
}

func TestRefund_UnpaidOrderRejected(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPending)

	_, err := f.lifecycle.Refund(context.Background(), o.ID, 200)

	var terr *TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "only paid orders can be refunded", terr.Reason)
}

func TestRefund_AmountBounds(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPaid)
	ctx := context.Background()

	var verr *ValidationError
	_, err := f.lifecycle.Refund(ctx, o.ID, 0)
	assert.ErrorAs(t, err, &verr)

	_, err = f.lifecycle.Refund(ctx, o.ID, -10)
	assert.ErrorAs(t, err, &verr)

	_, err = f.lifecycle.Refund(ctx, o.ID, 200.01)
	assert.ErrorAs(t, err, &verr)
}

func TestRefund_AlreadyRefunded(t *testing.T) {
	f := newLifecycleFixture()
	o := f.seedOrder(OrderStatusPending, PaymentStatusPaid)
	ctx := context.Background()

	_, err := f.lifecycle.Refund(ctx, o.ID, 200)
	require.NoError(t, err)

	_, err = f.lifecycle.Refund(ctx, o.ID, 200)
	var terr *TransitionError
	assert.ErrorAs(t, err, &terr)
}
