package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Antone-2/supplies-core/internal/identity"
	"github.com/Antone-2/supplies-core/internal/order"
)

// OrderService is the slice of the assembler the HTTP layer uses.
type OrderService interface {
	CreateOrder(ctx context.Context, req order.CreateOrderRequest) (*order.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error)
	ListOrders(ctx context.Context, filter order.ListFilter) ([]*order.Order, int, error)
}

// OrderAdmin is the slice of the lifecycle manager admin endpoints use.
type OrderAdmin interface {
	SetOrderStatus(ctx context.Context, id uuid.UUID, target order.OrderStatus) (*order.Order, error)
	Refund(ctx context.Context, id uuid.UUID, amount float64) (*order.Order, error)
}

type OrderHandler struct {
	orders  OrderService
	admin   OrderAdmin
	timeout time.Duration
}

func NewOrderHandler(orders OrderService, admin OrderAdmin, timeout time.Duration) *OrderHandler {
	return &OrderHandler{
		orders:  orders,
		admin:   admin,
		timeout: timeout,
	}
}

type CreateOrderRequestDTO struct {
	ShippingAddress order.ShippingAddress `json:"shipping_address"`
	PaymentMethod   string                `json:"payment_method"`
	TotalAmount     *float64              `json:"total_amount,omitempty"`
	IdempotencyKey  string                `json:"idempotency_key,omitempty"`
}

type ListOrdersResponseDTO struct {
	Orders   []*order.Order `json:"orders"`
	Total    int            `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := identityFromContext(r.Context())
	if owner.IsZero() {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or guest identity")
		return
	}

	var req CreateOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	created, err := h.orders.CreateOrder(ctx, order.CreateOrderRequest{
		Owner:          owner,
		Shipping:       req.ShippingAddress,
		PaymentMethod:  req.PaymentMethod,
		ClientTotal:    req.TotalAmount,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := identityFromContext(r.Context())
	if owner.IsZero() {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or guest identity")
		return
	}

	filter, ok := listFilterFrom(w, r)
	if !ok {
		return
	}
	filter.OwnerKey = owner.Key()

	orders, total, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ListOrdersResponseDTO{
		Orders:   orders,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

// ListAllOrders is the admin view across every owner.
func (h *OrderHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter, ok := listFilterFrom(w, r)
	if !ok {
		return
	}

	orders, total, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ListOrdersResponseDTO{
		Orders:   orders,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	})
}

func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	owner := identityFromContext(r.Context())
	if owner.IsZero() {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing user or guest identity")
		return
	}

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	if found.OwnerKey != owner.Key() {
		respondError(w, http.StatusNotFound, "not_found", "order not found")
		return
	}

	respondJSON(w, http.StatusOK, found)
}

type UpdateOrderStatusRequestDTO struct {
	Status string `json:"status"`
}

type RefundRequestDTO struct {
	Amount float64 `json:"amount"`
}

func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateOrderStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	target := order.OrderStatus(strings.ToUpper(req.Status))
	updated, err := h.admin.SetOrderStatus(ctx, id, target)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (h *OrderHandler) Refund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req RefundRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	updated, err := h.admin.Refund(ctx, id, req.Amount)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

type TrackOrderResponseDTO struct {
	OrderID       string             `json:"order_id"`
	Status        string             `json:"status"`
	PaymentStatus string             `json:"payment_status"`
	Timeline      []TimelineEntryDTO `json:"timeline"`
	Recipient     string             `json:"recipient"`
	Phone         string             `json:"phone"`
	Destination   string             `json:"destination"`
	Items         []order.OrderItem  `json:"items"`
}

type TimelineEntryDTO struct {
	Status string    `json:"status"`
	At     time.Time `json:"at"`
}

// TrackOrder is the public tracking view: status timeline, masked shipping
// summary and item list. No identity required.
func (h *OrderHandler) TrackOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	id, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	found, err := h.orders.GetOrder(ctx, id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	timeline := []TimelineEntryDTO{
		{Status: order.OrderStatusPending.String(), At: found.CreatedAt},
	}
	if found.Status != order.OrderStatusPending {
		timeline = append(timeline, TimelineEntryDTO{Status: found.Status.String(), At: found.UpdatedAt})
	}
	if found.DeliveredAt != nil {
		timeline = append(timeline, TimelineEntryDTO{Status: order.OrderStatusDelivered.String(), At: *found.DeliveredAt})
	}

	respondJSON(w, http.StatusOK, TrackOrderResponseDTO{
		OrderID:       found.ID.String(),
		Status:        found.Status.String(),
		PaymentStatus: found.PaymentStatus.String(),
		Timeline:      timeline,
		Recipient:     maskName(found.Shipping.FullName),
		Phone:         maskPhone(found.Shipping.Phone),
		Destination:   found.Shipping.City + ", " + found.Shipping.Region,
		Items:         found.Items,
	})
}

func listFilterFrom(w http.ResponseWriter, r *http.Request) (order.ListFilter, bool) {
	q := r.URL.Query()
	filter := order.ListFilter{
		SortBy:   q.Get("sort"),
		SortDesc: q.Get("order") != "asc",
	}

	if s := q.Get("status"); s != "" {
		status := order.OrderStatus(strings.ToUpper(s))
		if !status.Valid() {
			respondError(w, http.StatusBadRequest, "invalid_status", "unknown order status filter")
			return filter, false
		}
		filter.Status = status
	}
	if s := q.Get("payment_status"); s != "" {
		filter.PaymentStatus = order.PaymentStatus(strings.ToUpper(s))
	}

	filter.Page, _ = strconv.Atoi(q.Get("page"))
	filter.PageSize, _ = strconv.Atoi(q.Get("page_size"))
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	return filter, true
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_order_id", "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

// maskName keeps initials only: "Jane Wanjiku" -> "J. W.".
func maskName(name string) string {
	parts := strings.Fields(name)
	masked := make([]string, 0, len(parts))
	for _, p := range parts {
		masked = append(masked, strings.ToUpper(p[:1])+".")
	}
	return strings.Join(masked, " ")
}

// maskPhone keeps the last three digits.
func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return phone
	}
	return strings.Repeat("*", len(phone)-3) + phone[len(phone)-3:]
}
