package order

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusPaid              PaymentStatus = "PAID"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  nil,
	OrderStatusCancelled:  nil,
}

func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

func (s OrderStatus) IsTerminal() bool {
	return len(orderTransitions[s]) == 0
}

func (s OrderStatus) Valid() bool {
	_, ok := orderTransitions[s]
	return ok
}

// String representation (for logging)
func (s OrderStatus) String() string {
	return string(s)
}

func (s PaymentStatus) String() string {
	return string(s)
}

type OrderItem struct {
	ProductID   int64   `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

type ShippingAddress struct {
	FullName         string `json:"full_name"`
	Email            string `json:"email"`
	Phone            string `json:"phone"`
	Address          string `json:"address"`
	City             string `json:"city"`
	Region           string `json:"region"`
	DeliveryLocation string `json:"delivery_location"`
	PostalCode       string `json:"postal_code,omitempty"`
}

type Order struct {
	ID             uuid.UUID       `json:"id"`
	OwnerKey       string          `json:"owner"`
	Items          []OrderItem     `json:"items"`
	Shipping       ShippingAddress `json:"shipping_address"`
	TotalAmount    float64         `json:"total_amount"`
	Currency       string          `json:"currency"`
	PaymentMethod  string          `json:"payment_method"`
	Status         OrderStatus     `json:"status"`
	PaymentStatus  PaymentStatus   `json:"payment_status"`
	TrackingID     string          `json:"tracking_id,omitempty"`
	IdempotencyKey string          `json:"-"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeliveredAt    *time.Time      `json:"delivered_at,omitempty"`
}

func (o *Order) ComputeTotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// PaymentMethod describes an entry in the checkout whitelist.
// CollectOnDelivery methods may be fulfilled before payment settles.
type PaymentMethod struct {
	Name              string
	CollectOnDelivery bool
}

var (
	mobilePattern = regexp.MustCompile(`^(?:\+?254|0)(?:7|1)\d{8}$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// Validate checks the address against the checkout schema and returns every
// violated field at once, or nil when the address is acceptable.
func (a ShippingAddress) Validate() *ValidationError {
	var fields []FieldError

	checkLen := func(field, value string, min, max int) {
		value = strings.TrimSpace(value)
		if len(value) < min || len(value) > max {
			fields = append(fields, FieldError{
				Field:  field,
				Reason: "must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max) + " characters",
			})
		}
	}

	checkLen("full_name", a.FullName, 2, 50)
	checkLen("address", a.Address, 5, 100)
	checkLen("city", a.City, 2, 50)
	checkLen("region", a.Region, 2, 50)
	checkLen("delivery_location", a.DeliveryLocation, 2, 50)
	if a.PostalCode != "" {
		checkLen("postal_code", a.PostalCode, 2, 50)
	}

	if !emailPattern.MatchString(a.Email) {
		fields = append(fields, FieldError{Field: "email", Reason: "must be a valid email address"})
	}
	if !mobilePattern.MatchString(a.Phone) {
		fields = append(fields, FieldError{Field: "phone", Reason: "must be a valid mobile number"})
	}

	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: fields}
}

