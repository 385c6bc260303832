package order

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyCart                = errors.New("cart is empty, nothing to checkout")
	ErrOrderNotFound            = errors.New("order not found")
	ErrUnsupportedPaymentMethod = errors.New("unsupported payment method")
	ErrDuplicateIdempotencyKey  = errors.New("idempotency key already used")
	ErrDuplicateTrackingID      = errors.New("tracking id already assigned")
)

type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries every violated field of a request so the caller
// can fix all of them in one round trip.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = f.Field
	}
	return "validation failed: " + strings.Join(names, ", ")
}

// TransitionError rejects a state change that is not on the transition
// graph, naming the offending source/target pair.
type TransitionError struct {
	From   string
	To     string
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot transition from %s to %s: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot transition from %s to %s", e.From, e.To)
}
