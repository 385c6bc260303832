package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/Antone-2/supplies-core/internal/cart"
	"github.com/Antone-2/supplies-core/internal/catalog"
	"github.com/Antone-2/supplies-core/internal/order"
	"github.com/Antone-2/supplies-core/internal/payment/pesapal"
)

type ErrorResponse struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details string              `json:"details,omitempty"`
	Fields  []order.FieldError  `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// respondDomainError maps domain errors onto HTTP statuses. Validation and
// conflict errors carry their structured detail through.
func respondDomainError(w http.ResponseWriter, err error) {
	var vErr *order.ValidationError
	if errors.As(err, &vErr) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  vErr.Error(),
			Code:   "validation_failed",
			Fields: vErr.Fields,
		})
		return
	}

	var tErr *order.TransitionError
	if errors.As(err, &tErr) {
		respondJSON(w, http.StatusConflict, ErrorResponse{
			Error: tErr.Error(),
			Code:  "invalid_transition",
		})
		return
	}

	var gErr *pesapal.GatewayError
	if errors.As(err, &gErr) {
		respondError(w, http.StatusBadGateway, "gateway_error", gErr.Error())
		return
	}

	switch {
	case errors.Is(err, order.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, order.ErrUnsupportedPaymentMethod):
		respondError(w, http.StatusBadRequest, "unsupported_payment_method", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, cart.ErrCartNotFound),
		errors.Is(err, cart.ErrItemNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, cart.ErrCartUnavailable):
		respondError(w, http.StatusServiceUnavailable, "storage_unavailable", err.Error())
	default:
		log.Printf("internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
