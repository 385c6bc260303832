package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Antone-2/supplies-core/internal/order"
)

// PaymentReporter applies a gateway status report to the owning order.
type PaymentReporter interface {
	ApplyGatewayReport(ctx context.Context, trackingID string, code int) (*order.Order, error)
}

type WebhookHandler struct {
	lifecycle PaymentReporter
	timeout   time.Duration
}

func NewWebhookHandler(lifecycle PaymentReporter, timeout time.Duration) *WebhookHandler {
	return &WebhookHandler{
		lifecycle: lifecycle,
		timeout:   timeout,
	}
}

type WebhookRequestDTO struct {
	TrackingID string `json:"tracking_id"`
	StatusCode *int   `json:"status_code"`
}

// HandleNotification is the gateway's IPN endpoint. It only ever matches a
// tracking id this system stored from a signed initiation response; anything
// else is rejected.
func (h *WebhookHandler) HandleNotification(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req WebhookRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.TrackingID == "" || req.StatusCode == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "tracking_id and status_code are required")
		return
	}

	updated, err := h.lifecycle.ApplyGatewayReport(ctx, req.TrackingID, *req.StatusCode)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"order_id":       updated.ID.String(),
		"payment_status": updated.PaymentStatus.String(),
	})
}
