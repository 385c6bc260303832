package pesapal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusCode is the gateway's numeric payment state.
type StatusCode int

const (
	StatusPending   StatusCode = 0
	StatusCompleted StatusCode = 1
	StatusFailed    StatusCode = 2
	StatusInvalid   StatusCode = 3 // gateway does not recognize the tracking id
)

// GatewayError marks a failed gateway interaction. It is always retryable
// from the caller's point of view: local order state is left untouched.
type GatewayError struct {
	Op  string // "initiate" or "status"
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

type Config struct {
	BaseURL     string
	Credentials Credentials
	Timeout     time.Duration
	MaxRetries  int
	Backoff     time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]

	// injectable for deterministic tests
	nonce func() string
	now   func() time.Time
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 8 * time.Second
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = 500 * time.Millisecond
	}

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:    "pesapal",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
		nonce:   Nonce,
		now:     time.Now,
	}
}

type InitiateRequest struct {
	MerchantReference string // local order id; the gateway dedupes on it across retries
	Amount            float64
	Currency          string
	Phone             string
	Email             string
	Description       string
}

type initiateResponse struct {
	TrackingID string `json:"tracking_id"`
	Status     string `json:"status"`
	Error      string `json:"error,omitempty"`
}

type statusResponse struct {
	TrackingID string `json:"tracking_id"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

// InitiatePayment registers a payment order with the gateway and returns its
// tracking id. The merchant reference is sent unchanged on every attempt so
// a retry after a timeout cannot create a second gateway order.
func (c *Client) InitiatePayment(ctx context.Context, req InitiateRequest) (string, error) {
	params := map[string]string{
		"reference":   req.MerchantReference,
		"amount":      strconv.FormatFloat(req.Amount, 'f', 2, 64),
		"currency":    req.Currency,
		"phone":       req.Phone,
		"email":       req.Email,
		"description": req.Description,
	}

	body, err := c.doSigned(ctx, http.MethodPost, c.cfg.BaseURL+"/orders", params)
	if err != nil {
		return "", &GatewayError{Op: "initiate", Err: err}
	}

	var resp initiateResponse
	if errUnmarshal := json.Unmarshal(body, &resp); errUnmarshal != nil {
		return "", &GatewayError{Op: "initiate", Err: fmt.Errorf("malformed response: %w", errUnmarshal)}
	}
	if resp.TrackingID == "" {
		return "", &GatewayError{Op: "initiate", Err: fmt.Errorf("response missing tracking id: %s", resp.Error)}
	}

	return resp.TrackingID, nil
}

// CheckPaymentStatus queries the gateway for the state of a payment order.
func (c *Client) CheckPaymentStatus(ctx context.Context, trackingID string) (StatusCode, error) {
	params := map[string]string{
		"tracking_id": trackingID,
	}

	body, err := c.doSigned(ctx, http.MethodGet, c.cfg.BaseURL+"/orders/status", params)
	if err != nil {
		return StatusPending, &GatewayError{Op: "status", Err: err}
	}

	var resp statusResponse
	if errUnmarshal := json.Unmarshal(body, &resp); errUnmarshal != nil {
		return StatusPending, &GatewayError{Op: "status", Err: fmt.Errorf("malformed response: %w", errUnmarshal)}
	}
	if resp.StatusCode < int(StatusPending) || resp.StatusCode > int(StatusInvalid) {
		return StatusPending, &GatewayError{Op: "status", Err: fmt.Errorf("unknown status code %d", resp.StatusCode)}
	}

	return StatusCode(resp.StatusCode), nil
}

// doSigned issues one signed request with bounded retries. Each attempt is
// signed fresh so nonces are never reused.
func (c *Client) doSigned(ctx context.Context, method, requestURL string, params map[string]string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.Backoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		body, err := c.breaker.Execute(func() ([]byte, error) {
			return c.doOnce(ctx, method, requestURL, params)
		})
		if err == nil {
			return body, nil
		}
		lastErr = err

		if errors.Is(err, context.Canceled) {
			break
		}
	}

	return nil, lastErr
}

func (c *Client) doOnce(ctx context.Context, method, requestURL string, params map[string]string) ([]byte, error) {
	signed := SignedParams(SignatureInput{
		Method:    method,
		URL:       requestURL,
		Params:    params,
		Nonce:     c.nonce(),
		Timestamp: strconv.FormatInt(c.now().Unix(), 10),
	}, c.cfg.Credentials)

	var req *http.Request
	var err error
	if method == http.MethodGet {
		req, err = http.NewRequestWithContext(ctx, method, requestURL+"?"+signed.Encode(), nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, requestURL, strings.NewReader(signed.Encode()))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, fmt.Errorf("request timed out after %s: %w", c.cfg.Timeout, err)
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return body, nil
}
