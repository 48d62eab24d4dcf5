package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultForwardTimeout = 15 * time.Second

// PaymentResult is the distilled outcome of a push, extracted from the
// gateway callback and handed to downstream systems.
type PaymentResult struct {
	CheckoutRequestID string  `json:"checkoutRequestId"`
	ResultCode        int     `json:"resultCode"`
	ResultDesc        string  `json:"resultDesc"`
	Amount            float64 `json:"amount,omitempty"`
	Receipt           string  `json:"receipt,omitempty"`
	PhoneNumber       string  `json:"phoneNumber,omitempty"`
}

// ResultSink delivers payment outcomes to downstream systems.
type ResultSink interface {
	Send(ctx context.Context, result PaymentResult) error
}

// HTTPSResultSink posts payment outcomes to an HTTPS endpoint.
type HTTPSResultSink struct {
	url        string
	secret     string
	httpClient *http.Client
}

// NewHTTPSResultSink builds an HTTPS sink client.
func NewHTTPSResultSink(url, secret string, client *http.Client) (*HTTPSResultSink, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("sink URL is required")
	}

	if client == nil {
		client = &http.Client{Timeout: defaultForwardTimeout}
	}

	return &HTTPSResultSink{
		url:        url,
		secret:     secret,
		httpClient: client,
	}, nil
}

// Send transmits the payment result as JSON to the configured endpoint.
func (h *HTTPSResultSink) Send(ctx context.Context, result PaymentResult) error {
	body := &bytes.Buffer{}
	if err := json.NewEncoder(body).Encode(result); err != nil {
		return fmt.Errorf("encode result payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, body)
	if err != nil {
		return fmt.Errorf("build result request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if h.secret != "" {
		req.Header.Set("X-Callback-Secret", h.secret)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send result request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("result endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	return nil
}
