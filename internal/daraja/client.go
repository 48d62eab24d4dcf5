// Package daraja is a minimal client for the Safaricom Daraja STK push API,
// tailored for Lambda usage: one token fetch and one push per payment.
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/mwendachronicles/mpesa-lambda/internal/config"
)

const (
	tokenPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath  = "/mpesa/stkpush/v1/processrequest"

	tokenAttempts   = 3
	tokenRetryDelay = 200 * time.Millisecond
)

// APIError surfaces non-successful HTTP responses from the gateway.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daraja api error: status=%d body=%s", e.StatusCode, e.Body)
}

// AuthError marks credential acquisition failures. The initiator maps it to a
// 500 without ever attempting the push.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("daraja auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Client talks to the Daraja gateway for one merchant short code.
type Client struct {
	httpClient *http.Client
	baseURL    string

	consumerKey    string
	consumerSecret string
	shortCode      string
	passkey        string
	callbackURL    string

	now        func() time.Time
	retryDelay time.Duration

	authMu      sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

// NewClient builds a Client from validated configuration. A nil httpClient
// gets a 30-second-timeout default.
func NewClient(cfg config.Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		httpClient:     httpClient,
		baseURL:        cfg.BaseURL(),
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		shortCode:      cfg.ShortCode,
		passkey:        cfg.Passkey,
		callbackURL:    cfg.CallbackURL,
		now:            time.Now,
		retryDelay:     tokenRetryDelay,
	}
}

// STKPush obtains a bearer token, signs an envelope for the current instant,
// and submits the push. The synchronous response only acknowledges that the
// prompt was dispatched; the outcome arrives on the callback URL. The push
// request itself is never retried, since a duplicate push is a duplicate
// charge.
func (c *Client) STKPush(ctx context.Context, req PushRequest) (*PushResponse, error) {
	if req.PhoneNumber == "" {
		return nil, errors.New("phone number is required")
	}

	token, err := c.ensureAccessToken(ctx)
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	envelope, err := c.buildEnvelope(req, c.now())
	if err != nil {
		return nil, err
	}

	_, body, err := c.doRequest(ctx, http.MethodPost, pushPath, "Bearer "+token, envelope)
	if err != nil {
		return nil, err
	}

	var resp PushResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode push response: %w", err)
	}
	if resp.CheckoutRequestID == "" {
		return nil, fmt.Errorf("push response missing CheckoutRequestID: %s", string(body))
	}

	return &resp, nil
}

func (c *Client) authorize(ctx context.Context) (*authResponse, error) {
	basic := base64.StdEncoding.EncodeToString([]byte(c.consumerKey + ":" + c.consumerSecret))

	var lastErr error
	delay := c.retryDelay
	for attempt := 0; attempt < tokenAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		_, body, err := c.doRequest(ctx, http.MethodGet, tokenPath, "Basic "+basic, nil)
		if err != nil {
			lastErr = err
			var apiErr *APIError
			// Client errors mean bad credentials; retrying cannot help.
			if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
				return nil, err
			}
			continue
		}

		var auth authResponse
		if err := json.Unmarshal(body, &auth); err != nil {
			return nil, fmt.Errorf("decode token response: %w", err)
		}
		if auth.AccessToken == "" {
			return nil, errors.New("token response missing access_token")
		}
		return &auth, nil
	}

	return nil, lastErr
}

func (c *Client) ensureAccessToken(ctx context.Context) (string, error) {
	c.authMu.Lock()
	valid := c.cachedToken != "" && c.now().Before(c.tokenExpiry)
	token := c.cachedToken
	c.authMu.Unlock()

	if valid {
		return token, nil
	}

	auth, err := c.authorize(ctx)
	if err != nil {
		return "", err
	}

	// Daraja reports expires_in as a string of seconds, typically "3599".
	lifetime := 5 * time.Minute
	if secs, err := strconv.Atoi(auth.ExpiresIn); err == nil && secs > 0 {
		lifetime = time.Duration(secs) * time.Second
	}

	buffer := time.Minute
	if lifetime <= buffer {
		buffer = lifetime / 2
	}
	expiresAt := c.now().Add(lifetime - buffer)

	c.authMu.Lock()
	c.cachedToken = auth.AccessToken
	c.tokenExpiry = expiresAt
	c.authMu.Unlock()

	return auth.AccessToken, nil
}

func (c *Client) doRequest(ctx context.Context, method, path, authorization string, payload any) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return 0, nil, err
		}
		body = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, data, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return resp.StatusCode, data, nil
}
