package daraja

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type gatewayStub struct {
	t *testing.T

	tokenStatus int
	tokenBody   string
	tokenCalls  int

	pushStatus int
	pushBody   string
	pushCalls  int
	lastPush   PushEnvelope
}

func newGatewayStub(t *testing.T) (*gatewayStub, *httptest.Server) {
	stub := &gatewayStub{
		t:           t,
		tokenStatus: http.StatusOK,
		tokenBody:   `{"access_token":"token-1","expires_in":"3599"}`,
		pushStatus:  http.StatusOK,
		pushBody:    `{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResponseCode":"0","ResponseDescription":"Success. Request accepted for processing","CustomerMessage":"Success. Request accepted for processing"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		stub.tokenCalls++
		require.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "key", user)
		require.Equal(t, "secret", pass)
		w.WriteHeader(stub.tokenStatus)
		_, _ = w.Write([]byte(stub.tokenBody))
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		stub.pushCalls++
		require.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&stub.lastPush))
		w.WriteHeader(stub.pushStatus)
		_, _ = w.Write([]byte(stub.pushBody))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return stub, server
}

func newTestClient(server *httptest.Server) *Client {
	cfg := testConfig()
	cfg.BaseURLOverride = server.URL
	client := NewClient(cfg, server.Client())
	client.retryDelay = time.Millisecond
	return client
}

func TestSTKPushSubmitsSignedEnvelope(t *testing.T) {
	stub, server := newGatewayStub(t)
	client := newTestClient(server)

	resp, err := client.STKPush(context.Background(), PushRequest{
		PhoneNumber:      "254712345678",
		Amount:           500.9,
		AccountReference: "MwendaChronicles",
		TransactionDesc:  "Support",
	})
	require.NoError(t, err)
	require.Equal(t, "ws_CO_1", resp.CheckoutRequestID)
	require.Equal(t, "0", resp.ResponseCode)

	require.Equal(t, 1, stub.tokenCalls)
	require.Equal(t, 1, stub.pushCalls)
	require.Equal(t, int64(500), stub.lastPush.Amount)
	require.Equal(t, "254712345678", stub.lastPush.PhoneNumber)
	require.NotEmpty(t, stub.lastPush.Password)
	require.Len(t, stub.lastPush.Timestamp, 14)
}

func TestSTKPushReusesCachedToken(t *testing.T) {
	stub, server := newGatewayStub(t)
	client := newTestClient(server)

	_, err := client.STKPush(context.Background(), PushRequest{PhoneNumber: "254712345678", Amount: 100})
	require.NoError(t, err)
	_, err = client.STKPush(context.Background(), PushRequest{PhoneNumber: "254712345678", Amount: 200})
	require.NoError(t, err)

	require.Equal(t, 1, stub.tokenCalls)
	require.Equal(t, 2, stub.pushCalls)
}

func TestSTKPushAuthFailureMakesNoPushCall(t *testing.T) {
	stub, server := newGatewayStub(t)
	stub.tokenStatus = http.StatusUnauthorized
	stub.tokenBody = `{"errorMessage":"Invalid Authentication passed"}`
	client := newTestClient(server)

	_, err := client.STKPush(context.Background(), PushRequest{PhoneNumber: "254712345678", Amount: 100})

	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	// 401 is a credential problem; retrying cannot help.
	require.Equal(t, 1, stub.tokenCalls)
	require.Equal(t, 0, stub.pushCalls)
}

func TestAuthorizeRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"errorMessage":"Service unavailable"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"token-1","expires_in":"3599"}`))
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server)

	token, err := client.ensureAccessToken(context.Background())
	require.NoError(t, err)
	require.Equal(t, "token-1", token)
	require.Equal(t, 3, calls)
}

func TestAuthorizeGivesUpAfterBoundedAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(server.Close)

	client := newTestClient(server)

	_, err := client.ensureAccessToken(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, 3, calls)
}

func TestSTKPushGatewayErrorSurfacesAPIError(t *testing.T) {
	stub, server := newGatewayStub(t)
	stub.pushStatus = http.StatusInternalServerError
	stub.pushBody = `{"requestId":"1","errorCode":"500.001.1001","errorMessage":"Unable to lock subscriber"}`
	client := newTestClient(server)

	_, err := client.STKPush(context.Background(), PushRequest{PhoneNumber: "254712345678", Amount: 100})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	// The push is never retried.
	require.Equal(t, 1, stub.pushCalls)
}

func TestSTKPushRejectsMissingCheckoutID(t *testing.T) {
	stub, server := newGatewayStub(t)
	stub.pushBody = `{"ResponseCode":"0"}`
	client := newTestClient(server)

	_, err := client.STKPush(context.Background(), PushRequest{PhoneNumber: "254712345678", Amount: 100})
	require.ErrorContains(t, err, "CheckoutRequestID")
}
