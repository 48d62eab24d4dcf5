package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPSResultSinkRequiresURL(t *testing.T) {
	_, err := NewHTTPSResultSink("  ", "", nil)
	require.Error(t, err)
}

func TestHTTPSResultSinkSendsResultWithSecret(t *testing.T) {
	var received PaymentResult
	var secret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		secret = r.Header.Get("X-Callback-Secret")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(server.Close)

	sink, err := NewHTTPSResultSink(server.URL, "s3cret", server.Client())
	require.NoError(t, err)

	result := PaymentResult{
		CheckoutRequestID: "ws_CO_1",
		ResultDesc:        "ok",
		Amount:            500,
		Receipt:           "NLJ7RT61SV",
		PhoneNumber:       "254712345678",
	}
	require.NoError(t, sink.Send(context.Background(), result))
	require.Equal(t, result, received)
	require.Equal(t, "s3cret", secret)
}

func TestHTTPSResultSinkReportsNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	sink, err := NewHTTPSResultSink(server.URL, "", server.Client())
	require.NoError(t, err)

	err = sink.Send(context.Background(), PaymentResult{CheckoutRequestID: "ws_CO_1"})
	require.ErrorContains(t, err, "502")
}
