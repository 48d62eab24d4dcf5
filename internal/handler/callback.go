package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"github.com/mwendachronicles/mpesa-lambda/internal/daraja"
)

// Acknowledgement bodies. The gateway retries any non-200 for up to 24 hours,
// so the receiver acknowledges unconditionally; "Accepted" only signals that
// the body was unusable.
const (
	ackSuccess  = `{"ResultCode":0,"ResultDesc":"Success"}`
	ackAccepted = `{"ResultCode":0,"ResultDesc":"Accepted"}`
)

// CallbackReceiver handles the gateway's asynchronous result notifications.
type CallbackReceiver struct {
	logger zerolog.Logger
	sink   ResultSink
}

// ReceiverOption customizes the receiver.
type ReceiverOption func(*CallbackReceiver)

// WithReceiverLogger lets callers supply a configured logger.
func WithReceiverLogger(l zerolog.Logger) ReceiverOption {
	return func(r *CallbackReceiver) {
		r.logger = l
	}
}

// WithResultSink wires a downstream destination for confirmed payments.
func WithResultSink(sink ResultSink) ReceiverOption {
	return func(r *CallbackReceiver) {
		r.sink = sink
	}
}

// NewCallbackReceiver builds a receiver that logs and acknowledges.
func NewCallbackReceiver(opts ...ReceiverOption) *CallbackReceiver {
	r := &CallbackReceiver{
		logger: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Handle implements the API Gateway proxy entry point for the callback URL.
// Parsing failures are absorbed: the gateway must always see a 200.
func (r *CallbackReceiver) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, errorBody{Error: "method not allowed, use POST"}), nil
	}

	var envelope daraja.CallbackEnvelope
	if err := json.Unmarshal([]byte(req.Body), &envelope); err != nil {
		r.logger.Error().Err(err).Msg("unparseable callback body, acknowledging anyway")
		return ackResponse(ackAccepted), nil
	}

	cb := envelope.Body.StkCallback
	if cb == nil {
		r.logger.Error().Msg("callback missing Body.stkCallback, acknowledging anyway")
		return ackResponse(ackAccepted), nil
	}

	logger := r.logger.With().Str("checkout_request_id", cb.CheckoutRequestID).Logger()

	if cb.ResultCode != 0 {
		logger.Warn().
			Int("result_code", cb.ResultCode).
			Str("result_desc", cb.ResultDesc).
			Msg("payment cancelled or failed")
		return ackResponse(ackSuccess), nil
	}

	result := PaymentResult{
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
	}
	if v, ok := cb.CallbackMetadata.Lookup("Amount"); ok {
		result.Amount = metaFloat(v)
	}
	if v, ok := cb.CallbackMetadata.Lookup("MpesaReceiptNumber"); ok {
		result.Receipt = metaString(v)
	}
	if v, ok := cb.CallbackMetadata.Lookup("PhoneNumber"); ok {
		result.PhoneNumber = metaString(v)
	}

	logger.Info().
		Float64("amount", result.Amount).
		Str("receipt", result.Receipt).
		Str("phone", result.PhoneNumber).
		Msg("payment confirmed")

	if r.sink != nil {
		if err := r.sink.Send(ctx, result); err != nil {
			logger.Error().Err(err).Msg("result forwarding failed")
		}
	}

	return ackResponse(ackSuccess), nil
}

func ackResponse(body string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}

// Metadata values arrive as JSON numbers for Amount and PhoneNumber but as a
// string for the receipt, so both coercions are needed.
func metaString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}

func metaFloat(v any) float64 {
	switch val := v.(type) {
	case float64:
		return val
	case string:
		f, _ := strconv.ParseFloat(val, 64)
		return f
	default:
		return 0
	}
}
