package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/mwendachronicles/mpesa-lambda/internal/daraja"
	"github.com/mwendachronicles/mpesa-lambda/internal/phone"
)

const (
	defaultAccountReference = "MwendaChronicles"
	defaultTransactionDesc  = "Support"
)

// Gateway defines the subset of the Daraja client used by the initiator.
type Gateway interface {
	STKPush(ctx context.Context, req daraja.PushRequest) (*daraja.PushResponse, error)
}

// InitiateRequest is the JSON body the payment form submits.
type InitiateRequest struct {
	PhoneNumber      string  `json:"phoneNumber"`
	Amount           float64 `json:"amount"`
	AccountReference string  `json:"accountReference,omitempty"`
	TransactionDesc  string  `json:"transactionDesc,omitempty"`
}

// Initiator handles STK push initiation requests. Each invocation makes at
// most one token call and one push call, in that order; validation failures
// and dedupe replays make neither.
type Initiator struct {
	gateway Gateway
	logger  zerolog.Logger
	dedupe  *dedupeGuard
}

// InitiatorOption customizes the initiator.
type InitiatorOption func(*Initiator)

// WithInitiatorLogger lets callers supply a configured logger.
func WithInitiatorLogger(l zerolog.Logger) InitiatorOption {
	return func(i *Initiator) {
		i.logger = l
	}
}

// WithDedupeWindow enables replay of the gateway acknowledgement for repeated
// submissions of the same reference+amount+phone within d. Zero disables it.
func WithDedupeWindow(d time.Duration) InitiatorOption {
	return func(i *Initiator) {
		if d > 0 {
			i.dedupe = newDedupeGuard(d)
		} else {
			i.dedupe = nil
		}
	}
}

// NewInitiator builds an Initiator with dedupe disabled and a no-op logger
// unless options say otherwise.
func NewInitiator(gateway Gateway, opts ...InitiatorOption) *Initiator {
	i := &Initiator{
		gateway: gateway,
		logger:  zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Handle implements the API Gateway proxy entry point for payment initiation.
func (i *Initiator) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	if req.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, errorBody{Error: "method not allowed, use POST"}), nil
	}

	logger := i.logger.With().Str("request_id", uuid.NewString()).Logger()

	var in InitiateRequest
	if err := json.Unmarshal([]byte(req.Body), &in); err != nil {
		logger.Warn().Err(err).Msg("rejecting malformed initiate body")
		return jsonResponse(http.StatusBadRequest, errorBody{Error: "invalid JSON body"}), nil
	}

	if in.PhoneNumber == "" || in.Amount == 0 {
		return jsonResponse(http.StatusBadRequest, errorBody{Error: "phone number and amount are required"}), nil
	}
	if in.Amount < 1 {
		return jsonResponse(http.StatusBadRequest, errorBody{Error: "amount must be at least 1"}), nil
	}

	normalized, err := phone.Normalize(in.PhoneNumber)
	if err != nil {
		return jsonResponse(http.StatusBadRequest, errorBody{Error: "invalid phone number, expected format 0712345678 or 254712345678"}), nil
	}

	reference := in.AccountReference
	if reference == "" {
		reference = defaultAccountReference
	}
	description := in.TransactionDesc
	if description == "" {
		description = defaultTransactionDesc
	}

	amount := int64(math.Floor(in.Amount))
	dedupeKey := fmt.Sprintf("%s|%d|%s", reference, amount, normalized)
	if i.dedupe != nil {
		if cached, ok := i.dedupe.lookup(dedupeKey); ok {
			logger.Info().
				Str("checkout_request_id", cached.CheckoutRequestID).
				Msg("duplicate initiate within window, replaying acknowledgement")
			return jsonResponse(http.StatusOK, cached), nil
		}
	}

	logger.Info().
		Str("phone", normalized).
		Int64("amount", amount).
		Str("reference", reference).
		Msg("initiating stk push")

	resp, err := i.gateway.STKPush(ctx, daraja.PushRequest{
		PhoneNumber:      normalized,
		Amount:           in.Amount,
		AccountReference: reference,
		TransactionDesc:  description,
	})
	if err != nil {
		var authErr *daraja.AuthError
		if errors.As(err, &authErr) {
			logger.Error().Err(err).Msg("credential acquisition failed")
			return jsonResponse(http.StatusInternalServerError, errorBody{Error: "failed to authenticate with payment gateway"}), nil
		}
		logger.Error().Err(err).Msg("stk push failed")
		return jsonResponse(http.StatusInternalServerError, errorBody{Error: "payment request failed"}), nil
	}

	if i.dedupe != nil {
		i.dedupe.store(dedupeKey, resp)
	}

	logger.Info().
		Str("checkout_request_id", resp.CheckoutRequestID).
		Str("response_code", resp.ResponseCode).
		Msg("stk push acknowledged")

	// The gateway's acknowledgement is relayed verbatim, business rejections
	// included. Acceptance here is not payment completion; only the callback
	// reports that.
	return jsonResponse(http.StatusOK, resp), nil
}

type errorBody struct {
	Error string `json:"error"`
}

func jsonResponse(status int, body any) events.APIGatewayProxyResponse {
	data, err := json.Marshal(body)
	if err != nil {
		return events.APIGatewayProxyResponse{
			StatusCode: http.StatusInternalServerError,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       `{"error":"internal error"}`,
		}
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(data),
	}
}
