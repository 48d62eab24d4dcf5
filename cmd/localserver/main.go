// Command localserver runs both Lambda handlers behind a plain HTTP server
// for local development against the Daraja sandbox.
package main

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/mwendachronicles/mpesa-lambda/internal/config"
	"github.com/mwendachronicles/mpesa-lambda/internal/daraja"
	"github.com/mwendachronicles/mpesa-lambda/internal/handler"
	"github.com/mwendachronicles/mpesa-lambda/internal/logging"
)

type proxyHandler func(context.Context, events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error)

func main() {
	_ = godotenv.Load()

	logger := logging.New("mpesa-localserver")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	client := daraja.NewClient(cfg, nil)
	initiator := handler.NewInitiator(client,
		handler.WithInitiatorLogger(logger),
		handler.WithDedupeWindow(cfg.DedupeWindow),
	)

	receiverOpts := []handler.ReceiverOption{handler.WithReceiverLogger(logger)}
	if cfg.ResultWebhookURL != "" {
		sink, err := handler.NewHTTPSResultSink(cfg.ResultWebhookURL, cfg.ResultWebhookSecret, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure result sink")
		}
		receiverOpts = append(receiverOpts, handler.WithResultSink(sink))
	}
	receiver := handler.NewCallbackReceiver(receiverOpts...)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/api/mpesa/stkpush", adapt(initiator.Handle))
	r.Handle("/api/mpesa/callback", adapt(receiver.Handle))

	addr := os.Getenv("LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	logger.Info().Str("addr", addr).Msg("listening")
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}

// adapt bridges an API Gateway proxy handler onto net/http so the exact
// Lambda code paths run locally.
func adapt(h proxyHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusInternalServerError)
			return
		}

		resp, err := h(req.Context(), events.APIGatewayProxyRequest{
			HTTPMethod: req.Method,
			Path:       req.URL.Path,
			Body:       string(body),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = io.WriteString(w, resp.Body)
	}
}
