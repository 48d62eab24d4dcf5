package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/mwendachronicles/mpesa-lambda/internal/config"
	"github.com/mwendachronicles/mpesa-lambda/internal/handler"
	"github.com/mwendachronicles/mpesa-lambda/internal/logging"
)

func main() {
	logger := logging.New("mpesa-callback")

	// The receiver never talks to the gateway, so the merchant credentials
	// the initiate function requires are not validated here.
	cfg := config.FromEnv()

	opts := []handler.ReceiverOption{handler.WithReceiverLogger(logger)}
	if cfg.ResultWebhookURL != "" {
		sink, err := handler.NewHTTPSResultSink(cfg.ResultWebhookURL, cfg.ResultWebhookSecret, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure result sink")
		}
		opts = append(opts, handler.WithResultSink(sink))
	}

	receiver := handler.NewCallbackReceiver(opts...)

	lambda.Start(receiver.Handle)
}
