package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/mwendachronicles/mpesa-lambda/internal/config"
	"github.com/mwendachronicles/mpesa-lambda/internal/daraja"
	"github.com/mwendachronicles/mpesa-lambda/internal/handler"
	"github.com/mwendachronicles/mpesa-lambda/internal/logging"
)

func main() {
	logger := logging.New("mpesa-initiate")

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	client := daraja.NewClient(cfg, nil)
	initiator := handler.NewInitiator(client,
		handler.WithInitiatorLogger(logger),
		handler.WithDedupeWindow(cfg.DedupeWindow),
	)

	lambda.Start(initiator.Handle)
}
