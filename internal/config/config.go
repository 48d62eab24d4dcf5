package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	defaultDedupeWindow = time.Minute
)

// Config carries everything the handlers need, resolved once at cold start.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	Passkey        string
	ShortCode      string
	CallbackURL    string
	Environment    string

	// BaseURLOverride takes precedence over the environment selector when set.
	BaseURLOverride string

	// ResultWebhookURL, when set, receives confirmed callback outcomes.
	ResultWebhookURL    string
	ResultWebhookSecret string

	DedupeWindow time.Duration
}

// FromEnv reads MPESA_* variables into a Config. Call Validate before use.
func FromEnv() Config {
	cfg := Config{
		ConsumerKey:         strings.TrimSpace(os.Getenv("MPESA_CONSUMER_KEY")),
		ConsumerSecret:      strings.TrimSpace(os.Getenv("MPESA_CONSUMER_SECRET")),
		Passkey:             strings.TrimSpace(os.Getenv("MPESA_PASSKEY")),
		ShortCode:           strings.TrimSpace(os.Getenv("MPESA_SHORTCODE")),
		CallbackURL:         strings.TrimSpace(os.Getenv("MPESA_CALLBACK_URL")),
		Environment:         strings.TrimSpace(os.Getenv("MPESA_ENVIRONMENT")),
		BaseURLOverride:     strings.TrimSpace(os.Getenv("MPESA_BASE_URL")),
		ResultWebhookURL:    strings.TrimSpace(os.Getenv("RESULT_WEBHOOK_URL")),
		ResultWebhookSecret: os.Getenv("RESULT_WEBHOOK_SECRET"),
		DedupeWindow:        defaultDedupeWindow,
	}

	if cfg.Environment == "" {
		cfg.Environment = "sandbox"
	}

	if raw := strings.TrimSpace(os.Getenv("DEDUPE_WINDOW")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			cfg.DedupeWindow = d
		}
	}

	return cfg
}

// Validate reports every missing or malformed required field at once, so a
// misconfigured deploy fails at cold start instead of deep inside a request.
func (c Config) Validate() error {
	var missing []string
	if c.ConsumerKey == "" {
		missing = append(missing, "MPESA_CONSUMER_KEY")
	}
	if c.ConsumerSecret == "" {
		missing = append(missing, "MPESA_CONSUMER_SECRET")
	}
	if c.Passkey == "" {
		missing = append(missing, "MPESA_PASSKEY")
	}
	if c.ShortCode == "" {
		missing = append(missing, "MPESA_SHORTCODE")
	}
	if c.CallbackURL == "" {
		missing = append(missing, "MPESA_CALLBACK_URL")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	if c.Environment != "sandbox" && c.Environment != "production" {
		return fmt.Errorf("MPESA_ENVIRONMENT must be sandbox or production, got %q", c.Environment)
	}

	return nil
}

// BaseURL resolves the gateway host for the configured environment.
func (c Config) BaseURL() string {
	if c.BaseURLOverride != "" {
		return strings.TrimSuffix(c.BaseURLOverride, "/")
	}
	if c.Environment == "production" {
		return productionBaseURL
	}
	return sandboxBaseURL
}
