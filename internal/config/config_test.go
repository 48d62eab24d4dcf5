package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("MPESA_CONSUMER_KEY", "key")
	t.Setenv("MPESA_CONSUMER_SECRET", "secret")
	t.Setenv("MPESA_PASSKEY", "passkey")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_CALLBACK_URL", "https://example.com/api/mpesa/callback")
}

func TestFromEnvDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MPESA_ENVIRONMENT", "")

	cfg := FromEnv()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "sandbox", cfg.Environment)
	require.Equal(t, time.Minute, cfg.DedupeWindow)
	require.Equal(t, "https://sandbox.safaricom.co.ke", cfg.BaseURL())
}

func TestValidateListsAllMissingFields(t *testing.T) {
	t.Setenv("MPESA_CONSUMER_KEY", "")
	t.Setenv("MPESA_CONSUMER_SECRET", "")
	t.Setenv("MPESA_PASSKEY", "passkey")
	t.Setenv("MPESA_SHORTCODE", "174379")
	t.Setenv("MPESA_CALLBACK_URL", "")

	err := FromEnv().Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "MPESA_CONSUMER_KEY")
	require.Contains(t, err.Error(), "MPESA_CONSUMER_SECRET")
	require.Contains(t, err.Error(), "MPESA_CALLBACK_URL")
	require.NotContains(t, err.Error(), "MPESA_PASSKEY")
}

func TestValidateRejectsUnknownEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MPESA_ENVIRONMENT", "staging")

	err := FromEnv().Validate()
	require.ErrorContains(t, err, "staging")
}

func TestBaseURLSelection(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("MPESA_ENVIRONMENT", "production")
	require.Equal(t, "https://api.safaricom.co.ke", FromEnv().BaseURL())

	t.Setenv("MPESA_ENVIRONMENT", "sandbox")
	require.Equal(t, "https://sandbox.safaricom.co.ke", FromEnv().BaseURL())

	t.Setenv("MPESA_BASE_URL", "http://127.0.0.1:9090/")
	require.Equal(t, "http://127.0.0.1:9090", FromEnv().BaseURL())
}

func TestDedupeWindowParsing(t *testing.T) {
	setRequiredEnv(t)

	t.Setenv("DEDUPE_WINDOW", "30s")
	require.Equal(t, 30*time.Second, FromEnv().DedupeWindow)

	// Garbage falls back to the default rather than failing the deploy.
	t.Setenv("DEDUPE_WINDOW", "soon")
	require.Equal(t, time.Minute, FromEnv().DedupeWindow)
}
