package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", secret)

	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.Port != "8085" || c.DatabaseDriver != "postgres" || c.StripeSignatureHeader != "Stripe-Signature" {
		t.Errorf("defaults = %+v", c)
	}
	if c.PlatformFeeBps != 2500 || c.MinimumPayoutCents != 5000 {
		t.Errorf("money rules = %d bps, %d cents", c.PlatformFeeBps, c.MinimumPayoutCents)
	}
	if c.DownloadURLTTL != time.Hour || c.ReconcileSchedule != "0 */30 * * * *" {
		t.Errorf("ttl=%v schedule=%q", c.DownloadURLTTL, c.ReconcileSchedule)
	}
	if c.BillingEnabled() || c.StorageEnabled() {
		t.Error("billing/storage enabled without credentials")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", secret)
	t.Setenv("APP_BASE_URL", "https://dump.app/")
	t.Setenv("PLATFORM_FEE_RATE", "0.1")
	t.Setenv("MINIMUM_PAYOUT_USD", "12.50")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_x")

	c, err := FromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL != "https://dump.app" {
		t.Errorf("base url = %q, want trailing slash trimmed", c.BaseURL)
	}
	if c.PlatformFeeBps != 1000 || c.MinimumPayoutCents != 1250 {
		t.Errorf("money rules = %d bps, %d cents", c.PlatformFeeBps, c.MinimumPayoutCents)
	}
	if !c.BillingEnabled() {
		t.Error("billing not enabled with key")
	}
}

func TestFromEnvValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"AUTH_JWT_SECRET": ""}},
		{"short secret", map[string]string{"AUTH_JWT_SECRET": "short"}},
		{"bad driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"fee rate one", map[string]string{"PLATFORM_FEE_RATE": "1"}},
		{"fee rate negative", map[string]string{"PLATFORM_FEE_RATE": "-0.1"}},
		{"fee rate text", map[string]string{"PLATFORM_FEE_RATE": "quarter"}},
		{"zero minimum", map[string]string{"MINIMUM_PAYOUT_USD": "0"}},
		{"bad ttl", map[string]string{"DOWNLOAD_URL_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", secret)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("BILLING_TEST_FROM_FILE=file\nBILLING_TEST_PRESET=file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BILLING_TEST_PRESET", "env")
	t.Cleanup(func() { os.Unsetenv("BILLING_TEST_FROM_FILE") })

	if err := LoadDotEnv(path, filepath.Join(dir, "missing.env")); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("BILLING_TEST_FROM_FILE"); got != "file" {
		t.Errorf("from file = %q", got)
	}
	if got := os.Getenv("BILLING_TEST_PRESET"); got != "env" {
		t.Errorf("preset = %q, want environment to win", got)
	}
}
