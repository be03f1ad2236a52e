package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/orderhub")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.CacheProvider != "memory" {
		t.Fatalf("CacheProvider = %q, want memory", cfg.CacheProvider)
	}
	if cfg.ReturnWindowDays != 15 {
		t.Fatalf("ReturnWindowDays = %d, want 15", cfg.ReturnWindowDays)
	}
	if cfg.PaymentSuccessRate != 0.8 {
		t.Fatalf("PaymentSuccessRate = %v, want 0.8", cfg.PaymentSuccessRate)
	}
	if got := strings.Join(cfg.OrderCancelableFrom, ","); got != "pending,paid" {
		t.Fatalf("OrderCancelableFrom = %q, want pending,paid", got)
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoadRejectsBadCancelableStatuses(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{name: "terminal status", value: "pending,delivered"},
		{name: "unknown status", value: "pending,limbo"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost:5432/orderhub")
			t.Setenv("ORDER_CANCELABLE_FROM", tc.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for ORDER_CANCELABLE_FROM=%q", tc.value)
			}
		})
	}
}

func TestLoadRejectsOutOfRangeSuccessRate(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/orderhub")
	t.Setenv("PAYMENT_SUCCESS_RATE", "1.5")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for success rate above 1")
	}
}
