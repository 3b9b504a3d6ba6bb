package config

import (
	"reflect"
	"testing"
)

func TestParseSecretMap(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want map[string]string
	}{
		{"empty", "", map[string]string{}},
		{"single", "paystack:whsec_a", map[string]string{"paystack": "whsec_a"}},
		{
			"multiple with spaces",
			"paystack:whsec_a, stripe : whsec_b",
			map[string]string{"paystack": "whsec_a", "stripe": "whsec_b"},
		},
		{"malformed entries skipped", "paystack:whsec_a,nosecret,:orphan,", map[string]string{"paystack": "whsec_a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseSecretMap(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseSecretMap(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWebhookSecret(t *testing.T) {
	cfg := &Config{
		WebhookSecrets:        map[string]string{"paystack": "whsec_a"},
		WebhookSecretFallback: "whsec_fallback",
	}

	if s, ok := cfg.WebhookSecret("paystack"); !ok || s != "whsec_a" {
		t.Errorf("configured provider: got %q, %v", s, ok)
	}
	if s, ok := cfg.WebhookSecret("stripe"); !ok || s != "whsec_fallback" {
		t.Errorf("unlisted provider should use the fallback: got %q, %v", s, ok)
	}

	cfg.WebhookSecretFallback = ""
	if _, ok := cfg.WebhookSecret("stripe"); ok {
		t.Errorf("provider without secret or fallback must not resolve")
	}
}
