package fraud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestAnalyzeFormatChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		input      Input
		wantFraud  bool
		wantReason string
	}{
		{
			name:       "bad email",
			input:      Input{Email: "not-an-email", Phone: "+923001234567", Address: "Lahore"},
			wantFraud:  true,
			wantReason: "Invalid email format",
		},
		{
			name:       "bad phone",
			input:      Input{Email: "a@b.com", Phone: "12", Address: "Lahore"},
			wantFraud:  true,
			wantReason: "Invalid phone number",
		},
		{
			name:  "clean input without geocoding key",
			input: Input{Email: "a@b.com", Phone: "+923001234567", Address: "Lahore"},
		},
	}

	analyzer := NewAnalyzer("", nil)
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result, err := analyzer.Analyze(context.Background(), tc.input)
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if result.IsFraud != tc.wantFraud {
				t.Fatalf("IsFraud = %v, want %v", result.IsFraud, tc.wantFraud)
			}
			if result.Reason != tc.wantReason {
				t.Fatalf("Reason = %q, want %q", result.Reason, tc.wantReason)
			}
		})
	}
}

func TestAnalyzeGeocoding(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		body      string
		wantFraud bool
	}{
		{name: "address resolves", body: `{"results": [{}]}`, wantFraud: false},
		{name: "address unknown", body: `{"results": []}`, wantFraud: true},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("key") != "test-key" {
					t.Errorf("missing api key in query: %s", r.URL.RawQuery)
				}
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			analyzer := NewAnalyzer("test-key", &http.Client{Timeout: time.Second}).WithGeocodeURL(server.URL)
			result, err := analyzer.Analyze(context.Background(), Input{
				Email:   "a@b.com",
				Phone:   "+923001234567",
				Address: "123 Mall Road, Lahore",
			})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if result.IsFraud != tc.wantFraud {
				t.Fatalf("IsFraud = %v, want %v", result.IsFraud, tc.wantFraud)
			}
		})
	}
}
