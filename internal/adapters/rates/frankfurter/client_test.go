package frankfurter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/testutil"
)

func TestClient_GetRate_Recorded(t *testing.T) {
	r, cleanup := testutil.NewVCRRecorder(t, "latest_usd_eur")
	defer cleanup()

	c := NewClient(WithHTTPClient(testutil.VCRHTTPClient(r)))
	rate, err := c.GetRate(context.Background(), "USD", "EUR")
	if err != nil {
		t.Fatalf("GetRate() error = %v", err)
	}
	if !rate.Equal(decimal.RequireFromString("0.9214")) {
		t.Errorf("rate = %s, want 0.9214", rate)
	}
}

func TestClient_GetRate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		wantErr bool
	}{
		{name: "ok", status: 200, body: `{"amount":1.0,"base":"USD","date":"2026-10-13","rates":{"EUR":0.92}}`, want: "0.92"},
		{name: "scaled amount", status: 200, body: `{"amount":10,"base":"USD","date":"2026-10-13","rates":{"EUR":9.2}}`, want: "0.92"},
		{name: "server error", status: 503, body: `upstream down`, wantErr: true},
		{name: "missing currency", status: 200, body: `{"amount":1,"base":"USD","rates":{"GBP":0.79}}`, wantErr: true},
		{name: "malformed", status: 200, body: `{"rates":`, wantErr: true},
		{name: "zero rate", status: 200, body: `{"amount":1,"base":"USD","rates":{"EUR":0}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/latest" || r.URL.Query().Get("from") != "USD" || r.URL.Query().Get("to") != "EUR" {
					t.Errorf("unexpected request %s", r.URL)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(WithBaseURL(srv.URL + "/"))
			got, err := c.GetRate(context.Background(), "USD", "EUR")
			if tt.wantErr {
				if !domain.IsKind(err, domain.KindRateUnavailable) {
					t.Fatalf("error = %v, want rate_unavailable", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetRate() error = %v", err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("rate = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestClient_SameCurrency(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"))
	rate, err := c.GetRate(context.Background(), "EUR", "EUR")
	if err != nil || !rate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("GetRate(EUR, EUR) = %s, %v", rate, err)
	}
}

func TestClient_Unreachable(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:1"))
	_, err := c.GetRate(context.Background(), "USD", "EUR")
	if !domain.IsKind(err, domain.KindRateUnavailable) {
		t.Errorf("error = %v, want rate_unavailable", err)
	}
}
