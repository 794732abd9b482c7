package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	ratesstatic "github.com/tjfontaine/polyglot-trip-planner/internal/adapters/rates/static"
	visastatic "github.com/tjfontaine/polyglot-trip-planner/internal/adapters/visa/static"
)

func TestNewProvider_EmptyPath(t *testing.T) {
	if _, err := NewProvider("", nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestProvider_Load(t *testing.T) {
	p, err := NewProvider(filepath.Join("testdata", "reference.yaml"), nil)
	if err != nil {
		t.Fatal(err)
	}
	data, err := p.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := data.Rates[ratesstatic.Pair{From: "USD", To: "EUR"}]; !got.Equal(decimal.RequireFromString("0.92")) {
		t.Errorf("USD/EUR = %s", got)
	}
	if got := data.Rates[ratesstatic.Pair{From: "USD", To: "JPY"}]; !got.Equal(decimal.NewFromInt(150)) {
		t.Errorf("unquoted USD/JPY = %s", got)
	}
	if len(data.Visa) != 2 {
		t.Fatalf("visa rulesets = %d, want 2", len(data.Visa))
	}
	mx := data.Visa[0]
	if !mx.VisaRequired || len(mx.RequiredDocuments) != 2 || mx.Cost == nil || mx.Cost.Currency != "USD" {
		t.Errorf("MX/US = %+v", mx)
	}
	if mx.ProcessingTimeDays == nil || *mx.ProcessingTimeDays != 60 {
		t.Error("processing_time_days not decoded")
	}
	if p.Current() != data {
		t.Error("Current() should return the loaded data")
	}
}

func TestProvider_LoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"negative rate", "rates:\n  - { from: USD, to: EUR, rate: \"-1\" }\n"},
		{"bad currency", "rates:\n  - { from: usd, to: EUR, rate: \"1\" }\n"},
		{"bad cost", "visa:\n  - { origin_country: US, destination_country: FR, cost: { value: abc, currency: USD } }\n"},
		{"malformed yaml", "rates: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "reference.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			p, _ := NewProvider(path, nil)
			if _, err := p.Load(context.Background()); err == nil {
				t.Error("expected a load error")
			}
		})
	}
}

func TestData_Apply(t *testing.T) {
	p, _ := NewProvider(filepath.Join("testdata", "reference.yaml"), nil)
	data, err := p.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	rates := ratesstatic.Default()
	visa := visastatic.Default()
	if err := data.Apply(rates, visa); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if rates.Len() != 2 {
		t.Errorf("rates.Len() = %d, want 2", rates.Len())
	}
	if got := visa.Pairs(); len(got) != 2 {
		t.Errorf("visa pairs = %v", got)
	}
}

func TestProvider_Watch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.yaml")
	write := func(rate string) {
		t.Helper()
		body := "rates:\n  - { from: USD, to: EUR, rate: \"" + rate + "\" }\n"
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("0.90")

	p, _ := NewProvider(path, nil)
	if _, err := p.Load(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes := make(chan *Data, 4)
	if err := p.Watch(ctx, func(d *Data) { changes <- d }); err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer p.Close()

	write("0.95")

	want := decimal.RequireFromString("0.95")
	timeout := time.After(5 * time.Second)
	for {
		select {
		case d := <-changes:
			if d.Rates[ratesstatic.Pair{From: "USD", To: "EUR"}].Equal(want) {
				return
			}
		case <-timeout:
			t.Fatal("no reload observed")
		}
	}
}
