package builtin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

type stubVisa struct {
	rules map[string]*domain.VisaRuleset
}

func (s *stubVisa) Lookup(ctx context.Context, origin, destination string) (*domain.VisaRuleset, error) {
	if r, ok := s.rules[origin+"/"+destination]; ok {
		return r, nil
	}
	return nil, domain.ErrNotFound("no ruleset for " + origin + "/" + destination)
}

func parisTrip() *domain.TripRequest {
	return &domain.TripRequest{
		Origin:         "New York",
		Destination:    "Paris",
		StartDate:      domain.MustDate("2026-06-01"),
		EndDate:        domain.MustDate("2026-06-06"),
		TravelerCount:  2,
		BudgetAmount:   decimal.NewFromInt(3000),
		BudgetCurrency: "USD",
		HomeCountry:    "US",
		Interests:      []string{"food"},
	}
}

func invoke(t *testing.T, p ports.Provider, op string, trip *domain.TripRequest, out any) *domain.Response {
	t.Helper()
	req := &domain.Request{
		Source:        "test",
		Target:        p.Name(),
		Operation:     op,
		CorrelationID: "corr-1",
		CreatedAt:     time.Now(),
		Trip:          trip,
	}
	resp, err := p.Invoke(context.Background(), req)
	if err != nil {
		t.Fatalf("Invoke(%s) error = %v", op, err)
	}
	if resp.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q", resp.CorrelationID)
	}
	if out != nil && resp.Succeeded() {
		if err := json.Unmarshal(resp.Payload, out); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
	}
	return resp
}

func build(t *testing.T, name string, cfg config.ProviderConfig) ports.Provider {
	t.Helper()
	RegisterFactories()
	f, ok := provider.GetFactory(name)
	if !ok {
		t.Fatalf("factory %s not registered", name)
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	p, err := f.Create(cfg, provider.Dependencies{Visa: &stubVisa{}})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", name, err)
	}
	return p
}

func TestRegisterFactories_BuildsAllProviders(t *testing.T) {
	RegisterFactories()
	RegisterFactories()

	reg, err := provider.BuildRegistry(nil, provider.Dependencies{Visa: &stubVisa{}})
	if err != nil {
		t.Fatalf("BuildRegistry() error = %v", err)
	}
	for _, name := range []string{Weather, Flights, Hotels, Itinerary, Budget, Visa, Transport, Language} {
		if _, err := reg.Resolve(name); err != nil {
			t.Errorf("Resolve(%s) error = %v", name, err)
		}
	}
	caps := reg.Describe()
	if !caps[Hotels].RetryOnTimeout {
		t.Error("hotels should declare RetryOnTimeout")
	}
	if caps[Flights].RetryOnTimeout {
		t.Error("flights should not declare RetryOnTimeout")
	}
}

func TestHotels_StayCost(t *testing.T) {
	var out HotelsPayload
	invoke(t, build(t, Hotels, config.ProviderConfig{}), "search", parisTrip(), &out)

	if len(out.Options) != 3 {
		t.Fatalf("options = %d, want 3", len(out.Options))
	}
	sel := out.Options[out.Selected]
	if sel.Tier != "standard" || sel.Rooms != 1 || sel.Nights != 5 {
		t.Errorf("selected = %+v", sel)
	}
	if len(out.Costs) != 1 || out.Costs[0].Category != domain.CategoryHotel {
		t.Fatalf("costs = %+v", out.Costs)
	}
	if got := out.Costs[0].Amount; !got.Value.Equal(decimal.NewFromInt(800)) || got.Currency != "EUR" {
		t.Errorf("hotel cost = %s, want 800.00 EUR", got)
	}
}

func TestFlights_CostInOriginCurrency(t *testing.T) {
	var out FlightsPayload
	invoke(t, build(t, Flights, config.ProviderConfig{}), "search", parisTrip(), &out)

	if len(out.Options) != len(carriers) {
		t.Fatalf("options = %d", len(out.Options))
	}
	for i := 1; i < len(out.Options); i++ {
		if out.Options[i].PerTraveler.Value.LessThan(out.Options[i-1].PerTraveler.Value) {
			t.Fatal("options not sorted by price")
		}
	}
	cost := out.Costs[0].Amount
	want := out.Options[0].PerTraveler.Value.Mul(decimal.NewFromInt(2))
	if cost.Currency != "USD" || !cost.Value.Equal(want) {
		t.Errorf("flight cost = %s, want %s USD", cost, want)
	}
	if out.Options[0].From != "JFK" || out.Options[0].To != "CDG" {
		t.Errorf("route = %s -> %s", out.Options[0].From, out.Options[0].To)
	}
}

func TestBudget_Estimates(t *testing.T) {
	var out BudgetPayload
	invoke(t, build(t, Budget, config.ProviderConfig{}), "estimate", parisTrip(), &out)

	got := map[domain.Category]domain.MonetaryAmount{}
	for _, c := range out.Costs {
		got[c.Category] = c.Amount
	}
	if m := got[domain.CategoryMeals]; !m.Value.Equal(decimal.NewFromInt(550)) || m.Currency != "EUR" {
		t.Errorf("meals = %s, want 550.00 EUR", m)
	}
	if tr := got[domain.CategoryTransport]; !tr.Value.Equal(decimal.NewFromInt(85)) {
		t.Errorf("transport = %s, want 85.00 EUR", tr)
	}
	if _, ok := got[domain.CategoryActivities]; ok {
		t.Error("budget provider should not estimate activities")
	}
}

func TestItinerary_InterestsFirst(t *testing.T) {
	var out ItineraryPayload
	invoke(t, build(t, Itinerary, config.ProviderConfig{}), "plan", parisTrip(), &out)

	if len(out.Days) != 6 {
		t.Fatalf("days = %d, want 6", len(out.Days))
	}
	if out.Activities[0].ID != "paris-wine" {
		t.Errorf("first activity = %s, want paris-wine", out.Activities[0].ID)
	}
	if out.Activities[0].MinimumAge == nil || *out.Activities[0].MinimumAge != 18 {
		t.Error("age constraint not carried through")
	}
	scheduled := 0
	for _, day := range out.Days {
		if len(day.Activities) > ActivitiesPerDay {
			t.Errorf("day %d has %d activities", day.Day, len(day.Activities))
		}
		scheduled += len(day.Activities)
	}
	if scheduled != len(out.Activities) {
		t.Errorf("scheduled %d of %d activities", scheduled, len(out.Activities))
	}
}

func TestVisa_Check(t *testing.T) {
	rules := &stubVisa{rules: map[string]*domain.VisaRuleset{
		"US/JP": {OriginCountry: "US", DestinationCountry: "JP", VisaRequired: false},
		"MX/GB": {OriginCountry: "MX", DestinationCountry: "GB", VisaRequired: true, RequiredDocuments: []string{"passport"}},
		"JP/JP": {OriginCountry: "JP", DestinationCountry: "JP", VisaRequired: false},
	}}
	p, err := newVisa(config.ProviderConfig{Name: Visa}, provider.Dependencies{Visa: rules})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		home        string
		destination string
		want        domain.VisaRequirement
	}{
		{"not required", "US", "Tokyo", domain.VisaNotRequired},
		{"required", "MX", "London", domain.VisaRequired},
		{"same country with ruleset", "JP", "Tokyo", domain.VisaNotRequired},
		{"same country without ruleset", "FR", "Paris", domain.VisaUnknown},
		{"no ruleset", "US", "Paris", domain.VisaUnknown},
		{"unknown city", "US", "Atlantis", domain.VisaUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trip := parisTrip()
			trip.HomeCountry = tt.home
			trip.Destination = tt.destination

			var out VisaPayload
			resp := invoke(t, p, "check", trip, &out)
			if !resp.Succeeded() {
				t.Fatalf("status = %s, error = %v", resp.Status, resp.Error)
			}
			if out.Status != tt.want {
				t.Errorf("Status = %s, want %s", out.Status, tt.want)
			}
		})
	}
}

func TestVisa_NoService(t *testing.T) {
	p, err := newVisa(config.ProviderConfig{Name: Visa}, provider.Dependencies{})
	if err != nil {
		t.Fatal(err)
	}
	req := &domain.Request{Operation: "check", Trip: parisTrip()}
	if _, err := p.Invoke(context.Background(), req); !domain.IsKind(err, domain.KindProviderError) {
		t.Errorf("error = %v, want provider_error", err)
	}
}

func TestLanguage_Phrases(t *testing.T) {
	p := build(t, Language, config.ProviderConfig{})

	var out LanguagePayload
	invoke(t, p, "phrases", parisTrip(), &out)
	if out.Language != "French" || len(out.Phrases) == 0 {
		t.Errorf("payload = %+v", out)
	}
	if out.Phrases[0].English != "hello" {
		t.Errorf("phrases not sorted: %+v", out.Phrases)
	}

	trip := parisTrip()
	trip.Destination = "Atlantis"
	req := &domain.Request{Operation: "phrases", Trip: trip}
	if _, err := p.Invoke(context.Background(), req); !domain.IsKind(err, domain.KindProviderError) {
		t.Errorf("error = %v, want provider_error", err)
	}
}

func TestWeather_CoversTripDates(t *testing.T) {
	var a, b ForecastPayload
	p := build(t, Weather, config.ProviderConfig{})
	invoke(t, p, "forecast", parisTrip(), &a)
	invoke(t, p, "forecast", parisTrip(), &b)

	if len(a.Days) != 6 || a.Days[0].Date != "2026-06-01" || a.Days[5].Date != "2026-06-06" {
		t.Errorf("days = %+v", a.Days)
	}
	for i := range a.Days {
		if a.Days[i] != b.Days[i] {
			t.Fatalf("forecast not deterministic on %s", a.Days[i].Date)
		}
	}
}

func TestTransport_NoCosts(t *testing.T) {
	p := build(t, Transport, config.ProviderConfig{})
	resp := invoke(t, p, "options", parisTrip(), nil)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(resp.Payload, &raw); err != nil {
		t.Fatal(err)
	}
	if _, ok := raw["costs"]; ok {
		t.Error("transport payload should not carry cost lines")
	}
	if _, ok := raw["airport_transfer"]; !ok {
		t.Error("missing airport_transfer")
	}
}

func TestSimulatedFailures(t *testing.T) {
	tests := []struct {
		fail string
		kind domain.ErrorKind
	}{
		{"transient", domain.KindTransientIO},
		{"error", domain.KindProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.fail, func(t *testing.T) {
			p := build(t, Weather, config.ProviderConfig{Options: map[string]string{"fail": tt.fail}})
			req := &domain.Request{Operation: "forecast", Trip: parisTrip()}
			_, err := p.Invoke(context.Background(), req)
			if !domain.IsKind(err, tt.kind) {
				t.Errorf("error = %v, want %s", err, tt.kind)
			}
		})
	}

	t.Run("timeout", func(t *testing.T) {
		p := build(t, Weather, config.ProviderConfig{Options: map[string]string{"fail": "timeout"}})
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err := p.Invoke(ctx, &domain.Request{Operation: "forecast", Trip: parisTrip()})
		if err == nil {
			t.Fatal("expected an error once the context expires")
		}
	})

	t.Run("latency honours cancel", func(t *testing.T) {
		p := build(t, Weather, config.ProviderConfig{Latency: time.Hour})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := p.Invoke(ctx, &domain.Request{Operation: "forecast", Trip: parisTrip()}); err == nil {
			t.Fatal("expected the canceled context error")
		}
	})
}

func TestUnknownOperation(t *testing.T) {
	resp := invoke(t, build(t, Weather, config.ProviderConfig{}), "teleport", parisTrip(), nil)
	if resp.Succeeded() || resp.Error == nil || resp.Error.Kind != domain.KindUnknownOperation {
		t.Errorf("response = %+v", resp)
	}
}

func TestLookupCity_Aliases(t *testing.T) {
	for _, name := range []string{"nyc", "NEW YORK", " New York "} {
		if c, ok := LookupCity(name); !ok || c.Country != "US" {
			t.Errorf("LookupCity(%q) = %+v, %v", name, c, ok)
		}
	}
	if CountryOf("Atlantis") != "" {
		t.Error("unknown city should have no country")
	}
}
