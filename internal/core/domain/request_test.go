package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func validRequest() TripRequest {
	age := 30
	return TripRequest{
		Origin:         "NYC",
		Destination:    "Paris",
		StartDate:      MustDate("2026-06-01"),
		EndDate:        MustDate("2026-06-06"),
		TravelerCount:  1,
		BudgetAmount:   decimal.NewFromInt(3000),
		BudgetCurrency: "USD",
		TravelerAge:    &age,
		HomeCountry:    "US",
		Interests:      []string{"Food", "art", "food", " "},
	}
}

func TestTripRequest_Validate(t *testing.T) {
	negAge := -1
	tests := []struct {
		name      string
		mutate    func(r *TripRequest)
		wantField string
	}{
		{"valid", func(r *TripRequest) {}, ""},
		{"missing origin", func(r *TripRequest) { r.Origin = "" }, "origin"},
		{"missing destination", func(r *TripRequest) { r.Destination = " " }, "destination"},
		{"end before start", func(r *TripRequest) { r.EndDate = MustDate("2026-05-30") }, "end_date"},
		{"same day", func(r *TripRequest) { r.EndDate = r.StartDate }, "end_date"},
		{"no travelers", func(r *TripRequest) { r.TravelerCount = 0 }, "traveler_count"},
		{"negative budget", func(r *TripRequest) { r.BudgetAmount = decimal.NewFromInt(-1) }, "budget_amount"},
		{"bad currency", func(r *TripRequest) { r.BudgetCurrency = "usd" }, "budget_currency"},
		{"negative age", func(r *TripRequest) { r.TravelerAge = &negAge }, "traveler_age"},
		{"no age is fine", func(r *TripRequest) { r.TravelerAge = nil }, ""},
		{"missing home country", func(r *TripRequest) { r.HomeCountry = "" }, "home_country"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if ve.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", ve.Field, tt.wantField)
			}
		})
	}
}

func TestTripRequest_ValidateNormalizesInterests(t *testing.T) {
	req := validRequest()
	if err := req.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	want := []string{"art", "food"}
	if len(req.Interests) != len(want) {
		t.Fatalf("Interests = %v, want %v", req.Interests, want)
	}
	for i := range want {
		if req.Interests[i] != want[i] {
			t.Errorf("Interests[%d] = %q, want %q", i, req.Interests[i], want[i])
		}
	}
}

func TestTripRequest_Nights(t *testing.T) {
	req := validRequest()
	if got := req.Nights(); got != 5 {
		t.Errorf("Nights() = %d, want 5", got)
	}
}

func TestTripRequest_JSON(t *testing.T) {
	body := `{"origin":"NYC","destination":"Paris","start_date":"2026-06-01","end_date":"2026-06-04",
		"traveler_count":2,"budget_amount":3000,"budget_currency":"USD","home_country":"US"}`

	var req TripRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if req.StartDate.String() != "2026-06-01" {
		t.Errorf("StartDate = %s", req.StartDate)
	}
	if !req.BudgetAmount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("BudgetAmount = %s", req.BudgetAmount)
	}
	if req.TravelerAge != nil {
		t.Errorf("TravelerAge = %v, want nil", *req.TravelerAge)
	}
	if err := req.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestPlan_Validate(t *testing.T) {
	tests := []struct {
		name    string
		plan    Plan
		wantErr bool
	}{
		{
			name: "valid",
			plan: Plan{Intents: []InvocationIntent{
				{ID: "a", Provider: "p"},
				{ID: "b", Provider: "p", DependsOn: []string{"a"}},
			}},
		},
		{name: "empty", plan: Plan{}, wantErr: true},
		{
			name:    "duplicate id",
			plan:    Plan{Intents: []InvocationIntent{{ID: "a", Provider: "p"}, {ID: "a", Provider: "q"}}},
			wantErr: true,
		},
		{
			name:    "unknown dependency",
			plan:    Plan{Intents: []InvocationIntent{{ID: "a", Provider: "p", DependsOn: []string{"z"}}}},
			wantErr: true,
		},
		{
			name:    "missing provider",
			plan:    Plan{Intents: []InvocationIntent{{ID: "a"}}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.plan.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTripPlan_Immutable(t *testing.T) {
	sections := map[string]Section{
		"weather": {Name: "weather", Payload: json.RawMessage(`{"temp":20}`)},
		"hotels":  {Name: "hotels", Failure: &SectionFailure{Kind: KindTimeout, Message: "slow"}},
	}
	plan := NewTripPlan("trip-1", validRequest(), sections, nil, MustDate("2026-01-01").Time)

	// Mutating the inputs must not leak into the plan.
	sections["weather"].Payload[2] = 'X'
	delete(sections, "hotels")

	s, ok := plan.Section("weather")
	if !ok || string(s.Payload) != `{"temp":20}` {
		t.Errorf("weather payload = %s, want original", s.Payload)
	}
	if _, ok := plan.Section("hotels"); !ok {
		t.Error("hotels section should survive input mutation")
	}

	// Mutating a returned copy must not leak either.
	s.Payload[2] = 'Y'
	again, _ := plan.Section("weather")
	if string(again.Payload) != `{"temp":20}` {
		t.Errorf("weather payload changed through accessor: %s", again.Payload)
	}

	if got := plan.Degraded(); len(got) != 1 || got[0] != "hotels" {
		t.Errorf("Degraded() = %v, want [hotels]", got)
	}
}

func TestTripPlan_JSONRoundTrip(t *testing.T) {
	sections := map[string]Section{
		"weather": {Name: "weather", Payload: json.RawMessage(`{"temp":20}`)},
	}
	plan := NewTripPlan("trip-1", validRequest(), sections, nil, MustDate("2026-01-01").Time)

	data, err := json.Marshal(plan)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	restored, err := UnmarshalTripPlan(data)
	if err != nil {
		t.Fatalf("UnmarshalTripPlan() error = %v", err)
	}
	if restored.ID() != "trip-1" {
		t.Errorf("ID() = %q", restored.ID())
	}
	var weather struct{ Temp int }
	ok, err := restored.DecodeSection("weather", &weather)
	if err != nil || !ok {
		t.Fatalf("DecodeSection() = %v, %v", ok, err)
	}
	if weather.Temp != 20 {
		t.Errorf("Temp = %d, want 20", weather.Temp)
	}
}
