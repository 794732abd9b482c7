package planner

import (
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider/builtin"
)

// DefaultIntents returns the plan used when the caller supplies none: every
// core provider runs independently except budget, which waits for flights,
// hotels and itinerary. Intent ids equal section names.
func DefaultIntents() []domain.InvocationIntent {
	return []domain.InvocationIntent{
		{ID: domain.SectionWeather, Provider: builtin.Weather, Operation: "forecast"},
		{ID: domain.SectionFlights, Provider: builtin.Flights, Operation: "search"},
		{ID: domain.SectionHotels, Provider: builtin.Hotels, Operation: "search"},
		{ID: domain.SectionItinerary, Provider: builtin.Itinerary, Operation: "plan"},
		{ID: domain.SectionTransport, Provider: builtin.Transport, Operation: "options"},
		{ID: domain.SectionLanguage, Provider: builtin.Language, Operation: "phrases"},
		{ID: domain.SectionVisa, Provider: builtin.Visa, Operation: "check"},
		{
			ID:        domain.SectionBudget,
			Provider:  builtin.Budget,
			Operation: "estimate",
			DependsOn: []string{domain.SectionFlights, domain.SectionHotels, domain.SectionItinerary},
		},
	}
}

// cloneIntents copies intents so the caller's slices and maps are never
// shared with a running plan.
func cloneIntents(in []domain.InvocationIntent) []domain.InvocationIntent {
	out := make([]domain.InvocationIntent, len(in))
	for i, intent := range in {
		intent.DependsOn = append([]string(nil), intent.DependsOn...)
		if intent.Parameters != nil {
			params := make(map[string]any, len(intent.Parameters))
			for k, v := range intent.Parameters {
				params[k] = v
			}
			intent.Parameters = params
		}
		out[i] = intent
	}
	return out
}
