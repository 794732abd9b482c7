package builtin

import (
	"context"
	"sort"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// ActivitiesPerDay caps how many activities the itinerary schedules per day.
const ActivitiesPerDay = 2

// ItineraryDay lists the activity ids scheduled on one day.
type ItineraryDay struct {
	Day        int      `json:"day"`
	Date       string   `json:"date"`
	Activities []string `json:"activities"`
}

// ItineraryPayload is the itinerary provider's plan. Activities holds the
// candidate activities with their age constraints; eligibility filtering
// happens downstream.
type ItineraryPayload struct {
	City       string            `json:"city"`
	Days       []ItineraryDay    `json:"days"`
	Activities []domain.Activity `json:"activities"`
}

func newItinerary(cfg config.ProviderConfig, _ provider.Dependencies) (ports.Provider, error) {
	set := provider.NewOperationSet(cfg.Name).Handle("plan", planItinerary)
	return configure(set, cfg), nil
}

func planItinerary(ctx context.Context, req *domain.Request) (any, error) {
	t, err := trip(req)
	if err != nil {
		return nil, err
	}
	city := cityOrGeneric(t.Destination, t.BudgetCurrency)

	candidates := append([]domain.Activity(nil), city.Activities...)
	if len(candidates) == 0 {
		candidates = []domain.Activity{
			{ID: "walking-tour", Name: city.Name + " walking tour", Tags: []string{"sightseeing"}},
			{ID: "local-market", Name: city.Name + " market visit", Tags: []string{"food"}},
		}
	}

	// Interest matches first, then catalog order.
	score := func(a domain.Activity) int {
		n := 0
		for _, tag := range a.Tags {
			for _, in := range t.Interests {
				if tag == in {
					n++
				}
			}
		}
		return n
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return score(candidates[i]) > score(candidates[j])
	})

	schedule := dates(t)
	limit := len(schedule) * ActivitiesPerDay
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := ItineraryPayload{City: city.Name}
	for i, day := range schedule {
		out.Days = append(out.Days, ItineraryDay{Day: i + 1, Date: day.Format(domain.DateLayout), Activities: []string{}})
	}
	for i := range candidates {
		slot := i / ActivitiesPerDay
		candidates[i].Day = slot + 1
		out.Days[slot].Activities = append(out.Days[slot].Activities, candidates[i].ID)
	}
	out.Activities = candidates
	return out, nil
}
