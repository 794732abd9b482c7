package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
)

// RateService looks up exchange rates. The returned rate converts one unit
// of from into to (amount_to = amount_from * rate) and is always positive.
// Failures carry kind rate_unavailable.
type RateService interface {
	GetRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// CachedRate is a rate together with when it was obtained.
type CachedRate struct {
	Rate      decimal.Decimal `json:"rate"`
	FetchedAt time.Time       `json:"fetched_at"`
}

// RateCache stores the most recent successful rate per currency pair.
// Writes are atomic: readers see the old or the new value, never a mix.
type RateCache interface {
	Get(ctx context.Context, from, to string) (CachedRate, bool)
	Put(ctx context.Context, from, to string, rate CachedRate) error
}

// VisaRulesetService looks up the visa ruleset for a country pair.
// A missing pair returns an error of kind not_found.
type VisaRulesetService interface {
	Lookup(ctx context.Context, originCountry, destinationCountry string) (*domain.VisaRuleset, error)
}

// TripStore persists trip plans verbatim. It is a key-value store keyed by
// trip id.
type TripStore interface {
	SaveTrip(ctx context.Context, plan *domain.TripPlan) error
	GetTrip(ctx context.Context, id string) (*domain.TripPlan, error)
	ListTrips(ctx context.Context, opts ListOptions) ([]*TripSummary, error)
	DeleteTrip(ctx context.Context, id string) error

	AppendEvent(ctx context.Context, event *domain.LifecycleEvent) error
	ListEvents(ctx context.Context, planID string) ([]*domain.LifecycleEvent, error)

	Close() error
}

// TripSummary is a listing entry for a stored trip.
type TripSummary struct {
	ID          string    `json:"id"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	StartDate   string    `json:"start_date"`
	EndDate     string    `json:"end_date"`
	Degraded    []string  `json:"degraded,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// ListOptions paginates listings.
type ListOptions struct {
	Limit  int
	Offset int
}

// EventPublisher publishes coordination lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, event *domain.LifecycleEvent) error
	Close() error
}
