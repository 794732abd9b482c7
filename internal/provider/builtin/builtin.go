// Package builtin contains the eight capability providers the default plan
// calls: weather, flights, hotels, itinerary, budget, visa, transport and
// language. They answer from deterministic reference data so plans are
// reproducible.
//
// Every provider accepts two demo options in its configuration:
//
//	options:
//	  fail: timeout | transient | error   # force a failure mode
//
// and a latency setting that delays each call.
package builtin

import (
	"context"
	"time"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// Names of the built-in providers.
const (
	Weather   = "weather"
	Flights   = "flights"
	Hotels    = "hotels"
	Itinerary = "itinerary"
	Budget    = "budget"
	Visa      = "visa"
	Transport = "transport"
	Language  = "language"
)

// RegisterFactories registers the built-in provider factories. It is safe to
// call more than once.
func RegisterFactories() {
	for _, f := range []provider.Factory{
		{Name: Weather, Description: "Daily forecast for the trip dates", Create: newWeather},
		{Name: Flights, Description: "Round-trip flight options", Create: newFlights},
		{Name: Hotels, Description: "Hotel options and stay cost", Create: newHotels},
		{Name: Itinerary, Description: "Day-by-day activity plan", Create: newItinerary},
		{Name: Budget, Description: "Meal and local transport estimates", Create: newBudget},
		{Name: Visa, Description: "Visa ruleset lookup", Create: newVisa},
		{Name: Transport, Description: "Airport transfers and local transit", Create: newTransport},
		{Name: Language, Description: "Local language and key phrases", Create: newLanguage},
	} {
		if provider.IsRegistered(f.Name) {
			continue
		}
		provider.RegisterFactory(f)
	}
}

// trip returns the trip request carried by req.
func trip(req *domain.Request) (*domain.TripRequest, error) {
	if req.Trip == nil {
		return nil, domain.ErrInvalidRequest("request envelope carries no trip")
	}
	return req.Trip, nil
}

// days returns the number of calendar days of the trip, at least one.
func days(t *domain.TripRequest) int {
	if n := t.Nights(); n > 0 {
		return n
	}
	return 1
}

// simulated applies the configured latency and failure mode around a
// provider.
type simulated struct {
	inner   *provider.OperationSet
	latency time.Duration
	fail    string
}

func configure(set *provider.OperationSet, cfg config.ProviderConfig) ports.Provider {
	fail := cfg.Options["fail"]
	if cfg.Latency <= 0 && fail == "" {
		return set
	}
	return &simulated{inner: set, latency: cfg.Latency, fail: fail}
}

func (s *simulated) Name() string { return s.inner.Name() }

func (s *simulated) Capabilities() ports.Capabilities { return s.inner.Capabilities() }

func (s *simulated) Invoke(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	if s.latency > 0 {
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	switch s.fail {
	case "timeout":
		<-ctx.Done()
		return nil, ctx.Err()
	case "transient":
		return nil, domain.ErrTransientIO(s.inner.Name() + " upstream connection reset")
	case "error":
		return nil, domain.ErrProvider(s.inner.Name() + " upstream rejected the request")
	}
	return s.inner.Invoke(ctx, req)
}

var (
	_ ports.Provider  = (*simulated)(nil)
	_ ports.Describer = (*simulated)(nil)
)
