package runtime

import (
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
)

// Option is a functional option for configuring a Service.
type Option func(*Service) error

// WithFileConfig loads configuration from a YAML file plus TRIP_
// environment variables.
func WithFileConfig(path string) Option {
	return func(s *Service) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		s.cfg = cfg
		return nil
	}
}

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) error {
		if cfg == nil {
			return fmt.Errorf("config cannot be nil")
		}
		s.cfg = cfg
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) error {
		s.logger = logger
		return nil
	}
}

// WithRateService replaces the configured exchange-rate source.
func WithRateService(rates ports.RateService) Option {
	return func(s *Service) error {
		s.rates = rates
		return nil
	}
}

// WithRateCache replaces the configured rate cache.
func WithRateCache(cache ports.RateCache) Option {
	return func(s *Service) error {
		s.cache = cache
		return nil
	}
}

// WithTripStore replaces the configured trip store. The service closes it
// on Shutdown.
func WithTripStore(store ports.TripStore) Option {
	return func(s *Service) error {
		s.store = store
		return nil
	}
}

// WithEventPublisher sets a custom lifecycle event publisher. By default
// events are written to the trip store when one is configured.
func WithEventPublisher(publisher ports.EventPublisher) Option {
	return func(s *Service) error {
		s.events = publisher
		return nil
	}
}

// WithTracer sets the tracer used for coordinator spans. Defaults to the
// global tracer provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) error {
		s.tracer = tracer
		return nil
	}
}
