// Package runtime wires the planner's collaborators from configuration and
// manages the service lifecycle. It can be embedded in larger applications
// or run standalone by cmd/planner.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-trip-planner/internal/adapters/events/direct"
	rediscache "github.com/tjfontaine/polyglot-trip-planner/internal/adapters/ratecache/redis"
	"github.com/tjfontaine/polyglot-trip-planner/internal/adapters/rates/frankfurter"
	ratesstatic "github.com/tjfontaine/polyglot-trip-planner/internal/adapters/rates/static"
	reference "github.com/tjfontaine/polyglot-trip-planner/internal/adapters/reference/file"
	visastatic "github.com/tjfontaine/polyglot-trip-planner/internal/adapters/visa/static"
	"github.com/tjfontaine/polyglot-trip-planner/internal/coordinator"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/eligibility"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/planner"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider/builtin"
	"github.com/tjfontaine/polyglot-trip-planner/internal/reconciler"
	"github.com/tjfontaine/polyglot-trip-planner/internal/server"
	"github.com/tjfontaine/polyglot-trip-planner/internal/storage/memory"
	"github.com/tjfontaine/polyglot-trip-planner/internal/storage/sqlite"
)

// Service owns a fully wired planner and, once started, its HTTP server.
type Service struct {
	// Dependencies (injected via options or built from config)
	cfg    *config.Config
	logger *slog.Logger
	rates  ports.RateService
	cache  ports.RateCache
	store  ports.TripStore
	events ports.EventPublisher
	tracer trace.Tracer

	// Reference data targets. Reloads of the reference file land here.
	staticRates *ratesstatic.Service
	visa        *visastatic.Service
	reference   *reference.Provider

	registry *provider.Registry
	planner  *planner.Planner
	server   *server.Server
	closers  []func() error

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	done   chan error
}

// New builds a service from the given options. Configuration defaults to
// config.Load() when no config option is given. ctx bounds the background
// work started here (reference file watching) until Shutdown.
func New(ctx context.Context, opts ...Option) (*Service, error) {
	s := &Service{logger: slog.Default()}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if s.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		s.cfg = cfg
	}

	s.ctx, s.cancel = context.WithCancel(ctx)
	if err := s.init(); err != nil {
		s.cancel()
		s.closeAll()
		return nil, err
	}
	return s, nil
}

func (s *Service) init() error {
	if err := s.initReference(); err != nil {
		return fmt.Errorf("init reference data: %w", err)
	}
	if err := s.initRates(); err != nil {
		return fmt.Errorf("init rates: %w", err)
	}
	if err := s.initCache(); err != nil {
		return fmt.Errorf("init rate cache: %w", err)
	}
	if err := s.initStore(); err != nil {
		return fmt.Errorf("init trip store: %w", err)
	}
	if err := s.initPlanner(); err != nil {
		return fmt.Errorf("init planner: %w", err)
	}
	return nil
}

// initReference seeds the static rate and visa tables, overlays the
// reference file when present and keeps them current while it changes.
func (s *Service) initReference() error {
	s.staticRates = ratesstatic.Default()
	s.visa = visastatic.Default()

	path := s.cfg.Reference.Path
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		s.logger.Info("reference file not found, using built-in data", slog.String("path", path))
		return nil
	}

	ref, err := reference.NewProvider(path, s.logger)
	if err != nil {
		return err
	}
	data, err := ref.Load(s.ctx)
	if err != nil {
		return err
	}
	if err := data.Apply(s.staticRates, s.visa); err != nil {
		return err
	}
	s.reference = ref
	s.closers = append(s.closers, ref.Close)

	if !s.cfg.Reference.Watch {
		return nil
	}
	return ref.Watch(s.ctx, func(d *reference.Data) {
		if err := d.Apply(s.staticRates, s.visa); err != nil {
			s.logger.Error("failed to apply reference data", slog.String("error", err.Error()))
			return
		}
		s.logger.Info("reference data applied",
			slog.Int("rates", len(d.Rates)),
			slog.Int("visa_rulesets", len(d.Visa)))
	})
}

func (s *Service) initRates() error {
	if s.rates != nil {
		return nil
	}
	switch s.cfg.Rates.Source {
	case "", "static":
		s.rates = s.staticRates
	case "frankfurter":
		s.rates = frankfurter.NewClient(
			frankfurter.WithBaseURL(s.cfg.Rates.BaseURL),
			frankfurter.WithTimeout(s.cfg.Rates.Timeout),
		)
	default:
		return fmt.Errorf("unknown rates source %q", s.cfg.Rates.Source)
	}
	s.logger.Debug("exchange rates configured", slog.String("source", s.cfg.Rates.Source))
	return nil
}

func (s *Service) initCache() error {
	if s.cache != nil {
		return nil
	}
	switch s.cfg.Cache.Type {
	case "", "memory":
		s.cache = reconciler.NewMemoryCache()
	case "redis":
		// Entries older than the staleness window can never be used.
		cache, err := rediscache.Connect(s.ctx, s.cfg.Cache.Redis, s.cfg.Reconciler.Staleness, s.logger)
		if err != nil {
			return err
		}
		s.cache = cache
		s.closers = append(s.closers, cache.Close)
	default:
		return fmt.Errorf("unknown cache type %q", s.cfg.Cache.Type)
	}
	return nil
}

func (s *Service) initStore() error {
	if s.store == nil {
		switch s.cfg.Storage.Type {
		case "sqlite":
			path := s.cfg.Storage.SQLite.Path
			if dir := filepath.Dir(path); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create data directory: %w", err)
				}
			}
			store, err := sqlite.New(path)
			if err != nil {
				return err
			}
			s.store = store
		case "memory":
			s.store = memory.New()
		case "", "none":
			s.logger.Info("trip history disabled")
		default:
			return fmt.Errorf("unknown storage type %q", s.cfg.Storage.Type)
		}
	}
	if s.store != nil {
		s.closers = append(s.closers, s.store.Close)
	}

	if s.events == nil && s.store != nil {
		publisher, err := direct.NewPublisher(s.store)
		if err != nil {
			return fmt.Errorf("create default event publisher: %w", err)
		}
		s.events = publisher
	}
	if s.events != nil {
		s.closers = append(s.closers, s.events.Close)
	}
	return nil
}

func (s *Service) initPlanner() error {
	builtin.RegisterFactories()
	reg, err := provider.BuildRegistry(s.cfg.Providers, provider.Dependencies{
		Visa:  s.visa,
		Rates: s.rates,
	})
	if err != nil {
		return err
	}
	s.registry = reg

	coordOpts := []coordinator.Option{
		coordinator.WithLogger(s.logger),
		coordinator.WithConfig(s.cfg.Coordinator),
	}
	if s.events != nil {
		coordOpts = append(coordOpts, coordinator.WithEventPublisher(s.events))
	}
	if s.tracer != nil {
		coordOpts = append(coordOpts, coordinator.WithTracer(s.tracer))
	}
	coord := coordinator.New(reg.Resolve, coordOpts...)

	rec := reconciler.New(s.rates,
		reconciler.WithConfig(s.cfg.Reconciler),
		reconciler.WithCache(s.cache),
		reconciler.WithLogger(s.logger))

	policy, err := eligibility.ParsePolicy(s.cfg.Eligibility.MissingAgePolicy)
	if err != nil {
		return err
	}
	filter := eligibility.New(s.visa,
		eligibility.WithMissingAgePolicy(policy),
		eligibility.WithLogger(s.logger))

	plannerOpts := []planner.Option{
		planner.WithCatalog(reg),
		planner.WithLogger(s.logger),
	}
	if s.store != nil {
		plannerOpts = append(plannerOpts, planner.WithStore(s.store))
	}
	s.planner = planner.New(coord, rec, filter, plannerOpts...)

	s.logger.Info("planner ready",
		slog.Any("providers", reg.Names()),
		slog.String("missing_age_policy", string(policy)))
	return nil
}

// Plan runs one planning call. See planner.Planner.Plan.
func (s *Service) Plan(ctx context.Context, req domain.TripRequest, intents []domain.InvocationIntent) (*domain.TripPlan, error) {
	return s.planner.Plan(ctx, req, intents)
}

// Providers describes the registered providers.
func (s *Service) Providers() map[string]ports.Capabilities {
	return s.planner.Providers()
}

// Store returns the trip store, or nil when history is disabled.
func (s *Service) Store() ports.TripStore {
	return s.store
}

// Config returns the effective configuration.
func (s *Service) Config() *config.Config {
	return s.cfg
}

// Start binds the HTTP port and serves the API in the background. Serving
// errors are reported by Done.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("service already started")
	}
	srv := server.New(s.cfg.Server, s.logger, s)
	if err := srv.Listen(); err != nil {
		return err
	}
	s.server = srv
	s.done = make(chan error, 1)

	go func() {
		s.done <- srv.Serve()
	}()

	s.logger.Info("planner service started", slog.String("addr", srv.Addr().String()))
	return nil
}

// Addr returns the HTTP listen address once started.
func (s *Service) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return nil
	}
	return s.server.Addr()
}

// Done receives the HTTP server's exit error after Start. It is nil before
// Start.
func (s *Service) Done() <-chan error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Shutdown stops the HTTP server and releases every resource.
func (s *Service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.logger.Info("shutting down planner service")
	s.cancel()

	var err error
	if s.server != nil {
		if err = s.server.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		}
	}
	s.closeAll()

	s.logger.Info("planner service shutdown complete")
	return err
}

// closeAll releases resources in reverse order of acquisition.
func (s *Service) closeAll() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("failed to close resource", slog.String("error", err.Error()))
		}
	}
	s.closers = nil
}
