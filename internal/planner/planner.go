// Package planner is the entry point of a planning call. It validates the
// trip request, executes the invocation plan, reconciles the budget, filters
// the itinerary for eligibility and aggregates the trip plan.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/aggregator"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/eligibility"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider/builtin"
)

// Executor runs an invocation plan. Implemented by *coordinator.Coordinator.
type Executor interface {
	Execute(ctx context.Context, plan *domain.Plan, trip *domain.TripRequest) (*domain.ExecutionReport, error)
}

// BudgetReconciler builds the budget breakdown. Implemented by
// *reconciler.Reconciler.
type BudgetReconciler interface {
	Reconcile(ctx context.Context, req *domain.TripRequest, destination string, costs []domain.CategoryCost) (*domain.BudgetBreakdown, error)
}

// EligibilityEvaluator filters activities and answers the visa question.
// Implemented by *eligibility.Filter.
type EligibilityEvaluator interface {
	Evaluate(ctx context.Context, t eligibility.Traveler, activities []domain.Activity) *domain.EligibilityReport
}

// Catalog describes the registered providers. Implemented by
// *provider.Registry.
type Catalog interface {
	Describe() map[string]ports.Capabilities
}

// Planner runs planning calls. It is safe for concurrent use.
type Planner struct {
	exec       Executor
	reconciler BudgetReconciler
	filter     EligibilityEvaluator
	aggregator *aggregator.Aggregator

	catalog Catalog
	store   ports.TripStore
	logger  *slog.Logger
	newID   func() string
}

// Option configures a Planner
type Option func(*Planner)

// WithStore persists every returned trip plan.
func WithStore(store ports.TripStore) Option {
	return func(p *Planner) {
		p.store = store
	}
}

// WithCatalog exposes the registered providers through Providers.
func WithCatalog(c Catalog) Option {
	return func(p *Planner) {
		p.catalog = c
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Planner) {
		p.logger = logger
	}
}

// WithAggregator replaces the default aggregator.
func WithAggregator(a *aggregator.Aggregator) Option {
	return func(p *Planner) {
		p.aggregator = a
	}
}

// WithIDGenerator replaces the plan id generator. Tests use it for stable ids.
func WithIDGenerator(newID func() string) Option {
	return func(p *Planner) {
		p.newID = newID
	}
}

// New creates a planner.
func New(exec Executor, reconciler BudgetReconciler, filter EligibilityEvaluator, opts ...Option) *Planner {
	p := &Planner{
		exec:       exec,
		reconciler: reconciler,
		filter:     filter,
		aggregator: aggregator.New(),
		logger:     slog.Default(),
		newID:      func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan runs one planning call. intents is the invocation plan produced by
// the caller; when empty the default plan is used.
//
// A trip plan is returned whenever at least one section succeeded; degraded
// sections carry a SectionFailure. Plan fails with *domain.ValidationError
// for an invalid request or plan, *domain.CycleError for a cyclic plan and
// *domain.TotalFailureError when every section failed.
func (p *Planner) Plan(ctx context.Context, req domain.TripRequest, intents []domain.InvocationIntent) (*domain.TripPlan, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if len(intents) == 0 {
		intents = DefaultIntents()
	}
	plan := &domain.Plan{ID: p.newID(), Intents: cloneIntents(intents)}

	report, err := p.exec.Execute(ctx, plan, &req)
	if err != nil {
		return nil, err
	}

	in := aggregator.Inputs{Request: &req, Plan: plan, Report: report}
	sections := plan.Sections()

	var activities []domain.Activity
	if slices.Contains(sections, domain.SectionItinerary) || slices.Contains(sections, domain.SectionVisa) {
		activities = p.activities(plan, report)
		traveler := eligibility.TravelerOf(&req)
		traveler.DestinationCountry = builtin.DestinationCountry(&req)
		in.Eligibility = p.filter.Evaluate(ctx, traveler, activities)
	}

	if p.succeeded(plan, report, domain.SectionBudget) {
		costs := p.costs(plan, report, &req, in.Eligibility)
		destination := builtin.CurrencyOf(req.Destination, req.BudgetCurrency)
		budget, err := p.reconciler.Reconcile(ctx, &req, destination, costs)
		if err != nil {
			p.logger.Warn("budget reconciliation failed",
				slog.String("plan_id", plan.ID),
				slog.String("error", err.Error()))
		} else {
			in.Budget = budget
		}
	}

	trip, err := p.aggregator.Aggregate(in)
	if err != nil {
		var total *domain.TotalFailureError
		if errors.As(err, &total) {
			p.logger.Error("every section failed",
				slog.String("plan_id", plan.ID),
				slog.Int("sections", len(total.Sections)))
		}
		return nil, err
	}

	if degraded := trip.Degraded(); len(degraded) > 0 {
		p.logger.Info("trip plan degraded",
			slog.String("plan_id", plan.ID),
			slog.Any("sections", degraded))
	}

	if p.store != nil {
		if err := p.store.SaveTrip(ctx, trip); err != nil {
			p.logger.Error("failed to save trip",
				slog.String("plan_id", plan.ID),
				slog.String("error", err.Error()))
		}
	}
	return trip, nil
}

// Providers returns the capabilities of the registered providers, or nil
// when no catalog is configured.
func (p *Planner) Providers() map[string]ports.Capabilities {
	if p.catalog == nil {
		return nil
	}
	return p.catalog.Describe()
}

// Store returns the trip store, or nil when history is disabled.
func (p *Planner) Store() ports.TripStore {
	return p.store
}

// succeeded reports whether the plan has the section and every intent
// filling it succeeded.
func (p *Planner) succeeded(plan *domain.Plan, report *domain.ExecutionReport, section string) bool {
	found := false
	for _, in := range plan.Intents {
		if in.SectionName() != section {
			continue
		}
		found = true
		if !report.Executed[in.ID].Succeeded() {
			return false
		}
	}
	return found
}

// activities collects the candidate activities reported by the itinerary
// section's successful intents.
func (p *Planner) activities(plan *domain.Plan, report *domain.ExecutionReport) []domain.Activity {
	var out []domain.Activity
	for _, in := range plan.Intents {
		if in.SectionName() != domain.SectionItinerary {
			continue
		}
		res := report.Executed[in.ID]
		if !res.Succeeded() {
			continue
		}
		var payload struct {
			Activities []domain.Activity `json:"activities"`
		}
		if err := json.Unmarshal(res.Response.Payload, &payload); err != nil {
			p.logger.Warn("itinerary payload has no readable activities",
				slog.String("intent_id", in.ID),
				slog.String("error", err.Error()))
			continue
		}
		out = append(out, payload.Activities...)
	}
	return out
}

// costs gathers the cost lines of every successful payload plus the cost of
// the activities the traveler is allowed to join. Malformed lines are
// dropped with a warning rather than failing the budget.
func (p *Planner) costs(plan *domain.Plan, report *domain.ExecutionReport, req *domain.TripRequest, elig *domain.EligibilityReport) []domain.CategoryCost {
	var out []domain.CategoryCost
	for _, in := range plan.Intents {
		res := report.Executed[in.ID]
		if !res.Succeeded() {
			continue
		}
		var payload struct {
			Costs []domain.CategoryCost `json:"costs"`
		}
		if err := json.Unmarshal(res.Response.Payload, &payload); err != nil {
			continue
		}
		for _, c := range payload.Costs {
			if err := validCost(c); err != nil {
				p.logger.Warn("dropping cost line",
					slog.String("intent_id", in.ID),
					slog.String("category", string(c.Category)),
					slog.String("error", err.Error()))
				continue
			}
			if c.Source == "" {
				c.Source = in.ID
			}
			out = append(out, c)
		}
	}

	if elig == nil || !p.succeeded(plan, report, domain.SectionItinerary) {
		return out
	}
	travelers := decimal.NewFromInt(int64(req.TravelerCount))
	priced := false
	for _, a := range elig.Allowed {
		if a.Cost == nil || a.Cost.Validate() != nil {
			continue
		}
		out = append(out, domain.CategoryCost{
			Category: domain.CategoryActivities,
			Amount:   domain.MonetaryAmount{Value: a.Cost.Value.Mul(travelers), Currency: a.Cost.Currency},
			Source:   a.ID,
		})
		priced = true
	}
	if !priced {
		// The itinerary answered; its activities are genuinely free.
		out = append(out, domain.CategoryCost{
			Category: domain.CategoryActivities,
			Amount:   domain.MonetaryAmount{Value: decimal.Zero, Currency: req.BudgetCurrency},
			Source:   domain.SectionItinerary,
		})
	}
	return out
}

func validCost(c domain.CategoryCost) error {
	if !slices.Contains(domain.Categories, c.Category) {
		return fmt.Errorf("unknown category %q", c.Category)
	}
	return c.Amount.Validate()
}
