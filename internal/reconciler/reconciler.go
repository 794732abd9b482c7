// Package reconciler folds cost lines reported in mixed currencies into a
// budget breakdown in the traveler's home currency, mirrored into the
// destination currency for display.
//
// Exchange rates come from a ports.RateService. Every successful lookup is
// cached; when a lookup fails the most recent cached rate is used as long as
// it is younger than the staleness bound, otherwise the category is reported
// unconverted instead of silently using stale data.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
)

const (
	DefaultStaleness = 24 * time.Hour
	DefaultFreshFor  = time.Hour
)

// Reconciler produces budget breakdowns. It is safe for concurrent use.
type Reconciler struct {
	rates     ports.RateService
	cache     ports.RateCache
	staleness time.Duration
	freshFor  time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures a Reconciler
type Option func(*Reconciler)

// WithCache replaces the default in-memory rate cache.
func WithCache(cache ports.RateCache) Option {
	return func(r *Reconciler) {
		r.cache = cache
	}
}

// WithStaleness bounds the age of a cached rate used as a fallback.
func WithStaleness(d time.Duration) Option {
	return func(r *Reconciler) {
		r.staleness = d
	}
}

// WithFreshFor sets how long a cached rate is used without a lookup. Zero
// always looks up.
func WithFreshFor(d time.Duration) Option {
	return func(r *Reconciler) {
		r.freshFor = d
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		r.now = now
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

// WithConfig applies the reconciler section of the service config.
func WithConfig(cfg config.ReconcilerConfig) Option {
	return func(r *Reconciler) {
		if cfg.Staleness > 0 {
			r.staleness = cfg.Staleness
		}
		r.freshFor = cfg.FreshFor
	}
}

// New creates a reconciler looking up rates through rates.
func New(rates ports.RateService, opts ...Option) *Reconciler {
	r := &Reconciler{
		rates:     rates,
		staleness: DefaultStaleness,
		freshFor:  DefaultFreshFor,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cache == nil {
		r.cache = NewMemoryCache()
	}
	return r
}

// rateQuote is the outcome of one rate resolution.
type rateQuote struct {
	rate   decimal.Decimal
	status domain.LineStatus // converted, cached_rate or unconverted
	asOf   *time.Time
	err    error
}

// quoter resolves each currency pair at most once per breakdown so every
// line of a pair uses the same rate.
type quoter struct {
	r      *Reconciler
	quotes map[string]rateQuote
}

func (q *quoter) quote(ctx context.Context, from, to string) rateQuote {
	if from == to {
		return rateQuote{rate: decimal.NewFromInt(1), status: domain.LineConverted}
	}
	key := pairKey(from, to)
	if rq, ok := q.quotes[key]; ok {
		return rq
	}
	rq := q.r.resolve(ctx, from, to)
	q.quotes[key] = rq
	return rq
}

func (r *Reconciler) resolve(ctx context.Context, from, to string) rateQuote {
	now := r.now()
	cached, hasCached := r.cache.Get(ctx, from, to)
	if hasCached && r.freshFor > 0 && now.Sub(cached.FetchedAt) < r.freshFor {
		asOf := cached.FetchedAt
		return rateQuote{rate: cached.Rate, status: domain.LineConverted, asOf: &asOf}
	}

	rate, err := r.rates.GetRate(ctx, from, to)
	if err == nil && !rate.IsPositive() {
		err = domain.ErrRateUnavailable(fmt.Sprintf("non-positive rate %s for %s/%s", rate, from, to))
	}
	if err == nil {
		if perr := r.cache.Put(ctx, from, to, ports.CachedRate{Rate: rate, FetchedAt: now}); perr != nil {
			r.logger.Warn("failed to cache exchange rate",
				slog.String("pair", pairKey(from, to)),
				slog.String("error", perr.Error()))
		}
		return rateQuote{rate: rate, status: domain.LineConverted}
	}

	if hasCached && now.Sub(cached.FetchedAt) <= r.staleness {
		r.logger.Warn("exchange rate lookup failed, using cached rate",
			slog.String("pair", pairKey(from, to)),
			slog.Time("rate_as_of", cached.FetchedAt),
			slog.String("error", err.Error()))
		asOf := cached.FetchedAt
		return rateQuote{rate: cached.Rate, status: domain.LineCachedRate, asOf: &asOf}
	}

	r.logger.Warn("exchange rate unavailable",
		slog.String("pair", pairKey(from, to)),
		slog.Bool("stale_cache", hasCached),
		slog.String("error", err.Error()))
	return rateQuote{status: domain.LineUnconverted, err: err}
}

// Reconcile builds the budget breakdown of req from costs. destination is the
// display currency; empty means the home currency.
//
// Totals are the sums of the per-category home figures, each rounded to
// domain.MoneyPlaces; remaining is budget minus that total, exactly. Lines
// that could not be converted or have no data contribute zero and are
// flagged. Reconcile fails only for invalid input.
func (r *Reconciler) Reconcile(ctx context.Context, req *domain.TripRequest, destination string, costs []domain.CategoryCost) (*domain.BudgetBreakdown, error) {
	home := req.BudgetCurrency
	if !domain.ValidCurrency(home) {
		return nil, &domain.ValidationError{Field: "budget_currency", Reason: fmt.Sprintf("invalid currency %q", home)}
	}
	if destination == "" {
		destination = home
	}
	if !domain.ValidCurrency(destination) {
		return nil, &domain.ValidationError{Field: "destination_currency", Reason: fmt.Sprintf("invalid currency %q", destination)}
	}

	byCategory := make(map[domain.Category][]domain.MonetaryAmount)
	for _, c := range costs {
		if !knownCategory(c.Category) {
			return nil, &domain.ValidationError{Field: "category", Reason: fmt.Sprintf("unknown category %q", c.Category)}
		}
		if err := c.Amount.Validate(); err != nil {
			return nil, &domain.ValidationError{Field: string(c.Category), Reason: err.Error()}
		}
		byCategory[c.Category] = append(byCategory[c.Category], c.Amount)
	}

	q := &quoter{r: r, quotes: make(map[string]rateQuote)}

	out := &domain.BudgetBreakdown{
		HomeCurrency:        home,
		DestinationCurrency: destination,
		Categories:          make(map[domain.Category]domain.BudgetLine, len(domain.Categories)),
	}

	// Display mirror; nil destination figures when the rate is unavailable.
	mirror := q.quote(ctx, home, destination)
	var toDestination func(decimal.Decimal) *decimal.Decimal
	if mirror.err == nil {
		rate := mirror.rate
		out.ExchangeRate = &rate
		toDestination = func(v decimal.Decimal) *decimal.Decimal {
			d := Convert(v, rate)
			return &d
		}
	} else {
		toDestination = func(decimal.Decimal) *decimal.Decimal { return nil }
	}

	total := decimal.Zero
	for _, cat := range domain.Categories {
		line := r.line(ctx, q, cat, home, byCategory[cat])
		if line.Status == domain.LineConverted || line.Status == domain.LineCachedRate {
			total = total.Add(line.Converted.Home)
			line.Converted.Destination = toDestination(line.Converted.Home)
		}
		out.Categories[cat] = line
	}

	remaining := req.BudgetAmount.Sub(total)
	out.Budget = domain.DualAmount{Home: req.BudgetAmount, Destination: toDestination(req.BudgetAmount)}
	out.TotalSpent = domain.DualAmount{Home: total, Destination: toDestination(total)}
	out.Remaining = domain.DualAmount{Home: remaining, Destination: toDestination(remaining)}
	out.Status = domain.BudgetWithin
	if remaining.IsNegative() {
		out.Status = domain.BudgetExceeded
	}
	return out, nil
}

func (r *Reconciler) line(ctx context.Context, q *quoter, cat domain.Category, home string, amounts []domain.MonetaryAmount) domain.BudgetLine {
	line := domain.BudgetLine{Category: cat, Original: amounts, Converted: domain.DualAmount{Home: decimal.Zero}}
	if len(amounts) == 0 {
		line.Status = domain.LineDataMissing
		line.Note = "no cost data reported"
		return line
	}

	sum := decimal.Zero
	line.Status = domain.LineConverted
	for _, a := range amounts {
		rq := q.quote(ctx, a.Currency, home)
		if rq.err != nil {
			line.Status = domain.LineUnconverted
			line.Converted.Home = decimal.Zero
			line.RateAsOf = nil
			line.Note = fmt.Sprintf("no usable %s/%s rate", a.Currency, home)
			return line
		}
		if rq.status == domain.LineCachedRate {
			line.Status = domain.LineCachedRate
			if line.RateAsOf == nil || rq.asOf.Before(*line.RateAsOf) {
				line.RateAsOf = rq.asOf
			}
		}
		sum = sum.Add(a.Value.Mul(rq.rate))
	}
	line.Converted.Home = sum.Round(domain.MoneyPlaces)
	if line.Status == domain.LineCachedRate {
		line.Note = fmt.Sprintf("converted with cached rate from %s", line.RateAsOf.UTC().Format(time.RFC3339))
	}
	return line
}

// Convert multiplies value by rate and rounds to domain.MoneyPlaces.
func Convert(value, rate decimal.Decimal) decimal.Decimal {
	return value.Mul(rate).Round(domain.MoneyPlaces)
}

func knownCategory(c domain.Category) bool {
	for _, k := range domain.Categories {
		if k == c {
			return true
		}
	}
	return false
}
