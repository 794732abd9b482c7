// Package eligibility decides which itinerary activities a traveler may join
// and whether the trip needs a visa. Both answers are recomputed for every
// planning call; nothing is cached across travelers.
package eligibility

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// MissingAgePolicy decides age-restricted activities when the traveler's age
// is not known.
type MissingAgePolicy string

const (
	AssumeEligible MissingAgePolicy = "assume_eligible"
	AssumeBlocked  MissingAgePolicy = "assume_blocked"
)

// AdultAge is the age from which parental consent is no longer needed.
const AdultAge = 18

const (
	reasonAssumedEligible = "age not provided; assumed eligible"
	reasonAssumedBlocked  = "age not provided; blocked until age is confirmed"
)

// ParsePolicy validates a configured policy name. Empty means AssumeEligible.
func ParsePolicy(s string) (MissingAgePolicy, error) {
	switch MissingAgePolicy(s) {
	case "", AssumeEligible:
		return AssumeEligible, nil
	case AssumeBlocked:
		return AssumeBlocked, nil
	}
	return "", fmt.Errorf("unknown missing age policy %q", s)
}

// Traveler is the metadata the filter needs about the person traveling.
type Traveler struct {
	Age                *int
	HomeCountry        string
	DestinationCountry string
}

// TravelerOf extracts the traveler metadata of a trip request.
func TravelerOf(req *domain.TripRequest) Traveler {
	return Traveler{
		Age:                req.TravelerAge,
		HomeCountry:        req.HomeCountry,
		DestinationCountry: req.DestinationCountry,
	}
}

// Filter evaluates eligibility against a visa ruleset service.
type Filter struct {
	visa   ports.VisaRulesetService
	policy MissingAgePolicy
	logger *slog.Logger
}

// Option configures a Filter
type Option func(*Filter)

// WithMissingAgePolicy sets the policy for travelers without an age.
func WithMissingAgePolicy(p MissingAgePolicy) Option {
	return func(f *Filter) {
		f.policy = p
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// New creates a filter. visa may be nil, in which case every visa answer is
// unknown.
func New(visa ports.VisaRulesetService, opts ...Option) *Filter {
	f := &Filter{
		visa:   visa,
		policy: AssumeEligible,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Evaluate returns the visa verdict, exactly one verdict per activity in
// input order, the allowed activities and the blocking requirements.
func (f *Filter) Evaluate(ctx context.Context, t Traveler, activities []domain.Activity) *domain.EligibilityReport {
	report := &domain.EligibilityReport{
		Visa:         f.Visa(ctx, t.HomeCountry, t.DestinationCountry),
		Verdicts:     make([]domain.EligibilityVerdict, 0, len(activities)),
		Allowed:      []domain.Activity{},
		Requirements: []domain.Requirement{},
	}

	switch report.Visa.VisaRequired {
	case domain.VisaRequired:
		msg := fmt.Sprintf("visa required for %s citizens visiting %s", t.HomeCountry, t.DestinationCountry)
		if report.Visa.VisaType != "" {
			msg += " (" + report.Visa.VisaType + ")"
		}
		report.Requirements = append(report.Requirements, domain.Requirement{
			Kind:      domain.RequirementVisa,
			Message:   msg,
			Documents: report.Visa.RequiredDocuments,
		})
	case domain.VisaUnknown:
		report.Requirements = append(report.Requirements, domain.Requirement{
			Kind:    domain.RequirementVisaUnknown,
			Message: "visa requirements unknown; confirm with the destination embassy",
		})
	}

	for _, a := range activities {
		v := f.verdict(t.Age, a)
		report.Verdicts = append(report.Verdicts, v)
		if !v.Allowed {
			continue
		}
		report.Allowed = append(report.Allowed, a)
		if a.RequiresParentalConsent && t.Age != nil && *t.Age < AdultAge {
			report.Requirements = append(report.Requirements, domain.Requirement{
				Kind:       domain.RequirementParentalConsent,
				Message:    fmt.Sprintf("%s requires parental consent for travelers under %d", a.Name, AdultAge),
				ActivityID: a.ID,
			})
		}
	}

	return report
}

func (f *Filter) verdict(age *int, a domain.Activity) domain.EligibilityVerdict {
	v := domain.EligibilityVerdict{ActivityID: a.ID, Allowed: true}
	restricted := a.MinimumAge != nil || a.MaximumAge != nil

	// Without an age every verdict carries the reason, and the policy only
	// decides activities with an age limit.
	if age == nil {
		if restricted && f.policy == AssumeBlocked {
			v.Allowed = false
			v.Reason = reasonAssumedBlocked
		} else {
			v.Reason = reasonAssumedEligible
		}
		return v
	}

	if a.MinimumAge != nil && *age < *a.MinimumAge {
		v.Allowed = false
		v.Reason = fmt.Sprintf("traveler age %d is below the minimum age %d", *age, *a.MinimumAge)
	} else if a.MaximumAge != nil && *age > *a.MaximumAge {
		v.Allowed = false
		v.Reason = fmt.Sprintf("traveler age %d is above the maximum age %d", *age, *a.MaximumAge)
	}
	return v
}

// Visa answers whether a visa is needed for the country pair. A missing
// ruleset or a failed lookup yields unknown, never a guess. Domestic pairs
// are looked up like any other.
func (f *Filter) Visa(ctx context.Context, origin, destination string) domain.VisaVerdict {
	verdict := domain.VisaVerdict{
		OriginCountry:      origin,
		DestinationCountry: destination,
		VisaRequired:       domain.VisaUnknown,
		RequiredDocuments:  []string{},
	}

	if origin == "" || destination == "" || f.visa == nil {
		verdict.Error = domain.NewError(domain.KindVisaStatusUnknown, "origin or destination country not known")
		return verdict
	}

	rules, err := f.visa.Lookup(ctx, origin, destination)
	if err != nil {
		if !domain.IsKind(err, domain.KindNotFound) {
			f.logger.Warn("visa ruleset lookup failed",
				slog.String("origin", origin),
				slog.String("destination", destination),
				slog.String("error", err.Error()))
		}
		verdict.Error = domain.NewError(domain.KindVisaStatusUnknown,
			fmt.Sprintf("no visa ruleset for %s to %s", origin, destination)).WithCause(err)
		return verdict
	}

	verdict.VisaRequired = domain.VisaNotRequired
	if rules.VisaRequired {
		verdict.VisaRequired = domain.VisaRequired
	}
	verdict.VisaType = rules.VisaType
	if len(rules.RequiredDocuments) > 0 {
		verdict.RequiredDocuments = append([]string(nil), rules.RequiredDocuments...)
	}
	verdict.ProcessingTimeDays = rules.ProcessingTimeDays
	verdict.Cost = rules.Cost
	return verdict
}
