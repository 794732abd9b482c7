// Package aggregator folds an execution report and the reconciled budget and
// eligibility results into the immutable TripPlan.
package aggregator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
)

// Inputs is everything one trip plan is built from.
type Inputs struct {
	Request *domain.TripRequest
	Plan    *domain.Plan
	Report  *domain.ExecutionReport

	// Budget replaces the budget section payload when that section succeeded.
	Budget *domain.BudgetBreakdown

	// Eligibility is attached to the itinerary section and its visa verdict
	// becomes the visa section payload, when those sections succeeded.
	Eligibility *domain.EligibilityReport
}

// ItineraryPayload is the itinerary section payload after filtering.
type ItineraryPayload struct {
	Itinerary   json.RawMessage           `json:"itinerary"`
	Eligibility *domain.EligibilityReport `json:"eligibility"`
}

// Aggregator builds trip plans.
type Aggregator struct {
	now func() time.Time

	budgetSection    string
	itinerarySection string
	visaSection      string
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithClock replaces time.Now for the plan's creation time.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// New creates an aggregator using the default section names.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{
		now:              time.Now,
		budgetSection:    domain.SectionBudget,
		itinerarySection: domain.SectionItinerary,
		visaSection:      domain.SectionVisa,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate builds the trip plan. Every section named by the plan gets an
// entry: a payload when all of its intents succeeded, a SectionFailure
// otherwise. It fails with *domain.TotalFailureError when every section
// failed and with a validation error for an invalid request.
func (a *Aggregator) Aggregate(in Inputs) (*domain.TripPlan, error) {
	if in.Request == nil {
		return nil, &domain.ValidationError{Field: "request", Reason: "required"}
	}
	check := *in.Request
	if err := check.Validate(); err != nil {
		return nil, err
	}
	if in.Plan == nil || in.Report == nil {
		return nil, &domain.ValidationError{Field: "plan", Reason: "plan and execution report are required"}
	}

	bySection := make(map[string][]domain.InvocationIntent)
	for _, intent := range in.Plan.Intents {
		name := intent.SectionName()
		bySection[name] = append(bySection[name], intent)
	}

	sections := make(map[string]domain.Section, len(bySection))
	failures := make(map[string]domain.ErrorKind)
	for name, intents := range bySection {
		s, err := a.section(name, intents, in)
		if err != nil {
			return nil, err
		}
		sections[name] = s
		if s.Failure != nil {
			failures[name] = s.Failure.Kind
		}
	}

	if len(failures) == len(sections) {
		return nil, &domain.TotalFailureError{Sections: failures}
	}

	return domain.NewTripPlan(in.Plan.ID, *in.Request, sections, in.Report, a.now()), nil
}

func (a *Aggregator) section(name string, intents []domain.InvocationIntent, in Inputs) (domain.Section, error) {
	sort.Slice(intents, func(i, j int) bool { return intents[i].ID < intents[j].ID })

	payloads := make(map[string]json.RawMessage, len(intents))
	var failure *domain.SectionFailure
	for _, intent := range intents {
		if res, ok := in.Report.Executed[intent.ID]; ok && res.Succeeded() {
			payloads[intent.ID] = res.Response.Payload
			continue
		}
		if failure == nil {
			failure = failureOf(intent.ID, in.Report)
		}
	}

	if failure != nil {
		if len(intents) > 1 && len(payloads) > 0 && failure.Partial == nil {
			partial, err := json.Marshal(payloads)
			if err != nil {
				return domain.Section{}, err
			}
			failure.Partial = partial
		}
		return domain.Section{Name: name, Failure: failure}, nil
	}

	var payload json.RawMessage
	if len(intents) == 1 {
		payload = payloads[intents[0].ID]
	} else {
		raw, err := json.Marshal(payloads)
		if err != nil {
			return domain.Section{}, err
		}
		payload = raw
	}

	var (
		enriched any
		err      error
	)
	switch {
	case name == a.budgetSection && in.Budget != nil:
		enriched = in.Budget
	case name == a.itinerarySection && in.Eligibility != nil:
		enriched = ItineraryPayload{Itinerary: payload, Eligibility: in.Eligibility}
	case name == a.visaSection && in.Eligibility != nil:
		enriched = in.Eligibility.Visa
	}
	if enriched != nil {
		if payload, err = json.Marshal(enriched); err != nil {
			return domain.Section{}, fmt.Errorf("encode %s section: %w", name, err)
		}
	}

	return domain.Section{Name: name, Payload: payload}, nil
}

// failureOf describes why intent id did not produce a payload.
func failureOf(id string, report *domain.ExecutionReport) *domain.SectionFailure {
	if res, ok := report.Executed[id]; ok {
		f := &domain.SectionFailure{Kind: domain.KindProviderError, Message: "provider failed", Partial: res.Response.Payload}
		if res.Response.Error != nil {
			f.Kind = res.Response.Error.Kind
			f.Message = res.Response.Error.Message
		}
		return f
	}

	skip, ok := report.Skipped[id]
	if !ok {
		return &domain.SectionFailure{Kind: domain.KindProviderError, Message: fmt.Sprintf("intent %s has no outcome", id)}
	}
	f := &domain.SectionFailure{Kind: skip.Reason}
	switch skip.Reason {
	case domain.KindDependencyFailed:
		f.Message = fmt.Sprintf("skipped because %s failed", strings.Join(skip.FailedDependencies, ", "))
		f.Chain = skip.Root
	case domain.KindPlanDeadlineExceeded:
		f.Message = "plan deadline exceeded before this section completed"
	case domain.KindCanceled:
		f.Message = "planning was canceled"
	default:
		f.Message = "skipped"
	}
	return f
}
