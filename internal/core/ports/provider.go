// Package ports defines the interfaces between the planning core and its
// collaborators: capability providers, exchange rates, visa rulesets, trip
// history and event sinks.
package ports

import (
	"context"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
)

// Provider is a capability provider. Invoke must be safe for concurrent use
// unless the provider declares SingleFlight.
//
// A provider reports failure either by returning a failure Response or by
// returning an error; errors of type *domain.Error keep their kind and
// retryable flag, anything else is treated as a non-retryable provider error.
type Provider interface {
	Name() string
	Invoke(ctx context.Context, req *domain.Request) (*domain.Response, error)
}

// Capabilities are optional execution hints a provider declares.
type Capabilities struct {
	// SingleFlight serializes calls to the provider instead of running them
	// concurrently.
	SingleFlight bool `json:"single_flight"`

	// RetryOnTimeout lets the coordinator retry calls that hit the
	// per-call timeout.
	RetryOnTimeout bool `json:"retry_on_timeout"`

	// Operations lists the operation names the provider exposes.
	Operations []string `json:"operations"`
}

// Describer is implemented by providers that declare Capabilities.
type Describer interface {
	Capabilities() Capabilities
}

// CapabilitiesOf returns the declared capabilities of p, or the zero value.
func CapabilitiesOf(p Provider) Capabilities {
	if d, ok := p.(Describer); ok {
		return d.Capabilities()
	}
	return Capabilities{}
}
