package provider

import (
	"context"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// CapabilityOverride wraps a provider and overrides its declared execution
// hints, so configuration can mark a provider single-flight without changing
// its code.
type CapabilityOverride struct {
	inner          ports.Provider
	singleFlight   *bool
	retryOnTimeout *bool
}

// NewCapabilityOverride creates a CapabilityOverride. Nil values keep the
// inner provider's declaration.
func NewCapabilityOverride(inner ports.Provider, singleFlight, retryOnTimeout *bool) *CapabilityOverride {
	return &CapabilityOverride{
		inner:          inner,
		singleFlight:   singleFlight,
		retryOnTimeout: retryOnTimeout,
	}
}

func (p *CapabilityOverride) Name() string {
	return p.inner.Name()
}

func (p *CapabilityOverride) Invoke(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return p.inner.Invoke(ctx, req)
}

// Capabilities returns the inner capabilities with overrides applied.
func (p *CapabilityOverride) Capabilities() ports.Capabilities {
	caps := ports.CapabilitiesOf(p.inner)
	if p.singleFlight != nil {
		caps.SingleFlight = *p.singleFlight
	}
	if p.retryOnTimeout != nil {
		caps.RetryOnTimeout = *p.retryOnTimeout
	}
	return caps
}

var _ ports.Describer = (*CapabilityOverride)(nil)
