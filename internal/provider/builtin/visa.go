package builtin

import (
	"context"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

// VisaPayload is the visa provider's lookup result. Ruleset is nil and
// Status is unknown when no ruleset exists for the pair.
type VisaPayload struct {
	OriginCountry      string                 `json:"origin_country"`
	DestinationCountry string                 `json:"destination_country"`
	Status             domain.VisaRequirement `json:"status"`
	Ruleset            *domain.VisaRuleset    `json:"ruleset,omitempty"`
}

type visaChecker struct {
	rules ports.VisaRulesetService
}

func newVisa(cfg config.ProviderConfig, deps provider.Dependencies) (ports.Provider, error) {
	v := &visaChecker{rules: deps.Visa}
	set := provider.NewOperationSet(cfg.Name).Handle("check", v.check)
	return configure(set, cfg), nil
}

func (v *visaChecker) check(ctx context.Context, req *domain.Request) (any, error) {
	t, err := trip(req)
	if err != nil {
		return nil, err
	}
	out := VisaPayload{
		OriginCountry:      req.Param("origin_country", t.HomeCountry),
		DestinationCountry: req.Param("destination_country", DestinationCountry(t)),
		Status:             domain.VisaUnknown,
	}
	if out.DestinationCountry == "" {
		return out, nil
	}
	if v.rules == nil {
		return nil, domain.ErrProvider("no visa ruleset service configured")
	}

	rules, err := v.rules.Lookup(ctx, out.OriginCountry, out.DestinationCountry)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			return out, nil
		}
		return nil, domain.ErrTransientIO("visa ruleset lookup failed").WithCause(err)
	}
	out.Ruleset = rules
	out.Status = domain.VisaNotRequired
	if rules.VisaRequired {
		out.Status = domain.VisaRequired
	}
	return out, nil
}

// DestinationCountry returns the request's destination country, resolving
// it from the destination city when not given.
func DestinationCountry(t *domain.TripRequest) string {
	if t.DestinationCountry != "" {
		return t.DestinationCountry
	}
	return CountryOf(t.Destination)
}
