// Package static provides a table-driven visa ruleset service.
package static

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// Service answers visa lookups from an in-memory table keyed by
// origin/destination country.
type Service struct {
	mu    sync.RWMutex
	rules map[string]domain.VisaRuleset
}

var _ ports.VisaRulesetService = (*Service)(nil)

// New creates a service from rulesets.
func New(rulesets []domain.VisaRuleset) (*Service, error) {
	s := &Service{}
	if err := s.Replace(rulesets); err != nil {
		return nil, err
	}
	return s, nil
}

// Default returns a service holding the bundled rulesets.
func Default() *Service {
	s, err := New(DefaultRulesets())
	if err != nil {
		panic(err)
	}
	return s
}

func days(n int) *int { return &n }

func usd(v string) *domain.MonetaryAmount {
	m := domain.Money(v, "USD")
	return &m
}

// DefaultRulesets covers a handful of common pairs between the bundled
// destinations, domestic travel included. Pairs not listed resolve to
// not_found.
func DefaultRulesets() []domain.VisaRuleset {
	var out []domain.VisaRuleset
	for _, c := range []string{"US", "GB", "FR", "IT", "JP", "MX"} {
		out = append(out, domain.VisaRuleset{OriginCountry: c, DestinationCountry: c, Notes: "domestic travel"})
	}
	schengen := []string{"FR", "IT"}
	for _, dest := range schengen {
		out = append(out,
			domain.VisaRuleset{OriginCountry: "US", DestinationCountry: dest, MaxStayDays: days(90), Notes: "ETIAS authorisation required from 2026"},
			domain.VisaRuleset{OriginCountry: "GB", DestinationCountry: dest, MaxStayDays: days(90)},
			domain.VisaRuleset{OriginCountry: "JP", DestinationCountry: dest, MaxStayDays: days(90)},
			domain.VisaRuleset{OriginCountry: "MX", DestinationCountry: dest, MaxStayDays: days(90)},
		)
	}
	out = append(out,
		domain.VisaRuleset{OriginCountry: "US", DestinationCountry: "GB", MaxStayDays: days(180), Notes: "ETA required"},
		domain.VisaRuleset{OriginCountry: "US", DestinationCountry: "JP", MaxStayDays: days(90)},
		domain.VisaRuleset{OriginCountry: "US", DestinationCountry: "MX", MaxStayDays: days(180)},
		domain.VisaRuleset{OriginCountry: "GB", DestinationCountry: "US", MaxStayDays: days(90), Notes: "ESTA required"},
		domain.VisaRuleset{OriginCountry: "FR", DestinationCountry: "US", MaxStayDays: days(90), Notes: "ESTA required"},
		domain.VisaRuleset{OriginCountry: "MX", DestinationCountry: "JP", MaxStayDays: days(90)},
		domain.VisaRuleset{
			OriginCountry:      "MX",
			DestinationCountry: "US",
			VisaRequired:       true,
			VisaType:           "B1/B2 visitor",
			RequiredDocuments:  []string{"passport valid for 6 months", "DS-160 confirmation", "interview appointment letter"},
			ProcessingTimeDays: days(60),
			Cost:               usd("185"),
			MaxStayDays:        days(180),
		},
		domain.VisaRuleset{
			OriginCountry:      "MX",
			DestinationCountry: "GB",
			VisaRequired:       false,
			MaxStayDays:        days(180),
			Notes:              "ETA required",
		},
		domain.VisaRuleset{
			OriginCountry:      "JP",
			DestinationCountry: "US",
			MaxStayDays:        days(90),
			Notes:              "ESTA required",
		},
	)
	return out
}

func key(origin, destination string) string {
	return strings.ToUpper(origin) + "/" + strings.ToUpper(destination)
}

// Replace swaps the whole table atomically. Duplicate pairs are rejected.
func (s *Service) Replace(rulesets []domain.VisaRuleset) error {
	table := make(map[string]domain.VisaRuleset, len(rulesets))
	for _, r := range rulesets {
		if r.OriginCountry == "" || r.DestinationCountry == "" {
			return fmt.Errorf("visa ruleset needs origin and destination country")
		}
		k := key(r.OriginCountry, r.DestinationCountry)
		if _, dup := table[k]; dup {
			return fmt.Errorf("duplicate visa ruleset %s", k)
		}
		table[k] = r
	}

	s.mu.Lock()
	s.rules = table
	s.mu.Unlock()
	return nil
}

// Lookup implements ports.VisaRulesetService. The returned ruleset is a copy.
func (s *Service) Lookup(ctx context.Context, origin, destination string) (*domain.VisaRuleset, error) {
	s.mu.RLock()
	r, ok := s.rules[key(origin, destination)]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrNotFound(fmt.Sprintf("no visa ruleset for %s -> %s", origin, destination))
	}
	r.RequiredDocuments = append([]string(nil), r.RequiredDocuments...)
	return &r, nil
}

// Pairs lists the known origin/destination keys, sorted.
func (s *Service) Pairs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.rules))
	for k := range s.rules {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
