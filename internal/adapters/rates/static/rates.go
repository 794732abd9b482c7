// Package static provides a table-driven exchange rate service.
package static

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// Pair is a directed currency pair.
type Pair struct {
	From string
	To   string
}

// Service answers rate lookups from an in-memory table. The inverse of every
// entry is derived, and a currency always converts to itself at 1.
// The table can be swapped at runtime with Replace.
type Service struct {
	mu    sync.RWMutex
	rates map[Pair]decimal.Decimal
}

var _ ports.RateService = (*Service)(nil)

// New creates a service from rates. Non-positive rates are rejected.
func New(rates map[Pair]decimal.Decimal) (*Service, error) {
	s := &Service{}
	if err := s.Replace(rates); err != nil {
		return nil, err
	}
	return s, nil
}

// Default returns a service holding the bundled rate table.
func Default() *Service {
	s, err := New(DefaultRates())
	if err != nil {
		panic(err)
	}
	return s
}

// DefaultRates is a coarse snapshot of USD and EUR cross rates.
func DefaultRates() map[Pair]decimal.Decimal {
	r := func(v string) decimal.Decimal { return decimal.RequireFromString(v) }
	return map[Pair]decimal.Decimal{
		{"USD", "EUR"}: r("0.92"),
		{"USD", "GBP"}: r("0.79"),
		{"USD", "JPY"}: r("150"),
		{"USD", "MXN"}: r("17"),
		{"EUR", "GBP"}: r("0.86"),
		{"EUR", "JPY"}: r("163"),
		{"EUR", "MXN"}: r("18.5"),
		{"GBP", "JPY"}: r("190"),
		{"GBP", "MXN"}: r("21.5"),
	}
}

// Replace swaps the whole table atomically.
func (s *Service) Replace(rates map[Pair]decimal.Decimal) error {
	table := make(map[Pair]decimal.Decimal, len(rates))
	for pair, rate := range rates {
		if !rate.IsPositive() {
			return fmt.Errorf("rate %s/%s must be positive, got %s", pair.From, pair.To, rate)
		}
		table[pair] = rate
	}

	s.mu.Lock()
	s.rates = table
	s.mu.Unlock()
	return nil
}

// GetRate implements ports.RateService.
func (s *Service) GetRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if rate, ok := s.rates[Pair{from, to}]; ok {
		return rate, nil
	}
	if rate, ok := s.rates[Pair{to, from}]; ok {
		return decimal.NewFromInt(1).DivRound(rate, 16), nil
	}
	return decimal.Zero, domain.ErrRateUnavailable(fmt.Sprintf("no rate for %s/%s", from, to))
}

// Len returns the number of stored entries, not counting derived inverses.
func (s *Service) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rates)
}
