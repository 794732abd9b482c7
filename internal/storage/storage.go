// Package storage holds the trip history store types shared by the memory and
// sqlite implementations.
package storage

import (
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// Re-export storage interfaces and types from core/ports.
type (
	TripStore   = ports.TripStore
	TripSummary = ports.TripSummary
	ListOptions = ports.ListOptions
)

// Summarize builds the listing entry of a trip plan.
func Summarize(plan *domain.TripPlan) *TripSummary {
	req := plan.Request()
	return &TripSummary{
		ID:          plan.ID(),
		Origin:      req.Origin,
		Destination: req.Destination,
		StartDate:   req.StartDate.String(),
		EndDate:     req.EndDate.String(),
		Degraded:    plan.Degraded(),
		CreatedAt:   plan.CreatedAt(),
	}
}

// Page applies opts to n items and returns the [start, end) bounds.
func Page(n int, opts ListOptions) (int, int) {
	start := opts.Offset
	if start < 0 {
		start = 0
	}
	if start >= n {
		return n, n
	}
	end := start + opts.Limit
	if opts.Limit <= 0 || end > n {
		end = n
	}
	return start, end
}
