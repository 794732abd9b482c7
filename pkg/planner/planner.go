// Package planner provides the public API for embedding the trip planner.
// This is the stable API for external consumers.
package planner

import (
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/runtime"
)

// Service is a fully wired planner with an optional HTTP API.
// See internal/runtime.Service for full documentation.
type Service = runtime.Service

// Option is a functional option for configuring a Service.
type Option = runtime.Option

// Request and result types.
type (
	TripRequest      = domain.TripRequest
	InvocationIntent = domain.InvocationIntent
	TripPlan         = domain.TripPlan
)

// New creates a new Service with the given options.
// Example:
//
//	svc, err := planner.New(ctx,
//	    planner.WithFileConfig("config.yaml"),
//	    planner.WithLogger(logger),
//	)
//	trip, err := svc.Plan(ctx, req, nil)
var New = runtime.New

// Configuration options
var (
	WithFileConfig     = runtime.WithFileConfig
	WithConfig         = runtime.WithConfig
	WithLogger         = runtime.WithLogger
	WithRateService    = runtime.WithRateService
	WithRateCache      = runtime.WithRateCache
	WithTripStore      = runtime.WithTripStore
	WithEventPublisher = runtime.WithEventPublisher
	WithTracer         = runtime.WithTracer
)
