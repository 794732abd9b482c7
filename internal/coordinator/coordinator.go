// Package coordinator executes invocation plans. Intents form a DAG through
// their dependencies; the coordinator runs one topological layer at a time,
// dispatches every intent of a layer concurrently, and records each intent as
// executed or skipped in an ExecutionReport.
package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// Source is the envelope source of every request the coordinator sends.
const Source = "coordinator"

// ProviderLookup resolves a provider by name
type ProviderLookup func(name string) (ports.Provider, error)

// Coordinator executes invocation plans against a provider lookup. It is
// safe for concurrent use; concurrent plans share the in-flight cap and the
// single-flight queues.
type Coordinator struct {
	lookup ProviderLookup
	logger *slog.Logger
	tracer trace.Tracer
	events ports.EventPublisher
	sleep  func(ctx context.Context, d time.Duration) error

	maxInFlight    int
	callTimeout    time.Duration
	planDeadline   time.Duration
	maxRetries     int
	initialBackoff time.Duration

	slots *semaphore.Weighted

	flightMu sync.Mutex
	flights  map[string]chan struct{}
}

// New creates a coordinator resolving providers through lookup.
func New(lookup ProviderLookup, opts ...Option) *Coordinator {
	c := &Coordinator{
		lookup:         lookup,
		logger:         slog.Default(),
		tracer:         otel.Tracer("github.com/tjfontaine/polyglot-trip-planner/internal/coordinator"),
		sleep:          sleepContext,
		callTimeout:    DefaultCallTimeout,
		planDeadline:   DefaultPlanDeadline,
		maxRetries:     DefaultMaxRetries,
		initialBackoff: DefaultInitialBackoff,
		flights:        make(map[string]chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxInFlight > 0 {
		c.slots = semaphore.NewWeighted(int64(c.maxInFlight))
	}
	return c
}

// task is an intent ready for dispatch together with its resolved provider.
type task struct {
	intent   domain.InvocationIntent
	provider ports.Provider
}

// outcome is what a dispatched intent reports back to the layer loop.
type outcome struct {
	id     string
	result *domain.ExecutionResult
}

// Execute runs plan and returns a report in which every intent is either
// executed or skipped. Individual provider failures never make Execute fail;
// only an invalid plan or a dependency cycle does, and both are reported
// before anything is dispatched.
//
// trip is attached to every request envelope and may be nil.
func (c *Coordinator) Execute(ctx context.Context, plan *domain.Plan, trip *domain.TripRequest) (*domain.ExecutionReport, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	layers, err := Layers(plan)
	if err != nil {
		return nil, err
	}

	ctx, span := c.tracer.Start(ctx, "coordinator.Execute",
		trace.WithAttributes(
			attribute.String("plan.id", plan.ID),
			attribute.Int("plan.intents", len(plan.Intents)),
			attribute.Int("plan.layers", len(layers)),
		))
	defer span.End()

	report := domain.NewExecutionReport(plan.ID)
	report.Layers = layers
	report.StartedAt = time.Now()

	planCtx := ctx
	if c.planDeadline > 0 {
		var cancel context.CancelFunc
		planCtx, cancel = context.WithTimeout(ctx, c.planDeadline)
		defer cancel()
	}

	intents := make(map[string]domain.InvocationIntent, len(plan.Intents))
	for _, in := range plan.Intents {
		intents[in.ID] = in
	}

	c.logger.Info("executing plan",
		slog.String("plan_id", plan.ID),
		slog.Int("intents", len(plan.Intents)),
		slog.Int("layers", len(layers)))
	c.publish(ctx, &domain.LifecycleEvent{Type: domain.EventPlanStarted, PlanID: plan.ID})

	for n, layer := range layers {
		if planCtx.Err() != nil {
			c.skipAll(ctx, report, layer, cutoffKind(ctx))
			continue
		}

		var ready []task
		for _, id := range layer {
			in := intents[id]
			if skip := dependencySkip(report, in); skip != nil {
				c.recordSkip(ctx, report, skip)
				continue
			}
			p, err := c.lookup(in.Provider)
			if err != nil {
				report.Executed[id] = c.notFound(in, trip, err)
				c.logger.Error("provider not found",
					slog.String("plan_id", plan.ID),
					slog.String("intent_id", id),
					slog.String("provider", in.Provider))
				continue
			}
			ready = append(ready, task{intent: in, provider: p})
		}

		span.AddEvent("layer.dispatch", trace.WithAttributes(
			attribute.Int("layer", n),
			attribute.Int("intents", len(ready)),
		))
		c.runLayer(ctx, planCtx, plan.ID, ready, trip, report)
	}

	report.CompletedAt = time.Now()

	failed := 0
	for id := range report.Executed {
		if report.Failed(id) {
			failed++
		}
	}
	span.SetAttributes(
		attribute.Int("plan.executed", len(report.Executed)),
		attribute.Int("plan.failed", failed),
		attribute.Int("plan.skipped", len(report.Skipped)),
	)
	if failed > 0 || len(report.Skipped) > 0 {
		span.SetStatus(codes.Error, "plan degraded")
	}

	c.logger.Info("plan executed",
		slog.String("plan_id", plan.ID),
		slog.Int("executed", len(report.Executed)),
		slog.Int("failed", failed),
		slog.Int("skipped", len(report.Skipped)),
		slog.Duration("elapsed", report.CompletedAt.Sub(report.StartedAt)))
	c.publish(ctx, &domain.LifecycleEvent{
		Type:    domain.EventPlanCompleted,
		PlanID:  plan.ID,
		Message: fmt.Sprintf("executed=%d failed=%d skipped=%d", len(report.Executed), failed, len(report.Skipped)),
	})

	return report, nil
}

// runLayer dispatches ready concurrently and waits until every intent has
// reported or the plan deadline passes. Intents still pending at the
// deadline are recorded as skipped and their late results are discarded.
func (c *Coordinator) runLayer(
	ctx, planCtx context.Context,
	planID string,
	ready []task,
	trip *domain.TripRequest,
	report *domain.ExecutionReport,
) {
	if len(ready) == 0 {
		return
	}

	// Buffered so goroutines finishing after the deadline never block.
	results := make(chan outcome, len(ready))
	pending := make(map[string]struct{}, len(ready))

	for _, t := range ready {
		t := t
		pending[t.intent.ID] = struct{}{}
		inputs := dependencyInputs(report, t.intent)

		go func() {
			results <- outcome{
				id:     t.intent.ID,
				result: c.dispatch(ctx, planCtx, planID, t.intent, t.provider, trip, inputs),
			}
		}()
	}

	record := func(o outcome) {
		delete(pending, o.id)
		if o.result == nil {
			return
		}
		report.Executed[o.id] = o.result
	}

wait:
	for len(pending) > 0 {
		select {
		case o := <-results:
			record(o)
		case <-planCtx.Done():
			// Results that already arrived still count.
			for drained := false; !drained; {
				select {
				case o := <-results:
					record(o)
				default:
					drained = true
				}
			}
			break wait
		}
	}

	// Unresolved intents were still pending at the deadline or never got
	// a slot before it.
	for _, t := range ready {
		if !report.Resolved(t.intent.ID) {
			c.recordSkip(ctx, report, &domain.Skip{IntentID: t.intent.ID, Reason: cutoffKind(ctx)})
		}
	}
}

// dispatch waits for an in-flight slot, then runs the attempt loop. It
// returns nil if the plan deadline passed before the intent could be
// dispatched.
func (c *Coordinator) dispatch(
	ctx, planCtx context.Context,
	planID string,
	in domain.InvocationIntent,
	p ports.Provider,
	trip *domain.TripRequest,
	inputs map[string]json.RawMessage,
) *domain.ExecutionResult {
	caps := ports.CapabilitiesOf(p)

	if c.slots != nil {
		if err := c.slots.Acquire(planCtx, 1); err != nil {
			return nil
		}
		defer c.slots.Release(1)
	}

	return c.attempt(ctx, planCtx, planID, in, p, caps, trip, inputs)
}

// flight returns the queue serializing calls to a single-flight provider.
func (c *Coordinator) flight(provider string) chan struct{} {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()

	ch, ok := c.flights[provider]
	if !ok {
		ch = make(chan struct{}, 1)
		c.flights[provider] = ch
	}
	return ch
}

// notFound records an intent whose provider is not registered. No request
// envelope reaches a provider, so the result has zero attempts.
func (c *Coordinator) notFound(in domain.InvocationIntent, trip *domain.TripRequest, err error) *domain.ExecutionResult {
	now := time.Now()
	req := c.newRequest(in, trip, nil)
	derr := domain.ErrProviderNotFound(err.Error()).WithCause(err)
	return &domain.ExecutionResult{
		IntentID:     in.ID,
		Response:     req.Fail(derr, nil),
		DispatchedAt: now,
		CompletedAt:  now,
	}
}

func (c *Coordinator) newRequest(in domain.InvocationIntent, trip *domain.TripRequest, inputs map[string]json.RawMessage) *domain.Request {
	return &domain.Request{
		Source:        Source,
		Target:        in.Provider,
		Operation:     in.Operation,
		Parameters:    in.Parameters,
		CorrelationID: uuid.NewString(),
		CreatedAt:     time.Now(),
		Trip:          trip,
		Inputs:        inputs,
	}
}

// dependencySkip returns a dependency_failed skip when any dependency of in
// failed or was skipped.
func dependencySkip(report *domain.ExecutionReport, in domain.InvocationIntent) *domain.Skip {
	var failedDeps []string
	roots := make(map[string]struct{})
	for _, dep := range in.DependsOn {
		if !report.Failed(dep) {
			continue
		}
		failedDeps = append(failedDeps, dep)
		if s, ok := report.Skipped[dep]; ok && len(s.Root) > 0 {
			for _, r := range s.Root {
				roots[r] = struct{}{}
			}
			continue
		}
		roots[dep] = struct{}{}
	}
	if len(failedDeps) == 0 {
		return nil
	}
	sort.Strings(failedDeps)
	return &domain.Skip{
		IntentID:           in.ID,
		Reason:             domain.KindDependencyFailed,
		FailedDependencies: failedDeps,
		Root:               sortedKeys(roots),
	}
}

// dependencyInputs collects the success payloads of the dependencies of in.
func dependencyInputs(report *domain.ExecutionReport, in domain.InvocationIntent) map[string]json.RawMessage {
	if len(in.DependsOn) == 0 {
		return nil
	}
	inputs := make(map[string]json.RawMessage, len(in.DependsOn))
	for _, dep := range in.DependsOn {
		if res, ok := report.Executed[dep]; ok && res.Succeeded() {
			inputs[dep] = res.Response.Payload
		}
	}
	return inputs
}

func (c *Coordinator) skipAll(ctx context.Context, report *domain.ExecutionReport, ids []string, reason domain.ErrorKind) {
	for _, id := range ids {
		if report.Resolved(id) {
			continue
		}
		c.recordSkip(ctx, report, &domain.Skip{IntentID: id, Reason: reason})
	}
}

func (c *Coordinator) recordSkip(ctx context.Context, report *domain.ExecutionReport, skip *domain.Skip) {
	report.Skipped[skip.IntentID] = skip
	c.logger.Warn("intent skipped",
		slog.String("plan_id", report.PlanID),
		slog.String("intent_id", skip.IntentID),
		slog.String("reason", string(skip.Reason)),
		slog.Any("failed_dependencies", skip.FailedDependencies))
	c.publish(ctx, &domain.LifecycleEvent{
		Type:      domain.EventIntentSkipped,
		PlanID:    report.PlanID,
		IntentID:  skip.IntentID,
		ErrorKind: skip.Reason,
	})
}

// cutoffKind distinguishes a caller cancellation from the plan deadline.
func cutoffKind(ctx context.Context) domain.ErrorKind {
	if ctx.Err() != nil {
		return domain.KindCanceled
	}
	return domain.KindPlanDeadlineExceeded
}

// publish sends a lifecycle event. Publishing is best effort.
func (c *Coordinator) publish(ctx context.Context, event *domain.LifecycleEvent) {
	if c.events == nil {
		return
	}
	event.ID = uuid.NewString()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := c.events.Publish(context.WithoutCancel(ctx), event); err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("failed to publish lifecycle event",
			slog.String("type", string(event.Type)),
			slog.String("error", err.Error()))
	}
}

func sortedKeys(m map[string]struct{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
