package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
)

// attempt invokes the provider until it succeeds, fails with a
// non-retryable error or runs out of retries. Backoff waits end early when
// the plan deadline passes; the last failure is then recorded. It returns
// nil if the deadline passed before the first call could start.
func (c *Coordinator) attempt(
	ctx, planCtx context.Context,
	planID string,
	in domain.InvocationIntent,
	p ports.Provider,
	caps ports.Capabilities,
	trip *domain.TripRequest,
	inputs map[string]json.RawMessage,
) *domain.ExecutionResult {
	// A single-flight token is taken per call and handed back by the
	// invoking goroutine, so an abandoned call still blocks the next one.
	var flight chan struct{}
	if caps.SingleFlight {
		flight = c.flight(in.Provider)
		if !acquire(planCtx, flight) {
			return nil
		}
	}

	ctx, span := c.tracer.Start(ctx, "coordinator.intent",
		trace.WithAttributes(
			attribute.String("plan.id", planID),
			attribute.String("intent.id", in.ID),
			attribute.String("intent.provider", in.Provider),
			attribute.String("intent.operation", in.Operation),
		))
	defer span.End()

	result := &domain.ExecutionResult{
		IntentID:     in.ID,
		DispatchedAt: time.Now(),
	}

	for attempt := 0; ; attempt++ {
		if attempt > 0 && flight != nil && !acquire(planCtx, flight) {
			break
		}

		req := c.newRequest(in, trip, inputs)
		result.Attempts = attempt + 1

		c.publish(ctx, &domain.LifecycleEvent{
			Type:     domain.EventIntentDispatched,
			PlanID:   planID,
			IntentID: in.ID,
			Provider: in.Provider,
			Attempt:  result.Attempts,
		})

		resp := c.call(ctx, p, req, flight)
		result.Response = resp
		if resp.Succeeded() {
			break
		}

		if attempt >= c.maxRetries || !retryable(resp.Error, caps) {
			break
		}

		backoff := backoffFor(c.initialBackoff, attempt)
		c.logger.Warn("retrying provider call",
			slog.String("plan_id", planID),
			slog.String("intent_id", in.ID),
			slog.String("provider", in.Provider),
			slog.Int("attempt", result.Attempts),
			slog.String("error_kind", string(resp.Error.Kind)),
			slog.Duration("backoff", backoff))
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("attempt", result.Attempts),
			attribute.String("error.kind", string(resp.Error.Kind)),
		))
		c.publish(ctx, &domain.LifecycleEvent{
			Type:      domain.EventIntentRetried,
			PlanID:    planID,
			IntentID:  in.ID,
			Provider:  in.Provider,
			Attempt:   result.Attempts,
			ErrorKind: resp.Error.Kind,
			Message:   resp.Error.Message,
		})

		if err := c.sleep(planCtx, backoff); err != nil {
			break
		}
	}

	result.CompletedAt = time.Now()
	result.ElapsedMS = result.CompletedAt.Sub(result.DispatchedAt).Milliseconds()

	event := &domain.LifecycleEvent{
		Type:     domain.EventIntentCompleted,
		PlanID:   planID,
		IntentID: in.ID,
		Provider: in.Provider,
		Attempt:  result.Attempts,
	}
	span.SetAttributes(attribute.Int("intent.attempts", result.Attempts))
	if result.Succeeded() {
		c.logger.Debug("intent succeeded",
			slog.String("plan_id", planID),
			slog.String("intent_id", in.ID),
			slog.Int("attempts", result.Attempts),
			slog.Int64("elapsed_ms", result.ElapsedMS))
	} else {
		event.ErrorKind = result.Response.Error.Kind
		event.Message = result.Response.Error.Message
		span.SetStatus(codes.Error, result.Response.Error.Error())
		c.logger.Warn("intent failed",
			slog.String("plan_id", planID),
			slog.String("intent_id", in.ID),
			slog.String("provider", in.Provider),
			slog.Int("attempts", result.Attempts),
			slog.String("error_kind", string(result.Response.Error.Kind)),
			slog.String("error", result.Response.Error.Message))
	}
	c.publish(ctx, event)

	return result
}

// acquire takes a single-flight token, giving up when ctx is done.
func acquire(ctx context.Context, flight chan struct{}) bool {
	select {
	case flight <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// call performs one invocation under the per-call timeout and always
// returns a response matching req. A provider that ignores its context is
// abandoned when the timeout fires and a timeout failure is synthesized.
// A non-nil flight token is released only once Invoke has returned.
func (c *Coordinator) call(ctx context.Context, p ports.Provider, req *domain.Request, flight chan struct{}) *domain.Response {
	callCtx := ctx
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	type reply struct {
		resp *domain.Response
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		if flight != nil {
			defer func() { <-flight }()
		}
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: domain.ErrProvider(fmt.Sprintf("provider panicked: %v", r))}
			}
		}()
		resp, err := p.Invoke(callCtx, req)
		done <- reply{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if callCtx.Err() != nil && errors.Is(r.err, callCtx.Err()) {
				return req.Fail(c.contextFailure(ctx, req), nil)
			}
			return req.Fail(toError(r.err), nil)
		}
		return normalize(req, r.resp)
	case <-callCtx.Done():
		return req.Fail(c.contextFailure(ctx, req), nil)
	}
}

func (c *Coordinator) contextFailure(ctx context.Context, req *domain.Request) *domain.Error {
	if ctx.Err() != nil {
		return domain.NewError(domain.KindCanceled, "plan canceled").WithCause(ctx.Err())
	}
	return domain.ErrTimeout(fmt.Sprintf("%s.%s exceeded %s", req.Target, req.Operation, c.callTimeout))
}

// normalize enforces the envelope contract on a provider response: it is
// non-nil, carries the request's correlation id, and has an error exactly
// when it failed.
func normalize(req *domain.Request, resp *domain.Response) *domain.Response {
	if resp == nil {
		return req.Fail(domain.ErrProvider("provider returned no response"), nil)
	}
	if resp.CorrelationID != "" && resp.CorrelationID != req.CorrelationID {
		return req.Fail(domain.ErrProvider(fmt.Sprintf(
			"correlation id mismatch: sent %s, got %s", req.CorrelationID, resp.CorrelationID)), nil)
	}

	out := *resp
	out.CorrelationID = req.CorrelationID
	if out.Source == "" {
		out.Source = req.Target
	}
	if out.Target == "" {
		out.Target = req.Source
	}
	if out.CompletedAt.IsZero() {
		out.CompletedAt = time.Now()
	}
	switch out.Status {
	case domain.StatusSuccess:
		out.Error = nil
	case domain.StatusFailure:
		if out.Error == nil {
			out.Error = domain.ErrProvider("failure response without error")
		}
	default:
		return req.Fail(domain.ErrProvider(fmt.Sprintf("unknown response status %q", out.Status)), out.Payload)
	}
	return &out
}

// toError converts a returned error to the envelope error, keeping the kind
// and retryable flag of *domain.Error values.
func toError(err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		cp := *de
		return &cp
	}
	return domain.NewError(domain.KindOf(err), err.Error()).WithCause(err)
}

// retryable decides whether a failed attempt is worth repeating.
func retryable(err *domain.Error, caps ports.Capabilities) bool {
	if err == nil {
		return false
	}
	switch err.Kind {
	case domain.KindProviderNotFound, domain.KindCanceled, domain.KindUnknownOperation:
		return false
	case domain.KindTimeout:
		return caps.RetryOnTimeout || err.Retryable
	case domain.KindTransientIO:
		return true
	}
	return err.Retryable
}
