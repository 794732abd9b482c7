package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/polyglot-trip-planner/internal/core/domain"
	"github.com/tjfontaine/polyglot-trip-planner/internal/core/ports"
	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	"github.com/tjfontaine/polyglot-trip-planner/internal/provider"
)

type funcProvider struct {
	name  string
	caps  ports.Capabilities
	fn    func(ctx context.Context, req *domain.Request) (*domain.Response, error)
	calls atomic.Int32
}

func (p *funcProvider) Name() string                     { return p.name }
func (p *funcProvider) Capabilities() ports.Capabilities { return p.caps }

func (p *funcProvider) Invoke(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	p.calls.Add(1)
	if p.fn == nil {
		return req.Reply(json.RawMessage(`{"provider":"` + p.name + `"}`)), nil
	}
	return p.fn(ctx, req)
}

func ok(name string) *funcProvider { return &funcProvider{name: name} }

func failing(name string, err error) *funcProvider {
	return &funcProvider{name: name, fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
		return nil, err
	}}
}

func blocking(name string) *funcProvider {
	return &funcProvider{name: name, fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
}

// gauge tracks the peak number of concurrent callers.
type gauge struct {
	cur, peak atomic.Int32
}

func (g *gauge) enter() {
	n := g.cur.Add(1)
	for {
		m := g.peak.Load()
		if n <= m || g.peak.CompareAndSwap(m, n) {
			return
		}
	}
}

func (g *gauge) leave() { g.cur.Add(-1) }

func (g *gauge) provider(name string, hold time.Duration) *funcProvider {
	return &funcProvider{name: name, fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
		g.enter()
		defer g.leave()
		time.Sleep(hold)
		return req.Reply(json.RawMessage(`{}`)), nil
	}}
}

type recordingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.LifecycleEvent
}

func (p *recordingPublisher) Publish(ctx context.Context, e *domain.LifecycleEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func newCoordinator(t *testing.T, providers []ports.Provider, opts ...Option) *Coordinator {
	t.Helper()
	reg := provider.NewRegistry()
	for _, p := range providers {
		reg.MustRegister(p.Name(), p)
	}
	reg.Freeze()

	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSleep((&recordingSleep{}).sleep),
	}
	return New(reg.Resolve, append(base, opts...)...)
}

func intent(id string, deps ...string) domain.InvocationIntent {
	return domain.InvocationIntent{ID: id, Provider: id, Operation: "run", DependsOn: deps}
}

func TestExecute_Completeness(t *testing.T) {
	plan := &domain.Plan{ID: "trip-1", Intents: []domain.InvocationIntent{
		intent("weather"), intent("flights"), intent("hotels"), intent("itinerary"),
		intent("transport"), intent("language"), intent("visa"),
		intent("budget", "flights", "hotels", "itinerary"),
	}}
	var providers []ports.Provider
	for _, in := range plan.Intents {
		providers = append(providers, ok(in.ID))
	}

	report, err := newCoordinator(t, providers).Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Len() != len(plan.Intents) {
		t.Errorf("report has %d entries, want %d", report.Len(), len(plan.Intents))
	}
	for _, in := range plan.Intents {
		res, found := report.Executed[in.ID]
		if !found {
			t.Errorf("intent %s missing from executed", in.ID)
			continue
		}
		if !res.Succeeded() || res.Attempts != 1 {
			t.Errorf("intent %s: succeeded=%v attempts=%d", in.ID, res.Succeeded(), res.Attempts)
		}
		if res.Response.Source != in.ID || res.Response.Target != Source {
			t.Errorf("intent %s: response %s -> %s", in.ID, res.Response.Source, res.Response.Target)
		}
	}
	if len(report.Layers) != 2 || len(report.Layers[1]) != 1 || report.Layers[1][0] != "budget" {
		t.Errorf("Layers = %v", report.Layers)
	}
}

func TestExecute_LayerOrdering(t *testing.T) {
	plan := &domain.Plan{ID: "order", Intents: []domain.InvocationIntent{
		intent("a"), intent("b", "a"), intent("c", "b"), intent("d", "a", "c"), intent("e"),
	}}
	slow := func(name string) *funcProvider {
		return &funcProvider{name: name, fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
			time.Sleep(5 * time.Millisecond)
			return req.Reply(json.RawMessage(`{}`)), nil
		}}
	}
	providers := []ports.Provider{slow("a"), slow("b"), slow("c"), slow("d"), slow("e")}

	report, err := newCoordinator(t, providers).Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	for _, in := range plan.Intents {
		for _, dep := range in.DependsOn {
			b, a := report.Executed[in.ID], report.Executed[dep]
			if b.DispatchedAt.Before(a.CompletedAt) {
				t.Errorf("%s dispatched at %v before %s completed at %v", in.ID, b.DispatchedAt, dep, a.CompletedAt)
			}
		}
	}
}

func TestExecute_SkipPropagation(t *testing.T) {
	plan := &domain.Plan{ID: "skip", Intents: []domain.InvocationIntent{
		intent("a"), intent("b", "a"), intent("c", "b"), intent("d"),
	}}
	b, c := ok("b"), ok("c")
	providers := []ports.Provider{failing("a", domain.ErrProvider("no seats")), b, c, ok("d")}

	report, err := newCoordinator(t, providers).Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if report.Executed["a"].Succeeded() {
		t.Fatal("a should have failed")
	}
	if !report.Executed["d"].Succeeded() {
		t.Error("independent branch d should succeed")
	}
	if b.calls.Load() != 0 || c.calls.Load() != 0 {
		t.Errorf("skipped intents were dispatched: b=%d c=%d", b.calls.Load(), c.calls.Load())
	}

	skipC, found := report.Skipped["c"]
	if !found {
		t.Fatal("c should be skipped")
	}
	if skipC.Reason != domain.KindDependencyFailed {
		t.Errorf("c reason = %s", skipC.Reason)
	}
	if len(skipC.FailedDependencies) != 1 || skipC.FailedDependencies[0] != "b" {
		t.Errorf("c failed dependencies = %v, want [b]", skipC.FailedDependencies)
	}
	if len(skipC.Root) != 1 || skipC.Root[0] != "a" {
		t.Errorf("c root = %v, want [a]", skipC.Root)
	}
	if report.Len() != 4 {
		t.Errorf("report has %d entries, want 4", report.Len())
	}
}

func TestExecute_CycleRejectedBeforeDispatch(t *testing.T) {
	plan := &domain.Plan{ID: "cycle", Intents: []domain.InvocationIntent{
		intent("solo"), intent("a", "b"), intent("b", "a"),
	}}
	solo := ok("solo")

	_, err := newCoordinator(t, []ports.Provider{solo, ok("a"), ok("b")}).Execute(context.Background(), plan, nil)

	var cycle *domain.CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("Execute() error = %v, want CycleError", err)
	}
	if !domain.IsKind(err, domain.KindPlanCycleDetected) {
		t.Errorf("kind = %s", domain.KindOf(err))
	}
	if solo.calls.Load() != 0 {
		t.Error("no intent may be dispatched for a cyclic plan")
	}
}

func TestExecute_Retries(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		err          *domain.Error
		wantAttempts int
		wantSuccess  bool
		wantWaits    []time.Duration
	}{
		{
			name:         "transient then success",
			failures:     2,
			err:          domain.ErrTransientIO("connection reset"),
			wantAttempts: 3,
			wantSuccess:  true,
			wantWaits:    []time.Duration{time.Second, 2 * time.Second},
		},
		{
			name:         "transient exhausted",
			failures:     100,
			err:          domain.ErrTransientIO("connection reset"),
			wantAttempts: 4,
			wantWaits:    []time.Duration{time.Second, 2 * time.Second, 4 * time.Second},
		},
		{
			name:         "provider flagged retryable",
			failures:     1,
			err:          domain.ErrProvider("rate limited").AsRetryable(),
			wantAttempts: 2,
			wantSuccess:  true,
			wantWaits:    []time.Duration{time.Second},
		},
		{
			name:         "non-retryable",
			failures:     100,
			err:          domain.ErrProvider("bad route"),
			wantAttempts: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n atomic.Int32
			p := &funcProvider{name: "flights", fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
				if int(n.Add(1)) <= tt.failures {
					return nil, tt.err
				}
				return req.Reply(json.RawMessage(`{}`)), nil
			}}
			sleeper := &recordingSleep{}
			coord := newCoordinator(t, []ports.Provider{p}, WithSleep(sleeper.sleep))

			report, err := coord.Execute(context.Background(), &domain.Plan{
				ID: "retry", Intents: []domain.InvocationIntent{intent("flights")},
			}, nil)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			res := report.Executed["flights"]
			if res.Attempts != tt.wantAttempts {
				t.Errorf("Attempts = %d, want %d", res.Attempts, tt.wantAttempts)
			}
			if res.Succeeded() != tt.wantSuccess {
				t.Errorf("Succeeded = %v, want %v", res.Succeeded(), tt.wantSuccess)
			}
			if !tt.wantSuccess && res.Response.Error.Kind != tt.err.Kind {
				t.Errorf("error kind = %s, want %s", res.Response.Error.Kind, tt.err.Kind)
			}
			if len(sleeper.waits) != len(tt.wantWaits) {
				t.Fatalf("waits = %v, want %v", sleeper.waits, tt.wantWaits)
			}
			for i := range tt.wantWaits {
				if sleeper.waits[i] != tt.wantWaits[i] {
					t.Errorf("wait[%d] = %v, want %v", i, sleeper.waits[i], tt.wantWaits[i])
				}
			}
		})
	}
}

func TestWithConfig_MaxRetries(t *testing.T) {
	tests := []struct {
		name         string
		maxRetries   int
		wantAttempts int
	}{
		{name: "zero disables retries", maxRetries: 0, wantAttempts: 1},
		{name: "explicit count", maxRetries: 1, wantAttempts: 2},
		{name: "negative keeps default", maxRetries: -1, wantAttempts: DefaultMaxRetries + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := failing("flights", domain.ErrTransientIO("connection reset"))
			coord := newCoordinator(t, []ports.Provider{p},
				WithConfig(config.CoordinatorConfig{MaxRetries: tt.maxRetries}))

			report, err := coord.Execute(context.Background(), &domain.Plan{
				ID: "cfg", Intents: []domain.InvocationIntent{intent("flights")},
			}, nil)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			if got := report.Executed["flights"].Attempts; got != tt.wantAttempts {
				t.Errorf("Attempts = %d, want %d", got, tt.wantAttempts)
			}
			if got := int(p.calls.Load()); got != tt.wantAttempts {
				t.Errorf("calls = %d, want %d", got, tt.wantAttempts)
			}
		})
	}
}

func TestBackoffFor(t *testing.T) {
	ceiling := time.Second << maxBackoffShift
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{attempt: 0, want: time.Second},
		{attempt: 1, want: 2 * time.Second},
		{attempt: 3, want: 8 * time.Second},
		{attempt: maxBackoffShift, want: ceiling},
		{attempt: 40, want: ceiling},
		{attempt: 100, want: ceiling},
	}

	for _, tt := range tests {
		if got := backoffFor(time.Second, tt.attempt); got != tt.want {
			t.Errorf("backoffFor(1s, %d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExecute_Timeout(t *testing.T) {
	tests := []struct {
		name           string
		retryOnTimeout bool
		wantAttempts   int
	}{
		{name: "recorded", retryOnTimeout: false, wantAttempts: 1},
		{name: "retried when declared", retryOnTimeout: true, wantAttempts: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hotels := blocking("hotels")
			hotels.caps.RetryOnTimeout = tt.retryOnTimeout
			coord := newCoordinator(t, []ports.Provider{hotels}, WithCallTimeout(10*time.Millisecond))

			report, err := coord.Execute(context.Background(), &domain.Plan{
				ID: "timeout", Intents: []domain.InvocationIntent{intent("hotels")},
			}, nil)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}

			res := report.Executed["hotels"]
			if res.Response.Error == nil || res.Response.Error.Kind != domain.KindTimeout {
				t.Fatalf("response = %+v, want timeout failure", res.Response)
			}
			if res.Attempts != tt.wantAttempts {
				t.Errorf("Attempts = %d, want %d", res.Attempts, tt.wantAttempts)
			}
			if res.Response.CorrelationID == "" {
				t.Error("synthesized timeout must carry the request correlation id")
			}
		})
	}
}

func TestExecute_TimeoutIgnoringProvider(t *testing.T) {
	stubborn := &funcProvider{name: "visa", fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
		time.Sleep(200 * time.Millisecond)
		return req.Reply(json.RawMessage(`{}`)), nil
	}}
	coord := newCoordinator(t, []ports.Provider{stubborn}, WithCallTimeout(10*time.Millisecond))

	start := time.Now()
	report, err := coord.Execute(context.Background(), &domain.Plan{
		ID: "stubborn", Intents: []domain.InvocationIntent{intent("visa")},
	}, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 150*time.Millisecond {
		t.Errorf("Execute took %v, want the call abandoned at its timeout", elapsed)
	}
	if kind := report.Executed["visa"].Response.Error.Kind; kind != domain.KindTimeout {
		t.Errorf("kind = %s, want timeout", kind)
	}
}

func TestExecute_ProviderNotFound(t *testing.T) {
	plan := &domain.Plan{ID: "missing", Intents: []domain.InvocationIntent{
		{ID: "weather", Provider: "forecast-o-matic", Operation: "forecast"},
		intent("budget", "weather"),
	}}
	sleeper := &recordingSleep{}
	report, err := newCoordinator(t, []ports.Provider{ok("budget")}, WithSleep(sleeper.sleep)).
		Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	res, found := report.Executed["weather"]
	if !found {
		t.Fatal("unresolvable intent must be recorded as executed")
	}
	if res.Response.Error.Kind != domain.KindProviderNotFound {
		t.Errorf("kind = %s, want provider_not_found", res.Response.Error.Kind)
	}
	if res.Attempts != 0 || len(sleeper.waits) != 0 {
		t.Errorf("provider_not_found must not be retried: attempts=%d waits=%v", res.Attempts, sleeper.waits)
	}
	if skip := report.Skipped["budget"]; skip == nil || skip.Reason != domain.KindDependencyFailed {
		t.Errorf("budget skip = %+v, want dependency_failed", skip)
	}
}

func TestExecute_PlanDeadline(t *testing.T) {
	plan := &domain.Plan{ID: "deadline", Intents: []domain.InvocationIntent{
		intent("quick"), intent("slow"), intent("after", "slow"),
	}}
	slow := &funcProvider{name: "slow", fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
		time.Sleep(300 * time.Millisecond)
		return req.Reply(json.RawMessage(`{}`)), nil
	}}
	after := ok("after")
	coord := newCoordinator(t, []ports.Provider{ok("quick"), slow, after},
		WithPlanDeadline(30*time.Millisecond))

	start := time.Now()
	report, err := coord.Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > 250*time.Millisecond {
		t.Errorf("Execute took %v, want return at the plan deadline", elapsed)
	}

	if !report.Executed["quick"].Succeeded() {
		t.Error("quick should complete before the deadline")
	}
	for _, id := range []string{"slow", "after"} {
		skip, found := report.Skipped[id]
		if !found {
			t.Errorf("%s should be skipped", id)
			continue
		}
		if skip.Reason != domain.KindPlanDeadlineExceeded {
			t.Errorf("%s reason = %s, want plan_deadline_exceeded", id, skip.Reason)
		}
	}
	if after.calls.Load() != 0 {
		t.Error("no layer may dispatch after the deadline")
	}
	if report.Len() != 3 {
		t.Errorf("report has %d entries, want 3", report.Len())
	}
}

func TestExecute_SingleFlight(t *testing.T) {
	g := &gauge{}
	hotels := g.provider("hotels", 10*time.Millisecond)
	hotels.caps.SingleFlight = true

	var intents []domain.InvocationIntent
	for _, id := range []string{"h1", "h2", "h3", "h4"} {
		intents = append(intents, domain.InvocationIntent{ID: id, Provider: "hotels", Operation: "search"})
	}

	report, err := newCoordinator(t, []ports.Provider{hotels}).
		Execute(context.Background(), &domain.Plan{ID: "sf", Intents: intents}, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(report.Executed) != 4 {
		t.Fatalf("executed = %d, want 4 (queued, not rejected)", len(report.Executed))
	}
	if peak := g.peak.Load(); peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
}

func TestExecute_SingleFlightAbandonedCall(t *testing.T) {
	g := &gauge{}
	var finished sync.WaitGroup
	finished.Add(2)
	museum := &funcProvider{
		name: "museum",
		caps: ports.Capabilities{SingleFlight: true},
		fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
			defer finished.Done()
			g.enter()
			defer g.leave()
			time.Sleep(100 * time.Millisecond)
			return req.Reply(json.RawMessage(`{}`)), nil
		},
	}

	plan := &domain.Plan{ID: "sf-timeout", Intents: []domain.InvocationIntent{
		{ID: "m1", Provider: "museum", Operation: "tickets"},
		{ID: "m2", Provider: "museum", Operation: "tickets"},
	}}
	report, err := newCoordinator(t, []ports.Provider{museum}, WithCallTimeout(20*time.Millisecond)).
		Execute(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	for _, id := range []string{"m1", "m2"} {
		res, ok := report.Executed[id]
		if !ok {
			t.Fatalf("%s not executed", id)
		}
		if kind := res.Response.Error.Kind; kind != domain.KindTimeout {
			t.Errorf("%s kind = %s, want timeout", id, kind)
		}
	}

	finished.Wait()
	if peak := g.peak.Load(); peak != 1 {
		t.Errorf("peak concurrency = %d, want 1 after abandoned calls", peak)
	}
}

func TestExecute_MaxInFlight(t *testing.T) {
	g := &gauge{}
	var providers []ports.Provider
	var intents []domain.InvocationIntent
	for _, id := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		providers = append(providers, g.provider(id, 10*time.Millisecond))
		intents = append(intents, intent(id))
	}

	report, err := newCoordinator(t, providers, WithMaxInFlight(2)).
		Execute(context.Background(), &domain.Plan{ID: "cap", Intents: intents}, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(report.Executed) != 6 {
		t.Fatalf("executed = %d, want 6", len(report.Executed))
	}
	if peak := g.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestExecute_DependencyInputs(t *testing.T) {
	trip := &domain.TripRequest{Origin: "NYC", Destination: "Paris"}
	var seen *domain.Request
	budget := &funcProvider{name: "budget", fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
		seen = req
		return req.Reply(json.RawMessage(`{}`)), nil
	}}
	flights := &funcProvider{name: "flights", fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
		return req.Reply(json.RawMessage(`{"price":650}`)), nil
	}}

	_, err := newCoordinator(t, []ports.Provider{flights, budget}).Execute(context.Background(), &domain.Plan{
		ID: "inputs", Intents: []domain.InvocationIntent{intent("flights"), intent("budget", "flights")},
	}, trip)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if seen == nil {
		t.Fatal("budget was not invoked")
	}
	if string(seen.Inputs["flights"]) != `{"price":650}` {
		t.Errorf("Inputs[flights] = %s", seen.Inputs["flights"])
	}
	if seen.Trip != trip {
		t.Error("trip request not attached to envelope")
	}
	if seen.Source != Source || seen.Target != "budget" || seen.CorrelationID == "" {
		t.Errorf("envelope = %+v", seen)
	}
}

func TestExecute_ResponseNormalization(t *testing.T) {
	tests := []struct {
		name     string
		fn       func(ctx context.Context, req *domain.Request) (*domain.Response, error)
		wantKind domain.ErrorKind
	}{
		{
			name: "nil response",
			fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
				return nil, nil
			},
			wantKind: domain.KindProviderError,
		},
		{
			name: "failure without error",
			fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
				return &domain.Response{Status: domain.StatusFailure, CorrelationID: req.CorrelationID}, nil
			},
			wantKind: domain.KindProviderError,
		},
		{
			name: "correlation mismatch",
			fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
				return &domain.Response{Status: domain.StatusSuccess, CorrelationID: "someone-else"}, nil
			},
			wantKind: domain.KindProviderError,
		},
		{
			name: "plain error",
			fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
				return nil, errors.New("boom")
			},
			wantKind: domain.KindProviderError,
		},
		{
			name: "panic",
			fn: func(ctx context.Context, req *domain.Request) (*domain.Response, error) {
				panic("nil map")
			},
			wantKind: domain.KindProviderError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &funcProvider{name: "language", fn: tt.fn}
			report, err := newCoordinator(t, []ports.Provider{p}).Execute(context.Background(), &domain.Plan{
				ID: "norm", Intents: []domain.InvocationIntent{intent("language")},
			}, nil)
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			resp := report.Executed["language"].Response
			if resp.Succeeded() || resp.Error == nil || resp.Error.Kind != tt.wantKind {
				t.Errorf("response = %+v, want %s failure", resp, tt.wantKind)
			}
		})
	}
}

func TestExecute_LifecycleEvents(t *testing.T) {
	pub := &recordingPublisher{}
	coord := newCoordinator(t, []ports.Provider{ok("weather"), failing("flights", domain.ErrProvider("x")), ok("budget")},
		WithEventPublisher(pub))

	_, err := coord.Execute(context.Background(), &domain.Plan{ID: "events", Intents: []domain.InvocationIntent{
		intent("weather"), intent("flights"), intent("budget", "flights"),
	}}, nil)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if len(pub.events) == 0 {
		t.Fatal("no events published")
	}
	if pub.events[0].Type != domain.EventPlanStarted {
		t.Errorf("first event = %s, want plan.started", pub.events[0].Type)
	}
	if last := pub.events[len(pub.events)-1]; last.Type != domain.EventPlanCompleted {
		t.Errorf("last event = %s, want plan.completed", last.Type)
	}

	counts := make(map[domain.LifecycleEventType]int)
	for _, e := range pub.events {
		counts[e.Type]++
		if e.PlanID != "events" || e.ID == "" {
			t.Errorf("event %+v missing plan or id", e)
		}
	}
	if counts[domain.EventIntentCompleted] != 2 {
		t.Errorf("intent.completed = %d, want 2", counts[domain.EventIntentCompleted])
	}
	if counts[domain.EventIntentSkipped] != 1 {
		t.Errorf("intent.skipped = %d, want 1", counts[domain.EventIntentSkipped])
	}
}

func TestExecute_InvalidPlan(t *testing.T) {
	_, err := newCoordinator(t, nil).Execute(context.Background(), &domain.Plan{ID: "empty"}, nil)
	if !domain.IsKind(err, domain.KindInvalidRequest) {
		t.Errorf("Execute(empty) error = %v, want invalid_request", err)
	}
}
