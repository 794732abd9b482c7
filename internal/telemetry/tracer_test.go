package telemetry

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"

	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
)

func TestInit_Disabled(t *testing.T) {
	shutdown, err := Init(config.TelemetryConfig{Enabled: false}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestInit_ExportsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Init(config.TelemetryConfig{Enabled: true, ServiceName: "trip-planner-test"}, &buf,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}

	_, span := otel.Tracer("test").Start(context.Background(), "plan")
	span.End()

	// Shutdown flushes the batcher.
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown() error = %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, `"Name":"plan"`) {
		t.Errorf("exported spans do not contain the plan span: %s", out)
	}
	if !strings.Contains(out, "trip-planner-test") {
		t.Errorf("exported spans do not carry the service name: %s", out)
	}
}
