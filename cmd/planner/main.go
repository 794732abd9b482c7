package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/polyglot-trip-planner/internal/pkg/config"
	plans "github.com/tjfontaine/polyglot-trip-planner/internal/planner"
	"github.com/tjfontaine/polyglot-trip-planner/internal/server"
	"github.com/tjfontaine/polyglot-trip-planner/internal/telemetry"
	"github.com/tjfontaine/polyglot-trip-planner/pkg/planner"
)

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always happens.
func run() int {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	requestPath := flag.String("request", "", "plan a single trip request from this JSON file and print the trip plan")
	planPath := flag.String("plan", "", "invocation plan file (YAML or JSON) used with -request")
	flag.Parse()

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	// One-shot mode prints the plan on stdout, so logs and spans go to stderr.
	out := io.Writer(os.Stdout)
	if *requestPath != "" {
		out = os.Stderr
	}

	// Initialize structured logger
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		log.Printf("Invalid log level %q: %v", cfg.Log.Level, err)
		return 1
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize OpenTelemetry
	shutdownTracer, err := telemetry.Init(cfg.Telemetry, out, logger)
	if err != nil {
		log.Printf("Failed to initialize tracer: %v", err)
		return 1
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	svc, err := planner.New(ctx,
		planner.WithConfig(cfg),
		planner.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create planner", slog.String("error", err.Error()))
		return 1
	}

	if *requestPath != "" {
		code := planOnce(ctx, svc, *requestPath, *planPath)
		if !shutdown(svc, logger) && code == 0 {
			code = 1
		}
		return code
	}

	if err := svc.Start(); err != nil {
		logger.Error("failed to start planner", slog.String("error", err.Error()))
		shutdown(svc, logger)
		return 1
	}

	// Wait for shutdown signal or a server failure
	code := 0
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received, stopping planner...")
	case err := <-svc.Done():
		if err != nil {
			logger.Error("server stopped", slog.String("error", err.Error()))
			code = 1
		}
	}

	if !shutdown(svc, logger) {
		return 1
	}
	logger.Info("Planner shutdown complete")
	return code
}

// shutdown stops the service within a grace period.
func shutdown(svc *planner.Service, logger *slog.Logger) bool {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := svc.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		return false
	}
	return true
}

// planOnce plans the request in requestPath and prints the trip plan. It
// returns the process exit code.
func planOnce(ctx context.Context, svc *planner.Service, requestPath, planPath string) int {
	data, err := os.ReadFile(requestPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read request: %v\n", err)
		return 2
	}
	var body server.PlanRequest
	if err := json.Unmarshal(data, &body); err != nil {
		fmt.Fprintf(os.Stderr, "parse request %s: %v\n", requestPath, err)
		return 2
	}

	intents := body.Intents
	if planPath != "" {
		if intents, err = plans.LoadIntents(planPath); err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return 2
		}
	}

	trip, err := svc.Plan(ctx, body.TripRequest, intents)
	if err != nil {
		fmt.Fprintf(os.Stderr, "plan failed: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(trip); err != nil {
		fmt.Fprintf(os.Stderr, "write plan: %v\n", err)
		return 1
	}
	return 0
}
