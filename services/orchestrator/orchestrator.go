// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the copy studio service.
//
// This package wires every component of the service: configuration, the
// LLM client, the research and strategy generators, the launch aggregator,
// the stores, HTTP routing and observability.
//
// # Degraded Mode
//
// Without a provider credential the service still starts. Launch, product
// and training-document CRUD work; generation endpoints answer 503.
//
// # Usage
//
//	cfg, err := config.Load(path)
//	if err != nil {
//	    return err
//	}
//	if _, err := cfg.ResolveCredential(); err != nil {
//	    slog.Warn("generation disabled", "error", err)
//	}
//	svc, err := orchestrator.New(ctx, cfg, orchestrator.Options{})
//	if err != nil {
//	    return err
//	}
//	return svc.Run(ctx)
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/AleutianAI/CopyStudio/services/llm"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/catalog"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/config"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/launch"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/middleware"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/observability"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/prompts"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/research"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/routes"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/storage"
	"github.com/AleutianAI/CopyStudio/services/orchestrator/strategy"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service defines the contract for the copy studio service.
//
// # Description
//
// Service abstracts the lifecycle so the CLI and tests drive the same
// wiring.
//
// # Thread Safety
//
// Run blocks and should only be called once per instance. Close is safe to
// call more than once.
type Service interface {
	// Run serves HTTP until ctx is cancelled, then shuts down gracefully
	// and releases resources.
	Run(ctx context.Context) error

	// Router returns the configured Gin engine, for tests.
	Router() *gin.Engine

	// GenerationEnabled reports whether a provider client is wired.
	GenerationEnabled() bool

	// Close releases the launch database and flushes traces.
	Close() error
}

// Options carries optional dependencies that override the configuration.
type Options struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Client replaces the provider client built from the configuration.
	Client llm.LLMClient

	// Registry receives the service metrics. Defaults to a fresh registry
	// with Go and process collectors.
	Registry *prometheus.Registry
}

// shutdownTimeout bounds in-flight requests after ctx is cancelled.
const shutdownTimeout = 15 * time.Second

type service struct {
	cfg           *config.Config
	logger        *slog.Logger
	router        *gin.Engine
	launches      *storage.LaunchStore
	training      *storage.TrainingStore
	generation    bool
	tracerCleanup func(context.Context)
	closeOnce     sync.Once
	closeErr      error
}

// New builds the service from cfg.
//
// # Description
//
// Opens the stores, builds the LLM client when a credential was resolved
// (or opts.Client is set) and registers the routes. Tracing is enabled
// unless the resolved exporter is "none".
//
// # Outputs
//
//   - Service: Ready to Run.
//   - error: Catalog, store or client construction failure.
func New(ctx context.Context, cfg *config.Config, opts Options) (Service, error) {
	if cfg == nil {
		return nil, errors.New("orchestrator: config is required")
	}
	s := &service{cfg: cfg, logger: opts.Logger}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	if cfg.Tracing.ResolvedExporter() != config.TraceExporterNone {
		cleanup, err := initTracer(ctx, cfg.Tracing)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}
		s.tracerCleanup = cleanup
	}

	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	metrics := observability.NewGenerationMetrics(reg)

	cat, err := catalog.Load(cfg.Storage.CatalogFile)
	if err != nil {
		s.cleanupTracer()
		return nil, err
	}
	composer, err := prompts.New(cat.Brand)
	if err != nil {
		s.cleanupTracer()
		return nil, err
	}

	dbCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	dbCfg.Logger = s.logger.With("component", "badger")
	s.launches, err = storage.OpenLaunchStore(dbCfg)
	if err != nil {
		s.cleanupTracer()
		return nil, fmt.Errorf("failed to open launch store: %w", err)
	}
	s.training = storage.NewTrainingStore(cfg.Storage.TrainingDir, s.logger)
	products := storage.NewProductStore(cfg.ProductsFile())

	client, err := s.buildClient(ctx, opts.Client)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	deps := routes.Dependencies{
		Products:    products,
		Training:    s.training,
		AccessToken: cfg.Server.AccessToken,
		Gatherer:    reg,
	}
	aggCfg := launch.Config{Store: s.launches, Metrics: metrics, Logger: s.logger}

	if client != nil {
		provider := &research.Provider{
			Client:  client,
			Metrics: metrics,
			Logger:  s.logger,
			Policy:  cfg.RetryPolicy(),
		}
		researchGen, err := research.NewGenerator(research.Config{
			Provider:  provider,
			Composer:  composer,
			Catalog:   cat,
			Documents: s.training,
			Logger:    s.logger,
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		strategyGen, err := strategy.NewGenerator(strategy.Config{
			Provider: provider,
			Composer: composer,
			Catalog:  cat,
			Logger:   s.logger,
		})
		if err != nil {
			_ = s.Close()
			return nil, err
		}
		// Assigned only here so the interfaces stay nil without a client.
		deps.Research, deps.Strategies = researchGen, strategyGen
		aggCfg.Research, aggCfg.Strategies = researchGen, strategyGen
		s.generation = true
	}

	deps.Launches, err = launch.NewAggregator(aggCfg)
	if err != nil {
		_ = s.Close()
		return nil, err
	}

	s.router = gin.New()
	s.router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(s.logger),
		otelgin.Middleware(cfg.Tracing.ServiceName),
	)
	routes.SetupRoutes(s.router, deps)

	s.logger.Info("copy studio configured",
		"backend", cfg.LLM.Backend,
		"model", cfg.LLM.Model,
		"api_key_present", cfg.HasCredential(),
		"generation_enabled", s.generation,
		"training_dir", cfg.Storage.TrainingDir,
		"data_dir", cfg.Storage.DataDir)
	return s, nil
}

// buildClient returns override when set, else a rate-limited client for
// the configured backend, else nil when no credential is available.
func (s *service) buildClient(ctx context.Context, override llm.LLMClient) (llm.LLMClient, error) {
	if override != nil {
		return override, nil
	}
	if !s.cfg.HasCredential() {
		s.logger.Warn("no provider credential, generation endpoints disabled",
			"credential_var", s.cfg.APIKeyVar())
		return nil, nil
	}
	cc, err := s.cfg.ClientConfig()
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM client: %w", err)
	}
	return llm.NewLimitedClient(client, s.cfg.LLM.RequestsPerSecond, s.cfg.LLM.Burst), nil
}

// Run implements Service.
func (s *service) Run(ctx context.Context) error {
	defer s.Close()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go func() {
		if err := s.training.Watch(watchCtx); err != nil {
			s.logger.Warn("persona document watcher stopped", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting copy studio server", "port", s.cfg.Server.Port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down copy studio server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// Router implements Service.
func (s *service) Router() *gin.Engine {
	return s.router
}

// GenerationEnabled implements Service.
func (s *service) GenerationEnabled() bool {
	return s.generation
}

// Close implements Service.
func (s *service) Close() error {
	s.closeOnce.Do(func() {
		if s.launches != nil {
			s.closeErr = s.launches.Close()
		}
		s.cleanupTracer()
	})
	return s.closeErr
}

func (s *service) cleanupTracer() {
	if s.tracerCleanup != nil {
		s.tracerCleanup(context.Background())
		s.tracerCleanup = nil
	}
}

// initTracer installs a batching exporter as the global tracer provider:
// OTLP over gRPC, or pretty-printed spans on stdout for local debugging.
func initTracer(ctx context.Context, cfg config.TracingConfig) (func(context.Context), error) {
	var traceExporter sdktrace.SpanExporter
	switch cfg.ResolvedExporter() {
	case config.TraceExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		traceExporter = exp
	default:
		conn, err := grpc.NewClient(cfg.OTLPEndpoint,
			grpc.WithTransportCredentials(insecure.NewCredentials()))
		if err != nil {
			return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
		}
		exp, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
		if err != nil {
			return nil, fmt.Errorf("failed to create trace exporter: %w", err)
		}
		traceExporter = exp
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(sdktrace.NewBatchSpanProcessor(traceExporter)))

	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceProvider.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown tracer provider", "error", err)
		}
	}, nil
}

// =============================================================================
// Compile-time Interface Check
// =============================================================================

var _ Service = (*service)(nil)
