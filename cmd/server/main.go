package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-httpservice/internal/api"
	"github.com/sirosfoundation/go-httpservice/internal/backend"
	"github.com/sirosfoundation/go-httpservice/internal/container"
	"github.com/sirosfoundation/go-httpservice/internal/httpservice"
	"github.com/sirosfoundation/go-httpservice/internal/server"
	"github.com/sirosfoundation/go-httpservice/internal/websocket"
	"github.com/sirosfoundation/go-httpservice/pkg/config"
	"github.com/sirosfoundation/go-httpservice/pkg/logging"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting HTTP service",
		zap.String("version", version),
		zap.String("build_time", buildTime),
	)

	// Audit storage
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := backend.New(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize audit backend", zap.Error(err))
	}
	defer func() { _ = store.Close() }()
	logger.Info("Audit backend initialized", zap.String("type", cfg.Audit.Type))

	// Engine
	host := container.NewHost(cfg.Engine.HostName, container.WithLogger(logger))
	if err := host.Start(); err != nil {
		logger.Fatal("Failed to start container host", zap.Error(err))
	}

	var (
		opts     = []httpservice.Option{httpservice.WithTracerProvider(otel.GetTracerProvider())}
		gatherer prometheus.Gatherer
	)
	if cfg.Metrics.Enabled {
		promReg := prometheus.NewRegistry()
		promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, httpservice.WithMetrics(httpservice.NewMetrics(promReg, cfg.Metrics.Namespace)))
		gatherer = promReg
	}

	registry := httpservice.New(host, httpservice.Config{
		WorkDir:      cfg.Engine.WorkDir,
		ServeDocBase: cfg.Engine.ServeDocBase,
	}, logger, opts...)
	factory := httpservice.NewFactory(registry, logger)

	recorder := backend.NewRecorder(store.Audit(), logger, backend.WithRetention(cfg.Audit.Retention()))
	registry.Subscribe(recorder)

	events := websocket.NewManager(cfg.CORS.AllowedOrigins, logger)
	registry.Subscribe(events)

	// Static resources from the config file
	if err := registerResources(context.Background(), factory, cfg.Resources, filepath.Dir(*configFile), logger); err != nil {
		logger.Fatal("Failed to register configured resources", zap.Error(err))
	}

	admin := api.NewAdminHandlers(registry, factory, store, http.HandlerFunc(events.HandleConnection), cfg.Engine.HostName, cfg.Server.BaseURL, logger)
	srv := server.NewManager(server.NewServerConfig(cfg), host, admin, gatherer, logger)
	if err := srv.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start servers", zap.Error(err))
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("Shutting down", zap.String("signal", sig.String()))

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server shutdown failed", zap.Error(err))
	}
	if err := factory.ReleaseAll(ctx); err != nil {
		logger.Error("Failed to release callers", zap.Error(err))
	}
	events.Close()
	if err := recorder.Close(ctx); err != nil {
		logger.Warn("Audit recorder did not drain", zap.Error(err))
	}
	if err := host.Stop(); err != nil {
		logger.Error("Failed to stop container host", zap.Error(err))
	}

	logger.Info("Server exited")
}
