package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deskrelay/internal/core/domain"
	"deskrelay/internal/core/services"
	httphandlers "deskrelay/internal/handlers/http"
	"deskrelay/internal/infrastructure/capability"
	"deskrelay/internal/infrastructure/framebus"
	"deskrelay/internal/infrastructure/monitoring"
	"deskrelay/internal/infrastructure/session"
	"deskrelay/pkg/config"
	"deskrelay/pkg/logger"
	"deskrelay/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	flag.Parse()

	// Try multiple config paths
	configPaths := []string{
		"configs/config.yaml",
		"./configs/config.yaml",
		"/etc/deskrelay/config.yaml",
		"config.yaml",
	}
	if *configPath != "" {
		configPaths = []string{*configPath}
	}

	cfg, loadedFrom, err := config.LoadFirst(configPaths...)
	if err != nil {
		logger.New("info").Sugar().Fatalw("Failed to load configuration", "error", err)
	}

	// Initialize logger
	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if loadedFrom != "" {
		log.Infow("Configuration loaded", "path", loadedFrom)
	}
	if cfg.Auth.Secret == config.DefaultSecret {
		log.Warn("auth.secret is still the default, set DESKRELAY_AUTH_SECRET")
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName + "-host",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("Failed to initialize tracing", "error", err)
	}

	// Initialize monitoring
	var metricsHandler http.Handler
	registerer := prometheus.Registerer(prometheus.NewRegistry())
	if cfg.Monitoring.PrometheusEnabled {
		registerer = prometheus.DefaultRegisterer
		metricsHandler = promhttp.Handler()
	}
	collector := monitoring.NewPrometheusCollector(registerer)

	// Capabilities
	factory := capability.NewFactory(cfg, log)
	disp, err := factory.CreateDisplay()
	if err != nil {
		if errors.Is(err, domain.ErrNoDisplay) {
			log.Fatalw("No display found", "error", err)
		}
		log.Fatalw("Failed to open display", "error", err)
	}
	encoder, err := factory.CreateEncoder()
	if err != nil {
		log.Fatalw("Failed to create encoder", "error", err)
	}
	injector := factory.CreateInjector()
	deviceScale := factory.DeviceScale(disp, injector)

	// Initialize services
	bus := framebus.New(cfg.Capture.BusCapacity)
	captureService := services.NewCaptureService(disp, encoder, bus, collector, services.CaptureConfig{
		Interval:   cfg.Capture.Interval,
		RetryDelay: cfg.Capture.RetryDelay,
		ErrorDelay: cfg.Capture.ErrorDelay,
	}, log)
	inputService := services.NewInputService(injector, cfg.Capture.Downscale, deviceScale, collector, log)
	authService := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.Timeout, collector, log)

	sessions := session.NewDirectServer(authService, bus, inputService, collector, session.OptionsFromConfig(cfg), log)

	health := monitoring.NewHealthChecker()
	health.AddFrameFreshnessCheck(func() (time.Time, bool) {
		frame, ok := bus.Latest()
		return frame.CapturedAt, ok
	}, cfg.Monitoring.FrameStaleAfter)

	stats := func() map[string]interface{} {
		s := map[string]interface{}{
			"sessions":    sessions.Sessions(),
			"subscribers": bus.Subscribers(),
		}
		if frame, ok := bus.Latest(); ok {
			s["last_seq"] = frame.Seq
			s["last_frame_age"] = time.Since(frame.CapturedAt).String()
		}
		return s
	}

	router := httphandlers.NewEngine(log, cfg.Logging.Level == "debug")
	httphandlers.NewContentHandler(health, stats, metricsHandler).SetupRoutes(router)

	srv := &http.Server{
		Handler:           session.NewRouter(sessions, router),
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	listener, err := net.Listen("tcp", cfg.Server.Address)
	if err != nil {
		log.Fatalw("Failed to bind listener", "address", cfg.Server.Address, "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	captureDone := make(chan struct{})
	go func() {
		defer close(captureDone)
		if err := captureService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("Capture loop stopped", "error", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting deskrelay host",
			"address", listener.Addr().String(),
			"bounds", disp.Bounds().String(),
			"downscale", cfg.Capture.Downscale,
			"device_scale", deviceScale,
		)
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	// Wait for shutdown signals or server error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down deskrelay host...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	// Upgraded connections are not tracked by http.Server.
	sessions.Close()
	cancel()
	<-captureDone
	bus.Close()

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracing", "error", err)
	}

	log.Info("deskrelay host stopped")
}
