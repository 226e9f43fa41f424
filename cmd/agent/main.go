package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
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
	relayURL := flag.String("relay", "", "relay WebSocket URL, overrides agent.relay_url")
	flag.Parse()

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
	if *relayURL != "" {
		cfg.Agent.RelayURL = *relayURL
	}

	zapLogger := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLogger.Sync()

	log := zapLogger.Sugar()
	if loadedFrom != "" {
		log.Infow("Configuration loaded", "path", loadedFrom)
	}

	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName + "-agent",
		JaegerURL:   cfg.Tracing.JaegerURL,
		Environment: cfg.Tracing.Environment,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		log.Fatalw("Failed to initialize tracing", "error", err)
	}

	var metricsHandler http.Handler
	registerer := prometheus.Registerer(prometheus.NewRegistry())
	if cfg.Monitoring.PrometheusEnabled {
		registerer = prometheus.DefaultRegisterer
		metricsHandler = promhttp.Handler()
	}
	collector := monitoring.NewPrometheusCollector(registerer)

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

	bus := framebus.New(cfg.Capture.BusCapacity)
	captureService := services.NewCaptureService(disp, encoder, bus, collector, services.CaptureConfig{
		Interval:   cfg.Capture.Interval,
		RetryDelay: cfg.Capture.RetryDelay,
		ErrorDelay: cfg.Capture.ErrorDelay,
	}, log)
	inputService := services.NewInputService(injector, cfg.Capture.Downscale, deviceScale, collector, log)

	uplink := session.NewUplink(
		cfg.Agent.RelayURL,
		[]byte(services.AuthPrefix+cfg.Auth.Secret),
		bus,
		inputService,
		collector,
		session.OptionsFromConfig(cfg),
		cfg.Agent.ReconnectDelay,
		cfg.Agent.ReconnectMax,
		log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := captureService.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("Capture loop stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := uplink.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("Relay uplink stopped", "error", err)
		}
	}()

	var srv *http.Server
	if cfg.Agent.MetricsAddress != "" {
		health := monitoring.NewHealthChecker()
		health.AddFrameFreshnessCheck(func() (time.Time, bool) {
			frame, ok := bus.Latest()
			return frame.CapturedAt, ok
		}, cfg.Monitoring.FrameStaleAfter)

		router := httphandlers.NewEngine(log, cfg.Logging.Level == "debug")
		httphandlers.NewContentHandler(health, func() map[string]interface{} {
			return map[string]interface{}{"subscribers": bus.Subscribers()}
		}, metricsHandler).SetupRoutes(router)

		srv = &http.Server{
			Addr:              cfg.Agent.MetricsAddress,
			Handler:           router,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorw("Metrics server failed", "address", cfg.Agent.MetricsAddress, "error", err)
			}
		}()
	}

	log.Infow("Starting deskrelay agent",
		"relay_url", cfg.Agent.RelayURL,
		"bounds", disp.Bounds().String(),
		"downscale", cfg.Capture.Downscale,
		"device_scale", deviceScale,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Infow("Received shutdown signal", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	cancel()
	wg.Wait()
	bus.Close()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorw("Error during metrics server shutdown", "error", err)
		}
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracing", "error", err)
	}

	log.Info("deskrelay agent stopped")
}
