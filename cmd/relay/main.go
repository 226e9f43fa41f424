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

	"deskrelay/internal/core/services"
	httphandlers "deskrelay/internal/handlers/http"
	"deskrelay/internal/infrastructure/distributed"
	"deskrelay/internal/infrastructure/monitoring"
	"deskrelay/internal/infrastructure/relay"
	"deskrelay/internal/infrastructure/session"
	"deskrelay/pkg/config"
	"deskrelay/pkg/logger"
	"deskrelay/pkg/tracing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const presencePrefix = "deskrelay:presence:"

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
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
		ServiceName: cfg.Tracing.ServiceName + "-relay",
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := relay.NewHub(cfg.Relay.QueueSize, collector, log)
	authService := services.NewAuthService(cfg.Auth.Secret, cfg.Auth.Timeout, collector, log)
	sessions := session.NewRelayServer(authService, hub, collector, session.OptionsFromConfig(cfg), log)
	health := monitoring.NewHealthChecker()

	var (
		registry   *distributed.SharedPeerRegistry
		bridge     *distributed.RelayBridge
		bridgeDone = make(chan struct{})
	)
	if cfg.Relay.Redis.Enabled {
		client, err := distributed.NewRedisClient(ctx, distributed.ClientConfig{
			Address:  cfg.Relay.Redis.Address,
			Password: cfg.Relay.Redis.Password,
			DB:       cfg.Relay.Redis.DB,
			PoolSize: cfg.Relay.Redis.PoolSize,
		}, log)
		if err != nil {
			log.Fatalw("Failed to connect relay bridge", "error", err)
		}
		defer client.Close()

		instanceID := uuid.NewString()
		bridge = distributed.NewRelayBridge(client, cfg.Relay.Redis.Channel, instanceID, hub, cfg.Relay.QueueSize, log)
		hub.SetForwarder(bridge)
		registry = distributed.NewSharedPeerRegistry(client, presencePrefix, instanceID, log)
		sessions.SetPresence(registry)
		health.AddPingCheck("redis", bridge, 2*time.Second)

		go func() {
			defer close(bridgeDone)
			if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Errorw("Relay bridge stopped", "error", err)
			}
		}()
		log.Infow("Relay bridge enabled", "instance_id", instanceID, "channel", cfg.Relay.Redis.Channel)
	} else {
		close(bridgeDone)
	}

	stats := func() map[string]interface{} {
		s := map[string]interface{}{
			"sessions": sessions.Sessions(),
			"peers":    hub.Len(),
		}
		if registry != nil {
			countCtx, countCancel := context.WithTimeout(context.Background(), time.Second)
			defer countCancel()
			if n, err := registry.ClusterPeers(countCtx); err == nil {
				s["cluster_peers"] = n
			}
		}
		if bridge != nil {
			bs := bridge.PublishStats()
			s["bridge_breaker"] = bs.State.String()
			s["bridge_rejected"] = bs.Rejected
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

	serverErr := make(chan error, 1)
	go func() {
		log.Infow("Starting deskrelay relay",
			"address", listener.Addr().String(),
			"queue_size", cfg.Relay.QueueSize,
		)
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatalw("Server failed", "error", err)
	case sig := <-sigChan:
		log.Infow("Received shutdown signal", "signal", sig)
	}

	log.Info("Shutting down deskrelay relay...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error during server shutdown", "error", err)
		if closeErr := srv.Close(); closeErr != nil {
			log.Errorw("Error force closing server", "error", closeErr)
		}
	}

	sessions.Close()
	cancel()
	<-bridgeDone

	if registry != nil {
		if err := registry.Cleanup(shutdownCtx); err != nil {
			log.Errorw("Error cleaning up shared peer registry", "error", err)
		}
	}

	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Errorw("Error shutting down tracing", "error", err)
	}

	log.Info("deskrelay relay stopped")
}
