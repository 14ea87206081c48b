// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/tomtom215/fleetpulse/internal/api"
	"github.com/tomtom215/fleetpulse/internal/auth"
	"github.com/tomtom215/fleetpulse/internal/authz"
	"github.com/tomtom215/fleetpulse/internal/config"
	"github.com/tomtom215/fleetpulse/internal/devices"
	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/metrics"
	"github.com/tomtom215/fleetpulse/internal/supervisor"
	"github.com/tomtom215/fleetpulse/internal/supervisor/services"
	ws "github.com/tomtom215/fleetpulse/internal/websocket"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
	})

	logging.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting FleetPulse with supervisor tree")

	if cfg.ShouldWarnAboutCORS() {
		logging.Warn().Msg("CORS allows any origin; set CORS_ORIGINS in production")
	}

	metrics.SetAppInfo(version, runtime.Version())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := devices.OpenBadger(devices.Options{
		Path:     cfg.Directory.Path,
		InMemory: cfg.Directory.InMemory,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open device directory")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing device directory")
		}
	}()

	var (
		directory  devices.Directory = store
		ownerCache *devices.CachedDirectory
	)
	if cfg.Directory.CacheSize > 0 {
		ownerCache = devices.NewCachedDirectory(store, cfg.Directory.CacheSize, cfg.Directory.CacheTTL)
		directory = ownerCache
	}

	enforcer, err := authz.NewEnforcer(ctx, enforcerConfig(cfg))
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization")
	}
	defer enforcer.Close()

	jwtManager, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
	}
	authenticator := auth.NewJWTAuthenticator(jwtManager)

	registry := ws.NewRegistry(cfg.WebSocket.MaxSubscriptions)
	hub := ws.NewHub(registry, hubConfig(cfg))
	gateway := ws.NewGateway(hub, authenticator, ws.GatewayConfig{
		Connection: connectionConfig(cfg),
		Directory:  directory,
		Authorizer: enforcer,
	})

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		FailureThreshold: 5,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  cfg.Server.ShutdownTimeout,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddMessagingService(services.NewHubService(hub))
	if ownerCache != nil {
		tree.AddMessagingService(services.NewCacheJanitor("device-owner-cache", ownerCache, cfg.Directory.CacheTTL))
	}

	if err := initNATS(cfg, tree, gateway); err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize NATS ingest")
	}

	handler := api.NewHandler(gateway, directory, api.HandlerConfig{
		AllowedOrigins: cfg.Security.CORSOrigins,
		Version:        version,
	})
	chiMw := api.NewChiMiddlewareFromSecurity(
		cfg.Security.CORSOrigins,
		cfg.Security.RateLimitReqs,
		cfg.Security.RateLimitWindow,
		cfg.Security.RateLimitDisabled,
	)
	router := api.NewRouter(handler, authenticator, authz.NewMiddleware(enforcer), chiMw)

	server := newHTTPServer(cfg, router.SetupChi())
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Received shutdown signal, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}
	stop()

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	logging.Info().Msg("FleetPulse stopped gracefully")
}

// initNATS starts the optional embedded broker and the ingest bridge.
// Nothing is added to the tree when NATS is disabled.
func initNATS(cfg *config.Config, tree *supervisor.SupervisorTree, sink ws.EventSink) error {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS ingest disabled (NATS_ENABLED=false)")
		return nil
	}

	url := cfg.NATS.URL
	if cfg.NATS.EmbeddedServer {
		broker, err := ws.StartEmbeddedNATS("127.0.0.1", cfg.NATS.EmbeddedPort)
		if err != nil {
			return fmt.Errorf("start embedded NATS: %w", err)
		}
		url = broker.ClientURL()
		tree.AddBrokerService(services.NewEmbeddedBrokerService(broker, cfg.Server.ShutdownTimeout))
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	tree.AddMessagingService(ws.NewNATSBridge(bridgeConfig(cfg, url), sink))
	logging.Info().
		Str("url", url).
		Str("subject", cfg.NATS.Subject).
		Msg("NATS ingest bridge added to supervisor tree")
	return nil
}

func enforcerConfig(cfg *config.Config) *authz.EnforcerConfig {
	ec := authz.DefaultEnforcerConfig()
	ec.ModelPath = cfg.Security.Casbin.ModelPath
	ec.PolicyPath = cfg.Security.Casbin.PolicyPath
	return ec
}

func hubConfig(cfg *config.Config) ws.HubConfig {
	return ws.HubConfig{
		PublishBufferSize:   cfg.WebSocket.PublishBufferSize,
		OverflowThreshold:   cfg.WebSocket.OverflowThreshold,
		OrgWideDeviceEvents: cfg.WebSocket.OrgWideDeviceEvents,
	}
}

func connectionConfig(cfg *config.Config) ws.ConnectionConfig {
	return ws.ConnectionConfig{
		SendBufferSize: cfg.WebSocket.SendBufferSize,
		WriteWait:      cfg.WebSocket.WriteWait,
		PongWait:       cfg.WebSocket.PongWait,
		MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		InboundRate:    cfg.WebSocket.InboundRate,
		InboundBurst:   cfg.WebSocket.InboundBurst,
	}
}

func bridgeConfig(cfg *config.Config, url string) ws.NATSBridgeConfig {
	return ws.NATSBridgeConfig{
		URL:           url,
		Subject:       cfg.NATS.Subject,
		QueueGroup:    cfg.NATS.QueueGroup,
		ReconnectWait: cfg.NATS.ReconnectWait,
		MaxReconnects: cfg.NATS.MaxReconnects,
	}
}

// newHTTPServer bounds only header reads; upgraded connections set their
// own read and write deadlines.
func newHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           h,
		ReadHeaderTimeout: cfg.Server.Timeout,
		IdleTimeout:       60 * time.Second,
	}
}
