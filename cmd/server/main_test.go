// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package main

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/tomtom215/fleetpulse/internal/config"
	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/models"
	"github.com/tomtom215/fleetpulse/internal/supervisor"
)

func init() {
	logging.Init(logging.Config{Level: "error", Output: io.Discard})
}

type discardSink struct{}

func (discardSink) PublishEvent(*models.Event) (string, error) { return "", nil }

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            9090,
			Timeout:         5 * time.Second,
			ShutdownTimeout: 2 * time.Second,
		},
		Security: config.SecurityConfig{
			Casbin: config.CasbinConfig{ModelPath: "/etc/fp/model.conf", PolicyPath: "/etc/fp/policy.csv"},
		},
		WebSocket: config.WebSocketConfig{
			SendBufferSize:      32,
			OverflowThreshold:   3,
			PublishBufferSize:   128,
			WriteWait:           time.Second,
			PongWait:            30 * time.Second,
			MaxMessageSize:      4096,
			InboundRate:         5,
			InboundBurst:        10,
			OrgWideDeviceEvents: true,
		},
		NATS: config.NATSConfig{
			URL:           "nats://broker:4222",
			Subject:       "devices.>",
			QueueGroup:    "fleetpulse",
			ReconnectWait: 3 * time.Second,
		},
	}
}

func TestConfigMapping(t *testing.T) {
	cfg := testConfig()

	t.Run("hub", func(t *testing.T) {
		hc := hubConfig(cfg)
		if hc.PublishBufferSize != 128 || hc.OverflowThreshold != 3 || !hc.OrgWideDeviceEvents {
			t.Errorf("hubConfig() = %+v", hc)
		}
	})

	t.Run("connection", func(t *testing.T) {
		cc := connectionConfig(cfg)
		if cc.SendBufferSize != 32 || cc.MaxMessageSize != 4096 || cc.InboundBurst != 10 {
			t.Errorf("connectionConfig() = %+v", cc)
		}
		if cc.WriteWait != time.Second || cc.PongWait != 30*time.Second || cc.InboundRate != 5 {
			t.Errorf("connectionConfig() timing = %+v", cc)
		}
	})

	t.Run("enforcer", func(t *testing.T) {
		ec := enforcerConfig(cfg)
		if ec.ModelPath != "/etc/fp/model.conf" || ec.PolicyPath != "/etc/fp/policy.csv" {
			t.Errorf("enforcerConfig() paths = %q, %q", ec.ModelPath, ec.PolicyPath)
		}
		if ec.DefaultRole != "viewer" {
			t.Errorf("DefaultRole = %q, want viewer", ec.DefaultRole)
		}
	})

	t.Run("bridge", func(t *testing.T) {
		bc := bridgeConfig(cfg, "nats://127.0.0.1:4333")
		if bc.URL != "nats://127.0.0.1:4333" || bc.Subject != "devices.>" || bc.QueueGroup != "fleetpulse" {
			t.Errorf("bridgeConfig() = %+v", bc)
		}
		if bc.ReconnectWait != 3*time.Second || bc.MaxReconnects != 0 {
			t.Errorf("bridgeConfig() reconnect = %v/%d", bc.ReconnectWait, bc.MaxReconnects)
		}
	})

	t.Run("http server", func(t *testing.T) {
		srv := newHTTPServer(cfg, http.NotFoundHandler())
		if srv.Addr != "127.0.0.1:9090" {
			t.Errorf("Addr = %q", srv.Addr)
		}
		if srv.ReadHeaderTimeout != 5*time.Second {
			t.Errorf("ReadHeaderTimeout = %v", srv.ReadHeaderTimeout)
		}
		if srv.WriteTimeout != 0 {
			t.Errorf("WriteTimeout = %v, want 0", srv.WriteTimeout)
		}
	})
}

func TestInitNATS(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
		if err != nil {
			t.Fatalf("NewSupervisorTree() error = %v", err)
		}
		if err := initNATS(testConfig(), tree, discardSink{}); err != nil {
			t.Errorf("initNATS() error = %v", err)
		}
	})

	t.Run("embedded broker", func(t *testing.T) {
		cfg := testConfig()
		cfg.NATS.Enabled = true
		cfg.NATS.EmbeddedServer = true
		cfg.NATS.EmbeddedPort = -1

		tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
			ShutdownTimeout: 2 * time.Second,
		})
		if err != nil {
			t.Fatalf("NewSupervisorTree() error = %v", err)
		}
		if err := initNATS(cfg, tree, discardSink{}); err != nil {
			t.Fatalf("initNATS() error = %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		errCh := tree.ServeBackground(ctx)
		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case <-errCh:
		case <-time.After(10 * time.Second):
			t.Fatal("supervisor tree did not stop")
		}
	})
}
