// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/fleetpulse/internal/auth"
	"github.com/tomtom215/fleetpulse/internal/authz"
	"github.com/tomtom215/fleetpulse/internal/config"
	"github.com/tomtom215/fleetpulse/internal/devices"
	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/models"
	ws "github.com/tomtom215/fleetpulse/internal/websocket"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "error",
		Format: "json",
		Output: io.Discard,
	})
}

const (
	testSecret = "test-secret-key-that-is-at-least-32-characters-long"
	testOrigin = "http://dashboard.test"
)

// testUsers maps a short name to the identity its token carries.
var testUsers = map[string]models.Subscriber{
	"alice":  {UserID: "alice", OrganizationID: "techcorp", Role: models.RoleViewer},
	"olivia": {UserID: "olivia", OrganizationID: "techcorp", Role: models.RoleOperator},
	"carol":  {UserID: "carol", OrganizationID: "techcorp", Role: models.RoleAdmin},
	"pump":   {UserID: "pump-7", OrganizationID: "techcorp", Role: models.RoleDevice},
	"bob":    {UserID: "bob", OrganizationID: "innovatelab", Role: models.RoleAdmin},
}

type testEnv struct {
	server *httptest.Server
	hub    *ws.Hub
	dir    *devices.BadgerDirectory
	tokens map[string]string
}

// newTestEnv wires the full stack on an httptest server. The hub's
// dispatch loop runs unless startHub is false.
func newTestEnv(t *testing.T, startHub bool) *testEnv {
	t.Helper()
	ctx := context.Background()

	manager, err := auth.NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, SessionTimeout: time.Hour})
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	tokens := make(map[string]string, len(testUsers))
	for name, sub := range testUsers {
		token, err := manager.GenerateToken(sub)
		if err != nil {
			t.Fatalf("GenerateToken(%s) error = %v", name, err)
		}
		tokens[name] = token
	}

	enforcer, err := authz.NewEnforcer(ctx, authz.DefaultEnforcerConfig())
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	t.Cleanup(enforcer.Close)

	dir, err := devices.OpenBadger(devices.Options{InMemory: true})
	if err != nil {
		t.Fatalf("OpenBadger() error = %v", err)
	}
	t.Cleanup(func() { _ = dir.Close() })
	for _, d := range []*devices.Device{
		{ID: "sensor-1", OrganizationID: "techcorp", Status: "online"},
		{ID: "sensor-2", OrganizationID: "techcorp"},
		{ID: "lab-1", OrganizationID: "innovatelab"},
	} {
		if err := dir.Put(ctx, d); err != nil {
			t.Fatalf("Put(%s) error = %v", d.ID, err)
		}
	}

	authn := auth.NewJWTAuthenticator(manager)
	registry := ws.NewRegistry(16)
	hub := ws.NewHub(registry, ws.HubConfig{PublishBufferSize: 64, OverflowThreshold: 1, OrgWideDeviceEvents: true})
	gateway := ws.NewGateway(hub, authn, ws.GatewayConfig{
		Connection: ws.ConnectionConfig{SendBufferSize: 64},
		Directory:  dir,
		Authorizer: enforcer,
	})

	handler := NewHandler(gateway, dir, HandlerConfig{AllowedOrigins: []string{testOrigin}, Version: "test"})
	mwCfg := DefaultChiMiddlewareConfig()
	mwCfg.CORSAllowedOrigins = []string{testOrigin}
	mwCfg.RateLimitDisabled = true
	router := NewRouter(handler, authn, authz.NewMiddleware(enforcer), NewChiMiddleware(mwCfg))

	srv := httptest.NewServer(router.SetupChi())
	t.Cleanup(srv.Close)

	if startHub {
		hubCtx, cancel := context.WithCancel(ctx)
		done := make(chan struct{})
		go func() {
			_ = hub.RunWithContext(hubCtx)
			close(done)
		}()
		t.Cleanup(func() {
			cancel()
			<-done
		})
		deadline := time.Now().Add(2 * time.Second)
		for !hub.Running() {
			if time.Now().After(deadline) {
				t.Fatal("hub did not start")
			}
			time.Sleep(time.Millisecond)
		}
	}

	return &testEnv{server: srv, hub: hub, dir: dir, tokens: tokens}
}

// do sends a request as user (no credential when user is empty) and
// decodes the response envelope.
func (e *testEnv) do(t *testing.T, method, path, user, body string) (*http.Response, models.APIResponse) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[user])
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	var out models.APIResponse
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("%s %s: invalid JSON body %q: %v", method, path, raw, err)
		}
	}
	return resp, out
}

// dial opens a realtime connection as user and consumes the welcome message.
func (e *testEnv) dial(t *testing.T, user string) *websocket.Conn {
	t.Helper()
	conn, resp, err := e.dialRaw(e.tokens[user], testOrigin)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial as %s error = %v (status %d)", user, err, status)
	}
	t.Cleanup(func() { _ = conn.Close() })

	welcome := readEnvelope(t, conn)
	if welcome.Type != models.MessageTypeConnected {
		t.Fatalf("first message type = %q, want %q", welcome.Type, models.MessageTypeConnected)
	}
	return conn
}

func (e *testEnv) dialRaw(token, origin string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/v1/realtime/ws"
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var env models.Envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return env
}

// errorCode returns the API error code, or "" for a success envelope.
func errorCode(resp models.APIResponse) string {
	if resp.Error == nil {
		return ""
	}
	return resp.Error.Code
}
