// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package middleware

import (
	"bufio"
	"compress/gzip"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/fleetpulse/internal/logging"
	"github.com/tomtom215/fleetpulse/internal/metrics"
)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		wantSame bool
	}{
		{"generates when missing", "", false},
		{"reuses upstream id", "edge-1234.abc", true},
		{"replaces malformed id", "bad id\nwith newline", false},
		{"replaces oversized id", strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ctxID, correlation string
			handler := RequestID(func(w http.ResponseWriter, r *http.Request) {
				ctxID = GetRequestID(r.Context())
				correlation = logging.CorrelationIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if got == "" || got != ctxID {
				t.Fatalf("header %q, context %q", got, ctxID)
			}
			if tt.wantSame && got != tt.incoming {
				t.Errorf("request id = %q, want %q", got, tt.incoming)
			}
			if !tt.wantSame {
				if _, err := uuid.Parse(got); err != nil {
					t.Errorf("generated id %q is not a UUID", got)
				}
			}
			if logging.RequestIDFromContext(req.Context()) != "" {
				t.Error("original request context was modified")
			}
			if correlation == "" {
				t.Error("correlation id not set")
			}
		})
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if id := GetRequestID(req.Context()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}

func TestPrometheusMetrics_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/v1/devices/{deviceID}", PrometheusMetrics(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/devices/{deviceID}", "418")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/devices/"+id, nil))
		if rec.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rec.Code)
		}
	}

	if got := testutil.ToFloat64(counter) - before; got != 3 {
		t.Errorf("requests recorded under route pattern = %v, want 3", got)
	}
}

func TestPrometheusMetrics_FallsBackToPath(t *testing.T) {
	handler := PrometheusMetrics(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})
	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodPost, "/raw/path", "202")
	before := testutil.ToFloat64(counter)

	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/raw/path", nil))

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("recorded %v requests, want 1", got)
	}
}

type hijackRecorder struct {
	*httptest.ResponseRecorder
	hijacked bool
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijacked = true
	return nil, nil, nil
}

func TestMetricsResponseWriter_Hijack(t *testing.T) {
	t.Run("supported", func(t *testing.T) {
		inner := &hijackRecorder{ResponseRecorder: httptest.NewRecorder()}
		rw := &metricsResponseWriter{ResponseWriter: inner, statusCode: http.StatusOK}
		if _, _, err := rw.Hijack(); err != nil {
			t.Fatalf("Hijack() error = %v", err)
		}
		if !inner.hijacked || rw.statusCode != http.StatusSwitchingProtocols {
			t.Errorf("hijacked=%v status=%d", inner.hijacked, rw.statusCode)
		}
	})

	t.Run("unsupported", func(t *testing.T) {
		rw := &metricsResponseWriter{ResponseWriter: httptest.NewRecorder()}
		if _, _, err := rw.Hijack(); err == nil {
			t.Error("Hijack() error = nil for a recorder")
		}
	})

	t.Run("unwrap", func(t *testing.T) {
		inner := httptest.NewRecorder()
		rw := &metricsResponseWriter{ResponseWriter: inner}
		if rw.Unwrap() != inner {
			t.Error("Unwrap() did not return the inner writer")
		}
	})
}

func TestCompression(t *testing.T) {
	body := strings.Repeat(`{"device_id":"sensor-1"}`, 100)
	handler := Compression(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	})

	tests := []struct {
		name     string
		headers  map[string]string
		wantGzip bool
	}{
		{"gzip accepted", map[string]string{"Accept-Encoding": "gzip, deflate"}, true},
		{"no accept-encoding", nil, false},
		{"websocket upgrade", map[string]string{"Accept-Encoding": "gzip", "Upgrade": "websocket"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			handler(rec, req)

			gotGzip := rec.Header().Get("Content-Encoding") == "gzip"
			if gotGzip != tt.wantGzip {
				t.Fatalf("gzip = %v, want %v", gotGzip, tt.wantGzip)
			}

			var reader io.Reader = rec.Body
			if gotGzip {
				gz, err := gzip.NewReader(rec.Body)
				if err != nil {
					t.Fatalf("gzip.NewReader() error = %v", err)
				}
				reader = gz
			}
			got, err := io.ReadAll(reader)
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != body {
				t.Error("body mismatch after decompression")
			}
		})
	}
}
