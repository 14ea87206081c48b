// FleetPulse - Real-time Device State Fan-out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetpulse

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tomtom215/fleetpulse/internal/models"
)

func TestCredentialFromRequest(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*http.Request)
		want  string
	}{
		{"none", func(*http.Request) {}, ""},
		{"bearer header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, "abc"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer abc") }, "abc"},
		{"basic header ignored", func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, ""},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token"}) }, "cookie-token"},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=query-token" }, "query-token"},
		{"header wins over cookie and query", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer header-token")
			r.AddCookie(&http.Cookie{Name: TokenCookieName, Value: "cookie-token"})
			r.URL.RawQuery = "token=query-token"
		}, "header-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil)
			tt.setup(req)
			if got := CredentialFromRequest(req); got != tt.want {
				t.Errorf("CredentialFromRequest() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRequireAuth(t *testing.T) {
	authn := AuthenticatorFunc(func(_ context.Context, credential string) (*models.Subscriber, error) {
		switch credential {
		case "":
			return nil, ErrNoCredentials
		case "good":
			return &models.Subscriber{UserID: "alice", OrganizationID: "techcorp", Role: models.RoleAdmin}, nil
		default:
			return nil, ErrInvalidCredentials
		}
	})

	var seen *models.Subscriber
	handler := RequireAuth(authn)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubscriberFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"missing", "", http.StatusUnauthorized, ""},
		{"invalid", "Bearer bad", http.StatusUnauthorized, ""},
		{"valid", "Bearer good", http.StatusNoContent, "alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/v1/devices/d1", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantUser == "" {
				if seen != nil {
					t.Errorf("handler reached with subscriber %+v", seen)
				}
				if rec.Header().Get("WWW-Authenticate") == "" {
					t.Error("missing WWW-Authenticate header")
				}
				return
			}
			if seen == nil || seen.UserID != tt.wantUser {
				t.Errorf("subscriber = %+v, want user %q", seen, tt.wantUser)
			}
		})
	}
}

func TestSubscriberFromContext_Empty(t *testing.T) {
	if sub := SubscriberFromContext(context.Background()); sub != nil {
		t.Errorf("SubscriberFromContext() = %+v, want nil", sub)
	}
}
