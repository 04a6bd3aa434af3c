package core

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"bloomwatch/internal/config"
)

func TestNewServerRequiresConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if _, err := NewServer(nil, logger); err == nil {
		t.Error("expected error for nil config")
	}
}

func TestNewServerRequiresLogger(t *testing.T) {
	if _, err := NewServer(&config.Config{}, nil); err == nil {
		t.Error("expected error for nil logger")
	}
}

func TestMountRoutesServesHealth(t *testing.T) {
	s := testServer(t)
	s.MountRoutes()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200 from /health, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("X-Request-Id"); got == "" {
		t.Error("expected X-Request-Id header on response")
	}
	if got := resp.Header.Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected security headers on response, got %q", got)
	}
}

func TestMountRoutesRegistersV1Routes(t *testing.T) {
	s := testServer(t)
	s.V1RouteRegistrars = append(s.V1RouteRegistrars, func(r chi.Router) {
		r.Get("/crops", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	s.MountRoutes()

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/crops")
	if err != nil {
		t.Fatalf("v1 request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected registrar route to be mounted under /v1, got %d", resp.StatusCode)
	}
}

func TestShutdownRunsClosers(t *testing.T) {
	s := testServer(t)

	var order []string
	s.OnShutdown(func() error {
		order = append(order, "pool")
		return nil
	})
	s.OnShutdown(func() error {
		order = append(order, "cache")
		return nil
	})

	if err := s.Shutdown(t.Context()); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if len(order) != 2 || order[0] != "pool" || order[1] != "cache" {
		t.Errorf("closers ran out of order: %v", order)
	}
}
