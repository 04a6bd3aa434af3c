package core

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHandleHealthNoProbes(t *testing.T) {
	s := testServer(t)

	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestHandleHealthAllHealthy(t *testing.T) {
	s := testServer(t)
	s.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error { return nil }},
		ProbeFunc{ProbeName: "models", Fn: func(ctx context.Context) error { return nil }},
	}

	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Status     string                       `json:"status"`
		Components map[string]map[string]string `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("expected healthy, got %s", resp.Status)
	}
	if resp.Components["models"]["status"] != "healthy" {
		t.Errorf("unexpected components: %v", resp.Components)
	}
}

func TestHandleHealthFailingProbe(t *testing.T) {
	s := testServer(t)
	s.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "database", Fn: func(ctx context.Context) error { return nil }},
		ProbeFunc{ProbeName: "models", Fn: func(ctx context.Context) error {
			return errors.New("no artifacts loaded")
		}},
	}

	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}

	var resp struct {
		Status     string                       `json:"status"`
		Components map[string]map[string]string `json:"components"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if resp.Status != "unhealthy" {
		t.Errorf("expected unhealthy, got %s", resp.Status)
	}
	if resp.Components["models"]["message"] != "no artifacts loaded" {
		t.Errorf("unexpected components: %v", resp.Components)
	}
	if resp.Components["database"]["status"] != "healthy" {
		t.Errorf("healthy probe should still report healthy: %v", resp.Components)
	}
}

func TestHandleHealthPanickingProbe(t *testing.T) {
	s := testServer(t)
	s.HealthProbes = []HealthProbe{
		ProbeFunc{ProbeName: "flaky", Fn: func(ctx context.Context) error {
			panic("probe blew up")
		}},
	}

	w := httptest.NewRecorder()
	s.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for panicking probe, got %d", w.Code)
	}
}
