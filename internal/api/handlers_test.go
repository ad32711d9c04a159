package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"vodforge/internal/storage"
)

type unhealthyStore struct {
	storage.Repository
	pingErr error
}

func (s unhealthyStore) Ping(ctx context.Context) error {
	return s.pingErr
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func decodeHealth(t *testing.T, rec *httptest.ResponseRecorder) (string, []map[string]any) {
	t.Helper()
	var payload struct {
		Status     string           `json:"status"`
		Components []map[string]any `json:"components"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	return payload.Status, payload.Components
}

func TestHealthAllComponentsOK(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})
	handler.RateLimiter = stubPinger{}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	status, components := decodeHealth(t, rec)
	if status != "ok" {
		t.Fatalf("status = %q", status)
	}
	if len(components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(components))
	}
	for _, component := range components {
		if component["status"] != "ok" {
			t.Fatalf("component %v not ok: %v", component["component"], component["status"])
		}
	}
}

func TestHealthDegradedCatalog(t *testing.T) {
	handler, store := newTestHandler(t, testHandlerConfig{})
	handler.Store = unhealthyStore{Repository: store, pingErr: fmt.Errorf("connection refused")}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	status, components := decodeHealth(t, rec)
	if status != "degraded" {
		t.Fatalf("status = %q", status)
	}
	if len(components) != 1 || components[0]["component"] != "catalog" {
		t.Fatalf("unexpected components: %v", components)
	}
	if components[0]["error"] != "connection refused" {
		t.Fatalf("component error = %v", components[0]["error"])
	}
}

func TestHealthDegradedRateLimiter(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})
	handler.RateLimiter = stubPinger{err: fmt.Errorf("redis down")}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	status, _ := decodeHealth(t, rec)
	if status != "degraded" {
		t.Fatalf("status = %q", status)
	}
}

func TestHealthMethodNotAllowed(t *testing.T) {
	handler, _ := newTestHandler(t, testHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.Health(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if allow := rec.Header().Get("Allow"); allow != "GET" {
		t.Fatalf("Allow = %q", allow)
	}
}
