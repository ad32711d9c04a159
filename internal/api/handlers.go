package api

import (
	"context"
	"log/slog"
	"net/http"

	"vodforge/internal/media"
	"vodforge/internal/storage"
)

// Handler bundles the dependencies shared by the API endpoints. Store and
// Pipeline are required; Logger falls back to slog.Default when nil.
type Handler struct {
	Store    storage.Repository
	Pipeline *media.Pipeline
	Logger   *slog.Logger

	// RateLimiter is optional and only consulted by the health endpoint.
	RateLimiter interface {
		Ping(ctx context.Context) error
	}
}

func NewHandler(store storage.Repository, pipeline *media.Pipeline, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Store: store, Pipeline: pipeline, Logger: logger}
}

type componentStatus struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func (h *Handler) componentHealth(ctx context.Context) ([]componentStatus, string, int) {
	overallStatus := "ok"
	statusCode := http.StatusOK
	recordComponent := func(component string, err error) componentStatus {
		status := "ok"
		message := ""
		if err != nil {
			status = "degraded"
			message = err.Error()
			overallStatus = "degraded"
			statusCode = http.StatusServiceUnavailable
		}
		return componentStatus{Component: component, Status: status, Error: message}
	}

	components := make([]componentStatus, 0, 2)
	if h.Store != nil {
		components = append(components, recordComponent("catalog", h.Store.Ping(ctx)))
	}
	if h.RateLimiter != nil {
		components = append(components, recordComponent("rate_limiter", h.RateLimiter.Ping(ctx)))
	}

	return components, overallStatus, statusCode
}

// Health reports the reachability of the handler's dependencies.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, errMethodNotAllowed(r.Method))
		return
	}
	components, overall, statusCode := h.componentHealth(r.Context())
	writeJSON(w, statusCode, map[string]interface{}{
		"status":     overall,
		"components": components,
	})
}
