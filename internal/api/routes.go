// Package api provides HTTP API server implementation for the core service.
package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/integration-os/core/internal/api/middleware"
	"github.com/integration-os/core/internal/domain"
	"github.com/integration-os/core/internal/emit"
	"github.com/integration-os/core/internal/ioserr"
)

const (
	eventSecretHeader        = "x-integrationos-secret"
	emitIdempotencyKeyHeader = "x-integrationos-idempotency-key"
)

type (
	// HealthStatus represents the health check response structure.
	HealthStatus struct {
		Status string `json:"status"`
		Uptime string `json:"uptime,omitempty"`
	}

	// Route represents an HTTP route configuration with a path and handler.
	Route struct {
		Path    string
		Handler http.HandlerFunc
	}

	// emitRequest is the tagged event variant body accepted by POST /v1/emit.
	// Only Type is pulled out explicitly; the rest of the body is handed to
	// the stream verbatim as the event's Payload.
	emitRequest struct {
		Type domain.EmitEventType `json:"type"`
	}
)

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /v1/event", s.handleEvent)
	mux.HandleFunc("POST /v1/emit", s.handleEmit)

	mux.HandleFunc("/", s.handleNotFound)
}

// handlePing responds to ping requests for basic server validation.
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("pong")); err != nil {
		s.logger.Error("failed to write ping response", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
	}
}

// handleReady responds to readiness probes. The core service has no
// degraded mode: if it is serving requests its dependencies were
// constructed successfully, so readiness always mirrors liveness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write([]byte("ready")); err != nil {
		s.logger.Error("failed to write ready response", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
	}
}

// handleHealth returns detailed health status information.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	var uptime string
	if !s.startTime.IsZero() {
		uptime = time.Since(s.startTime).Round(time.Second).String()
	}

	health := HealthStatus{Status: "healthy", Uptime: uptime}

	data, err := json.Marshal(health)
	if err != nil {
		s.logger.Error("failed to encode health response", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
		writeError(w, ioserr.New(ioserr.Internal, "failed to encode health response"))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write health response", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
	}
}

// handleNotFound returns the flat error body for unknown endpoints.
func (s *Server) handleNotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, ioserr.New(ioserr.NotFound, "the requested resource was not found"))
}

// handleEvent implements POST /v1/event (spec.md §4.1, §6): admit an
// inbound event under its access key, persist it and its root context, and
// acknowledge without waiting for any subscribing pipeline to finish.
func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, ioserr.Wrap(ioserr.BadRequest, "read event body", err))

		return
	}

	resp, err := s.ingress.Handle(r.Context(), body, r.Header.Get(eventSecretHeader))
	if err != nil {
		s.logger.Warn("event rejected", slog.String("correlation_id", correlationID), slog.String("error", err.Error()))
		writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleEmit implements POST /v1/emit (spec.md §4.3, §6): claim the
// idempotency key carried in the request header and, on first claim,
// publish the tagged event variant to its assigned partition.
func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.Header.Get(emitIdempotencyKeyHeader)
	if idempotencyKey == "" {
		writeError(w, ioserr.New(ioserr.BadRequest, "missing idempotency key header"))

		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, ioserr.Wrap(ioserr.BadRequest, "read emit body", err))

		return
	}

	var req emitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, ioserr.Wrap(ioserr.BadRequest, "decode emit event", err))

		return
	}

	if req.Type == "" {
		writeError(w, ioserr.New(ioserr.BadRequest, "emit event missing type"))

		return
	}

	event := domain.EmitEvent{
		Type:       req.Type,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	}

	idem := domain.Idempotency{Key: idempotencyKey, CreatedAt: time.Now().UTC()}

	result, err := s.stream.Publish(r.Context(), event, idem, idempotencyKey)
	if err != nil {
		writeError(w, err)

		return
	}

	if result == emit.Duplicate {
		writeError(w, ioserr.New(ioserr.Conflict, "idempotency key already emitted"))

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(result)})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	data, err := json.Marshal(body)
	if err != nil {
		writeError(w, ioserr.Wrap(ioserr.Internal, "encode response", err))

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}
