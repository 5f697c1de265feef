// Package http implements the REST API for event ingestion and stats.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/arcadehub/arcade-events/internal/application/command"
	"github.com/arcadehub/arcade-events/internal/application/query"
	"github.com/arcadehub/arcade-events/internal/domain/shared"
	"github.com/arcadehub/arcade-events/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Arcade Events API",
		"version":     "v1",
		"description": "Event ingestion and per-user score aggregation",
		"endpoints": map[string]string{
			"health": "/health",
			"submit": "/api/v1/events/event",
			"stats":  "/api/v1/stats/{user_id}",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT INGESTION HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// SubmitEventRequest is the request body for event submission.
type SubmitEventRequest struct {
	UserID  int64                  `json:"user_id"`
	Type    string                 `json:"event_type"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SubmitEventResponse is the response body for a recorded event.
type SubmitEventResponse struct {
	EventID   string `json:"event_id"`
	UserID    int64  `json:"user_id"`
	Type      string `json:"event_type"`
	CreatedAt string `json:"created_at"`
}

// handleSubmitEvent handles POST /api/v1/events/event
func (s *Server) handleSubmitEvent(w http.ResponseWriter, r *http.Request) {
	if s.deps.SubmitEventHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Event handler not configured")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}
	defer r.Body.Close()

	var req SubmitEventRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	cmd := command.SubmitEventCommand{
		UserID:        req.UserID,
		Type:          req.Type,
		Details:       req.Details,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.SubmitEventHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeCommandError(w, r, err, "Failed to record event")
		return
	}

	writeJSON(w, http.StatusCreated, SubmitEventResponse{
		EventID:   result.EventID,
		UserID:    result.UserID,
		Type:      result.Type,
		CreatedAt: result.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStats handles GET /api/v1/stats/{user_id}
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Stats handler not configured")
		return
	}

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	result, err := s.deps.GetStatsHandler.Handle(r.Context(), query.GetStatsQuery{UserID: userID})
	if err != nil {
		s.writeCommandError(w, r, err, "Failed to get stats")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleReconcile handles POST /api/v1/admin/reconcile/{user_id}
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.deps.ReconcileUserHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Reconcile handler not configured")
		return
	}

	userID, ok := parseUserID(w, r)
	if !ok {
		return
	}

	cmd := command.ReconcileUserCommand{
		UserID: userID,
		DryRun: getQueryParamBool(r, "dry_run"),
	}

	result, err := s.deps.ReconcileUserHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeCommandError(w, r, err, "Reconciliation failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// SHARED HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// parseUserID extracts and validates the user_id path value.
func parseUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("user_id")
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "user_id must be a positive integer")
		return 0, false
	}
	return userID, true
}

// writeCommandError maps application errors to HTTP status codes.
func (s *Server) writeCommandError(w http.ResponseWriter, r *http.Request, err error, message string) {
	switch {
	case shared.IsValidation(err):
		var de *shared.DomainError
		if errors.As(err, &de) {
			writeJSONErrorWithDetails(w, http.StatusBadRequest, "validation_error", message, de.Message)
			return
		}
		writeJSONError(w, http.StatusBadRequest, "validation_error", message)
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", message)
	case shared.IsCounterUnavailable(err):
		s.logger.Error("counter store unavailable",
			logger.Err(err),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusServiceUnavailable, "counter_unavailable", message)
	default:
		s.logger.Error("request failed",
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", message)
	}
}
