package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fieldlink/fieldlink-core/internal/dispatch"
	"github.com/fieldlink/fieldlink-core/internal/eventbus"
)

// EchoEvent is the payload of a development echo broadcast.
type EchoEvent struct {
	Message string `json:"message"`
}

// handleListCommands returns the command catalog.
func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	commands := s.catalog.List()
	writeJSON(w, http.StatusOK, map[string]any{
		"commands": commands,
		"count":    len(commands),
	})
}

// handleDispatch validates and sends a command. 202 means the frames went
// out; device answers arrive later over the WebSocket.
func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "could not read request body")
		return
	}

	req, err := dispatch.ParseRequest(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}
	if user := userFromContext(r.Context()); user != nil {
		req.RequestedBy = user.ID
	}

	res, err := s.dispatch.Dispatch(r.Context(), req)
	if err != nil {
		s.writeDispatchError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, res)
}

// writeDispatchError maps the dispatch error taxonomy to HTTP.
func (s *Server) writeDispatchError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrCommandNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, dispatch.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, dispatch.ErrTargetNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, dispatch.ErrBrokerUnavailable):
		writeError(w, http.StatusInternalServerError, ErrCodeBrokerUnavailable, "broker is not connected")
	case errors.Is(err, dispatch.ErrPartialPublish):
		writeError(w, http.StatusInternalServerError, ErrCodePartialPublish, err.Error())
	default:
		s.logger.Error("dispatch failed",
			"error", err, "request_id", r.Context().Value(ctxKeyRequestID))
		writeInternalError(w, "dispatch failed")
	}
}

// handleBrokerStatus reports the broker connection status.
func (s *Server) handleBrokerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    s.broker.Status(),
	})
}

// handleUsage returns per-command usage counts.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.usage == nil {
		writeJSON(w, http.StatusOK, map[string]any{"usage": []any{}})
		return
	}
	summary, err := s.usage.Summary(r.Context())
	if err != nil {
		s.logger.Error("usage summary failed", "error", err)
		writeInternalError(w, "could not load usage")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": summary})
}

// handleTestWS broadcasts a message to every WebSocket subscriber.
// Registered only in dev mode.
func (s *Server) handleTestWS(w http.ResponseWriter, r *http.Request) {
	var ev EchoEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil || ev.Message == "" {
		writeBadRequest(w, "message is required")
		return
	}

	s.events.Publish(eventbus.TopicEcho, ev)
	writeJSON(w, http.StatusAccepted, map[string]any{"success": true})
}
