package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fieldlink/fieldlink-core/internal/coordinator"
)

const healthCheckTimeout = 2 * time.Second

// handleHealth reports liveness. A failing database makes the service
// "degraded" with a 503. A disconnected broker or an unreachable InfluxDB
// is reported as degraded with a 200, since both recover on their own.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	status, code := "ok", http.StatusOK
	body := map[string]any{
		"version": s.version,
		"broker":  s.broker.Status(),
	}

	if s.database != nil {
		if err := s.database.HealthCheck(ctx); err != nil {
			s.logger.Warn("database health check failed", "error", err)
			status, code = "degraded", http.StatusServiceUnavailable
			body["database"] = "unavailable"
		} else {
			body["database"] = "ok"
		}
	}

	for name, check := range map[string]HealthChecker{"mqtt": s.mqtt, "influxdb": s.influxdb} {
		if check == nil {
			continue
		}
		if err := check.HealthCheck(ctx); err != nil {
			body[name] = "unavailable"
			status = "degraded"
			continue
		}
		body[name] = "ok"
	}

	body["status"] = status
	writeJSON(w, code, body)
}

// handleCoordinatorNodes lists nodes grouped by coordinator id.
func (s *Server) handleCoordinatorNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.nodes.NodesByCoordinator(r.Context())
	if err != nil {
		s.logger.Error("listing coordinator nodes failed", "error", err)
		writeInternalError(w, "could not load coordinators")
		return
	}

	out := make(map[string][]coordinator.Node, len(nodes))
	for id, list := range nodes {
		out[strconv.Itoa(id)] = list
	}
	writeJSON(w, http.StatusOK, out)
}
