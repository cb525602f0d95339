package api

import (
	"net/http"
)

// handleWebSocket admits a subscriber. The credential is checked before
// the upgrade so rejected clients never reach the gateway registry.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	user, err := s.gateway.Authenticate(r)
	if err != nil {
		s.writeAuthError(w, r, err)
		return
	}

	if err := s.gateway.Accept(w, r, user); err != nil {
		s.logger.Warn("websocket upgrade failed", "user_id", user.ID, "error", err)
	}
}
