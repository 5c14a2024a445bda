package api

import (
	"log/slog"
	"net/http"
	"strings"
)

// healthHandler reports basic liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, errorResult("Method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, successResult("healthy"))
}

// conversationHandler serves GET /conversations/{phone}: the current
// conversation record for an operator to inspect.
func (s *Server) conversationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, errorResult("Method not allowed"))
		return
	}

	phone := strings.TrimPrefix(r.URL.Path, "/conversations/")
	if phone == "" || strings.Contains(phone, "/") {
		writeJSONResponse(w, http.StatusBadRequest, errorResult("Phone number required"))
		return
	}

	rec, err := s.engine.State(r.Context(), phone)
	if err != nil {
		slog.Error("Server conversationHandler state lookup failed", "phone", phone, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, errorResult("Failed to load conversation"))
		return
	}
	if rec == nil {
		writeJSONResponse(w, http.StatusNotFound, errorResult("Conversation not found"))
		return
	}

	writeJSONResponse(w, http.StatusOK, successResult(rec))
}
