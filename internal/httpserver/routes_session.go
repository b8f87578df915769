package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grasdvirus/double-words-sub000/internal/session"
)

// mountSessionRoutes registers /session endpoints. Guests get a session keyed
// by their anon cookie.
func (s *Server) mountSessionRoutes(r chi.Router) {
	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Put("/settings", s.handleUpdateSettings)
		r.Post("/reset", s.handleResetSession)
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Get(r.Context(), s.player(w, r).UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st.State())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var body session.Settings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid_json")
		return
	}
	st, err := s.sessions.Get(r.Context(), s.player(w, r).UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := st.UpdateSettings(r.Context(), body); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st.State())
}

// handleResetSession wipes level, score, history and settings.
func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Get(r.Context(), s.player(w, r).UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := st.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st.State())
}
