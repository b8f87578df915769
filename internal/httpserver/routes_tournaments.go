package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/grasdvirus/double-words-sub000/internal/tournament"
)

// tournamentRes is a category summary with the caller's progress.
type tournamentRes struct {
	tournament.Summary
	NextLevel int  `json:"nextLevel"`
	Finished  bool `json:"finished"`
}

func (s *Server) mountTournamentRoutes(r chi.Router) {
	r.Route("/tournaments", func(r chi.Router) {
		r.Get("/", s.handleListTournaments)
		r.Get("/{category}", s.handleGetTournament)
		r.Post("/{category}/reset", s.handleResetTournament)
	})
}

func (s *Server) handleListTournaments(w http.ResponseWriter, r *http.Request) {
	st, err := s.sessions.Get(r.Context(), s.player(w, r).UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := lo.Map(s.Tournaments.Categories(), func(c tournament.Summary, _ int) tournamentRes {
		next := st.TournamentLevel(c.ID)
		return tournamentRes{Summary: c, NextLevel: next, Finished: next > c.Levels}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTournament(w http.ResponseWriter, r *http.Request) {
	cat, err := s.Tournaments.Get(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.sessions.Get(r.Context(), s.player(w, r).UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	next := st.TournamentLevel(cat.ID)
	writeJSON(w, http.StatusOK, tournamentRes{Summary: cat.Summary(), NextLevel: next, Finished: next > len(cat.Levels)})
}

// handleResetTournament restarts a category from level 1.
func (s *Server) handleResetTournament(w http.ResponseWriter, r *http.Request) {
	cat, err := s.Tournaments.Get(chi.URLParam(r, "category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := s.sessions.Get(r.Context(), s.player(w, r).UID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := st.ResetTournament(r.Context(), cat.ID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tournamentRes{Summary: cat.Summary(), NextLevel: 1})
}
