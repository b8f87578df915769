package httpserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/internal/leaderboard"
)

// leaderboardRes is the board plus the running season.
type leaderboardRes struct {
	Entries []leaderboard.Entry `json:"entries"`
	Season  string              `json:"season,omitempty"`
	EndsAt  *time.Time          `json:"endsAt,omitempty"`
}

func (s *Server) mountLeaderboardRoutes(r chi.Router) {
	r.Get("/leaderboard", s.handleLeaderboard)
}

// limitParam reads ?limit=, defaulting to leaderboard.DefaultLimit and capped at 100.
func limitParam(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return leaderboard.DefaultLimit
	}
	return min(n, 100)
}

func (s *Server) board(entries []leaderboard.Entry) leaderboardRes {
	res := leaderboardRes{Entries: entries, Season: s.Config.Season.ID}
	if !s.Config.Season.End.IsZero() {
		end := s.Config.Season.End
		res.EndsAt = &end
	}
	if res.Entries == nil {
		res.Entries = []leaderboard.Entry{}
	}
	return res
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := s.Board.Top(r.Context(), limitParam(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.board(entries))
}

// handleLeaderboardSocket pushes the ranked board on every change.
func (s *Server) handleLeaderboardSocket(w http.ResponseWriter, r *http.Request) {
	up := s.upgrader()
	raw, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	conn := newWSConn(raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go conn.keepAlive(ctx.Done())
	go func() {
		defer cancel()
		// drain client frames so pongs and close are processed
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for entries := range s.Board.Subscribe(ctx, limitParam(r)) {
		if err := conn.send("leaderboard", s.board(entries)); err != nil {
			return
		}
	}
}
