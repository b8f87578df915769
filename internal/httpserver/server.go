// internal/httpserver/server.go
//
// HTTP server wiring for the Double Words backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health".
//   - Play endpoints (optional auth, guests allowed): /session, /rounds, /tournaments, /duels.
//   - Push endpoints (websocket, no handler timeout): /duels/{id}/ws, /leaderboard/ws.
//   - Auth + palmares endpoints: /auth/*, /palmares/me.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Every error response is {"error": ..., "notification": {...}} so the
//     client can show a toast without knowing the error taxonomy.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/internal/config"
	"github.com/grasdvirus/double-words-sub000/internal/database"
	"github.com/grasdvirus/double-words-sub000/internal/docstore"
	"github.com/grasdvirus/double-words-sub000/internal/duel"
	"github.com/grasdvirus/double-words-sub000/internal/generator"
	"github.com/grasdvirus/double-words-sub000/internal/leaderboard"
	"github.com/grasdvirus/double-words-sub000/internal/notify"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/round"
	"github.com/grasdvirus/double-words-sub000/internal/session"
	"github.com/grasdvirus/double-words-sub000/internal/store"
	"github.com/grasdvirus/double-words-sub000/internal/tournament"
)

// Deps are the services the server exposes.
type Deps struct {
	Config      config.Config
	Users       *database.Users
	Trophies    *database.Trophies
	KV          session.KV
	Rounds      store.Rounds
	Generator   generator.Generator
	Tournaments *tournament.Catalogue
	Duels       *duel.Service
	Board       *leaderboard.Board
	Now         func() time.Time
}

// Server bundles router and services.
type Server struct {
	Deps
	r        *chi.Mux
	sessions *sessionCache
}

// New constructs a Server, installs middleware, and registers routes.
func New(d Deps) *Server {
	if d.Now == nil {
		d.Now = time.Now
	}
	s := &Server{Deps: d, r: chi.NewRouter(), sessions: newSessionCache(d.KV, sessionCacheSize, sessionIdle)}

	// --- middleware ---
	s.r.Use(chimw.RequestID)    // add X-Request-ID
	s.r.Use(chimw.RealIP)       // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)    // recover from panics
	s.r.Use(jsonContentType)    // default JSON responses
	s.r.Use(s.cors)             // credentials-friendly CORS
	s.r.Use(s.withOptionalAuth) // user context when a valid token is present

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"service":"double-words","endpoints":["/health","/session","/rounds","/tournaments","/duels","/leaderboard","/auth/*"]}`))
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	// Push subscriptions live as long as the socket; no handler timeout.
	s.r.Get("/duels/{id}/ws", s.handleDuelSocket)
	s.r.Get("/leaderboard/ws", s.handleLeaderboardSocket)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		s.mountAuthRoutes(r)
		s.mountSessionRoutes(r)
		s.mountRoundRoutes(r)
		s.mountTournamentRoutes(r)
		s.mountDuelRoutes(r)
		s.mountLeaderboardRoutes(r)
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start serves HTTP on addr until ctx ends, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.r, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdown)
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.Config.ClientOrigin
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ------------------------------ responses ----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("encode response")
	}
}

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error        string              `json:"error"`
	Notification notify.Notification `json:"notification"`
	Round        *round.View         `json:"round,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorBody(w, r, err, errorBody{})
}

func writeErrorBody(w http.ResponseWriter, r *http.Request, err error, body errorBody) {
	status := statusFor(err)
	ev := log.Warn()
	if status >= http.StatusInternalServerError {
		ev = log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Str("request", chimw.GetReqID(r.Context())).Int("status", status).Msg("request failed")
	body.Error = err.Error()
	body.Notification = notify.FromError(err)
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{
		Error:        msg,
		Notification: notify.Notification{Title: "Invalid request", Message: msg, Severity: notify.SeverityError, DismissAfter: notify.ShortDismiss},
	})
}

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, duel.ErrDuration):
		return http.StatusBadRequest
	case errors.Is(err, docstore.ErrPermissionDenied), errors.Is(err, duel.ErrNotPlayer):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound), errors.Is(err, duel.ErrNotFound), errors.Is(err, tournament.ErrNotFound),
		errors.Is(err, docstore.ErrNotFound), errors.Is(err, database.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, generator.ErrGenerationFailed), errors.Is(err, puzzle.ErrInvalidChallenge):
		return http.StatusBadGateway
	case errors.Is(err, round.ErrWrongState), errors.Is(err, duel.ErrNotActive), errors.Is(err, duel.ErrDuelFull),
		errors.Is(err, duel.ErrNotJoinable), errors.Is(err, database.ErrUsernameTaken), errors.Is(err, database.ErrSeasonArchived):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
