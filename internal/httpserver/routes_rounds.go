// internal/httpserver/routes_rounds.go
//
// Solo, training and tournament rounds.
//   - POST /rounds              → create a round {mode, category?} and start it
//   - GET  /rounds/{id}         → current view (settles the timer)
//   - POST /rounds/{id}/{action} → press, letter, backspace, hint, reveal,
//     submit, continue, retry, start
//
// Rounds live in store.Rounds keyed by the player; their progress lives in
// the player's session.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grasdvirus/double-words-sub000/internal/round"
	"github.com/grasdvirus/double-words-sub000/internal/session"
)

// createRoundReq is the body of POST /rounds.
type createRoundReq struct {
	Mode     round.Mode `json:"mode"`
	Category string     `json:"category,omitempty"`
}

// actionReq carries the optional arguments of a round action.
type actionReq struct {
	Tile   int    `json:"tile"`
	Letter string `json:"letter"`
}

// roundRes is returned by every round endpoint.
type roundRes struct {
	Round    round.View    `json:"round"`
	Result   *round.Result `json:"result,omitempty"`
	Hint     string        `json:"hint,omitempty"`
	Accepted *bool         `json:"accepted,omitempty"`
}

func (s *Server) mountRoundRoutes(r chi.Router) {
	r.Route("/rounds", func(r chi.Router) {
		r.Post("/", s.handleCreateRound)
		r.Get("/{id}", s.handleGetRound)
		r.Post("/{id}/{action}", s.handleRoundAction)
	})
}

func (s *Server) handleCreateRound(w http.ResponseWriter, r *http.Request) {
	var body createRoundReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid_json")
		return
	}
	p := s.player(w, r)
	rd, err := s.newRound(r.Context(), p, body)
	if err != nil {
		if errors.Is(err, errBadMode) {
			badRequest(w, err.Error())
			return
		}
		writeError(w, r, err)
		return
	}
	if err := s.Rounds.Save(r.Context(), p.UID, rd); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rd.Start(r.Context()); err != nil {
		v := rd.View(r.Context())
		writeErrorBody(w, r, err, errorBody{Round: &v})
		return
	}
	writeJSON(w, http.StatusCreated, roundRes{Round: rd.View(r.Context())})
}

var errBadMode = errors.New("mode must be solo, training or tournament")

// newRound wires policy, challenge source and ledger for the requested mode.
func (s *Server) newRound(ctx context.Context, p player, body createRoundReq) (*round.Round, error) {
	policy, ok := round.PolicyFor(body.Mode)
	if !ok || body.Mode == round.ModeDuel {
		return nil, errBadMode
	}
	st, err := s.sessions.Get(ctx, p.UID)
	if err != nil {
		return nil, err
	}
	opts := []round.Option{round.WithClock(s.Now)}

	if body.Mode == round.ModeTournament {
		cat, err := s.Tournaments.Get(body.Category)
		if err != nil {
			return nil, err
		}
		ledger := session.TournamentLedger{Store: st, Category: cat.ID, Levels: len(cat.Levels)}
		return round.New(policy, cat.Source(), ledger, opts...), nil
	}

	ledger := session.SoloLedger{Store: st}
	if body.Mode == round.ModeSolo {
		opts = append(opts, round.WithOriginality(s.Generator))
		if p.Registered && s.Board != nil {
			ledger.Scoreboard = s.Board.For(p.UID, p.DisplayName)
		}
	}
	return round.New(policy, round.GeneratorSource{Gen: s.Generator}, ledger, opts...), nil
}

func (s *Server) handleGetRound(w http.ResponseWriter, r *http.Request) {
	rd, err := s.Rounds.Get(r.Context(), s.player(w, r).UID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roundRes{Round: rd.View(r.Context())})
}

// handleRoundAction dispatches one player input to the round machine.
// Inputs that the machine ignores report accepted=false instead of failing.
func (s *Server) handleRoundAction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rd, err := s.Rounds.Get(ctx, s.player(w, r).UID, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body actionReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		badRequest(w, "invalid_json")
		return
	}

	var res roundRes
	accepted := func(ok bool) { res.Accepted = &ok }
	switch chi.URLParam(r, "action") {
	case "press":
		accepted(rd.Press(ctx, body.Tile))
	case "letter":
		letters := []rune(body.Letter)
		if len(letters) != 1 {
			badRequest(w, "letter must be a single character")
			return
		}
		accepted(rd.PressLetter(ctx, letters[0]))
	case "backspace":
		accepted(rd.Backspace(ctx))
	case "hint":
		res.Hint, err = rd.Hint(ctx)
	case "reveal":
		err = rd.Reveal(ctx)
	case "submit":
		var out round.Result
		if out, err = rd.Submit(ctx); err == nil {
			res.Result = &out
		}
	case "continue":
		err = rd.Continue(ctx)
	case "retry":
		err = rd.Retry(ctx)
	case "start":
		err = rd.Start(ctx)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_action"})
		return
	}

	v := rd.View(ctx)
	if err != nil {
		writeErrorBody(w, r, err, errorBody{Round: &v})
		return
	}
	res.Round = v
	writeJSON(w, http.StatusOK, res)
}
