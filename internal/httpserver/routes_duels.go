// internal/httpserver/routes_duels.go
//
// Two-player duels over the shared document store.
//   - POST /duels          → create a room {minutes, language}
//   - POST /duels/join     → join by room code {code}
//   - GET  /duels/{id}     → current document (players only)
//   - GET  /duels/{id}/qr.png → invitation QR code for the room code
//   - GET  /duels/{id}/ws  → live views; frames from the client are actions
//
// Closing the socket leaves the duel.

package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"github.com/grasdvirus/double-words-sub000/internal/duel"
	"github.com/grasdvirus/double-words-sub000/internal/notify"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/round"
)

const duelTick = 250 * time.Millisecond

type createDuelReq struct {
	Minutes  int    `json:"minutes"`
	Language string `json:"language"`
}

type joinDuelReq struct {
	Code string `json:"code"`
}

type duelRes struct {
	ID   string       `json:"id"`
	Duel duel.Session `json:"duel"`
}

func (s *Server) mountDuelRoutes(r chi.Router) {
	r.Route("/duels", func(r chi.Router) {
		r.Post("/", s.handleCreateDuel)
		r.Post("/join", s.handleJoinDuel)
		r.Get("/{id}", s.handleGetDuel)
		r.Get("/{id}/qr.png", s.handleDuelQR)
	})
}

func (p player) duelist() duel.Player {
	return duel.Player{UID: p.UID, DisplayName: p.DisplayName}
}

func (s *Server) handleCreateDuel(w http.ResponseWriter, r *http.Request) {
	var body createDuelReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		badRequest(w, "invalid_json")
		return
	}
	if body.Minutes < 1 || body.Minutes > duel.MaxMinutes {
		badRequest(w, duel.ErrDuration.Error())
		return
	}
	d, err := s.Duels.Create(r.Context(), s.player(w, r).duelist(), body.Minutes, puzzle.ParseLanguage(body.Language))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, duelRes{ID: d.ID, Duel: d})
}

func (s *Server) handleJoinDuel(w http.ResponseWriter, r *http.Request) {
	var body joinDuelReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
		badRequest(w, "code is required")
		return
	}
	d, err := s.Duels.Join(r.Context(), body.Code, s.player(w, r).duelist())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, duelRes{ID: d.ID, Duel: d})
}

// memberDuel loads duel {id} and checks the caller plays in it.
func (s *Server) memberDuel(w http.ResponseWriter, r *http.Request) (duel.Session, player, error) {
	p := s.player(w, r)
	d, err := s.Duels.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return duel.Session{}, p, err
	}
	if !d.Has(p.UID) {
		return duel.Session{}, p, duel.ErrNotPlayer
	}
	return d, p, nil
}

func (s *Server) handleGetDuel(w http.ResponseWriter, r *http.Request) {
	d, _, err := s.memberDuel(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, duelRes{ID: d.ID, Duel: d})
}

// handleDuelQR renders a join link for the room code as a PNG.
func (s *Server) handleDuelQR(w http.ResponseWriter, r *http.Request) {
	d, _, err := s.memberDuel(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	link := s.Config.ClientOrigin + "/duel/join?code=" + url.QueryEscape(d.GameCode)
	png, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// duelAction is the data of an "action" frame.
type duelAction struct {
	Action string `json:"action"`
	Tile   int    `json:"tile"`
	Letter string `json:"letter"`
}

// handleDuelSocket streams views of the duel to one player and applies the
// actions they send back.
func (s *Server) handleDuelSocket(w http.ResponseWriter, r *http.Request) {
	d, p, err := s.memberDuel(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	up := s.upgrader()
	raw, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("duel", d.ID).Msg("websocket upgrade")
		return
	}
	conn := newWSConn(raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go conn.keepAlive(ctx.Done())

	client := s.Duels.Connect(d.ID, p.duelist(), round.WithClock(s.Now))
	go func() {
		defer cancel()
		err := client.Run(ctx, duelTick, func(v duel.View) {
			if err := conn.send("view", v); err != nil {
				log.Debug().Err(err).Str("duel", d.ID).Msg("push duel view")
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("duel", d.ID).Msg("duel subscription ended")
		}
	}()

	for {
		var in message
		if err := conn.ReadJSON(&in); err != nil {
			break
		}
		if in.Type != "action" {
			continue
		}
		var a duelAction
		if err := json.Unmarshal(in.Data, &a); err != nil {
			_ = conn.send("error", notify.FromError(err))
			continue
		}
		out, err := s.applyDuelAction(ctx, client, a)
		if err != nil {
			_ = conn.send("error", notify.FromError(err))
		}
		if out != nil {
			_ = conn.send("result", out)
		}
		_ = conn.send("view", client.View(ctx))
		if a.Action == "leave" {
			break
		}
	}

	if err := client.Leave(context.Background()); err != nil && !errors.Is(err, duel.ErrNotActive) {
		log.Debug().Err(err).Str("duel", d.ID).Str("player", p.UID).Msg("leave duel")
	}
}

// applyDuelAction runs one action; the returned value, when set, is sent as
// a "result" frame.
func (s *Server) applyDuelAction(ctx context.Context, c *duel.Client, a duelAction) (any, error) {
	switch a.Action {
	case "press":
		return map[string]bool{"accepted": c.Press(ctx, a.Tile)}, nil
	case "letter":
		letters := []rune(a.Letter)
		if len(letters) != 1 {
			return nil, errors.New("letter must be a single character")
		}
		return map[string]bool{"accepted": c.PressLetter(ctx, letters[0])}, nil
	case "backspace":
		return map[string]bool{"accepted": c.Backspace(ctx)}, nil
	case "hint":
		h, err := c.Hint(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]string{"hint": h}, nil
	case "reveal":
		return nil, c.Reveal(ctx)
	case "submit":
		res, err := c.Submit(ctx)
		if err != nil {
			return nil, err
		}
		return res, nil
	case "generate":
		return nil, c.Generate(ctx)
	case "leave":
		return nil, nil
	}
	return nil, errors.New("unknown action " + a.Action)
}
