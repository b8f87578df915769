package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/grasdvirus/double-words-sub000/assets"
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

// fakeGen always proposes MAISON/AI unless told to fail.
type fakeGen struct {
	mu   sync.Mutex
	fail bool
}

func (g *fakeGen) GenerateChallenge(context.Context, []string, puzzle.Language) (puzzle.Challenge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.fail {
		return puzzle.Challenge{}, generator.ErrGenerationFailed
	}
	return puzzle.Challenge{Challenge: "AI", SolutionWord: "MAISON", Description: "Un logement", Hint: "On y habite"}, nil
}

func (g *fakeGen) EvaluateRound(context.Context, generator.EvalRequest) (generator.Evaluation, error) {
	return generator.Evaluation{}, nil
}

func (g *fakeGen) CheckOriginality(context.Context, string, []string) (generator.Originality, error) {
	return generator.Originality{}, nil
}

func (g *fakeGen) setFail(v bool) {
	g.mu.Lock()
	g.fail = v
	g.mu.Unlock()
}

type testEnv struct {
	srv *httptest.Server
	gen *fakeGen
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	db, err := database.Open("sqlite3", filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(ctx, assets.Migrations()); err != nil {
		t.Fatal(err)
	}
	cats, err := tournament.Default()
	if err != nil {
		t.Fatal(err)
	}
	docs := docstore.New(docstore.WithRules(docstore.Chain(duel.Rules, leaderboard.Rules)))
	gen := &fakeGen{}

	s := New(Deps{
		Config: config.Config{
			ClientOrigin: "http://localhost:5173",
			JWTSecret:    "test-secret",
			JWTTTL:       time.Hour,
			CookieName:   "dw_token",
		},
		Users:       database.NewUsers(db),
		Trophies:    database.NewTrophies(db),
		KV:          store.NewMemoryKV(),
		Rounds:      store.NewMemoryRounds(),
		Generator:   gen,
		Tournaments: cats,
		Duels:       duel.NewService(docs, gen),
		Board:       leaderboard.New(docs),
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, gen: gen}
}

// browser is one player with its own cookie jar.
type browser struct {
	t    *testing.T
	base string
	c    *http.Client
}

func (e *testEnv) browser(t *testing.T) *browser {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	return &browser{t: t, base: e.srv.URL, c: &http.Client{Jar: jar}}
}

func (b *browser) do(method, path string, body any, out any) int {
	b.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			b.t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, b.base+path, rd)
	if err != nil {
		b.t.Fatal(err)
	}
	res, err := b.c.Do(req)
	if err != nil {
		b.t.Fatal(err)
	}
	defer res.Body.Close()
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			b.t.Fatalf("%s %s: decode: %v", method, path, err)
		}
	}
	return res.StatusCode
}

func (b *browser) signup(name string) authUser {
	b.t.Helper()
	var u authUser
	if code := b.do(http.MethodPost, "/auth/signup", credentials{Username: name, Password: "password123"}, &u); code != http.StatusOK {
		b.t.Fatalf("signup %s: status %d", name, code)
	}
	return u
}

// cookieHeader returns the jar's cookies for the websocket dialer.
func (b *browser) cookieHeader() http.Header {
	u, _ := url.Parse(b.base)
	h := http.Header{}
	for _, c := range b.c.Jar.Cookies(u) {
		h.Add("Cookie", c.Name+"="+c.Value)
	}
	return h
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	var body map[string]bool
	if code := env.browser(t).do(http.MethodGet, "/health", nil, &body); code != http.StatusOK || !body["ok"] {
		t.Fatalf("health = %d %v", code, body)
	}
}

func TestAuthFlow(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	if code := b.do(http.MethodGet, "/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me before signup = %d", code)
	}
	u := b.signup("alice")

	var me authUser
	if code := b.do(http.MethodGet, "/auth/me", nil, &me); code != http.StatusOK || me.ID != u.ID {
		t.Fatalf("me = %d %+v", code, me)
	}

	var dup errorBody
	if code := env.browser(t).do(http.MethodPost, "/auth/signup", credentials{Username: "alice", Password: "password123"}, &dup); code != http.StatusConflict {
		t.Fatalf("duplicate signup = %d", code)
	}
	if dup.Notification.Title == "" {
		t.Fatal("error without notification")
	}

	other := env.browser(t)
	if code := other.do(http.MethodPost, "/auth/login", credentials{Username: "alice", Password: "wrong-password"}, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad login = %d", code)
	}
	if code := other.do(http.MethodPost, "/auth/login", credentials{Username: "alice", Password: "password123"}, nil); code != http.StatusOK {
		t.Fatalf("login = %d", code)
	}

	b.do(http.MethodPost, "/auth/logout", nil, nil)
	if code := b.do(http.MethodGet, "/auth/me", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me after logout = %d", code)
	}
}

func TestSignupValidation(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name string
		body credentials
	}{
		{"short username", credentials{Username: "al", Password: "password123"}},
		{"bad characters", credentials{Username: "al ice", Password: "password123"}},
		{"short password", credentials{Username: "alice", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := env.browser(t).do(http.MethodPost, "/auth/signup", tt.body, nil); code != http.StatusBadRequest {
				t.Fatalf("status = %d", code)
			}
		})
	}
}

func TestGuestSessionClaimedOnSignup(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	var st session.State
	if code := b.do(http.MethodPut, "/session/settings", session.Settings{Language: "en", Sound: true}, &st); code != http.StatusOK {
		t.Fatalf("settings = %d", code)
	}
	if st.Settings.Language != puzzle.EN {
		t.Fatalf("language = %q", st.Settings.Language)
	}

	b.signup("claimer")
	st = session.State{}
	b.do(http.MethodGet, "/session", nil, &st)
	if st.Settings.Language != puzzle.EN || !st.Settings.Sound {
		t.Fatalf("claimed settings = %+v", st.Settings)
	}

	b.do(http.MethodPost, "/session/reset", nil, &st)
	if st.Settings.Language != puzzle.FR || st.Level != 1 {
		t.Fatalf("after reset = %+v", st)
	}
}

func TestSoloRoundFeedsSessionAndLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	u := b.signup("solver")

	var created roundRes
	if code := b.do(http.MethodPost, "/rounds", createRoundReq{Mode: round.ModeSolo}, &created); code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	if created.Round.Challenge != "AI" || created.Round.State != round.StateAwaitingInput {
		t.Fatalf("round = %+v", created.Round)
	}
	id := created.Round.ID

	for _, l := range "MAISON" {
		var res roundRes
		b.do(http.MethodPost, "/rounds/"+id+"/letter", actionReq{Letter: string(l)}, &res)
		if res.Accepted == nil || !*res.Accepted {
			t.Fatalf("letter %c not accepted", l)
		}
	}
	var done roundRes
	if code := b.do(http.MethodPost, "/rounds/"+id+"/submit", nil, &done); code != http.StatusOK {
		t.Fatalf("submit = %d", code)
	}
	if done.Result == nil || !done.Result.Correct || done.Round.Solution != "MAISON" {
		t.Fatalf("submit = %+v", done)
	}

	var st session.State
	b.do(http.MethodGet, "/session", nil, &st)
	if st.Level != 2 || st.Score != done.Result.Score || len(st.History) != 1 {
		t.Fatalf("session = %+v", st)
	}

	var board leaderboardRes
	b.do(http.MethodGet, "/leaderboard", nil, &board)
	if len(board.Entries) != 1 || board.Entries[0].UserID != u.ID || board.Entries[0].Score != done.Result.Completion.Total {
		t.Fatalf("board = %+v", board)
	}
}

func TestGuestRoundsStayOffLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	var created roundRes
	b.do(http.MethodPost, "/rounds", createRoundReq{Mode: round.ModeSolo}, &created)
	for _, l := range "MAISON" {
		b.do(http.MethodPost, "/rounds/"+created.Round.ID+"/letter", actionReq{Letter: string(l)}, nil)
	}
	b.do(http.MethodPost, "/rounds/"+created.Round.ID+"/submit", nil, nil)

	var board leaderboardRes
	b.do(http.MethodGet, "/leaderboard", nil, &board)
	if len(board.Entries) != 0 {
		t.Fatalf("board = %+v", board.Entries)
	}
}

func TestRoundErrors(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"duel mode", http.MethodPost, "/rounds", createRoundReq{Mode: round.ModeDuel}, http.StatusBadRequest},
		{"unknown mode", http.MethodPost, "/rounds", createRoundReq{Mode: "arcade"}, http.StatusBadRequest},
		{"unknown category", http.MethodPost, "/rounds", createRoundReq{Mode: round.ModeTournament, Category: "nope"}, http.StatusNotFound},
		{"unknown round", http.MethodGet, "/rounds/missing", nil, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code := b.do(tt.method, tt.path, tt.body, nil); code != tt.want {
				t.Fatalf("status = %d, want %d", code, tt.want)
			}
		})
	}

	t.Run("other player's round", func(t *testing.T) {
		var created roundRes
		b.do(http.MethodPost, "/rounds", createRoundReq{Mode: round.ModeTraining}, &created)
		if code := env.browser(t).do(http.MethodGet, "/rounds/"+created.Round.ID, nil, nil); code != http.StatusNotFound {
			t.Fatalf("status = %d", code)
		}
	})

	t.Run("wrong state", func(t *testing.T) {
		var created roundRes
		b.do(http.MethodPost, "/rounds", createRoundReq{Mode: round.ModeTraining}, &created)
		var body errorBody
		if code := b.do(http.MethodPost, "/rounds/"+created.Round.ID+"/continue", nil, &body); code != http.StatusConflict {
			t.Fatalf("status = %d", code)
		}
		if body.Round == nil || body.Round.ID != created.Round.ID {
			t.Fatalf("error body without round: %+v", body)
		}
	})
}

func TestGenerationFailureCanBeRetried(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)
	env.gen.setFail(true)

	var body errorBody
	if code := b.do(http.MethodPost, "/rounds", createRoundReq{Mode: round.ModeSolo}, &body); code != http.StatusBadGateway {
		t.Fatalf("status = %d", code)
	}
	if body.Round == nil || body.Round.State != round.StateGenerating {
		t.Fatalf("round = %+v", body.Round)
	}

	env.gen.setFail(false)
	var res roundRes
	if code := b.do(http.MethodPost, "/rounds/"+body.Round.ID+"/start", nil, &res); code != http.StatusOK {
		t.Fatalf("start = %d", code)
	}
	if res.Round.State != round.StateAwaitingInput {
		t.Fatalf("state = %q", res.Round.State)
	}
}

func TestTournamentRoutes(t *testing.T) {
	env := newTestEnv(t)
	b := env.browser(t)

	var list []tournamentRes
	if code := b.do(http.MethodGet, "/tournaments", nil, &list); code != http.StatusOK || len(list) == 0 {
		t.Fatalf("list = %d %v", code, list)
	}
	for _, c := range list {
		if c.NextLevel != 1 || c.Finished {
			t.Fatalf("fresh progress = %+v", c)
		}
	}

	var one tournamentRes
	if code := b.do(http.MethodGet, "/tournaments/"+list[0].ID, nil, &one); code != http.StatusOK || one.ID != list[0].ID {
		t.Fatalf("get = %d %+v", code, one)
	}

	var missing errorBody
	if code := b.do(http.MethodGet, "/tournaments/unknown", nil, &missing); code != http.StatusNotFound {
		t.Fatalf("unknown = %d", code)
	}
	if missing.Notification.Severity != notify.SeverityInfo {
		t.Fatalf("notification = %+v", missing.Notification)
	}

	var created roundRes
	if code := b.do(http.MethodPost, "/rounds", createRoundReq{Mode: round.ModeTournament, Category: list[0].ID}, &created); code != http.StatusCreated {
		t.Fatalf("tournament round = %d", code)
	}
	if created.Round.Level != 1 || created.Round.Mode != round.ModeTournament {
		t.Fatalf("round = %+v", created.Round)
	}
}

func TestDuelLobbyAndQR(t *testing.T) {
	env := newTestEnv(t)
	host, guest, stranger := env.browser(t), env.browser(t), env.browser(t)

	var created duelRes
	if code := host.do(http.MethodPost, "/duels", createDuelReq{Minutes: 3, Language: "fr"}, &created); code != http.StatusCreated {
		t.Fatalf("create = %d", code)
	}
	if created.ID == "" || len(created.Duel.GameCode) != 6 || created.Duel.Status != duel.StatusWaiting {
		t.Fatalf("duel = %+v", created)
	}

	for _, minutes := range []int{0, duel.MaxMinutes + 1} {
		if code := host.do(http.MethodPost, "/duels", createDuelReq{Minutes: minutes}, nil); code != http.StatusBadRequest {
			t.Fatalf("%d minutes = %d", minutes, code)
		}
	}
	var long duelRes
	if code := host.do(http.MethodPost, "/duels", createDuelReq{Minutes: 20}, &long); code != http.StatusCreated || long.Duel.Duration != 20 {
		t.Fatalf("20 minutes = %d, duration %d", code, long.Duel.Duration)
	}

	var joined duelRes
	if code := guest.do(http.MethodPost, "/duels/join", joinDuelReq{Code: strings.ToLower(created.Duel.GameCode)}, &joined); code != http.StatusOK {
		t.Fatalf("join = %d", code)
	}
	if joined.ID != created.ID || joined.Duel.Status != duel.StatusActive || len(joined.Duel.Players) != 2 {
		t.Fatalf("joined = %+v", joined)
	}
	if code := stranger.do(http.MethodPost, "/duels/join", joinDuelReq{Code: created.Duel.GameCode}, nil); code != http.StatusConflict {
		t.Fatalf("third join = %d", code)
	}
	if code := stranger.do(http.MethodGet, "/duels/"+created.ID, nil, nil); code != http.StatusForbidden {
		t.Fatalf("stranger get = %d", code)
	}
	if code := host.do(http.MethodGet, "/duels/missing", nil, nil); code != http.StatusNotFound {
		t.Fatalf("missing = %d", code)
	}

	res, err := host.c.Get(host.base + "/duels/" + created.ID + "/qr.png")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	png, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK || res.Header.Get("Content-Type") != "image/png" || !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Fatalf("qr = %d %s %d bytes", res.StatusCode, res.Header.Get("Content-Type"), len(png))
	}
}

func TestDuelSocketPushesViewsAndLeavesOnClose(t *testing.T) {
	env := newTestEnv(t)
	host, guest := env.browser(t), env.browser(t)

	var created duelRes
	host.do(http.MethodPost, "/duels", createDuelReq{Minutes: 2, Language: "fr"}, &created)
	guest.do(http.MethodPost, "/duels/join", joinDuelReq{Code: created.Duel.GameCode}, nil)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/duels/" + created.ID + "/ws"
	if _, res, err := websocket.DefaultDialer.Dial(wsURL, env.browser(t).cookieHeader()); err == nil || res == nil || res.StatusCode != http.StatusForbidden {
		t.Fatalf("stranger dial: err=%v res=%v", err, res)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, host.cookieHeader())
	if err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first message
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatal(err)
	}
	var v duel.View
	if err := json.Unmarshal(first.Data, &v); err != nil {
		t.Fatal(err)
	}
	if first.Type != "view" || !v.IsHost || v.Duel.Status != duel.StatusActive {
		t.Fatalf("first frame = %s %+v", first.Type, v)
	}
	conn.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		var got duelRes
		guest.do(http.MethodGet, "/duels/"+created.ID, nil, &got)
		if got.Duel.Status == duel.StatusAbandoned {
			if got.Duel.WinnerID == nil || *got.Duel.WinnerID == v.Me {
				t.Fatalf("winner = %v", got.Duel.WinnerID)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("duel still %s after host disconnected", got.Duel.Status)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&docstore.PermissionError{Op: "update", Path: "duels/x"}, http.StatusForbidden},
		{duel.ErrNotPlayer, http.StatusForbidden},
		{fmt.Errorf("load: %w", store.ErrNotFound), http.StatusNotFound},
		{tournament.ErrNotFound, http.StatusNotFound},
		{generator.ErrGenerationFailed, http.StatusBadGateway},
		{round.ErrWrongState, http.StatusConflict},
		{duel.ErrDuelFull, http.StatusConflict},
		{fmt.Errorf("%w: got 45", duel.ErrDuration), http.StatusBadRequest},
		{database.ErrSeasonArchived, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
