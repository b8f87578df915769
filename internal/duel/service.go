// internal/duel/service.go
//
// Duel lobby: creating rooms, joining by code, reading and watching the
// shared document, and the write rules that enforce who may change what.

package duel

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/internal/docstore"
	"github.com/grasdvirus/double-words-sub000/internal/generator"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
)

var (
	ErrNotFound    = errors.New("duel not found")
	ErrDuelFull    = errors.New("duel is full")
	ErrNotJoinable = errors.New("duel already started or over")
	ErrNotActive   = errors.New("duel is not active")
	ErrNotPlayer   = errors.New("not a player of this duel")
	ErrDuration    = fmt.Errorf("duel length must be 1-%d minutes", MaxMinutes)
)

// Service manages duel documents in a docstore.
type Service struct {
	store *docstore.Store
	gen   generator.Generator
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Service.
type Option func(*Service)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithRand injects the room-code generator's randomness.
func WithRand(rng *rand.Rand) Option { return func(s *Service) { s.rng = rng } }

// NewService creates a Service. gen is used by host clients to produce challenges.
func NewService(store *docstore.Store, gen generator.Generator, opts ...Option) *Service {
	s := &Service{store: store, gen: gen, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(s.now().UnixNano()))
	}
	return s
}

// generateRoomCode creates a random 6-character room code.
func (s *Service) generateRoomCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	code := make([]byte, CodeLength)
	for i := range code {
		code[i] = CodeChars[s.rng.Intn(len(CodeChars))]
	}
	return string(code)
}

type codeEntry struct {
	DuelID string `json:"duelId"`
}

// Create opens a waiting duel hosted by host and registers its room code.
// minutes 0 selects DefaultMinutes; anything outside 1-MaxMinutes is ErrDuration.
func (s *Service) Create(ctx context.Context, host Player, minutes int, lang puzzle.Language) (Session, error) {
	if minutes == 0 {
		minutes = DefaultMinutes
	}
	if minutes < 1 || minutes > MaxMinutes {
		return Session{}, fmt.Errorf("%w: got %d", ErrDuration, minutes)
	}
	ctx = docstore.WithAuth(ctx, host.UID)

	sess := Session{
		HostID:       host.UID,
		Status:       StatusWaiting,
		Language:     puzzle.ParseLanguage(string(lang)),
		Players:      []Player{host},
		PlayerScores: map[string]int{host.UID: 0},
		Duration:     minutes,
		WordHistory:  []string{},
		CreatedAt:    s.now().UTC(),
	}
	id, err := s.store.Create(ctx, Collection, sess)
	if err != nil {
		return Session{}, fmt.Errorf("create duel: %w", err)
	}

	for attempt := 0; attempt < 10; attempt++ {
		code := s.generateRoomCode()
		err = s.store.Insert(ctx, CodesCollection, code, codeEntry{DuelID: id})
		if errors.Is(err, docstore.ErrExists) {
			continue
		}
		if err != nil {
			return Session{}, fmt.Errorf("register room code: %w", err)
		}
		if err := s.store.Update(ctx, Collection, id, map[string]any{"gameCode": code}); err != nil {
			return Session{}, fmt.Errorf("set room code: %w", err)
		}
		log.Info().Str("duel", id).Str("code", code).Str("host", host.UID).Int("minutes", minutes).Msg("duel created")
		return s.Get(ctx, id)
	}
	return Session{}, fmt.Errorf("create duel: no free room code")
}

// Lookup resolves a room code to a duel id.
func (s *Service) Lookup(ctx context.Context, code string) (string, error) {
	snap, err := s.store.Get(ctx, CodesCollection, strings.ToUpper(strings.TrimSpace(code)))
	if errors.Is(err, docstore.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	var e codeEntry
	if err := snap.Decode(&e); err != nil {
		return "", err
	}
	return e.DuelID, nil
}

// Join adds p to the duel behind code and activates it. Rejoining a duel
// one already plays in returns it unchanged.
func (s *Service) Join(ctx context.Context, code string, p Player) (Session, error) {
	id, err := s.Lookup(ctx, code)
	if err != nil {
		return Session{}, err
	}
	sess, err := s.Get(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.Has(p.UID) {
		return sess, nil
	}
	if len(sess.Players) >= MaxPlayers {
		return Session{}, ErrDuelFull
	}
	if sess.Status != StatusWaiting {
		return Session{}, ErrNotJoinable
	}

	err = s.store.Update(docstore.WithAuth(ctx, p.UID), Collection, id, map[string]any{
		"players":               append(sess.Players, p),
		"playerScores." + p.UID: 0,
		"status":                StatusActive,
		"startedAt":             s.now().UTC(),
	}, docstore.Condition{Path: "status", Equals: StatusWaiting})
	if errors.Is(err, docstore.ErrConditionFailed) {
		return Session{}, ErrDuelFull
	}
	if err != nil {
		return Session{}, fmt.Errorf("join duel: %w", err)
	}
	log.Info().Str("duel", id).Str("player", p.UID).Msg("duel started")
	return s.Get(ctx, id)
}

// Get reads a duel document.
func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	snap, err := s.store.Get(ctx, Collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, err
	}
	return decode(snap)
}

func decode(snap docstore.Snapshot) (Session, error) {
	var sess Session
	if err := snap.Decode(&sess); err != nil {
		return Session{}, fmt.Errorf("decode duel %s: %w", snap.ID, err)
	}
	sess.ID = snap.ID
	return sess, nil
}

// Rules enforces duel write authority on the docstore. Writes without an
// auth uid come from the server itself and are always allowed.
func Rules(_ context.Context, req docstore.Request) error {
	if req.Auth == "" {
		return nil
	}
	switch req.Collection {
	case CodesCollection:
		if req.Op != docstore.OpCreate {
			return errors.New("room codes are write-once")
		}
		return nil
	case Collection:
	default:
		return nil
	}

	switch req.Op {
	case docstore.OpCreate:
		if host, _ := req.Payload["hostId"].(string); host != req.Auth {
			return errors.New("a duel must be created by its host")
		}
		return nil
	case docstore.OpSet, docstore.OpDelete:
		return errors.New("duel documents accept field updates only")
	}

	before, err := decode(docstore.Snapshot{Data: req.Before})
	if err != nil {
		return err
	}
	if before.Status.Terminal() {
		return fmt.Errorf("duel is %s", before.Status)
	}
	member := before.Has(req.Auth)
	if !member && before.Status != StatusWaiting {
		return ErrNotPlayer
	}
	for _, path := range docstore.Paths(req.Payload) {
		switch docstore.Root(path) {
		case "playerScores":
			if path != "playerScores."+req.Auth {
				return fmt.Errorf("%s may only write its own score", req.Auth)
			}
		case "currentChallenge", "wordHistory":
			if req.Auth != before.HostID {
				return errors.New("only the host generates challenges")
			}
		case "gameCode":
			if req.Auth != before.HostID || before.GameCode != "" {
				return errors.New("room code is set once by the host")
			}
		case "players", "status", "startedAt", "solvedBy", "winnerId", "endedAt":
		default:
			return fmt.Errorf("unknown duel field %q", path)
		}
	}
	return nil
}
