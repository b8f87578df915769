// internal/session/session.go
//
// Session/progression store for solo and tournament play.
// Responsibilities:
//   - Hold level, cumulative score, accepted-word history and settings.
//   - Load explicitly on init and save after every change through a KV.
//   - Expose ledgers so round machines can record penalties and completions.
//
// Notes:
//   - The Store is passed explicitly to whoever needs it; there is no global.
//   - History is append-only and only used as the originality exclusion set.

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/score"
)

// MaxLevel caps solo progression.
const MaxLevel = 50

// Settings are the player preferences.
type Settings struct {
	Language puzzle.Language `json:"language"`
	Sound    bool            `json:"sound"`
	Music    bool            `json:"music"`
}

// State is everything persisted for one player.
type State struct {
	Level      int            `json:"level"`
	Score      int            `json:"score"`
	History    []string       `json:"history"`
	Settings   Settings       `json:"settings"`
	Tournament map[string]int `json:"tournament"` // category id -> next level
}

// Default is the state of a brand-new player.
func Default() State {
	return State{
		Level:      1,
		History:    []string{},
		Settings:   Settings{Language: puzzle.FR, Sound: true, Music: true},
		Tournament: map[string]int{},
	}
}

func (s State) clone() State {
	s.History = append([]string{}, s.History...)
	t := make(map[string]int, len(s.Tournament))
	for k, v := range s.Tournament {
		t[k] = v
	}
	s.Tournament = t
	return s
}

// KV is the durable storage behind a Store.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Clear(ctx context.Context, key string) error
}

// Store owns one player's State.
type Store struct {
	mu    sync.Mutex
	kv    KV
	key   string
	state State
}

// New creates a Store for playerID. Call Load before use.
func New(kv KV, playerID string) *Store {
	return &Store{kv: kv, key: Key(playerID), state: Default()}
}

// Key is the KV key holding playerID's state.
func Key(playerID string) string { return "session:" + playerID }

// Load reads the persisted state, falling back to Default when absent.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.read(ctx)
	if err != nil {
		return err
	}
	s.state = st
	return nil
}

func (s *Store) read(ctx context.Context) (State, error) {
	raw, ok, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return State{}, fmt.Errorf("load session: %w", err)
	}
	st := Default()
	if ok {
		if err := json.Unmarshal(raw, &st); err != nil {
			return State{}, fmt.Errorf("decode session: %w", err)
		}
	}
	if st.Level < 1 {
		st.Level = 1
	}
	if st.History == nil {
		st.History = []string{}
	}
	if st.Tournament == nil {
		st.Tournament = map[string]int{}
	}
	if st.Settings.Language == "" {
		st.Settings.Language = puzzle.FR
	}
	return st, nil
}

// commit applies change to the persisted state and installs the result only
// once it is saved. On error the state is left as it was. Reading first keeps
// two Stores of the same player from overwriting each other.
func (s *Store) commit(ctx context.Context, change func(*State)) error {
	next, err := s.read(ctx)
	if err != nil {
		return err
	}
	change(&next)
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.key, raw); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	s.state = next
	return nil
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// ApplyDelta adds delta to the score (floor 0).
func (s *Store) ApplyDelta(ctx context.Context, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.commit(ctx, func(st *State) {
		st.Score = score.Apply(st.Score, delta)
	})
	return s.state.Score, err
}

// CompleteRound records an accepted solo word and advances the level.
func (s *Store) CompleteRound(ctx context.Context, word string, points int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.commit(ctx, func(st *State) {
		st.Score = score.Apply(st.Score, points)
		st.History = append(st.History, word)
		st.Level = min(st.Level+1, MaxLevel)
	})
	return s.state.Score, err
}

// TournamentLevel returns the next level to play in category (1-based).
func (s *Store) TournamentLevel(category string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return max(s.state.Tournament[category], 1)
}

// CompleteTournamentLevel records an accepted tournament word. The level is
// capped at limit+1, the "tournament finished" marker.
func (s *Store) CompleteTournamentLevel(ctx context.Context, category, word string, points, limit int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.commit(ctx, func(st *State) {
		st.Score = score.Apply(st.Score, points)
		st.History = append(st.History, word)
		st.Tournament[category] = min(max(st.Tournament[category], 1)+1, limit+1)
	})
	return s.state.Score, err
}

// ResetTournament restarts category from level 1.
func (s *Store) ResetTournament(ctx context.Context, category string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(ctx, func(st *State) { delete(st.Tournament, category) })
}

// UpdateSettings replaces the settings.
func (s *Store) UpdateSettings(ctx context.Context, settings Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings.Language = puzzle.ParseLanguage(string(settings.Language))
	return s.commit(ctx, func(st *State) { st.Settings = settings })
}

// Reset clears persisted data and returns to Default.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Clear(ctx, s.key); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	s.state = Default()
	return nil
}
