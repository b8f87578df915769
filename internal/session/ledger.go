package session

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/internal/round"
)

// Scoreboard receives points earned in scored modes (the season leaderboard).
type Scoreboard interface {
	Add(ctx context.Context, points int) error
}

// SoloLedger records solo and training rounds in a Store.
type SoloLedger struct {
	Store      *Store
	Scoreboard Scoreboard // optional
}

// Progress implements round.Ledger.
func (l SoloLedger) Progress(context.Context) (round.Progress, error) {
	st := l.Store.State()
	return round.Progress{Level: st.Level, Score: st.Score, Language: st.Settings.Language, History: st.History}, nil
}

// Adjust implements round.Ledger.
func (l SoloLedger) Adjust(ctx context.Context, delta int) (int, error) {
	return l.Store.ApplyDelta(ctx, delta)
}

// Complete implements round.Ledger.
func (l SoloLedger) Complete(ctx context.Context, word string, points int) (int, error) {
	s, err := l.Store.CompleteRound(ctx, word, points)
	if err != nil {
		return s, err
	}
	// The season board only accumulates earned points; penalties lower the
	// session score alone.
	if l.Scoreboard != nil && points > 0 {
		if err := l.Scoreboard.Add(ctx, points); err != nil {
			log.Warn().Err(err).Int("points", points).Msg("leaderboard update failed")
		}
	}
	return s, nil
}

// TournamentLedger records rounds of one tournament category.
type TournamentLedger struct {
	Store    *Store
	Category string
	Levels   int
}

// Progress implements round.Ledger.
func (l TournamentLedger) Progress(context.Context) (round.Progress, error) {
	st := l.Store.State()
	return round.Progress{
		Level:    l.Store.TournamentLevel(l.Category),
		Score:    st.Score,
		Language: st.Settings.Language,
		History:  st.History,
	}, nil
}

// Adjust implements round.Ledger.
func (l TournamentLedger) Adjust(ctx context.Context, delta int) (int, error) {
	return l.Store.ApplyDelta(ctx, delta)
}

// Complete implements round.Ledger.
func (l TournamentLedger) Complete(ctx context.Context, word string, points int) (int, error) {
	return l.Store.CompleteTournamentLevel(ctx, l.Category, word, points, l.Levels)
}
