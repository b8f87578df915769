package round

import (
	"context"
	"errors"

	"github.com/grasdvirus/double-words-sub000/internal/generator"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
)

// ErrNoMoreLevels tells the machine a predefined sequence is exhausted.
var ErrNoMoreLevels = errors.New("no more levels")

// Progress is what a source needs to know about the player.
type Progress struct {
	Level    int
	Score    int
	Language puzzle.Language
	History  []string
}

// ChallengeSource produces the challenge of the next round.
type ChallengeSource interface {
	Next(ctx context.Context, p Progress) (puzzle.Challenge, error)
}

// GeneratorSource asks a generator for a fresh challenge avoiding history.
type GeneratorSource struct {
	Gen generator.Generator
}

// Next implements ChallengeSource.
func (s GeneratorSource) Next(ctx context.Context, p Progress) (puzzle.Challenge, error) {
	return s.Gen.GenerateChallenge(ctx, p.History, p.Language)
}

// Ledger persists the consequences of a round.
type Ledger interface {
	Progress(ctx context.Context) (Progress, error)
	// Adjust applies delta (floor 0) and returns the new score.
	Adjust(ctx context.Context, delta int) (int, error)
	// Complete records an accepted word and its points.
	Complete(ctx context.Context, word string, points int) (int, error)
}
