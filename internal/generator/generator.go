// internal/generator/generator.go
//
// Challenge generator adapter.
// Wraps the external text-generation capability behind one interface:
//   - GenerateChallenge: a fresh solution word, two-letter constraint, prompt and hint.
//   - EvaluateRound:     validate a proposed word (or, with empty input, produce a puzzle).
//   - CheckOriginality:  advisory bonus when a word was not used before.
//
// Every implementation returns errors wrapping ErrGenerationFailed for service
// or schema failures, so callers only ever see "generated" or "not yet".

package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/score"
)

// ErrGenerationFailed is wrapped by every generation error.
var ErrGenerationFailed = errors.New("generation failed")

// EvalRequest is the input of EvaluateRound.
type EvalRequest struct {
	Input        string          `json:"wordOrPhrase"`
	Challenge    string          `json:"challenge"`
	Description  string          `json:"description"`
	Language     puzzle.Language `json:"language"`
	SolutionWord string          `json:"solutionWord,omitempty"`
}

// Evaluation is the output of EvaluateRound.
type Evaluation struct {
	IsValid      bool   `json:"isValid"`
	Feedback     string `json:"feedback"`
	SolutionWord string `json:"solutionWord"`
	Hint         string `json:"hint"`
}

// Originality is the output of CheckOriginality.
type Originality struct {
	IsOriginal  bool `json:"isOriginal"`
	BonusPoints int  `json:"bonusPoints"`
}

// Generator is the consumed text-generation capability.
//
// Rounds judge words locally, so no server path calls EvaluateRound; it is
// kept as the adapter surface for clients that ask the service to judge an
// answer or to produce a puzzle from a given solution word.
type Generator interface {
	GenerateChallenge(ctx context.Context, existing []string, lang puzzle.Language) (puzzle.Challenge, error)
	EvaluateRound(ctx context.Context, req EvalRequest) (Evaluation, error)
	CheckOriginality(ctx context.Context, candidate string, previous []string) (Originality, error)
}

// OriginalityChecker is the subset of Generator rounds need for bonuses.
type OriginalityChecker interface {
	CheckOriginality(ctx context.Context, candidate string, previous []string) (Originality, error)
}

// OriginalityBonus asks c for a bonus and swallows failures (bonus 0).
func OriginalityBonus(ctx context.Context, c OriginalityChecker, candidate string, previous []string) int {
	if c == nil {
		return 0
	}
	res, err := c.CheckOriginality(ctx, candidate, previous)
	if err != nil {
		log.Warn().Err(err).Str("word", candidate).Msg("originality check failed")
		return 0
	}
	if !res.IsOriginal {
		return 0
	}
	return score.OriginalityBonus
}

// accept normalizes a generated challenge and enforces the adapter contract.
func accept(c puzzle.Challenge, existing []string) (puzzle.Challenge, error) {
	c = c.Normalize()
	if err := c.Validate(puzzle.DuelMinLength); err != nil {
		return puzzle.Challenge{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if contains(existing, c.SolutionWord) {
		return puzzle.Challenge{}, fmt.Errorf("%w: %q already used", ErrGenerationFailed, c.SolutionWord)
	}
	return c, nil
}

// localOriginality is the offline originality rule: unseen words earn the bonus.
func localOriginality(candidate string, previous []string) Originality {
	if strings.TrimSpace(candidate) == "" || contains(previous, candidate) {
		return Originality{}
	}
	return Originality{IsOriginal: true, BonusPoints: score.OriginalityBonus}
}

func contains(list []string, w string) bool {
	w = strings.TrimSpace(w)
	for _, x := range list {
		if strings.EqualFold(strings.TrimSpace(x), w) {
			return true
		}
	}
	return false
}
