// internal/puzzle/puzzle.go
//
// Puzzle definitions for a single Double Words round.
// Defines:
//   - Challenge: solution word, two-letter constraint, prompt, hint and tiles.
//   - Normalize/Validate: the shape every generated round must satisfy.
//   - Jumble: builds the shuffled tile pool (solution letters + fillers).
//
// Notes:
//   - Letters are handled as runes so accented solutions (FR) survive.
//   - Jumbled letters are single-rune strings to keep the JSON shape simple.

package puzzle

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

const (
	// MinExtraSolo is the minimum number of filler tiles in solo/tournament rounds.
	MinExtraSolo = 4
	// MinExtraDuel is the minimum number of filler tiles in duel rounds.
	MinExtraDuel = 2
	// targetTiles is the grid size fillers try to reach.
	targetTiles = 12
	// DuelMinLength is the shortest solution word accepted in duel mode.
	DuelMinLength = 5
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ErrInvalidChallenge is wrapped by every Validate failure.
var ErrInvalidChallenge = errors.New("invalid challenge")

// Language selects the word language of generated rounds.
type Language string

const (
	FR Language = "FR"
	EN Language = "EN"
)

// ParseLanguage maps user input to a Language, defaulting to FR.
func ParseLanguage(s string) Language {
	if strings.EqualFold(strings.TrimSpace(s), string(EN)) {
		return EN
	}
	return FR
}

// Challenge is one round's definition.
type Challenge struct {
	Challenge      string   `json:"challenge"`
	Description    string   `json:"description"`
	SolutionWord   string   `json:"solutionWord"`
	Hint           string   `json:"hint"`
	JumbledLetters []string `json:"jumbledLetters,omitempty"`
}

// Normalize uppercases the solution and the challenge and trims whitespace.
func (c Challenge) Normalize() Challenge {
	c.SolutionWord = strings.ToUpper(strings.TrimSpace(c.SolutionWord))
	c.Challenge = strings.ToUpper(strings.TrimSpace(c.Challenge))
	c.Description = strings.TrimSpace(c.Description)
	c.Hint = strings.TrimSpace(c.Hint)
	return c
}

// Validate checks the structural rules of a (normalized) challenge.
func (c Challenge) Validate(minLen int) error {
	sol := strings.ToUpper(c.SolutionWord)
	switch {
	case sol == "":
		return fmt.Errorf("%w: empty solution", ErrInvalidChallenge)
	case strings.ContainsAny(sol, " \t\n"):
		return fmt.Errorf("%w: solution %q contains spaces", ErrInvalidChallenge, sol)
	case utf8.RuneCountInString(sol) < minLen:
		return fmt.Errorf("%w: solution %q shorter than %d", ErrInvalidChallenge, sol, minLen)
	case utf8.RuneCountInString(c.Challenge) != 2:
		return fmt.Errorf("%w: challenge %q must be 2 letters", ErrInvalidChallenge, c.Challenge)
	case !strings.Contains(sol, strings.ToUpper(c.Challenge)):
		return fmt.Errorf("%w: %q not found in %q", ErrInvalidChallenge, c.Challenge, sol)
	}
	return nil
}

// Matches reports whether input is the solution (trimmed, case-insensitive).
func (c Challenge) Matches(input string) bool {
	return strings.EqualFold(strings.TrimSpace(input), c.SolutionWord)
}

// Letters returns the solution as a rune slice.
func (c Challenge) Letters() []rune { return []rune(c.SolutionWord) }

// Tiles returns the jumbled letters as runes.
func (c Challenge) Tiles() []rune {
	out := make([]rune, 0, len(c.JumbledLetters))
	for _, s := range c.JumbledLetters {
		r, _ := utf8.DecodeRuneInString(s)
		out = append(out, r)
	}
	return out
}

// Jumble builds the tile pool for solution: every solution letter plus
// max(minExtra, 12-len(solution)) fillers that do not appear in the solution,
// shuffled together.
func Jumble(solution string, minExtra int, rng *rand.Rand) []string {
	letters := []rune(strings.ToUpper(solution))
	extra := max(minExtra, targetTiles-len(letters))

	used := lo.SliceToMap(letters, func(r rune) (rune, struct{}) { return r, struct{}{} })
	pool := lo.Filter([]rune(alphabet), func(r rune, _ int) bool {
		_, taken := used[r]
		return !taken
	})
	rng.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	fillers := pool[:min(extra, len(pool))]

	tiles := append(append([]rune{}, letters...), fillers...)
	rng.Shuffle(len(tiles), func(i, j int) { tiles[i], tiles[j] = tiles[j], tiles[i] })
	return lo.Map(tiles, func(r rune, _ int) string { return string(r) })
}

// WithTiles returns c with freshly jumbled letters.
func (c Challenge) WithTiles(minExtra int, rng *rand.Rand) Challenge {
	c.JumbledLetters = Jumble(c.SolutionWord, minExtra, rng)
	return c
}

// Covers reports whether tiles hold every letter of solution with multiplicity.
func Covers(tiles []string, solution string) bool {
	have := lo.CountValues(tiles)
	for r, n := range lo.CountValues(lo.Map([]rune(strings.ToUpper(solution)), func(r rune, _ int) string { return string(r) })) {
		if have[r] < n {
			return false
		}
	}
	return true
}
