// internal/generator/wordlist.go
//
// Offline Generator backed by word lists.
//
// Word lists:
//   - One list per language (FR, EN), uppercase, one word per line.
//   - WORDS_FR_FILE / WORDS_EN_FILE override the embedded defaults.
//   - Only words of at least puzzle.DuelMinLength letters (A–Z) are kept.
//
// Used when no text-generation endpoint is configured, and in tests.

package generator

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/grasdvirus/double-words-sub000/assets"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
)

// Wordlist generates challenges from local word lists.
type Wordlist struct {
	mu    sync.Mutex
	rng   *rand.Rand
	words map[puzzle.Language][]string
}

// NewWordlist builds a Wordlist from explicit lists (tests, custom decks).
func NewWordlist(words map[puzzle.Language][]string, seed int64) *Wordlist {
	clean := make(map[puzzle.Language][]string, len(words))
	for lang, list := range words {
		clean[lang] = normalizeWords(list)
	}
	return &Wordlist{rng: rand.New(rand.NewSource(seed)), words: clean}
}

// LoadWordlist reads the FR and EN lists from env-provided files or the
// embedded defaults. Returns an error if any language ends up empty.
func LoadWordlist() (*Wordlist, error) {
	lists := map[puzzle.Language][]string{}
	for _, lang := range []puzzle.Language{puzzle.FR, puzzle.EN} {
		var (
			list []string
			err  error
		)
		if path := os.Getenv("WORDS_" + string(lang) + "_FILE"); path != "" {
			list, err = readWordFile(path)
		} else {
			list, err = assets.Words(string(lang))
		}
		if err != nil {
			return nil, fmt.Errorf("load %s words: %w", lang, err)
		}
		lists[lang] = list
	}
	w := NewWordlist(lists, time.Now().UnixNano())
	for lang, list := range w.words {
		if len(list) == 0 {
			return nil, fmt.Errorf("words: %s list is empty", lang)
		}
	}
	return w, nil
}

// readWordFile loads one word per line from a file.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	return out, sc.Err()
}

// normalizeWords uppercases, trims and keeps valid alphabetic words.
func normalizeWords(list []string) []string {
	out := lo.FilterMap(list, func(s string, _ int) (string, bool) {
		w := strings.ToUpper(strings.TrimSpace(s))
		return w, len(w) >= puzzle.DuelMinLength && isAlpha(w)
	})
	return lo.Uniq(out)
}

// isAlpha reports whether s is all uppercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

// Stats returns the number of loaded words per language.
func (w *Wordlist) Stats() map[puzzle.Language]int {
	return lo.MapValues(w.words, func(list []string, _ puzzle.Language) int { return len(list) })
}

// GenerateChallenge picks an unused word and one of its letter pairs.
func (w *Wordlist) GenerateChallenge(ctx context.Context, existing []string, lang puzzle.Language) (puzzle.Challenge, error) {
	if err := ctx.Err(); err != nil {
		return puzzle.Challenge{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	candidates := lo.Filter(w.words[lang], func(word string, _ int) bool { return !contains(existing, word) })
	if len(candidates) == 0 {
		return puzzle.Challenge{}, fmt.Errorf("%w: no unused %s words left", ErrGenerationFailed, lang)
	}

	w.mu.Lock()
	word := candidates[w.rng.Intn(len(candidates))]
	pos := w.rng.Intn(len(word) - 1)
	w.mu.Unlock()

	pair := word[pos : pos+2]
	return accept(puzzle.Challenge{
		Challenge:    pair,
		Description:  describe(lang, len(word), pair),
		SolutionWord: word,
		Hint:         hintFor(lang, word),
	}, existing)
}

// EvaluateRound validates a word locally. With empty input it produces a
// puzzle instead, echoing SolutionWord when one is given.
func (w *Wordlist) EvaluateRound(ctx context.Context, req EvalRequest) (Evaluation, error) {
	input := strings.ToUpper(strings.TrimSpace(req.Input))
	if input == "" {
		if sol := strings.ToUpper(strings.TrimSpace(req.SolutionWord)); sol != "" {
			return Evaluation{SolutionWord: sol, Hint: hintFor(req.Language, sol)}, nil
		}
		c, err := w.GenerateChallenge(ctx, nil, req.Language)
		if err != nil {
			return Evaluation{}, err
		}
		return Evaluation{SolutionWord: c.SolutionWord, Hint: c.Hint}, nil
	}

	sol := strings.ToUpper(strings.TrimSpace(req.SolutionWord))
	valid := strings.Contains(input, strings.ToUpper(req.Challenge))
	if sol != "" {
		valid = valid && input == sol
	} else {
		valid = valid && contains(w.words[req.Language], input)
		sol = input
	}
	return Evaluation{
		IsValid:      valid,
		Feedback:     feedback(req.Language, valid),
		SolutionWord: sol,
		Hint:         hintFor(req.Language, sol),
	}, nil
}

// CheckOriginality applies the local rule: unseen words are original.
func (w *Wordlist) CheckOriginality(ctx context.Context, candidate string, previous []string) (Originality, error) {
	if err := ctx.Err(); err != nil {
		return Originality{}, err
	}
	return localOriginality(candidate, previous), nil
}

func describe(lang puzzle.Language, n int, pair string) string {
	if lang == puzzle.EN {
		return fmt.Sprintf("Find a %d-letter word containing %q", n, pair)
	}
	return fmt.Sprintf("Trouve un mot de %d lettres contenant « %s »", n, pair)
}

func hintFor(lang puzzle.Language, word string) string {
	if word == "" {
		return ""
	}
	if lang == puzzle.EN {
		return fmt.Sprintf("Starts with %c and ends with %c", word[0], word[len(word)-1])
	}
	return fmt.Sprintf("Commence par %c et finit par %c", word[0], word[len(word)-1])
}

func feedback(lang puzzle.Language, valid bool) string {
	switch {
	case lang == puzzle.EN && valid:
		return "Well done!"
	case lang == puzzle.EN:
		return "That is not the word we are looking for."
	case valid:
		return "Bravo !"
	default:
		return "Ce n'est pas le mot recherché."
	}
}
