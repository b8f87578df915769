// internal/tournament/tournament.go
//
// Themed tournament categories with a fixed sequence of levels.
// Responsibilities:
//   - Load and validate the embedded catalogue once (sync.Once).
//   - Serve level N of a category to the round machine; running past the
//     last level ends the tournament with round.ErrNoMoreLevels.

package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/grasdvirus/double-words-sub000/assets"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/round"
)

// ErrNotFound is returned for an unknown category id.
var ErrNotFound = errors.New("tournament category not found")

// Category is one themed tournament.
type Category struct {
	ID       string             `json:"id"`
	Title    string             `json:"title"`
	Language puzzle.Language    `json:"language"`
	Levels   []puzzle.Challenge `json:"levels"`
}

// Summary is a category without its solutions.
type Summary struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Language puzzle.Language `json:"language"`
	Levels   int             `json:"levels"`
}

// Catalogue holds the categories in file order.
type Catalogue struct {
	order []string
	byID  map[string]Category
}

// Parse decodes and validates a JSON catalogue.
func Parse(raw []byte) (*Catalogue, error) {
	var cats []Category
	if err := json.Unmarshal(raw, &cats); err != nil {
		return nil, fmt.Errorf("decode tournaments: %w", err)
	}
	c := &Catalogue{byID: make(map[string]Category, len(cats))}
	for _, cat := range cats {
		if cat.ID == "" {
			return nil, errors.New("tournament without id")
		}
		if _, dup := c.byID[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate tournament %q", cat.ID)
		}
		if len(cat.Levels) == 0 {
			return nil, fmt.Errorf("tournament %q has no levels", cat.ID)
		}
		cat.Language = puzzle.ParseLanguage(string(cat.Language))
		for i, lvl := range cat.Levels {
			lvl = lvl.Normalize()
			if err := lvl.Validate(1); err != nil {
				return nil, fmt.Errorf("tournament %q level %d: %w", cat.ID, i+1, err)
			}
			cat.Levels[i] = lvl
		}
		c.order = append(c.order, cat.ID)
		c.byID[cat.ID] = cat
	}
	return c, nil
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalogue
	defaultErr  error
)

// Default returns the embedded catalogue.
func Default() (*Catalogue, error) {
	defaultOnce.Do(func() {
		raw, err := assets.Tournaments()
		if err != nil {
			defaultErr = err
			return
		}
		defaultCat, defaultErr = Parse(raw)
	})
	return defaultCat, defaultErr
}

// Categories lists every category without revealing solutions.
func (c *Catalogue) Categories() []Summary {
	return lo.Map(c.order, func(id string, _ int) Summary { return c.byID[id].Summary() })
}

// Get returns one category.
func (c *Catalogue) Get(id string) (Category, error) {
	cat, ok := c.byID[id]
	if !ok {
		return Category{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return cat, nil
}

// Summary returns the public view of cat.
func (cat Category) Summary() Summary {
	return Summary{ID: cat.ID, Title: cat.Title, Language: cat.Language, Levels: len(cat.Levels)}
}

// Source serves the levels of cat to a round.
func (cat Category) Source() round.ChallengeSource { return source{cat: cat} }

type source struct{ cat Category }

// Next returns level p.Level (1-based).
func (s source) Next(_ context.Context, p round.Progress) (puzzle.Challenge, error) {
	n := max(p.Level, 1)
	if n > len(s.cat.Levels) {
		return puzzle.Challenge{}, round.ErrNoMoreLevels
	}
	return s.cat.Levels[n-1], nil
}
