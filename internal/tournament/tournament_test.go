package tournament

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/round"
	"github.com/grasdvirus/double-words-sub000/internal/session"
	"github.com/grasdvirus/double-words-sub000/internal/store"
)

func TestDefaultCatalogue(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	sums := c.Categories()
	if len(sums) != 3 || sums[0].ID != "animaux" || sums[0].Levels != 5 {
		t.Fatalf("categories = %+v", sums)
	}
	space, err := c.Get("space")
	if err != nil || space.Language != puzzle.EN {
		t.Fatalf("space = %+v, %v", space, err)
	}
	if _, err := c.Get("dinosaures"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown category err = %v", err)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{`},
		{"missing id", `[{"title":"x","levels":[{"solutionWord":"LAPIN","challenge":"AP"}]}]`},
		{"duplicate", `[{"id":"a","levels":[{"solutionWord":"LAPIN","challenge":"AP"}]},{"id":"a","levels":[{"solutionWord":"LAPIN","challenge":"AP"}]}]`},
		{"no levels", `[{"id":"a","levels":[]}]`},
		{"challenge not in word", `[{"id":"a","levels":[{"solutionWord":"LAPIN","challenge":"ZZ"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.raw)); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestSourceServesLevelsInOrder(t *testing.T) {
	cat, err := Parse([]byte(`[{"id":"t","title":"T","language":"fr","levels":[
		{"solutionWord":"lapin","challenge":"ap"},
		{"solutionWord":"tortue","challenge":"rt"}]}]`))
	if err != nil {
		t.Fatal(err)
	}
	c, _ := cat.Get("t")
	src := c.Source()
	tests := []struct {
		level int
		want  string
		err   error
	}{
		{0, "LAPIN", nil},
		{1, "LAPIN", nil},
		{2, "TORTUE", nil},
		{3, "", round.ErrNoMoreLevels},
	}
	for _, tt := range tests {
		got, err := src.Next(context.Background(), round.Progress{Level: tt.level})
		if !errors.Is(err, tt.err) || got.SolutionWord != tt.want {
			t.Fatalf("level %d = %q, %v", tt.level, got.SolutionWord, err)
		}
	}
}

func TestTournamentRunFinishes(t *testing.T) {
	ctx := context.Background()
	cat, _ := Parse([]byte(`[{"id":"t","levels":[
		{"solutionWord":"LAPIN","challenge":"AP","hint":"carottes"},
		{"solutionWord":"TORTUE","challenge":"RT"}]}]`))
	c, _ := cat.Get("t")

	sess := session.New(store.NewMemoryKV(), "p1")
	if err := sess.Load(ctx); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	ledger := session.TournamentLedger{Store: sess, Category: c.ID, Levels: len(c.Levels)}
	r := round.New(round.TournamentPolicy, c.Source(), ledger,
		round.WithClock(func() time.Time { return now }), round.WithRand(rand.New(rand.NewSource(1))))

	if err := r.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for _, lvl := range []struct{ word, challenge string }{{"LAPIN", "AP"}, {"TORTUE", "RT"}} {
		word := lvl.word
		if v := r.View(ctx); v.Challenge != lvl.challenge {
			t.Fatalf("challenge = %q, want %q", v.Challenge, lvl.challenge)
		}
		for _, l := range word {
			r.PressLetter(ctx, l)
		}
		res, err := r.Submit(ctx)
		if err != nil || !res.Correct {
			t.Fatalf("submit %s = %+v, %v", word, res, err)
		}
		if err := r.Continue(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if st := r.State(ctx); st != round.StateFinished {
		t.Fatalf("state = %s, want finished", st)
	}
	if lvl := sess.TournamentLevel(c.ID); lvl != 3 {
		t.Fatalf("level marker = %d, want 3", lvl)
	}
	// Time bonus: 60s remaining is worth 6 points on top of the base 10.
	if got := sess.State().Score; got != 32 {
		t.Fatalf("score = %d, want 32", got)
	}
}
