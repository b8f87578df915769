package round

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/grasdvirus/double-words-sub000/internal/generator"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/score"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeLedger struct {
	level   int
	score   int
	history []string
}

func (l *fakeLedger) Progress(context.Context) (Progress, error) {
	return Progress{Level: l.level, Score: l.score, Language: puzzle.FR, History: append([]string(nil), l.history...)}, nil
}

func (l *fakeLedger) Adjust(_ context.Context, delta int) (int, error) {
	l.score = score.Apply(l.score, delta)
	return l.score, nil
}

func (l *fakeLedger) Complete(_ context.Context, word string, points int) (int, error) {
	l.history = append(l.history, word)
	l.score = score.Apply(l.score, points)
	l.level++
	return l.score, nil
}

type staticSource struct {
	words []puzzle.Challenge
	err   error
	calls int
}

func (s *staticSource) Next(_ context.Context, p Progress) (puzzle.Challenge, error) {
	s.calls++
	if s.err != nil {
		return puzzle.Challenge{}, s.err
	}
	if p.Level-1 >= len(s.words) {
		return puzzle.Challenge{}, ErrNoMoreLevels
	}
	return s.words[p.Level-1], nil
}

type originalChecker struct{ original bool }

func (o originalChecker) CheckOriginality(context.Context, string, []string) (generator.Originality, error) {
	return generator.Originality{IsOriginal: o.original, BonusPoints: score.OriginalityBonus}, nil
}

var bonjour = puzzle.Challenge{Challenge: "NJ", SolutionWord: "BONJOUR", Description: "Salut", Hint: "Le matin"}

func newTestRound(t *testing.T, policy Policy, ledger *fakeLedger, src ChallengeSource, opts ...Option) (*Round, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clk.now), WithRand(rand.New(rand.NewSource(5)))}, opts...)
	r := New(policy, src, ledger, opts...)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	return r, clk
}

func typeWord(t *testing.T, r *Round, word string) {
	t.Helper()
	for _, l := range word {
		if !r.PressLetter(context.Background(), l) {
			t.Fatalf("could not type %q", l)
		}
	}
}

func TestCompletionScoring(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{level: 1}
	r, clk := newTestRound(t, SoloPolicy, ledger, &staticSource{words: []puzzle.Challenge{bonjour}}, WithOriginality(originalChecker{true}))

	clk.advance(25 * time.Second) // 35 seconds left
	typeWord(t, r, "bonjour")
	res, err := r.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !res.Correct || res.Completion.Total != 18 {
		t.Fatalf("result = %+v, want correct with 18 points", res)
	}
	if ledger.score != 18 || len(ledger.history) != 1 || ledger.history[0] != "BONJOUR" {
		t.Fatalf("ledger = %+v", ledger)
	}
	if got := r.State(ctx); got != StateCompleted {
		t.Fatalf("state = %s", got)
	}
	if v := r.View(ctx); v.Solution != "BONJOUR" {
		t.Fatalf("completed view must show the solution, got %+v", v)
	}
}

func TestWrongAnswerRetries(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{level: 1, score: 12}
	r, clk := newTestRound(t, SoloPolicy, ledger, &staticSource{words: []puzzle.Challenge{bonjour}})

	clk.advance(10 * time.Second)
	typeWord(t, r, "BONJ")
	res, err := r.Submit(ctx)
	if err != nil || res.Correct {
		t.Fatalf("submit = %+v, %v", res, err)
	}
	if ledger.score != 7 {
		t.Fatalf("score = %d, want 7", ledger.score)
	}
	if r.State(ctx) != StateRetrying || r.PressLetter(ctx, 'O') {
		t.Fatal("input must be refused while retrying")
	}

	clk.advance(RetryDelay)
	if got := r.State(ctx); got != StateAwaitingInput {
		t.Fatalf("state after delay = %s", got)
	}
	v := r.View(ctx)
	if v.Grid.Input != "" {
		t.Fatalf("input not cleared: %q", v.Grid.Input)
	}
	for i, c := range v.Grid.Consumed {
		if c {
			t.Fatalf("tile %d still consumed", i)
		}
	}
	if v.Remaining != 49 {
		t.Fatalf("clock must keep elapsed time, remaining = %d", v.Remaining)
	}
}

func TestTimeoutPenalty(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{level: 1, score: 25}
	r, clk := newTestRound(t, SoloPolicy, ledger, &staticSource{words: []puzzle.Challenge{bonjour}})

	clk.advance(LevelTime + time.Second)
	if err := r.Tick(ctx); err != nil {
		t.Fatalf("tick: %v", err)
	}
	if got := r.State(ctx); got != StateTimedOut {
		t.Fatalf("state = %s", got)
	}
	if ledger.score != 15 {
		t.Fatalf("score = %d, want 15", ledger.score)
	}
	if r.PressLetter(ctx, 'B') {
		t.Fatal("input accepted after timeout")
	}
	if v := r.View(ctx); v.Solution != "BONJOUR" || v.Remaining != 0 {
		t.Fatalf("view = %+v", v)
	}
	// A second tick must not charge again.
	_ = r.Tick(ctx)
	if ledger.score != 15 {
		t.Fatalf("timeout charged twice: %d", ledger.score)
	}
}

func TestTrainingDisablesScoring(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{level: 1, score: 3}
	r, clk := newTestRound(t, TrainingPolicy, ledger, &staticSource{words: []puzzle.Challenge{bonjour}})

	typeWord(t, r, "BONJOU")
	_ = r.Reveal(ctx)
	_, _ = r.Hint(ctx)
	clk.advance(LevelTime)
	_ = r.Tick(ctx)
	if ledger.score != 3 || len(ledger.history) != 0 {
		t.Fatalf("training touched the ledger: %+v", ledger)
	}
}

func TestRevealOncePerRound(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{level: 1, score: 10}
	r, _ := newTestRound(t, SoloPolicy, ledger, &staticSource{words: []puzzle.Challenge{bonjour}})

	typeWord(t, r, "BO")
	r.PressLetter(ctx, 'U') // wrong third letter
	if err := r.Reveal(ctx); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	v := r.View(ctx)
	if v.Grid.Input != "BON" || len(v.Grid.Hinted) != 1 || v.Grid.Hinted[0] != 2 {
		t.Fatalf("reveal grid = %+v", v.Grid)
	}
	if ledger.score != 8 {
		t.Fatalf("score = %d, want 8", ledger.score)
	}
	if err := r.Reveal(ctx); !errors.Is(err, ErrWrongState) {
		t.Fatalf("second reveal = %v, want ErrWrongState", err)
	}

	// Finishing the word with the revealed letter still validates.
	typeWord(t, r, "JOUR")
	res, err := r.Submit(ctx)
	if err != nil || !res.Correct {
		t.Fatalf("submit = %+v, %v", res, err)
	}
}

func TestHintChargedOncePerRound(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{level: 1, score: 10}
	r := New(DuelPolicy, nil, ledger, WithRand(rand.New(rand.NewSource(2))))
	if err := r.Load(ctx, bonjour); err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := 0; i < 3; i++ {
		h, err := r.Hint(ctx)
		if err != nil || h != "Le matin" {
			t.Fatalf("hint = %q, %v", h, err)
		}
	}
	if ledger.score != 8 {
		t.Fatalf("score = %d, want 8", ledger.score)
	}
}

func TestTournamentFinishes(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{level: 1}
	src := &staticSource{words: []puzzle.Challenge{bonjour}}
	r, _ := newTestRound(t, TournamentPolicy, ledger, src)

	typeWord(t, r, "BONJOUR")
	if _, err := r.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := r.Continue(ctx); err != nil {
		t.Fatalf("continue: %v", err)
	}
	if got := r.State(ctx); got != StateFinished {
		t.Fatalf("state = %s, want finished", got)
	}
}

func TestGenerationFailureIsRetryable(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{err: generator.ErrGenerationFailed}
	r := New(SoloPolicy, src, &fakeLedger{level: 1})
	if err := r.Start(ctx); !errors.Is(err, generator.ErrGenerationFailed) {
		t.Fatalf("start = %v", err)
	}
	if r.State(ctx) != StateGenerating {
		t.Fatal("failed generation must leave the round generating")
	}
	src.err = nil
	src.words = []puzzle.Challenge{bonjour}
	if err := r.Start(ctx); err != nil {
		t.Fatalf("retry start: %v", err)
	}
	if r.State(ctx) != StateAwaitingInput {
		t.Fatal("expected awaiting_input after retry")
	}
}

func TestScoreNeverNegative(t *testing.T) {
	ctx := context.Background()
	ledger := &fakeLedger{level: 1, score: 2}
	r, clk := newTestRound(t, SoloPolicy, ledger, &staticSource{words: []puzzle.Challenge{bonjour}})
	for i := 0; i < 3; i++ {
		r.PressLetter(ctx, 'B')
		_, _ = r.Submit(ctx)
		clk.advance(RetryDelay)
	}
	if ledger.score != 0 {
		t.Fatalf("score = %d, want 0", ledger.score)
	}
}

func TestClockRemainingClamped(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewClock(LevelTime, clk.now)
	if c.Remaining() != LevelTime {
		t.Fatal("unstarted clock must report the full limit")
	}
	c.Start()
	clk.advance(-5 * time.Second) // wall clock moved backwards
	if c.Remaining() != LevelTime {
		t.Fatalf("remaining = %v, want clamp to limit", c.Remaining())
	}
	clk.advance(2 * time.Minute)
	if c.Remaining() != 0 || !c.Expired() {
		t.Fatalf("remaining = %v, want 0", c.Remaining())
	}
}
