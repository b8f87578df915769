// internal/round/round.go
//
// Round state machine shared by solo, training, tournament and duel play.
// Responsibilities:
//   - Lifecycle: generating → awaiting_input → validating → retrying | completed | timed_out.
//   - Drive the letter grid from key presses, backspaces, hints and reveals.
//   - Apply mode-specific scoring through a Ledger (floor 0 lives in the ledger).
//
// Notes:
//   - Time only advances inside operations: every call first settles pending
//     transitions (retry delay elapsed, clock expired) against the injected clock.
//   - Generation failures leave the machine in generating; Start can be retried.
//   - A Round is safe for concurrent use; operations are serialized by mu.

package round

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"

	"github.com/grasdvirus/double-words-sub000/internal/generator"
	"github.com/grasdvirus/double-words-sub000/internal/grid"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/score"
)

const (
	StateGenerating    = "generating"
	StateAwaitingInput = "awaiting_input"
	StateValidating    = "validating"
	StateRetrying      = "retrying"
	StateCompleted     = "completed"
	StateTimedOut      = "timed_out"
	StateFinished      = "finished"
)

// ErrWrongState is returned when an action does not fit the current state.
var ErrWrongState = errors.New("action not allowed in current state")

func newMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateGenerating,
		fsm.Events{
			{Name: "load", Src: []string{StateGenerating, StateAwaitingInput, StateRetrying, StateCompleted, StateTimedOut}, Dst: StateAwaitingInput},
			{Name: "submit", Src: []string{StateAwaitingInput}, Dst: StateValidating},
			{Name: "mismatch", Src: []string{StateValidating}, Dst: StateRetrying},
			{Name: "match", Src: []string{StateValidating}, Dst: StateCompleted},
			{Name: "resume", Src: []string{StateRetrying}, Dst: StateAwaitingInput},
			{Name: "expire", Src: []string{StateAwaitingInput, StateRetrying}, Dst: StateTimedOut},
			{Name: "next", Src: []string{StateCompleted, StateTimedOut}, Dst: StateGenerating},
			{Name: "finish", Src: []string{StateGenerating}, Dst: StateFinished},
		},
		fsm.Callbacks{},
	)
}

// Round is one player's round lifecycle.
type Round struct {
	mu sync.Mutex

	id          string
	policy      Policy
	source      ChallengeSource
	ledger      Ledger
	originality generator.OriginalityChecker
	machine     *fsm.FSM
	clock       *Clock
	now         func() time.Time
	rng         *rand.Rand

	progress   Progress
	score      int
	challenge  puzzle.Challenge
	grid       *grid.Grid
	hintShown  bool
	revealUsed bool
	retryUntil time.Time
	completion *score.Completion
}

// Option configures a Round.
type Option func(*Round)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option { return func(r *Round) { r.now = now } }

// WithRand injects the tile shuffler.
func WithRand(rng *rand.Rand) Option { return func(r *Round) { r.rng = rng } }

// WithOriginality sets the originality checker used on completion.
func WithOriginality(c generator.OriginalityChecker) Option {
	return func(r *Round) { r.originality = c }
}

// WithID fixes the round identifier.
func WithID(id string) Option { return func(r *Round) { r.id = id } }

// New creates a Round in the generating state. source may be nil when
// challenges are pushed with Load (duel).
func New(policy Policy, source ChallengeSource, ledger Ledger, opts ...Option) *Round {
	r := &Round{
		id:      uuid.NewString(),
		policy:  policy,
		source:  source,
		ledger:  ledger,
		machine: newMachine(),
		now:     time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewSource(r.now().UnixNano()))
	}
	r.clock = NewClock(policy.LevelTime, r.now)
	return r
}

// ID returns the round identifier.
func (r *Round) ID() string { return r.id }

// Policy returns the round policy.
func (r *Round) Policy() Policy { return r.policy }

// State returns the current state after settling time-based transitions.
func (r *Round) State(ctx context.Context) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settleLogged(ctx)
	return r.machine.Current()
}

func (r *Round) fire(ctx context.Context, event string) error {
	err := r.machine.Event(ctx, event)
	var same fsm.NoTransitionError
	if err != nil && !errors.As(err, &same) {
		return fmt.Errorf("%w: %s from %s", ErrWrongState, event, r.machine.Current())
	}
	return nil
}

func (r *Round) timed() bool { return r.policy.LevelTime > 0 }

// Start requests the next challenge and begins the round. On a generation
// failure the round stays in generating and Start may be called again.
func (r *Round) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start(ctx)
}

func (r *Round) start(ctx context.Context) error {
	if r.machine.Current() != StateGenerating {
		return ErrWrongState
	}
	if r.source == nil {
		return fmt.Errorf("%w: no challenge source", ErrWrongState)
	}
	p, err := r.ledger.Progress(ctx)
	if err != nil {
		return fmt.Errorf("load progress: %w", err)
	}
	r.progress, r.score = p, p.Score

	c, err := r.source.Next(ctx, p)
	if errors.Is(err, ErrNoMoreLevels) {
		log.Info().Str("round", r.id).Int("level", p.Level).Msg("no more levels")
		return r.fire(ctx, "finish")
	}
	if err != nil {
		log.Warn().Err(err).Str("round", r.id).Msg("challenge generation failed")
		return err
	}
	return r.load(ctx, c)
}

// Load installs c as the current challenge and resets all local input state.
func (r *Round) Load(ctx context.Context, c puzzle.Challenge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(ctx, c)
}

func (r *Round) load(ctx context.Context, c puzzle.Challenge) error {
	if r.machine.Current() == StateFinished {
		return ErrWrongState
	}
	c = c.Normalize()
	if err := c.Validate(r.policy.MinWordLength); err != nil {
		return fmt.Errorf("%w: %v", generator.ErrGenerationFailed, err)
	}
	if len(c.JumbledLetters) == 0 || !puzzle.Covers(c.JumbledLetters, c.SolutionWord) {
		c = c.WithTiles(r.policy.MinExtraTiles, r.rng)
	}
	r.challenge = c
	r.grid = grid.New(c.Tiles(), utf8.RuneCountInString(c.SolutionWord))
	r.hintShown, r.revealUsed = false, false
	r.completion = nil
	r.retryUntil = time.Time{}
	if r.timed() {
		r.clock.Start()
	}
	return r.fire(ctx, "load")
}

// settle applies the transitions that time alone can trigger.
func (r *Round) settle(ctx context.Context) error {
	if r.machine.Current() == StateRetrying && !r.now().Before(r.retryUntil) {
		r.grid.Reset()
		if err := r.fire(ctx, "resume"); err != nil {
			return err
		}
	}
	cur := r.machine.Current()
	if r.timed() && r.clock.Expired() && (cur == StateAwaitingInput || cur == StateRetrying) {
		r.clock.Stop()
		if err := r.fire(ctx, "expire"); err != nil {
			return err
		}
		log.Debug().Str("round", r.id).Str("word", r.challenge.SolutionWord).Msg("round timed out")
		return r.penalize(ctx, r.policy.TimeoutPenalty)
	}
	return nil
}

func (r *Round) settleLogged(ctx context.Context) {
	if err := r.settle(ctx); err != nil {
		log.Error().Err(err).Str("round", r.id).Msg("settle round")
	}
}

func (r *Round) penalize(ctx context.Context, points int) error {
	if !r.policy.ScoringEnabled || points == 0 {
		return nil
	}
	s, err := r.ledger.Adjust(ctx, -points)
	if err != nil {
		return fmt.Errorf("apply penalty: %w", err)
	}
	r.score = s
	return nil
}

// accepting settles time and reports whether input is currently allowed.
func (r *Round) accepting(ctx context.Context) bool {
	r.settleLogged(ctx)
	return r.machine.Current() == StateAwaitingInput
}

// Press types the letter on tile. Invalid presses are ignored.
func (r *Round) Press(ctx context.Context, tile int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accepting(ctx) {
		return false
	}
	tiles := r.grid.Tiles()
	if tile < 0 || tile >= len(tiles) {
		return false
	}
	return r.grid.Press(tiles[tile], tile)
}

// PressLetter types letter using the first free tile bearing it.
func (r *Round) PressLetter(ctx context.Context, letter rune) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepting(ctx) && r.grid.PressLetter(letter)
}

// Backspace removes the last typed letter.
func (r *Round) Backspace(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accepting(ctx) && r.grid.Backspace()
}

// Hint returns the clue. The first request of a round costs HintPenalty.
func (r *Round) Hint(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accepting(ctx) {
		return "", ErrWrongState
	}
	if !r.hintShown {
		r.hintShown = true
		if err := r.penalize(ctx, r.policy.HintPenalty); err != nil {
			return r.challenge.Hint, err
		}
	}
	return r.challenge.Hint, nil
}

// Reveal fills the earliest incorrect position with the right letter. It can
// be used once per round.
func (r *Round) Reveal(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accepting(ctx) || r.revealUsed {
		return ErrWrongState
	}
	sol := r.challenge.Letters()
	input := []rune(r.grid.Input())
	pos := 0
	for pos < len(sol) && pos < len(input) && input[pos] == sol[pos] {
		pos++
	}
	if pos >= len(sol) {
		return ErrWrongState
	}
	r.grid.Truncate(pos)
	r.grid.Reveal(pos, sol[pos])
	r.revealUsed = true
	return r.penalize(ctx, r.policy.RevealPenalty)
}

// Result is the outcome of Submit.
type Result struct {
	Correct    bool              `json:"correct"`
	Completion *score.Completion `json:"completion,omitempty"`
	Score      int               `json:"score"`
}

// Submit validates the typed word.
func (r *Round) Submit(ctx context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.accepting(ctx) {
		return Result{}, ErrWrongState
	}
	if err := r.fire(ctx, "submit"); err != nil {
		return Result{}, err
	}

	word := r.grid.Input()
	if !r.challenge.Matches(word) {
		r.retryUntil = r.now().Add(r.policy.RetryDelay)
		if err := r.fire(ctx, "mismatch"); err != nil {
			return Result{}, err
		}
		err := r.penalize(ctx, r.policy.WrongPenalty)
		return Result{Score: r.score}, err
	}

	r.clock.Stop()
	c := r.complete(ctx)
	r.completion = &c
	if err := r.fire(ctx, "match"); err != nil {
		return Result{}, err
	}
	if r.policy.Progress {
		s, err := r.ledger.Complete(ctx, r.challenge.SolutionWord, c.Total)
		if err != nil {
			return Result{Correct: true, Completion: &c, Score: r.score}, fmt.Errorf("record completion: %w", err)
		}
		r.score = s
	}
	return Result{Correct: true, Completion: &c, Score: r.score}, nil
}

func (r *Round) complete(ctx context.Context) score.Completion {
	if !r.policy.ScoringEnabled {
		return score.Completion{}
	}
	bonus := 0
	if r.policy.OriginalityEnabled {
		bonus = generator.OriginalityBonus(ctx, r.originality, r.challenge.SolutionWord, r.progress.History)
	}
	remaining := 0
	if r.policy.TimeBonusEnabled && r.timed() {
		remaining = r.clock.RemainingSeconds()
	}
	return score.Complete(r.policy.CorrectPoints, bonus, remaining)
}

// Tick settles time-based transitions; callers use it as the frame timer.
func (r *Round) Tick(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settle(ctx)
}

// Continue moves from a completed round to the next one.
func (r *Round) Continue(ctx context.Context) error {
	return r.again(ctx, StateCompleted)
}

// Retry replays the current level after a timeout.
func (r *Round) Retry(ctx context.Context) error {
	return r.again(ctx, StateTimedOut)
}

func (r *Round) again(ctx context.Context, from string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settleLogged(ctx)
	if r.machine.Current() != from {
		return ErrWrongState
	}
	if err := r.fire(ctx, "next"); err != nil {
		return err
	}
	return r.start(ctx)
}

// View is the player-facing snapshot of a round.
type View struct {
	ID          string            `json:"id"`
	Mode        Mode              `json:"mode"`
	State       string            `json:"state"`
	Level       int               `json:"level"`
	Score       int               `json:"score"`
	Challenge   string            `json:"challenge,omitempty"`
	Description string            `json:"description,omitempty"`
	Hint        string            `json:"hint,omitempty"`
	Solution    string            `json:"solution,omitempty"`
	Grid        *grid.Snapshot    `json:"grid,omitempty"`
	Remaining   int               `json:"remainingSeconds"`
	RevealUsed  bool              `json:"revealUsed"`
	Completion  *score.Completion `json:"completion,omitempty"`
	Shake       bool              `json:"shake,omitempty"`
}

// View returns the current snapshot.
func (r *Round) View(ctx context.Context) View {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settleLogged(ctx)

	v := View{
		ID:         r.id,
		Mode:       r.policy.Mode,
		State:      r.machine.Current(),
		Level:      r.progress.Level,
		Score:      r.score,
		RevealUsed: r.revealUsed,
		Completion: r.completion,
		Shake:      r.machine.Current() == StateRetrying,
	}
	if r.timed() {
		v.Remaining = r.clock.RemainingSeconds()
	}
	if r.grid == nil {
		return v
	}
	snap := r.grid.Snapshot()
	v.Grid = &snap
	v.Challenge = r.challenge.Challenge
	v.Description = r.challenge.Description
	if r.hintShown {
		v.Hint = r.challenge.Hint
	}
	if v.State == StateCompleted || v.State == StateTimedOut {
		v.Solution = r.challenge.SolutionWord
	}
	return v
}
