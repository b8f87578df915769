// internal/duel/client.go
//
// One player's view of a duel.
// Responsibilities:
//   - Own the local round (grid, buffer, reveal-once) and reset it whenever the
//     shared currentChallenge changes.
//   - Write only this player's score field; host alone writes challenges and
//     resolves the end of the game.
//   - Detect the end of the shared timer and abandonment; every status write is
//     conditional on status == active, so repeated detections are no-ops.

package duel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/grasdvirus/double-words-sub000/internal/docstore"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/round"
)

var activeOnly = docstore.Condition{Path: "status", Equals: StatusActive}

// generationBackoff spaces out automatic retries after a failed generation.
const generationBackoff = 3 * time.Second

// Client is one connected player of one duel.
type Client struct {
	svc *Service
	id  string
	me  Player

	mu           sync.Mutex
	round        *round.Round
	last         Session
	challengeKey string
	generating   bool
	retryAt      time.Time
}

// Connect creates the client of player p in duel id. Feed it snapshots with
// Observe (or call Run).
func (s *Service) Connect(id string, p Player, opts ...round.Option) *Client {
	c := &Client{svc: s, id: id, me: p}
	opts = append([]round.Option{round.WithClock(s.now)}, opts...)
	c.round = round.New(round.DuelPolicy, nil, scoreLedger{store: s.store, id: id, uid: p.UID}, opts...)
	return c
}

func (c *Client) auth(ctx context.Context) context.Context {
	return docstore.WithAuth(ctx, c.me.UID)
}

// Observe applies a new snapshot of the shared document.
func (c *Client) Observe(ctx context.Context, s Session) error {
	c.mu.Lock()
	c.last = s
	if key := challengeKey(s.CurrentChallenge); key != c.challengeKey {
		c.challengeKey = key
		if s.CurrentChallenge != nil {
			if err := c.round.Load(ctx, *s.CurrentChallenge); err != nil {
				log.Warn().Err(err).Str("duel", c.id).Msg("unusable shared challenge")
			}
		}
	}
	c.mu.Unlock()
	return c.react(ctx, s, observed)
}

// trigger says why react runs.
type trigger int

const (
	observed trigger = iota // a new snapshot arrived
	ticked                  // periodic retry of a failed generation
	forced                  // explicit host retry
)

// react performs the writes a snapshot calls for: abandonment by anyone,
// challenge generation by the host.
func (c *Client) react(ctx context.Context, s Session, t trigger) error {
	if s.Status == StatusActive && s.StartedAt != nil && len(s.Players) < MaxPlayers {
		return c.abandon(ctx, s)
	}
	if s.HostID != c.me.UID || s.Status != StatusActive || (s.CurrentChallenge != nil && s.SolvedBy == "") {
		return nil
	}

	c.mu.Lock()
	if c.generating || (t == ticked && c.retryAt.IsZero()) || (t != forced && c.svc.now().Before(c.retryAt)) {
		c.mu.Unlock()
		return nil
	}
	c.generating = true
	c.mu.Unlock()

	err := c.nextChallenge(ctx, s)

	c.mu.Lock()
	c.generating = false
	c.retryAt = time.Time{}
	if err != nil {
		c.retryAt = c.svc.now().Add(generationBackoff)
	}
	c.mu.Unlock()
	return err
}

// Generate lets the host retry a failed generation immediately.
func (c *Client) Generate(ctx context.Context) error {
	c.mu.Lock()
	s := c.last
	c.mu.Unlock()
	if s.HostID != c.me.UID {
		return errors.New("only the host generates challenges")
	}
	return c.react(ctx, s, forced)
}

// nextChallenge generates and publishes a new challenge. Failures leave
// currentChallenge as it is; the next observation retries.
func (c *Client) nextChallenge(ctx context.Context, s Session) error {
	ch, err := c.svc.gen.GenerateChallenge(ctx, s.WordHistory, s.Language)
	if err == nil {
		ch = ch.Normalize()
		err = ch.Validate(puzzle.DuelMinLength)
	}
	if err != nil {
		log.Warn().Err(err).Str("duel", c.id).Msg("duel challenge generation failed")
		return err
	}
	c.svc.mu.Lock()
	ch = ch.WithTiles(puzzle.MinExtraDuel, c.svc.rng)
	c.svc.mu.Unlock()

	err = c.svc.store.Update(c.auth(ctx), Collection, c.id, map[string]any{
		"currentChallenge": ch,
		"solvedBy":         "",
		"wordHistory":      docstore.Union(ch.SolutionWord),
	}, activeOnly)
	if errors.Is(err, docstore.ErrConditionFailed) {
		return nil
	}
	if err == nil {
		log.Debug().Str("duel", c.id).Str("challenge", ch.Challenge).Msg("duel challenge published")
	}
	return err
}

// abandon ends an active duel that lost a player.
func (c *Client) abandon(ctx context.Context, s Session) error {
	var winner *string
	if len(s.Players) == 1 {
		winner = lo.ToPtr(s.Players[0].UID)
	}
	return c.end(ctx, StatusAbandoned, winner, nil)
}

// end performs the single status transition out of active.
func (c *Client) end(ctx context.Context, status Status, winner *string, extra map[string]any) error {
	fields := map[string]any{
		"status":   status,
		"winnerId": winner,
		"endedAt":  c.svc.now().UTC(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	err := c.svc.store.Update(c.auth(ctx), Collection, c.id, fields, activeOnly)
	if errors.Is(err, docstore.ErrConditionFailed) {
		return nil
	}
	if err == nil {
		log.Info().Str("duel", c.id).Str("status", string(status)).Interface("winner", winner).Msg("duel ended")
	}
	return err
}

// Tick checks the shared timer. When it runs out the host completes the duel.
func (c *Client) Tick(ctx context.Context) error {
	c.mu.Lock()
	s := c.last
	host := s.HostID == c.me.UID
	c.mu.Unlock()
	if err := c.round.Tick(ctx); err != nil {
		return err
	}
	if err := c.react(ctx, s, ticked); err != nil {
		log.Debug().Err(err).Str("duel", c.id).Msg("duel retry")
	}
	if !host || s.Status != StatusActive || s.StartedAt == nil || s.Remaining(c.svc.now()) > 0 {
		return nil
	}
	fresh, err := c.svc.Get(ctx, c.id)
	if err != nil {
		return err
	}
	return c.end(ctx, StatusCompleted, Winner(fresh), nil)
}

// Leave is the best-effort unload path: leaving an active duel abandons it
// with the opponent as winner; leaving a waiting duel closes it.
func (c *Client) Leave(ctx context.Context) error {
	s, err := c.svc.Get(ctx, c.id)
	if err != nil || !s.Has(c.me.UID) {
		return err
	}
	rest := lo.Filter(s.Players, func(p Player, _ int) bool { return p.UID != c.me.UID })
	switch s.Status {
	case StatusActive:
		var winner *string
		if opp, ok := s.Opponent(c.me.UID); ok {
			winner = &opp.UID
		}
		return c.end(ctx, StatusAbandoned, winner, map[string]any{"players": rest})
	case StatusWaiting:
		err := c.svc.store.Update(c.auth(ctx), Collection, c.id, map[string]any{
			"players": rest,
			"status":  StatusAbandoned,
			"endedAt": c.svc.now().UTC(),
		}, docstore.Condition{Path: "status", Equals: StatusWaiting})
		if errors.Is(err, docstore.ErrConditionFailed) {
			return nil
		}
		return err
	}
	return nil
}

// playing returns nil when moves are allowed.
func (c *Client) playing() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last.Status != StatusActive {
		return ErrNotActive
	}
	if c.last.CurrentChallenge == nil {
		return fmt.Errorf("%w: waiting for a challenge", round.ErrWrongState)
	}
	return nil
}

// Press types the letter on tile.
func (c *Client) Press(ctx context.Context, tile int) bool {
	return c.playing() == nil && c.round.Press(ctx, tile)
}

// PressLetter types letter from the first free tile bearing it.
func (c *Client) PressLetter(ctx context.Context, letter rune) bool {
	return c.playing() == nil && c.round.PressLetter(ctx, letter)
}

// Backspace removes the last typed letter.
func (c *Client) Backspace(ctx context.Context) bool {
	return c.playing() == nil && c.round.Backspace(ctx)
}

// Hint returns the clue; the first request of a challenge costs points.
func (c *Client) Hint(ctx context.Context) (string, error) {
	if err := c.playing(); err != nil {
		return "", err
	}
	return c.round.Hint(c.auth(ctx))
}

// Reveal fills the earliest wrong letter, once per challenge.
func (c *Client) Reveal(ctx context.Context) error {
	if err := c.playing(); err != nil {
		return err
	}
	return c.round.Reveal(c.auth(ctx))
}

// Submit validates the typed word. A correct answer credits this player and
// marks the challenge solved so the host publishes the next one.
func (c *Client) Submit(ctx context.Context) (round.Result, error) {
	if err := c.playing(); err != nil {
		return round.Result{}, err
	}
	ctx = c.auth(ctx)
	res, err := c.round.Submit(ctx)
	if err != nil || !res.Correct {
		return res, err
	}
	err = c.svc.store.Update(ctx, Collection, c.id, map[string]any{"solvedBy": c.me.UID}, activeOnly)
	if errors.Is(err, docstore.ErrConditionFailed) {
		err = nil
	}
	return res, err
}

// View is what a duel player sees.
type View struct {
	Duel      Session    `json:"duel"`
	Round     round.View `json:"round"`
	Me        string     `json:"me"`
	IsHost    bool       `json:"isHost"`
	Remaining int        `json:"remainingSeconds"`
	Waiting   bool       `json:"waiting"` // no challenge yet
}

// View returns the current snapshot.
func (c *Client) View(ctx context.Context) View {
	c.mu.Lock()
	s := c.last
	c.mu.Unlock()
	rv := c.round.View(ctx)
	rv.Score = s.PlayerScores[c.me.UID]
	rv.Level = len(s.WordHistory)
	return View{
		Duel:      s,
		Round:     rv,
		Me:        c.me.UID,
		IsHost:    s.HostID == c.me.UID,
		Remaining: int(s.Remaining(c.svc.now()) / time.Second),
		Waiting:   s.CurrentChallenge == nil,
	}
}

// Run subscribes to the duel document and drives Observe and Tick until ctx
// is done or the duel ends, calling push with every new view.
func (c *Client) Run(ctx context.Context, every time.Duration, push func(View)) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	snaps := c.svc.store.Subscribe(ctx, Collection, c.id)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	lastSecond := -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-snaps:
			if !ok {
				return ctx.Err()
			}
			if !snap.Exists {
				return ErrNotFound
			}
			s, err := decode(snap)
			if err != nil {
				return err
			}
			if err := c.Observe(ctx, s); err != nil {
				log.Warn().Err(err).Str("duel", c.id).Str("player", c.me.UID).Msg("observe duel")
			}
			push(c.View(ctx))
			if s.Status.Terminal() {
				return nil
			}
		case <-ticker.C:
			if err := c.Tick(ctx); err != nil {
				log.Warn().Err(err).Str("duel", c.id).Msg("duel tick")
			}
			v := c.View(ctx)
			if v.Remaining != lastSecond {
				lastSecond = v.Remaining
				push(v)
			}
		}
	}
}

// scoreLedger credits one player's score field in the duel document.
type scoreLedger struct {
	store *docstore.Store
	id    string
	uid   string
}

func (l scoreLedger) Progress(ctx context.Context) (round.Progress, error) {
	snap, err := l.store.Get(ctx, Collection, l.id)
	if err != nil {
		return round.Progress{}, err
	}
	s, err := decode(snap)
	if err != nil {
		return round.Progress{}, err
	}
	return round.Progress{Level: len(s.WordHistory), Score: s.PlayerScores[l.uid], Language: s.Language, History: s.WordHistory}, nil
}

func (l scoreLedger) Adjust(ctx context.Context, delta int) (int, error) {
	zero := 0
	return l.store.IncrementFloor(docstore.WithAuth(ctx, l.uid), Collection, l.id, "playerScores."+l.uid, delta, &zero, activeOnly)
}

func (l scoreLedger) Complete(ctx context.Context, _ string, points int) (int, error) {
	return l.Adjust(ctx, points)
}
