// internal/leaderboard/leaderboard.go
//
// Season leaderboard kept as one shared document per player.
// Responsibilities:
//   - Credit points earned in scored solo rounds through atomic increments.
//   - Serve the ranked top-N, once or as a push subscription.
//   - At the end of a season, archive the final standings as palmares
//     counters and start the next season from an empty board.

package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/grasdvirus/double-words-sub000/internal/database"
	"github.com/grasdvirus/double-words-sub000/internal/docstore"
)

const (
	Collection   = "leaderboard"
	DefaultLimit = 10
)

// Entry is one ranked leaderboard row.
type Entry struct {
	UserID      string `json:"uid"`
	DisplayName string `json:"displayName"`
	Score       int    `json:"score"`
	Rank        int    `json:"rank"`
}

// Board reads and writes the leaderboard collection.
type Board struct {
	store *docstore.Store
}

// New returns a Board over store.
func New(store *docstore.Store) *Board { return &Board{store: store} }

// Add credits points to uid, creating its entry on first use.
func (b *Board) Add(ctx context.Context, uid, displayName string, points int) error {
	if points <= 0 {
		return nil
	}
	ctx = docstore.WithAuth(ctx, uid)
	fields := map[string]any{"score": docstore.Inc(points)}
	if displayName != "" {
		fields["displayName"] = displayName
	}
	for attempt := 0; attempt < 2; attempt++ {
		err := b.store.Update(ctx, Collection, uid, fields)
		if !errors.Is(err, docstore.ErrNotFound) {
			return err
		}
		err = b.store.Insert(ctx, Collection, uid, map[string]any{"displayName": displayName, "score": points})
		if !errors.Is(err, docstore.ErrExists) {
			return err
		}
		// Lost the race with another first write; increment instead.
	}
	return fmt.Errorf("leaderboard add %s: %w", uid, docstore.ErrConditionFailed)
}

// For returns the scoreboard of one player, for session ledgers.
func (b *Board) For(uid, displayName string) PlayerBoard {
	return PlayerBoard{board: b, uid: uid, name: displayName}
}

// PlayerBoard credits a single player.
type PlayerBoard struct {
	board *Board
	uid   string
	name  string
}

// Add implements session.Scoreboard.
func (p PlayerBoard) Add(ctx context.Context, points int) error {
	return p.board.Add(ctx, p.uid, p.name, points)
}

// Top returns the limit best entries; limit <= 0 returns all of them.
func (b *Board) Top(ctx context.Context, limit int) ([]Entry, error) {
	snaps, err := b.store.Query(ctx, Collection, query(limit))
	if err != nil {
		return nil, err
	}
	return rank(snaps)
}

// Subscribe pushes the ranked top-limit after every leaderboard change.
func (b *Board) Subscribe(ctx context.Context, limit int) <-chan []Entry {
	in := b.store.SubscribeQuery(ctx, Collection, query(limit))
	out := make(chan []Entry, 1)
	go func() {
		defer close(out)
		for snaps := range in {
			entries, err := rank(snaps)
			if err != nil {
				log.Warn().Err(err).Msg("decode leaderboard")
				continue
			}
			select {
			case out <- entries:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

func query(limit int) docstore.Query {
	return docstore.Query{OrderBy: "score", Desc: true, Limit: max(limit, 0)}
}

// rank decodes sorted snapshots. Equal scores share a rank (1, 2, 2, 4).
func rank(snaps []docstore.Snapshot) ([]Entry, error) {
	out := make([]Entry, 0, len(snaps))
	for i, snap := range snaps {
		var e Entry
		if err := snap.Decode(&e); err != nil {
			return nil, fmt.Errorf("decode %s: %w", snap.ID, err)
		}
		e.UserID = snap.ID
		e.Rank = i + 1
		if i > 0 && out[i-1].Score == e.Score {
			e.Rank = out[i-1].Rank
		}
		out = append(out, e)
	}
	return out, nil
}

// Rules restricts client writes to one's own entry, adding points only.
func Rules(_ context.Context, req docstore.Request) error {
	if req.Auth == "" || req.Collection != Collection {
		return nil
	}
	if req.ID != req.Auth {
		return errors.New("leaderboard entries are written by their owner")
	}
	switch req.Op {
	case docstore.OpCreate:
		if n, _ := req.Payload["score"].(float64); n < 0 {
			return errors.New("negative score")
		}
	case docstore.OpUpdate:
		for _, path := range docstore.Paths(req.Payload) {
			switch path {
			case "displayName":
			case "score":
				t, ok := req.Payload[path].(docstore.Transform)
				if d, inc := t.Delta(); !ok || !inc || d < 0 {
					return errors.New("score only grows by increments")
				}
			default:
				return fmt.Errorf("unknown leaderboard field %q", path)
			}
		}
	default:
		return fmt.Errorf("%s not allowed on leaderboard", req.Op)
	}
	return nil
}

// Season is a leaderboard epoch.
type Season struct {
	ID  string
	End time.Time // zero means the season never ends on its own
}

// Over reports whether the season has ended at now.
func (s Season) Over(now time.Time) bool { return !s.End.IsZero() && !now.Before(s.End) }

// Archiver stores final standings; database.Trophies implements it.
type Archiver interface {
	ArchiveSeason(ctx context.Context, seasonID string, standings []database.Standing) error
}

// Report summarizes an archived season.
type Report struct {
	SeasonID   string              `json:"seasonId"`
	ArchivedAt time.Time           `json:"archivedAt"`
	Standings  []database.Standing `json:"standings"`
}

// Podium returns the standings ranked 1 to 3.
func (r Report) Podium() []database.Standing {
	return lo.Filter(r.Standings, func(s database.Standing, _ int) bool { return s.Rank <= 3 })
}

// Archive records the final standings of season and clears the board.
// Archiving the same season twice returns database.ErrSeasonArchived and
// leaves the board untouched.
func (b *Board) Archive(ctx context.Context, season Season, to Archiver, now time.Time) (Report, error) {
	entries, err := b.Top(ctx, 0)
	if err != nil {
		return Report{}, err
	}
	standings := lo.FilterMap(entries, func(e Entry, _ int) (database.Standing, bool) {
		return database.Standing{UserID: e.UserID, DisplayName: e.DisplayName, Rank: e.Rank, Score: e.Score}, e.Score > 0
	})
	if err := to.ArchiveSeason(ctx, season.ID, standings); err != nil {
		return Report{}, fmt.Errorf("archive season %s: %w", season.ID, err)
	}
	for _, e := range entries {
		if err := b.store.Delete(ctx, Collection, e.UserID); err != nil {
			return Report{}, fmt.Errorf("clear leaderboard: %w", err)
		}
	}
	log.Info().Str("season", season.ID).Int("players", len(standings)).Msg("season archived")
	return Report{SeasonID: season.ID, ArchivedAt: now.UTC(), Standings: standings}, nil
}

// RunSeason archives season once it is over, checking every interval, and
// hands the report to done. It returns when ctx ends or after archiving.
func (b *Board) RunSeason(ctx context.Context, season Season, to Archiver, every time.Duration, now func() time.Time, done func(Report)) {
	if season.End.IsZero() {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if season.Over(now()) {
			rep, err := b.Archive(ctx, season, to, now())
			switch {
			case errors.Is(err, database.ErrSeasonArchived):
				return
			case err != nil:
				log.Error().Err(err).Str("season", season.ID).Msg("season archive failed")
			default:
				if done != nil {
					done(rep)
				}
				return
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
