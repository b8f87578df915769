package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/store"
)

func loaded(t *testing.T, kv KV, id string) *Store {
	t.Helper()
	s := New(kv, id)
	if err := s.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return s
}

func TestStateSurvivesReload(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	s := loaded(t, kv, "p1")

	if _, err := s.CompleteRound(ctx, "BONJOUR", 18); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateSettings(ctx, Settings{Language: "en", Sound: false}); err != nil {
		t.Fatal(err)
	}

	again := loaded(t, kv, "p1")
	st := again.State()
	if st.Level != 2 || st.Score != 18 || len(st.History) != 1 || st.Settings.Language != puzzle.EN || st.Settings.Sound {
		t.Fatalf("reloaded state = %+v", st)
	}
	if other := loaded(t, kv, "p2").State(); other.Score != 0 || other.Level != 1 {
		t.Fatalf("players must not share state: %+v", other)
	}
}

func TestScoreFloorAndLevelCap(t *testing.T) {
	ctx := context.Background()
	s := loaded(t, store.NewMemoryKV(), "p1")
	if got, _ := s.ApplyDelta(ctx, -10); got != 0 {
		t.Fatalf("score = %d, want 0", got)
	}
	for i := 0; i < MaxLevel+5; i++ {
		_, _ = s.CompleteRound(ctx, "MOT", 0)
	}
	if got := s.State().Level; got != MaxLevel {
		t.Fatalf("level = %d, want %d", got, MaxLevel)
	}
}

func TestTournamentLevelCappedAtCategoryLength(t *testing.T) {
	ctx := context.Background()
	s := loaded(t, store.NewMemoryKV(), "p1")
	l := TournamentLedger{Store: s, Category: "animaux", Levels: 2}
	for i := 0; i < 4; i++ {
		_, _ = l.Complete(ctx, "MOT", 10)
	}
	if got := s.TournamentLevel("animaux"); got != 3 {
		t.Fatalf("level = %d, want 3 (finished marker)", got)
	}
	if err := s.ResetTournament(ctx, "animaux"); err != nil {
		t.Fatal(err)
	}
	if got := s.TournamentLevel("animaux"); got != 1 {
		t.Fatalf("level after reset = %d", got)
	}
}

func TestResetRestoresDefault(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	s := loaded(t, kv, "p1")
	_, _ = s.CompleteRound(ctx, "MOT", 10)
	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if st := loaded(t, kv, "p1").State(); st.Score != 0 || st.Level != 1 || len(st.History) != 0 {
		t.Fatalf("state after reset = %+v", st)
	}
}

type countingBoard struct{ total int }

func (b *countingBoard) Add(_ context.Context, points int) error {
	b.total += points
	return nil
}

func TestSoloLedgerFeedsScoreboard(t *testing.T) {
	ctx := context.Background()
	board := &countingBoard{}
	l := SoloLedger{Store: loaded(t, store.NewMemoryKV(), "p1"), Scoreboard: board}
	if _, err := l.Complete(ctx, "BONJOUR", 13); err != nil {
		t.Fatal(err)
	}
	_, _ = l.Adjust(ctx, -5)
	_, _ = l.Complete(ctx, "MOT", 0)
	if board.total != 13 {
		t.Fatalf("scoreboard total = %d, want 13", board.total)
	}
	p, _ := l.Progress(ctx)
	if p.Score != 8 || p.Level != 3 || p.History[0] != "BONJOUR" {
		t.Fatalf("progress = %+v", p)
	}
}

// brokenKV reads from the embedded KV but fails every write.
type brokenKV struct{ KV }

func (brokenKV) Set(context.Context, string, []byte) error { return errors.New("disk full") }

func TestFailedSaveKeepsState(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	good := loaded(t, kv, "p1")
	if _, err := good.CompleteRound(ctx, "BONJOUR", 12); err != nil {
		t.Fatal(err)
	}
	before := good.State()

	s := loaded(t, brokenKV{kv}, "p1")
	writes := []struct {
		name string
		run  func() error
	}{
		{"apply delta", func() error { _, err := s.ApplyDelta(ctx, -5); return err }},
		{"complete round", func() error { _, err := s.CompleteRound(ctx, "MAISON", 15); return err }},
		{"complete tournament level", func() error {
			_, err := s.CompleteTournamentLevel(ctx, "animaux", "CHAT", 10, 5)
			return err
		}},
		{"reset tournament", func() error { return s.ResetTournament(ctx, "animaux") }},
		{"update settings", func() error { return s.UpdateSettings(ctx, Settings{Language: "en"}) }},
	}
	for _, w := range writes {
		t.Run(w.name, func(t *testing.T) {
			if err := w.run(); err == nil || !strings.Contains(err.Error(), "disk full") {
				t.Fatalf("err = %v, want the save failure", err)
			}
			st := s.State()
			if st.Score != before.Score || st.Level != before.Level || len(st.History) != len(before.History) ||
				st.Settings != before.Settings || len(st.Tournament) != 0 {
				t.Fatalf("state changed after failed save: %+v, want %+v", st, before)
			}
		})
	}
	if got := loaded(t, kv, "p1").State(); got.Score != before.Score || got.Level != before.Level {
		t.Fatalf("durable state = %+v", got)
	}
}

func TestStoresOfOnePlayerDoNotClobber(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryKV()
	stale := loaded(t, kv, "p1")
	fresh := loaded(t, kv, "p1")

	if err := fresh.UpdateSettings(ctx, Settings{Language: "en", Music: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := stale.CompleteRound(ctx, "MAISON", 15); err != nil {
		t.Fatal(err)
	}

	st := loaded(t, kv, "p1").State()
	if st.Settings.Language != puzzle.EN || st.Score != 15 || st.Level != 2 {
		t.Fatalf("merged state = %+v", st)
	}
	if got := stale.State(); got.Settings.Language != puzzle.EN {
		t.Fatalf("writer state not refreshed: %+v", got)
	}
}
