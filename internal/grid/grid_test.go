package grid

import (
	"math/rand"
	"reflect"
	"testing"
)

func tiles(s string) []rune { return []rune(s) }

// checkConservation verifies that, per letter, consumed tiles equal the
// non-hint buffer occurrences plus tiles consumed by reveals.
func checkConservation(t *testing.T, g *Grid) {
	t.Helper()
	consumed := map[rune]int{}
	for i, r := range g.tiles {
		if g.consumed[i] {
			consumed[r]++
		}
	}
	want := map[rune]int{}
	for pos, r := range g.buffer {
		if !g.HintSourced(pos) {
			want[r]++
		}
	}
	for _, i := range g.revealed {
		want[g.tiles[i]]++
	}
	for r := range mergeKeys(consumed, want) {
		if consumed[r] != want[r] {
			t.Fatalf("letter %q: %d consumed tiles, want %d (buffer %q)", r, consumed[r], want[r], g.Input())
		}
	}
	if len(g.buffer) != len(g.source) {
		t.Fatalf("buffer/source length mismatch: %d vs %d", len(g.buffer), len(g.source))
	}
}

func mergeKeys(a, b map[rune]int) map[rune]struct{} {
	out := map[rune]struct{}{}
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func TestPressAndBackspaceWithDuplicates(t *testing.T) {
	g := New(tiles("AXBAYA"), 4)
	if !g.Press('A', 3) || !g.Press('a', 0) || !g.Press('A', 5) {
		t.Fatal("expected presses to succeed")
	}
	if g.Press('A', 3) {
		t.Fatal("pressing a consumed tile must be a no-op")
	}
	if g.Press('B', 1) {
		t.Fatal("pressing a tile with another letter must be a no-op")
	}
	checkConservation(t, g)

	g.Backspace()
	if g.Consumed(5) || !g.Consumed(3) || !g.Consumed(0) {
		t.Fatalf("backspace freed the wrong tile: %v", g.consumed)
	}
	g.Backspace()
	if g.Consumed(0) || !g.Consumed(3) {
		t.Fatalf("backspace freed the wrong tile: %v", g.consumed)
	}
	checkConservation(t, g)
}

func TestPressRespectsCapacity(t *testing.T) {
	g := New(tiles("ABC"), 2)
	g.Press('A', 0)
	g.Press('B', 1)
	if g.Press('C', 2) {
		t.Fatal("press beyond capacity must be a no-op")
	}
	if g.Input() != "AB" {
		t.Fatalf("input = %q", g.Input())
	}
}

func TestBackspaceOnEmptyIsNoop(t *testing.T) {
	g := New(tiles("AB"), 2)
	if g.Backspace() {
		t.Fatal("backspace on empty buffer must report false")
	}
}

func TestPressThenBackspaceRestoresState(t *testing.T) {
	g := New(tiles("BONJOURXZT"), 7)
	g.PressLetter('B')
	g.PressLetter('O')
	for i := range g.tiles {
		before := g.Snapshot()
		if !g.Press(g.tiles[i], i) {
			continue
		}
		g.Backspace()
		if after := g.Snapshot(); !reflect.DeepEqual(before, after) {
			t.Fatalf("press(%d)+backspace changed state: %+v -> %+v", i, before, after)
		}
	}
}

func TestRevealIsExemptFromBackspace(t *testing.T) {
	g := New(tiles("OBNOJUR"), 7)
	g.PressLetter('B')
	if !g.Reveal(1, 'O') {
		t.Fatal("reveal failed")
	}
	revealedTile := g.revealed[0]
	if !g.HintSourced(1) || !g.Consumed(revealedTile) {
		t.Fatal("reveal must tag the position and consume a tile")
	}
	checkConservation(t, g)

	g.Backspace()
	if g.Input() != "B" {
		t.Fatalf("input = %q, want B", g.Input())
	}
	if !g.Consumed(revealedTile) {
		t.Fatal("revealed tile must stay consumed after backspace")
	}
	if g.HintSourced(1) {
		t.Fatal("hint marker must be cleared with its position")
	}
	checkConservation(t, g)

	// The other O tile is still free and usable.
	if !g.PressLetter('O') {
		t.Fatal("second O tile should still be free")
	}
	checkConservation(t, g)
}

func TestRevealRequiresNextPosition(t *testing.T) {
	g := New(tiles("ABC"), 3)
	if g.Reveal(1, 'B') {
		t.Fatal("reveal at a non-next position must be a no-op")
	}
}

func TestResetClearsEverything(t *testing.T) {
	g := New(tiles("ABCA"), 4)
	g.PressLetter('A')
	g.Reveal(1, 'B')
	g.Reset()
	for i := range g.tiles {
		if g.Consumed(i) {
			t.Fatalf("tile %d still consumed after reset", i)
		}
	}
	if g.Len() != 0 || len(g.Snapshot().Hinted) != 0 {
		t.Fatal("reset must clear buffer and hint markers")
	}
}

func TestRandomSequencesKeepConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := tiles("AABBBCDEEA")
	for run := 0; run < 200; run++ {
		g := New(pool, 6)
		for step := 0; step < 40; step++ {
			switch rng.Intn(3) {
			case 0, 1:
				i := rng.Intn(len(pool))
				g.Press(pool[i], i)
			case 2:
				g.Backspace()
			}
			checkConservation(t, g)
		}
	}
}

func TestTruncate(t *testing.T) {
	g := New(tiles("ABCD"), 4)
	g.PressLetter('A')
	g.PressLetter('B')
	g.PressLetter('C')
	g.Truncate(1)
	if g.Input() != "A" || g.Consumed(1) || g.Consumed(2) || !g.Consumed(0) {
		t.Fatalf("truncate left %q %v", g.Input(), g.consumed)
	}
}
