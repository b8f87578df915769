// internal/grid/grid.go
//
// Letter-grid allocator for a single round.
// Responsibilities:
//   - Track which jumbled tiles are consumed by the current input buffer.
//   - Map key presses, backspaces and reveals to tile consumption changes.
//
// Every buffer position records where its letter came from: the tile index it
// consumed, or hintSource when it was filled by a reveal. Backspace frees
// exactly the recorded tile, so duplicate letters never need recounting. A tile
// consumed by a reveal stays consumed until Reset.
//
// The Grid is not safe for concurrent use; owners serialize access.

package grid

import (
	"unicode"
)

const hintSource = -1

// Grid holds the tile pool and the input buffer.
type Grid struct {
	tiles    []rune
	consumed []bool
	buffer   []rune
	source   []int // per buffer position: tile index or hintSource
	revealed []int // tiles consumed by reveals
	capacity int
}

// New creates a Grid over tiles accepting at most capacity letters.
func New(tiles []rune, capacity int) *Grid {
	t := make([]rune, len(tiles))
	for i, r := range tiles {
		t[i] = unicode.ToUpper(r)
	}
	return &Grid{
		tiles:    t,
		consumed: make([]bool, len(t)),
		capacity: capacity,
	}
}

// Press appends letter using tile. It is a no-op (false) when the tile is out of
// range, already consumed, does not bear letter, or the buffer is full.
func (g *Grid) Press(letter rune, tile int) bool {
	letter = unicode.ToUpper(letter)
	if tile < 0 || tile >= len(g.tiles) || g.consumed[tile] || g.tiles[tile] != letter || g.Full() {
		return false
	}
	g.consumed[tile] = true
	g.buffer = append(g.buffer, letter)
	g.source = append(g.source, tile)
	return true
}

// PressLetter presses the first free tile bearing letter (keyboard entry).
func (g *Grid) PressLetter(letter rune) bool {
	if i := g.freeTile(unicode.ToUpper(letter)); i >= 0 {
		return g.Press(letter, i)
	}
	return false
}

// Backspace removes the last buffered letter and frees the tile it consumed.
// Hint-sourced positions free nothing.
func (g *Grid) Backspace() bool {
	n := len(g.buffer)
	if n == 0 {
		return false
	}
	if src := g.source[n-1]; src != hintSource {
		g.consumed[src] = false
	}
	g.buffer = g.buffer[:n-1]
	g.source = g.source[:n-1]
	return true
}

// Reveal fills buffer position pos with letter without a key press. pos must be
// the next free position. One free tile bearing letter is consumed if any is
// left; the position is tagged hint-sourced either way.
func (g *Grid) Reveal(pos int, letter rune) bool {
	letter = unicode.ToUpper(letter)
	if pos != len(g.buffer) || g.Full() {
		return false
	}
	if i := g.freeTile(letter); i >= 0 {
		g.consumed[i] = true
		g.revealed = append(g.revealed, i)
	}
	g.buffer = append(g.buffer, letter)
	g.source = append(g.source, hintSource)
	return true
}

// Truncate backspaces until the buffer holds n letters.
func (g *Grid) Truncate(n int) {
	for len(g.buffer) > n && g.Backspace() {
	}
}

// Reset clears the buffer, every consumption and every hint marker.
func (g *Grid) Reset() {
	g.buffer = g.buffer[:0]
	g.source = g.source[:0]
	g.revealed = g.revealed[:0]
	for i := range g.consumed {
		g.consumed[i] = false
	}
}

func (g *Grid) freeTile(letter rune) int {
	for i, r := range g.tiles {
		if r == letter && !g.consumed[i] {
			return i
		}
	}
	return -1
}

// Input returns the buffered letters.
func (g *Grid) Input() string { return string(g.buffer) }

// Len is the number of buffered letters.
func (g *Grid) Len() int { return len(g.buffer) }

// Full reports whether the buffer reached capacity.
func (g *Grid) Full() bool { return len(g.buffer) >= g.capacity }

// Consumed reports whether tile i is consumed.
func (g *Grid) Consumed(i int) bool { return i >= 0 && i < len(g.consumed) && g.consumed[i] }

// HintSourced reports whether buffer position pos was filled by a reveal.
func (g *Grid) HintSourced(pos int) bool {
	return pos >= 0 && pos < len(g.source) && g.source[pos] == hintSource
}

// Tiles returns a copy of the tile pool.
func (g *Grid) Tiles() []rune { return append([]rune(nil), g.tiles...) }

// Snapshot is the serializable view of a Grid.
type Snapshot struct {
	Tiles    []string `json:"tiles"`
	Consumed []bool   `json:"consumed"`
	Input    string   `json:"input"`
	Hinted   []int    `json:"hinted,omitempty"`
}

// Snapshot returns a copy of the grid state.
func (g *Grid) Snapshot() Snapshot {
	s := Snapshot{
		Tiles:    make([]string, len(g.tiles)),
		Consumed: append([]bool(nil), g.consumed...),
		Input:    g.Input(),
	}
	for i, r := range g.tiles {
		s.Tiles[i] = string(r)
	}
	for pos := range g.source {
		if g.HintSourced(pos) {
			s.Hinted = append(s.Hinted, pos)
		}
	}
	return s
}
