// internal/duel/session.go
//
// Shared duel document and the pure functions both players derive from it.

package duel

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
)

const (
	Collection      = "duels"
	CodesCollection = "duelCodes"

	MaxPlayers     = 2
	DefaultMinutes = 3
	MaxMinutes     = 30
	CodeLength     = 6
	CodeChars      = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no 0/O, 1/I
)

// Status is the lifecycle of a duel document.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// Terminal reports whether no further game writes are allowed.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusAbandoned }

// Player is one participant as shown to the other.
type Player struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
}

// Session is the shared duel document.
type Session struct {
	ID               string            `json:"-"`
	GameCode         string            `json:"gameCode"`
	HostID           string            `json:"hostId"`
	Status           Status            `json:"status"`
	Language         puzzle.Language   `json:"language"`
	Players          []Player          `json:"players"`
	PlayerScores     map[string]int    `json:"playerScores"`
	Duration         int               `json:"duration"` // minutes
	StartedAt        *time.Time        `json:"startedAt"`
	WordHistory      []string          `json:"wordHistory"`
	CurrentChallenge *puzzle.Challenge `json:"currentChallenge"`
	SolvedBy         string            `json:"solvedBy"` // set by the player who answered, cleared by the next challenge
	WinnerID         *string           `json:"winnerId"`
	EndedAt          *time.Time        `json:"endedAt"`
	CreatedAt        time.Time         `json:"createdAt"`
}

// Has reports whether uid is one of the players.
func (s Session) Has(uid string) bool {
	return lo.ContainsBy(s.Players, func(p Player) bool { return p.UID == uid })
}

// Opponent returns the other player, if present.
func (s Session) Opponent(uid string) (Player, bool) {
	return lo.Find(s.Players, func(p Player) bool { return p.UID != uid })
}

// Remaining is max(0, startedAt + duration - now); the full duration before start.
func (s Session) Remaining(now time.Time) time.Duration {
	total := time.Duration(s.Duration) * time.Minute
	if s.StartedAt == nil {
		return total
	}
	return min(max(s.StartedAt.Add(total).Sub(now), 0), total)
}

// Winner returns the uid with the strictly higher score, nil on a tie, or
// the only player when one is left.
func Winner(s Session) *string {
	switch len(s.Players) {
	case 0:
		return nil
	case 1:
		return lo.ToPtr(s.Players[0].UID)
	}
	a, b := s.Players[0].UID, s.Players[1].UID
	switch sa, sb := s.PlayerScores[a], s.PlayerScores[b]; {
	case sa > sb:
		return &a
	case sb > sa:
		return &b
	}
	return nil
}

func challengeKey(c *puzzle.Challenge) string {
	if c == nil {
		return ""
	}
	return c.Challenge + "|" + c.SolutionWord + "|" + strings.Join(c.JumbledLetters, "")
}
