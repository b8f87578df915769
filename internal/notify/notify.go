// internal/notify/notify.go
//
// Player-facing notifications built from errors.
// Responsibilities:
//   - Map every failure class to a transient toast (title, message, severity).
//   - Carry diagnostic detail for permission denials (path, operation, payload).
//
// Notes:
//   - Wrong answers are state transitions, not errors, and never reach here.
//   - Originality failures are swallowed upstream and never reach here either.

package notify

import (
	"errors"

	"github.com/grasdvirus/double-words-sub000/internal/database"
	"github.com/grasdvirus/double-words-sub000/internal/docstore"
	"github.com/grasdvirus/double-words-sub000/internal/duel"
	"github.com/grasdvirus/double-words-sub000/internal/generator"
	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/round"
	"github.com/grasdvirus/double-words-sub000/internal/store"
	"github.com/grasdvirus/double-words-sub000/internal/tournament"
)

// Severity drives the toast colour.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
)

// Default dismiss delays in milliseconds.
const (
	ShortDismiss = 3000
	LongDismiss  = 6000
)

// Notification is a transient message for the player.
type Notification struct {
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Severity     Severity       `json:"severity"`
	Detail       map[string]any `json:"detail,omitempty"`
	DismissAfter int            `json:"dismissAfterMs"` // 0 keeps it until dismissed
}

// Success is a positive confirmation.
func Success(title, message string) Notification {
	return Notification{Title: title, Message: message, Severity: SeveritySuccess, DismissAfter: ShortDismiss}
}

// Info is a neutral message.
func Info(title, message string) Notification {
	return Notification{Title: title, Message: message, Severity: SeverityInfo, DismissAfter: ShortDismiss}
}

// FromError maps err to the notification shown to the player.
func FromError(err error) Notification {
	var perr *docstore.PermissionError
	switch {
	case errors.As(err, &perr):
		return Notification{
			Title:    "Write refused",
			Message:  "The game could not save this action.",
			Severity: SeverityError,
			Detail: map[string]any{
				"operation": perr.Op,
				"path":      perr.Path,
				"auth":      perr.Auth,
				"payload":   perr.Payload,
				"reason":    perr.Reason,
			},
		}
	case errors.Is(err, generator.ErrGenerationFailed), errors.Is(err, puzzle.ErrInvalidChallenge):
		return Notification{
			Title:        "No challenge this time",
			Message:      "The word generator did not answer. Try again.",
			Severity:     SeverityError,
			DismissAfter: LongDismiss,
		}
	case errors.Is(err, round.ErrNoMoreLevels):
		return Success("Tournament complete", "You finished every level of this category.")
	case errors.Is(err, tournament.ErrNotFound):
		return Info("Unknown category", "This tournament does not exist.")
	case errors.Is(err, duel.ErrNotFound):
		return Info("Duel not found", "Check the room code and try again.")
	case errors.Is(err, duel.ErrDuelFull), errors.Is(err, duel.ErrNotJoinable):
		return Info("Duel unavailable", "This duel already has two players or is over.")
	case errors.Is(err, duel.ErrDuration):
		return Info("Invalid duel length", err.Error())
	case errors.Is(err, duel.ErrNotActive), errors.Is(err, duel.ErrNotPlayer):
		return Info("Duel closed", "This duel is not running.")
	case errors.Is(err, round.ErrWrongState):
		return Info("Not now", "This action is not available at the moment.")
	case errors.Is(err, docstore.ErrNotFound), errors.Is(err, store.ErrNotFound), errors.Is(err, database.ErrUserNotFound):
		return Info("Not found", "Nothing here.")
	case errors.Is(err, database.ErrUsernameTaken):
		return Notification{Title: "Username taken", Message: "Pick another name.", Severity: SeverityError, DismissAfter: LongDismiss}
	case errors.Is(err, database.ErrSeasonArchived):
		return Info("Season already archived", "The palmares already include this season.")
	}
	return Notification{
		Title:        "Something went wrong",
		Message:      "Please try again.",
		Severity:     SeverityError,
		DismissAfter: LongDismiss,
	}
}
