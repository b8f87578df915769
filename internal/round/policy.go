package round

import (
	"time"

	"github.com/grasdvirus/double-words-sub000/internal/puzzle"
	"github.com/grasdvirus/double-words-sub000/internal/score"
)

// Mode names a game variant.
type Mode string

const (
	ModeSolo       Mode = "solo"
	ModeTraining   Mode = "training"
	ModeTournament Mode = "tournament"
	ModeDuel       Mode = "duel"
)

// LevelTime is the countdown of a timed round.
const LevelTime = 60 * time.Second

// RetryDelay is how long a wrong answer stays on screen before the grid clears.
const RetryDelay = 600 * time.Millisecond

// Penalties are positive magnitudes; they are subtracted from the score.
const (
	soloWrongPenalty   = 5
	soloTimeoutPenalty = 10
	soloRevealPenalty  = 2
	duelHintPenalty    = 2
	duelRevealPenalty  = 3
)

// Policy parameterizes one machine for every mode.
type Policy struct {
	Mode               Mode
	ScoringEnabled     bool
	Progress           bool // completion is recorded in the session
	CorrectPoints      int
	WrongPenalty       int
	TimeoutPenalty     int
	HintPenalty        int
	RevealPenalty      int
	OriginalityEnabled bool
	TimeBonusEnabled   bool
	LevelTime          time.Duration // 0 means the round itself is untimed
	RetryDelay         time.Duration
	MinExtraTiles      int
	MinWordLength      int
}

var (
	SoloPolicy = Policy{
		Mode:               ModeSolo,
		ScoringEnabled:     true,
		Progress:           true,
		CorrectPoints:      score.Base,
		WrongPenalty:       soloWrongPenalty,
		TimeoutPenalty:     soloTimeoutPenalty,
		RevealPenalty:      soloRevealPenalty,
		OriginalityEnabled: true,
		TimeBonusEnabled:   true,
		LevelTime:          LevelTime,
		RetryDelay:         RetryDelay,
		MinExtraTiles:      puzzle.MinExtraSolo,
		MinWordLength:      1,
	}

	TrainingPolicy = Policy{
		Mode:          ModeTraining,
		LevelTime:     LevelTime,
		RetryDelay:    RetryDelay,
		MinExtraTiles: puzzle.MinExtraSolo,
		MinWordLength: 1,
	}

	TournamentPolicy = Policy{
		Mode:             ModeTournament,
		ScoringEnabled:   true,
		Progress:         true,
		CorrectPoints:    score.Base,
		WrongPenalty:     soloWrongPenalty,
		TimeoutPenalty:   soloTimeoutPenalty,
		RevealPenalty:    soloRevealPenalty,
		TimeBonusEnabled: true,
		LevelTime:        LevelTime,
		RetryDelay:       RetryDelay,
		MinExtraTiles:    puzzle.MinExtraSolo,
		MinWordLength:    1,
	}

	DuelPolicy = Policy{
		Mode:           ModeDuel,
		ScoringEnabled: true,
		Progress:       true,
		CorrectPoints:  score.Base,
		HintPenalty:    duelHintPenalty,
		RevealPenalty:  duelRevealPenalty,
		RetryDelay:     RetryDelay,
		MinExtraTiles:  puzzle.MinExtraDuel,
		MinWordLength:  puzzle.DuelMinLength,
	}
)

// PolicyFor returns the preset for mode.
func PolicyFor(mode Mode) (Policy, bool) {
	switch mode {
	case ModeSolo:
		return SoloPolicy, true
	case ModeTraining:
		return TrainingPolicy, true
	case ModeTournament:
		return TournamentPolicy, true
	case ModeDuel:
		return DuelPolicy, true
	}
	return Policy{}, false
}
