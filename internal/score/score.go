// Package score holds the point arithmetic shared by every game mode.
package score

const (
	// Base is awarded for a correct answer.
	Base = 10
	// OriginalityBonus is awarded when the originality check passes.
	OriginalityBonus = 5
	// TimeBonusStep is the number of remaining seconds worth one bonus point.
	TimeBonusStep = 10
)

// Apply adds delta to total and clamps the result at 0.
func Apply(total, delta int) int {
	if total+delta < 0 {
		return 0
	}
	return total + delta
}

// TimeBonus converts remaining seconds into bonus points.
func TimeBonus(remainingSeconds int) int {
	if remainingSeconds <= 0 {
		return 0
	}
	return remainingSeconds / TimeBonusStep
}

// Completion is the breakdown of a successful round.
type Completion struct {
	Base      int `json:"base"`
	Bonus     int `json:"bonus"`
	TimeBonus int `json:"timeBonus"`
	Total     int `json:"total"`
}

// Complete computes base + originality bonus + time bonus.
func Complete(base, bonus, remainingSeconds int) Completion {
	tb := TimeBonus(remainingSeconds)
	return Completion{Base: base, Bonus: bonus, TimeBonus: tb, Total: base + bonus + tb}
}
