// Package phase holds the game phase machines. They are pure: no I/O, no
// clocks. Callers feed them host actions, inbound wire states and timer
// ticks, and broadcast whatever the machines report as a phase change.
package phase

import (
	"github.com/victornm/quizsync/internal/domain"
)

var rank = map[domain.Phase]int{
	domain.PhaseWaiting:     0,
	domain.PhaseCountdown:   1,
	domain.PhaseQuestion:    2,
	domain.PhaseResults:     3,
	domain.PhaseLeaderboard: 4,
}

// After reports whether a is strictly later than b. States are ordered by
// question index, then by position in the question cycle; finished is later
// than everything. Unknown phases are never later.
func After(a, b domain.GameState) bool {
	if b.Phase == domain.PhaseFinished {
		return false
	}
	if a.Phase == domain.PhaseFinished {
		return true
	}

	ra, ok := rank[a.Phase]
	if !ok {
		return false
	}

	if a.QuestionIndex != b.QuestionIndex {
		return a.QuestionIndex > b.QuestionIndex
	}

	return ra > rank[b.Phase]
}

// Tag identifies the phase a timer was scheduled for. A timer whose tag no
// longer matches the current state fires into a stale phase and is ignored.
type Tag struct {
	Phase         domain.Phase
	QuestionIndex int
}

func TagOf(gs domain.GameState) Tag {
	return Tag{Phase: gs.Phase, QuestionIndex: gs.QuestionIndex}
}

func (t Tag) matches(gs domain.GameState) bool {
	return t == TagOf(gs)
}

func snapshot(gs domain.GameState) domain.GameState {
	if gs.Countdown != nil {
		gs.Countdown = domain.Countdown(*gs.Countdown)
	}
	return gs
}
