package phase

import (
	"github.com/victornm/quizsync/internal/domain"
)

// Player follows the host. Its phase only changes on inbound wire states;
// its own timers are cosmetic and never move it to another phase.
type Player struct {
	state     domain.GameState
	remaining *int
	timeLimit func(questionIndex int) int
}

// NewPlayer starts in the lobby. timeLimit returns the time limit in seconds
// of a question, or zero when unknown.
func NewPlayer(timeLimit func(questionIndex int) int) *Player {
	return &Player{
		state:     domain.GameState{Phase: domain.PhaseWaiting},
		timeLimit: timeLimit,
	}
}

func (p *Player) State() domain.GameState {
	return snapshot(p.state)
}

// TimeRemaining is the player's local question timer, or nil when it has not
// been started for the current question.
func (p *Player) TimeRemaining() *int {
	if p.remaining == nil {
		return nil
	}
	return domain.Countdown(*p.remaining)
}

// Apply moves to gs when it is later than the current state and reports
// whether it did. Earlier and equal states are ignored, which makes duplicate
// and reordered deliveries harmless. live is false for states recovered
// through sync, whose question timer cannot be known.
func (p *Player) Apply(gs domain.GameState, live bool) bool {
	if !After(gs, p.state) {
		return false
	}

	prev := p.state
	p.state = snapshot(gs)

	if gs.QuestionIndex != prev.QuestionIndex || gs.Phase == domain.PhaseCountdown {
		p.remaining = nil
	}

	switch gs.Phase {
	case domain.PhaseCountdown:
		if p.state.Countdown == nil {
			p.state.Countdown = domain.Countdown(domain.CountdownTicks)
		}
	case domain.PhaseQuestion:
		p.state.Countdown = nil
		if live && p.remaining == nil {
			p.startTimer()
		}
	default:
		p.state.Countdown = nil
	}

	return true
}

// Finish ends the game for this player.
func (p *Player) Finish() bool {
	return p.Apply(domain.GameState{Phase: domain.PhaseFinished, QuestionIndex: p.state.QuestionIndex}, true)
}

// Tick advances the local timer of the current phase by one second and
// reports whether a displayed value changed. It never changes the phase.
func (p *Player) Tick(tag Tag) bool {
	if !tag.matches(p.state) {
		return false
	}

	switch p.state.Phase {
	case domain.PhaseCountdown:
		n := p.state.CountdownValue()
		if n <= 0 {
			return false
		}

		p.state.Countdown = domain.Countdown(n - 1)
		if n-1 == 0 {
			p.startTimer()
		}
		return true

	case domain.PhaseQuestion:
		if p.remaining == nil || *p.remaining <= 0 {
			return false
		}

		*p.remaining--
		return true
	}

	return false
}

func (p *Player) startTimer() {
	if p.timeLimit == nil {
		return
	}

	if limit := p.timeLimit(p.state.QuestionIndex); limit > 0 {
		p.remaining = domain.Countdown(limit)
	}
}
