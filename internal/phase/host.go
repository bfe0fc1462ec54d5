package phase

import (
	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/errors"
)

// Host drives the authoritative phase of one game.
type Host struct {
	quiz      domain.Quiz
	state     domain.GameState
	remaining int
	tally     *Tally
}

func NewHost(quiz domain.Quiz) *Host {
	return &Host{
		quiz:  quiz,
		state: domain.GameState{Phase: domain.PhaseWaiting},
	}
}

// State returns the wire state. The countdown is set only while counting down.
func (h *Host) State() domain.GameState {
	return snapshot(h.state)
}

// TimeRemaining is the number of seconds left on the open question.
func (h *Host) TimeRemaining() int {
	return h.remaining
}

// Tally returns the answers to the open or last closed question, or nil
// before the first question opens.
func (h *Host) Tally() *Tally {
	return h.tally
}

// Resume restores a state recovered after a restart. Timers restart from
// the beginning of the recovered phase.
func (h *Host) Resume(gs domain.GameState, roster []string) {
	h.state = snapshot(gs)

	switch gs.Phase {
	case domain.PhaseCountdown:
		if h.state.Countdown == nil {
			h.state.Countdown = domain.Countdown(domain.CountdownTicks)
		}
	case domain.PhaseQuestion:
		h.openQuestion(roster)
	}
}

// Start moves from the lobby to the first countdown.
func (h *Host) Start() (domain.GameState, error) {
	if h.state.Phase != domain.PhaseWaiting {
		return h.State(), errors.FailedPrecondition("game already started")
	}

	if len(h.quiz.Questions) == 0 {
		return h.State(), errors.FailedPrecondition("quiz has no questions")
	}

	h.state = countdown(0)
	return h.State(), nil
}

// Tick advances the timer of the current phase by one second. It returns
// true when the phase changed as a result. A tick for another phase is
// ignored.
func (h *Host) Tick(tag Tag, roster []string) bool {
	if !tag.matches(h.state) {
		return false
	}

	switch h.state.Phase {
	case domain.PhaseCountdown:
		if n := h.state.CountdownValue(); n > 1 {
			h.state.Countdown = domain.Countdown(n - 1)
			return false
		}

		h.state = domain.GameState{Phase: domain.PhaseQuestion, QuestionIndex: h.state.QuestionIndex}
		h.openQuestion(roster)
		return true

	case domain.PhaseQuestion:
		if h.remaining > 1 {
			h.remaining--
			return false
		}

		h.remaining = 0
		h.state.Phase = domain.PhaseResults
		return true
	}

	return false
}

// Answer records a player's answer to the open question. advance is true
// when every expected player has now answered and the question should close.
func (h *Host) Answer(a domain.PlayerAnswer, roster []string) (recorded, advance bool) {
	if h.state.Phase != domain.PhaseQuestion || h.tally == nil {
		return false, false
	}

	if !h.tally.Record(a) {
		return false, false
	}

	return true, h.tally.Complete(roster)
}

// CloseQuestion ends the open question before its timer runs out.
func (h *Host) CloseQuestion() (domain.GameState, error) {
	if h.state.Phase != domain.PhaseQuestion {
		return h.State(), errors.FailedPrecondition("no open question")
	}

	h.remaining = 0
	h.state.Phase = domain.PhaseResults
	return h.State(), nil
}

func (h *Host) ShowLeaderboard() (domain.GameState, error) {
	if h.state.Phase != domain.PhaseResults {
		return h.State(), errors.FailedPrecondition("leaderboard follows results, current phase is %s", h.state.Phase)
	}

	h.state.Phase = domain.PhaseLeaderboard
	return h.State(), nil
}

// Next moves from the leaderboard to the next question's countdown, or to
// finished after the last question.
func (h *Host) Next() (domain.GameState, error) {
	if h.state.Phase != domain.PhaseLeaderboard {
		return h.State(), errors.FailedPrecondition("next question follows the leaderboard, current phase is %s", h.state.Phase)
	}

	h.tally = nil

	next := h.state.QuestionIndex + 1
	if next >= len(h.quiz.Questions) {
		h.state = domain.GameState{Phase: domain.PhaseFinished, QuestionIndex: h.state.QuestionIndex}
		return h.State(), nil
	}

	h.state = countdown(next)
	return h.State(), nil
}

func (h *Host) openQuestion(roster []string) {
	q, ok := h.question()
	if !ok {
		h.remaining, h.tally = 0, nil
		return
	}

	h.remaining = q.TimeLimit
	h.tally = NewTally(q.ID, roster)
}

func (h *Host) question() (domain.Question, bool) {
	i := h.state.QuestionIndex
	if i < 0 || i >= len(h.quiz.Questions) {
		return domain.Question{}, false
	}
	return h.quiz.Questions[i], true
}

func countdown(index int) domain.GameState {
	return domain.GameState{
		Phase:         domain.PhaseCountdown,
		QuestionIndex: index,
		Countdown:     domain.Countdown(domain.CountdownTicks),
	}
}
