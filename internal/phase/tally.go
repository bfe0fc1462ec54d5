package phase

import (
	"slices"

	"github.com/victornm/quizsync/internal/domain"
)

// Tally collects the answers to one question. Players on the roster when the
// question opened are expected to answer; players who join later may answer
// but are never waited for, and removed players stop being waited for.
type Tally struct {
	questionID string
	expected   []string
	answers    []domain.PlayerAnswer
}

func NewTally(questionID string, expected []string) *Tally {
	return &Tally{
		questionID: questionID,
		expected:   slices.Clone(expected),
	}
}

func (t *Tally) QuestionID() string { return t.questionID }

// Record adds a. It returns false for answers to another question and for a
// player who already answered.
func (t *Tally) Record(a domain.PlayerAnswer) bool {
	if a.QuestionID != t.questionID || a.PlayerID == "" || t.Answered(a.PlayerID) {
		return false
	}

	t.answers = append(t.answers, a)
	return true
}

func (t *Tally) Answered(playerID string) bool {
	return slices.ContainsFunc(t.answers, func(a domain.PlayerAnswer) bool { return a.PlayerID == playerID })
}

// Complete reports whether every expected player still on roster has
// answered. It is false when nobody is expected.
func (t *Tally) Complete(roster []string) bool {
	waiting := 0
	for _, id := range t.expected {
		if !slices.Contains(roster, id) {
			continue
		}
		if !t.Answered(id) {
			return false
		}
		waiting++
	}

	return waiting > 0
}

// Expected returns how many players still on roster are waited for.
func (t *Tally) Expected(roster []string) int {
	n := 0
	for _, id := range t.expected {
		if slices.Contains(roster, id) {
			n++
		}
	}
	return n
}

func (t *Tally) Count() int { return len(t.answers) }

// Answers returns the recorded answers in arrival order.
func (t *Tally) Answers() []domain.PlayerAnswer {
	return slices.Clone(t.answers)
}

// Distribution counts answers per answer id.
func (t *Tally) Distribution() map[string]int {
	d := make(map[string]int)
	for _, a := range t.answers {
		d[a.AnswerID]++
	}
	return d
}
