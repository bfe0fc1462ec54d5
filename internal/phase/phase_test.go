package phase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/phase"
)

func TestAfter(t *testing.T) {
	tests := map[string]struct {
		a, b domain.GameState
		want bool
	}{
		"later phase of the same question":   {a: gs(domain.PhaseResults, 0), b: gs(domain.PhaseQuestion, 0), want: true},
		"earlier phase of the same question": {a: gs(domain.PhaseCountdown, 0), b: gs(domain.PhaseQuestion, 0)},
		"equal state":                        {a: gs(domain.PhaseQuestion, 1), b: gs(domain.PhaseQuestion, 1)},
		"next question countdown":            {a: gs(domain.PhaseCountdown, 1), b: gs(domain.PhaseLeaderboard, 0), want: true},
		"previous question leaderboard":      {a: gs(domain.PhaseLeaderboard, 0), b: gs(domain.PhaseCountdown, 1)},
		"finished beats everything":          {a: gs(domain.PhaseFinished, 0), b: gs(domain.PhaseLeaderboard, 9), want: true},
		"nothing beats finished":             {a: gs(domain.PhaseCountdown, 9), b: gs(domain.PhaseFinished, 0)},
		"unknown phase never wins":           {a: gs("intermission", 5), b: gs(domain.PhaseWaiting, 0)},
		"countdown follows waiting":          {a: gs(domain.PhaseCountdown, 0), b: gs(domain.PhaseWaiting, 0), want: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, phase.After(tt.a, tt.b))
		})
	}
}

func TestTally(t *testing.T) {
	tl := phase.NewTally("q1", []string{"p1", "p2"})

	assert.True(t, tl.Record(answer("p1", "q1", "a1")))
	assert.False(t, tl.Record(answer("p1", "q1", "a2")), "second answer from the same player")
	assert.False(t, tl.Record(answer("p2", "q0", "a1")), "answer to another question")
	assert.False(t, tl.Complete([]string{"p1", "p2"}))

	assert.True(t, tl.Record(answer("p3", "q1", "a2")), "late joiners may answer")
	assert.False(t, tl.Complete([]string{"p1", "p2", "p3"}), "late joiners are not waited for")

	assert.True(t, tl.Complete([]string{"p1", "p3"}), "removed players are not waited for")
	assert.Equal(t, 1, tl.Expected([]string{"p1", "p3"}))

	assert.Equal(t, 2, tl.Count())
	assert.Equal(t, map[string]int{"a1": 1, "a2": 1}, tl.Distribution())
}

func TestTally_NobodyExpected(t *testing.T) {
	tl := phase.NewTally("q1", nil)
	tl.Record(answer("p9", "q1", "a1"))

	assert.False(t, tl.Complete([]string{"p9"}), "an empty expected set never completes early")
}

func gs(p domain.Phase, i int) domain.GameState {
	return domain.GameState{Phase: p, QuestionIndex: i}
}

func answer(player, question, ans string) domain.PlayerAnswer {
	return domain.PlayerAnswer{PlayerID: player, QuestionID: question, AnswerID: ans}
}

func quiz(limits ...int) domain.Quiz {
	q := domain.Quiz{ID: "quiz"}
	for i, l := range limits {
		q.Questions = append(q.Questions, domain.Question{
			ID:        string(rune('a'+i)) + "q",
			TimeLimit: l,
			Points:    1000,
			Answers: []domain.Answer{
				{ID: "a1", IsCorrect: true, Color: domain.ColorRed},
				{ID: "a2", Color: domain.ColorBlue},
			},
		})
	}
	return q
}
