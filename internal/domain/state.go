package domain

type Phase string

const (
	PhaseWaiting     Phase = "waiting"
	PhaseCountdown   Phase = "countdown"
	PhaseQuestion    Phase = "question"
	PhaseResults     Phase = "results"
	PhaseLeaderboard Phase = "leaderboard"
	PhaseFinished    Phase = "finished"
)

// CountdownTicks is the value every countdown starts from.
const CountdownTicks = 3

// GameState is the wire state every process must agree on.
type GameState struct {
	Phase         Phase `json:"phase"`
	QuestionIndex int   `json:"questionIndex"`
	Countdown     *int  `json:"countdown,omitempty"`
}

func (g GameState) CountdownValue() int {
	if g.Countdown == nil {
		return 0
	}

	return *g.Countdown
}

func Countdown(n int) *int {
	return &n
}
