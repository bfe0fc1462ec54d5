package domain

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/victornm/quizsync/internal/errors"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPlaying  Status = "playing"
	StatusFinished Status = "finished"
)

// Color tags an answer both visually and on the wire.
type Color string

const (
	ColorRed    Color = "red"
	ColorBlue   Color = "blue"
	ColorYellow Color = "yellow"
	ColorGreen  Color = "green"
)

var Palette = []Color{ColorRed, ColorBlue, ColorYellow, ColorGreen}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

const (
	MinNickname = 2
	MaxNickname = 15

	MinAnswers = 2
	MaxAnswers = 4
)

// Session represents one quiz game. The quiz is embedded so that a process
// running without the backend never needs a second fetch.
type Session struct {
	ID                   string     `json:"id"`
	Code                 string     `json:"code"`
	Quiz                 Quiz       `json:"quiz"`
	Status               Status     `json:"status"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	Players              []Player   `json:"players"`
	HostID               string     `json:"hostId"`
	StartedAt            *time.Time `json:"startedAt,omitempty"`
}

type Quiz struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

type Question struct {
	ID          string       `json:"id"`
	Text        string       `json:"text"`
	Answers     []Answer     `json:"answers"`
	TimeLimit   int          `json:"timeLimit"`
	Points      int          `json:"points"`
	Explanation string       `json:"explanation,omitempty"`
	FunFact     string       `json:"funFact,omitempty"`
	Category    string       `json:"category,omitempty"`
	Difficulty  Difficulty   `json:"difficulty,omitempty"`
	ChartData   []ChartPoint `json:"chartData,omitempty"`
}

type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	Color string  `json:"color,omitempty"`
}

type Answer struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
	Color     Color  `json:"color"`
}

type Player struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
	Score    int    `json:"score"`
}

// PlayerAnswer lives for one question only and is never stored on the Session.
type PlayerAnswer struct {
	PlayerID       string `json:"playerId"`
	PlayerNickname string `json:"playerNickname,omitempty"`
	PlayerAvatar   string `json:"playerAvatar,omitempty"`
	QuestionID     string `json:"questionId"`
	AnswerID       string `json:"answerId"`
	TimeTaken      int    `json:"timeTaken"`
	PointsEarned   int    `json:"pointsEarned"`
	IsCorrect      bool   `json:"isCorrect"`
}

// Clone returns a copy whose roster can be modified without affecting s.
// The quiz is shared, it is immutable once loaded.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}

	c := *s
	c.Players = slices.Clone(s.Players)
	if s.StartedAt != nil {
		t := *s.StartedAt
		c.StartedAt = &t
	}

	return &c
}

func (s *Session) Question(i int) (Question, bool) {
	if i < 0 || i >= len(s.Quiz.Questions) {
		return Question{}, false
	}

	return s.Quiz.Questions[i], true
}

func (s *Session) Player(id string) (Player, bool) {
	i := slices.IndexFunc(s.Players, func(p Player) bool { return p.ID == id })
	if i < 0 {
		return Player{}, false
	}

	return s.Players[i], true
}

func (s *Session) HasPlayer(id string) bool {
	_, ok := s.Player(id)
	return ok
}

func (s *Session) PlayerIDs() []string {
	ids := make([]string, 0, len(s.Players))
	for _, p := range s.Players {
		ids = append(ids, p.ID)
	}

	return ids
}

func (q Question) Answer(id string) (Answer, bool) {
	i := slices.IndexFunc(q.Answers, func(a Answer) bool { return a.ID == id })
	if i < 0 {
		return Answer{}, false
	}

	return q.Answers[i], true
}

func (q Question) AnswerByColor(c Color) (Answer, bool) {
	i := slices.IndexFunc(q.Answers, func(a Answer) bool { return a.Color == c })
	if i < 0 {
		return Answer{}, false
	}

	return q.Answers[i], true
}

func (q Question) Validate() error {
	if q.ID == "" {
		return errors.InvalidField("id", "question id is required")
	}

	if n := len(q.Answers); n < MinAnswers || n > MaxAnswers {
		return errors.InvalidField("answers", "question %s: want %d..%d answers, got %d", q.ID, MinAnswers, MaxAnswers, n)
	}

	if q.TimeLimit <= 0 {
		return errors.InvalidField("timeLimit", "question %s: time limit must be positive", q.ID)
	}

	seen := make(map[string]struct{}, len(q.Answers))
	for _, a := range q.Answers {
		if _, ok := seen[a.ID]; ok || a.ID == "" {
			return errors.InvalidField("answers", "question %s: answer ids must be unique and non-empty", q.ID)
		}
		seen[a.ID] = struct{}{}

		if !slices.Contains(Palette, a.Color) {
			return errors.InvalidField("color", "question %s: unknown answer color %q", q.ID, a.Color)
		}
	}

	return nil
}

func (qz Quiz) Validate() error {
	if len(qz.Questions) == 0 {
		return errors.InvalidField("questions", "quiz %s has no questions", qz.ID)
	}

	for _, q := range qz.Questions {
		if err := q.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ValidateNickname trims the nickname and checks its length in characters.
func ValidateNickname(nickname string) (string, error) {
	n := strings.TrimSpace(nickname)
	if n == "" {
		return "", errors.InvalidField("nickname", "nickname is required")
	}

	if l := utf8.RuneCountInString(n); l < MinNickname || l > MaxNickname {
		return "", errors.InvalidField("nickname", "nickname must be %d to %d characters", MinNickname, MaxNickname)
	}

	return n, nil
}
