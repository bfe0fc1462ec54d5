package game

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/victornm/quizsync/internal/cache"
	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/errors"
	"github.com/victornm/quizsync/internal/leaderboard"
	"github.com/victornm/quizsync/internal/phase"
	"github.com/victornm/quizsync/internal/scoring"
)

type HostConfig struct {
	Config

	Quiz domain.Quiz
	// TopN is the length of the leaderboard shown between questions.
	TopN int
}

// Host is the authoritative process of one game. Only the host moves the
// phase; it broadcasts every change and answers sync requests.
type Host struct {
	*process

	topN    int
	machine *phase.Host
	removed map[string]struct{}
}

// Results is what the host shows after a question closes.
type Results struct {
	Question     domain.Question
	Answers      []domain.PlayerAnswer
	Distribution map[string]int
}

// NewHost creates a game in the waiting phase and opens its room.
func NewHost(ctx context.Context, c HostConfig) (*Host, error) {
	if err := c.Quiz.Validate(); err != nil {
		return nil, err
	}

	code, err := domain.NewCode()
	if err != nil {
		return nil, errors.Internal(err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(err)
	}

	hostID, err := uuid.NewV7()
	if err != nil {
		return nil, errors.Internal(err)
	}

	h := newHost(c)
	h.store.Replace(&domain.Session{
		ID:     id.String(),
		Code:   code,
		Quiz:   c.Quiz,
		Status: domain.StatusWaiting,
		HostID: hostID.String(),
	})

	sess := h.store.Session()
	if h.cfg.Cache != nil {
		if err := h.cfg.Cache.Put(ctx, sess); err != nil {
			_ = h.close()
			return nil, err
		}
	}
	if h.cfg.Backend != nil {
		h.warn(h.cfg.Backend.CreateSession(ctx, sess), "backend create session failed")
	}

	h.open(code, sess.ID, h.handle)
	h.log.Info().Str("session", sess.ID).Int("questions", len(c.Quiz.Questions)).Msg("game created")

	return h, nil
}

// RecoverHost reattaches a host to a game found in the cache. A game caught
// mid-question resumes at that question's results so that no phase is
// replayed; answers collected before the restart are lost.
func RecoverHost(ctx context.Context, c HostConfig, code string) (*Host, error) {
	code, err := domain.ValidateCode(code)
	if err != nil {
		return nil, err
	}

	if c.Cache == nil {
		return nil, errors.FailedPrecondition("recovery needs a cache")
	}

	sess, err := c.Cache.Get(ctx, code)
	if err != nil {
		return nil, err
	}

	c.Quiz = sess.Quiz
	h := newHost(c)
	h.store.Replace(sess)

	switch sess.Status {
	case domain.StatusPlaying:
		h.machine.Resume(domain.GameState{Phase: domain.PhaseResults, QuestionIndex: sess.CurrentQuestionIndex}, nil)
	case domain.StatusFinished:
		h.machine.Resume(domain.GameState{Phase: domain.PhaseFinished, QuestionIndex: sess.CurrentQuestionIndex}, nil)
	}

	h.open(code, sess.ID, h.handle)
	h.log.Info().Str("phase", string(h.machine.State().Phase)).Msg("game recovered")

	if sess.Status == domain.StatusPlaying {
		h.loop.post(func() { h.transition(domain.MessagePhaseChange) })
	}

	return h, nil
}

func newHost(c HostConfig) *Host {
	if c.TopN <= 0 {
		c.TopN = DefaultTopN
	}

	return &Host{
		process: newProcess(c.Config, "game.host"),
		topN:    c.TopN,
		machine: phase.NewHost(c.Quiz),
		removed: make(map[string]struct{}),
	}
}

func (h *Host) Code() string {
	return h.store.Session().Code
}

// Session returns the host's current session. It is safe to call from any
// goroutine and must not be modified.
func (h *Host) Session() *domain.Session {
	return h.store.Session()
}

func (h *Host) State(ctx context.Context) (domain.GameState, error) {
	var gs domain.GameState
	err := h.loop.do(ctx, func() error {
		gs = h.machine.State()
		return nil
	})
	return gs, err
}

// TimeRemaining is the number of seconds left on the open question.
func (h *Host) TimeRemaining(ctx context.Context) (int, error) {
	var n int
	err := h.loop.do(ctx, func() error {
		n = h.machine.TimeRemaining()
		return nil
	})
	return n, err
}

// Start leaves the lobby. At least one player must have joined.
func (h *Host) Start(ctx context.Context) error {
	return h.loop.do(ctx, func() error {
		if len(h.store.Session().Players) == 0 {
			return errors.FailedPrecondition("at least one player must join before the game starts")
		}

		if _, err := h.machine.Start(); err != nil {
			return err
		}

		h.store.Start(h.clock.Now())

		h.transition(domain.MessageGameStarted)
		return nil
	})
}

// CloseQuestion ends the open question without waiting for its timer.
func (h *Host) CloseQuestion(ctx context.Context) error {
	return h.act(ctx, h.machine.CloseQuestion)
}

func (h *Host) ShowLeaderboard(ctx context.Context) error {
	return h.act(ctx, h.machine.ShowLeaderboard)
}

// Next moves on to the next question, or finishes the game after the last.
func (h *Host) Next(ctx context.Context) error {
	return h.act(ctx, h.machine.Next)
}

func (h *Host) act(ctx context.Context, f func() (domain.GameState, error)) error {
	return h.loop.do(ctx, func() error {
		if _, err := f(); err != nil {
			return err
		}

		h.transition(domain.MessagePhaseChange)
		return nil
	})
}

// Kick removes a player from the game. A removed player is not readmitted
// by later join announcements.
func (h *Host) Kick(ctx context.Context, playerID string) error {
	return h.loop.do(ctx, func() error {
		if !h.store.Session().HasPlayer(playerID) {
			return errors.NotFound("player not found: id=%s", playerID)
		}

		h.removed[playerID] = struct{}{}
		h.store.RemovePlayer(playerID)

		if h.cfg.Cache != nil {
			_, err := cache.RemovePlayer(h.ctx, h.cfg.Cache, h.Code(), playerID)
			h.warn(err, "cache remove player failed")
		}
		if h.cfg.Backend != nil {
			h.warn(h.cfg.Backend.RemovePlayer(h.ctx, playerID), "backend remove player failed")
		}

		m, err := domain.NewRemovalMessage(h.store.Session(), playerID, h.clock.Now())
		if err != nil {
			return errors.Internal(err)
		}
		h.room.Publish(h.ctx, m)
		h.log.Info().Str("player", playerID).Msg("player removed")

		h.closeIfComplete()
		return nil
	})
}

// Results returns the answers to the open or last closed question.
func (h *Host) Results(ctx context.Context) (Results, error) {
	var r Results
	err := h.loop.do(ctx, func() error {
		t := h.machine.Tally()
		if t == nil {
			return errors.FailedPrecondition("no question has been asked yet")
		}

		q, _ := h.store.Session().Question(h.machine.State().QuestionIndex)
		r = Results{
			Question:     q,
			Answers:      t.Answers(),
			Distribution: t.Distribution(),
		}
		return nil
	})
	return r, err
}

// Leaderboard returns the top players.
func (h *Host) Leaderboard() []leaderboard.Entry {
	return leaderboard.Top(h.store.Session().Players, h.topN)
}

// Export writes the final standings as CSV.
func (h *Host) Export(w io.Writer) error {
	return leaderboard.Export(w, h.store.Session().Players)
}

func (h *Host) Close() error {
	return h.close()
}

// transition records the machine's state in the session, persists the host
// owned fields, rearms the timer and broadcasts.
func (h *Host) transition(t domain.MessageType) {
	gs := h.machine.State()

	status := domain.StatusPlaying
	if gs.Phase == domain.PhaseFinished {
		status = domain.StatusFinished
	}

	h.store.SetStatus(status)
	if h.store.Session().CurrentQuestionIndex < gs.QuestionIndex {
		h.store.NextQuestion()
	}

	h.persist()

	switch gs.Phase {
	case domain.PhaseCountdown, domain.PhaseQuestion:
		h.arm(phase.TagOf(gs), h.onTick)
	default:
		h.disarm()
	}

	h.publish(t, &gs)
	h.log.Info().
		Str("phase", string(gs.Phase)).
		Int("question", gs.QuestionIndex).
		Msg("phase changed")

	h.changed(gs)
}

func (h *Host) persist() {
	sess := h.store.Session()

	if h.cfg.Cache != nil {
		_, err := cache.SetProgress(h.ctx, h.cfg.Cache, sess.Code, sess.Status, sess.CurrentQuestionIndex, sess.StartedAt)
		h.warn(err, "cache update progress failed")
	}

	if h.cfg.Backend != nil {
		h.warn(h.cfg.Backend.UpdateSession(h.ctx, sess), "backend update session failed")
	}
}

func (h *Host) onTick(tag phase.Tag) {
	if h.machine.Tick(tag, h.store.Session().PlayerIDs()) {
		h.transition(domain.MessagePhaseChange)
		return
	}

	if phase.TagOf(h.machine.State()) == tag {
		h.arm(tag, h.onTick)
	}
}

func (h *Host) handle(m domain.Message) {
	switch m.Type {
	case domain.MessagePlayerJoined:
		h.onPlayerJoined(m)
	case domain.MessagePlayerAnswered:
		h.onPlayerAnswered(m)
	case domain.MessageSyncRequest:
		h.onSyncRequest()
	default:
		// phase and roster changes only flow from the host
		h.log.Debug().Str("type", string(m.Type)).Msg("message ignored")
	}
}

func (h *Host) onPlayerJoined(m domain.Message) {
	sess, err := m.Session()
	if err != nil || sess == nil {
		h.log.Debug().Err(err).Msg("player_joined without session")
		return
	}

	for _, p := range sess.Players {
		if _, ok := h.removed[p.ID]; ok {
			continue
		}

		if h.store.Session().HasPlayer(p.ID) {
			continue
		}

		h.store.AddPlayer(p)
		h.log.Info().Str("player", p.ID).Str("nickname", p.Nickname).Msg("player joined")
	}
}

// onPlayerAnswered folds one answer into the tally. Correctness is decided
// from the quiz; the points a player reports are trusted up to the maximum
// the question can award.
func (h *Host) onPlayerAnswered(m domain.Message) {
	pa, err := m.Answer()
	if err != nil || pa == nil {
		h.log.Debug().Err(err).Msg("player_answered without answer")
		return
	}

	gs := h.machine.State()
	if gs.Phase != domain.PhaseQuestion {
		h.log.Debug().Str("player", pa.PlayerID).Msg("answer outside question dropped")
		return
	}

	sess := h.store.Session()
	player, ok := sess.Player(pa.PlayerID)
	if !ok {
		h.log.Debug().Str("player", pa.PlayerID).Msg("answer from unknown player dropped")
		return
	}

	q, _ := sess.Question(gs.QuestionIndex)
	ans, ok := q.Answer(pa.AnswerID)
	if !ok || pa.QuestionID != q.ID {
		h.log.Warn().Str("player", pa.PlayerID).Str("answer", pa.AnswerID).Msg("answer does not belong to the open question")
		return
	}

	pa.IsCorrect = ans.IsCorrect
	if !pa.IsCorrect {
		pa.PointsEarned = 0
	}
	if pa.PointsEarned < 0 || pa.PointsEarned > scoring.MaxPoints(q.Points) {
		h.log.Warn().Str("player", pa.PlayerID).Int("points", pa.PointsEarned).Msg("answer points out of range dropped")
		return
	}

	recorded, advance := h.machine.Answer(*pa, sess.PlayerIDs())
	if !recorded {
		return
	}

	h.store.UpdatePlayerScore(player.ID, player.Score+pa.PointsEarned)

	if advance {
		h.closeQuestion()
	}
}

func (h *Host) onSyncRequest() {
	gs := h.machine.State()
	h.publish(domain.MessageSyncResponse, &gs)
}

// closeIfComplete closes the open question once nobody is left to wait for.
func (h *Host) closeIfComplete() {
	t := h.machine.Tally()
	if h.machine.State().Phase != domain.PhaseQuestion || t == nil {
		return
	}

	if t.Complete(h.store.Session().PlayerIDs()) {
		h.closeQuestion()
	}
}

func (h *Host) closeQuestion() {
	if _, err := h.machine.CloseQuestion(); err != nil {
		return
	}

	h.log.Debug().Msg("every player answered")
	h.transition(domain.MessagePhaseChange)
}
