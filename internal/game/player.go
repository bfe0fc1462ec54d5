package game

import (
	"context"

	"github.com/google/uuid"

	"github.com/victornm/quizsync/internal/cache"
	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/errors"
	"github.com/victornm/quizsync/internal/leaderboard"
	"github.com/victornm/quizsync/internal/phase"
	"github.com/victornm/quizsync/internal/scoring"
	"github.com/victornm/quizsync/internal/store"
)

type PlayerConfig struct {
	Config

	Code     string
	Nickname string
	// PlayerID rejoins a game as a player who joined before, for example
	// after a restart. Nickname is ignored then.
	PlayerID string
}

// Player follows the host. Its phase changes only on the host's broadcasts;
// its own timers drive what it displays and the speed bonus of its answer.
type Player struct {
	*process

	code    string
	machine *phase.Player
	// removed holds the players the host took out, with the time of the
	// removal as the host stamped it.
	removed map[string]int64
}

// Join enters the game with the given code. New players are only admitted
// while the game is waiting; rejoining players are admitted in any phase.
func Join(ctx context.Context, c PlayerConfig) (*Player, error) {
	code, err := domain.ValidateCode(c.Code)
	if err != nil {
		return nil, err
	}

	var nickname string
	if c.PlayerID == "" {
		if nickname, err = domain.ValidateNickname(c.Nickname); err != nil {
			return nil, err
		}
	}

	p := &Player{
		process: newProcess(c.Config, "game.player"),
		code:    code,
		removed: make(map[string]int64),
	}
	p.machine = phase.NewPlayer(p.timeLimit)

	if err := p.join(ctx, c.PlayerID, nickname); err != nil {
		_ = p.close()
		return nil, err
	}

	return p, nil
}

func (p *Player) join(ctx context.Context, playerID, nickname string) error {
	sess, err := p.lookup(ctx)
	if err != nil {
		return err
	}

	var me domain.Player
	if playerID != "" {
		known, ok := sess.Player(playerID)
		if !ok {
			return errors.NotFound("player not found: id=%s", playerID)
		}
		me = known
	} else {
		if sess.Status != domain.StatusWaiting {
			return errors.FailedPrecondition("game already started")
		}

		id, err := uuid.NewV7()
		if err != nil {
			return errors.Internal(err)
		}
		me = domain.Player{ID: id.String(), Nickname: nickname, Avatar: domain.RandomAvatar()}
	}

	if p.cfg.Cache != nil {
		sess = p.register(ctx, sess, me)
	}
	if !sess.HasPlayer(me.ID) {
		sess = sess.Clone()
		sess.Players = append(sess.Players, me)
	}

	if p.cfg.Backend != nil && playerID == "" {
		p.warn(p.cfg.Backend.JoinGame(ctx, sess.ID, me), "backend join failed")
	}

	p.store.Replace(sess)
	p.store.SetMe(me)

	if sess.Status == domain.StatusFinished {
		p.machine.Finish()
	}

	p.log = p.log.With().Str("player", me.ID).Logger()
	p.open(p.code, sess.ID, p.handle)
	p.log.Info().Str("nickname", me.Nickname).Msg("joined game")

	p.loop.post(func() {
		p.publish(domain.MessagePlayerJoined, nil)
		p.requestSync()
	})

	return nil
}

// lookup finds the session in the backend, then in the cache.
func (p *Player) lookup(ctx context.Context) (*domain.Session, error) {
	if p.cfg.Backend != nil {
		sess, err := p.cfg.Backend.SessionByCode(ctx, p.code)
		if err == nil {
			return sess, nil
		}
		if !errors.Is(err, errors.CodeNotFound) {
			p.log.Warn().Err(err).Msg("backend lookup failed, trying cache")
		}
	}

	if p.cfg.Cache != nil {
		return p.cfg.Cache.Get(ctx, p.code)
	}

	return nil, errors.NotFound("game not found: code=%s", p.code)
}

// register appends me to the cached roster, seeding the cache from sess when
// the game is only known to the backend.
func (p *Player) register(ctx context.Context, sess *domain.Session, me domain.Player) *domain.Session {
	updated, err := cache.AddPlayer(ctx, p.cfg.Cache, p.code, me)
	if errors.Is(err, errors.CodeNotFound) {
		seeded := sess.Clone()
		if !seeded.HasPlayer(me.ID) {
			seeded.Players = append(seeded.Players, me)
		}
		updated, err = seeded, p.cfg.Cache.Put(ctx, seeded)
	}

	if err != nil {
		p.warn(err, "cache join failed")
		return sess
	}

	return updated
}

func (p *Player) Code() string {
	return p.code
}

// Snapshot returns the player's view. It is safe to call from any goroutine.
func (p *Player) Snapshot() *store.Snapshot {
	return p.store.Snapshot()
}

func (p *Player) Me() domain.Player {
	if me := p.store.Snapshot().Me; me != nil {
		return *me
	}
	return domain.Player{}
}

func (p *Player) State(ctx context.Context) (domain.GameState, error) {
	var gs domain.GameState
	err := p.loop.do(ctx, func() error {
		gs = p.machine.State()
		return nil
	})
	return gs, err
}

// TimeRemaining is the local question timer, nil when it is unknown.
func (p *Player) TimeRemaining(ctx context.Context) (*int, error) {
	var n *int
	err := p.loop.do(ctx, func() error {
		n = p.machine.TimeRemaining()
		return nil
	})
	return n, err
}

// Leaderboard ranks the roster as the player last saw it.
func (p *Player) Leaderboard() []leaderboard.Entry {
	sess := p.store.Session()
	if sess == nil {
		return nil
	}
	return leaderboard.Rank(sess.Players)
}

// Answer submits the player's answer to the open question and returns it as
// broadcast to the host.
func (p *Player) Answer(ctx context.Context, answerID string) (domain.PlayerAnswer, error) {
	return p.answer(ctx, func(q domain.Question) (domain.Answer, bool) { return q.Answer(answerID) })
}

// AnswerColor submits the answer tagged with c.
func (p *Player) AnswerColor(ctx context.Context, c domain.Color) (domain.PlayerAnswer, error) {
	return p.answer(ctx, func(q domain.Question) (domain.Answer, bool) { return q.AnswerByColor(c) })
}

func (p *Player) answer(ctx context.Context, pick func(q domain.Question) (domain.Answer, bool)) (domain.PlayerAnswer, error) {
	var pa domain.PlayerAnswer

	err := p.loop.do(ctx, func() error {
		if p.kicked() {
			return errors.FailedPrecondition("removed from the game")
		}

		gs := p.machine.State()
		if gs.Phase != domain.PhaseQuestion {
			return errors.FailedPrecondition("no open question")
		}

		snap := p.store.Snapshot()
		if snap.HasAnswered {
			return errors.FailedPrecondition("already answered this question")
		}

		q, ok := snap.Session.Question(gs.QuestionIndex)
		if !ok {
			return errors.FailedPrecondition("question %d is not in the quiz", gs.QuestionIndex)
		}

		ans, ok := pick(q)
		if !ok {
			return errors.InvalidField("answer", "no such answer to question %s", q.ID)
		}

		remaining := p.machine.TimeRemaining()
		points := scoring.Points(ans.IsCorrect, remaining, q.TimeLimit, q.Points)

		taken := q.TimeLimit
		if remaining != nil {
			taken = q.TimeLimit - *remaining
		}

		me := *snap.Me
		me.Score += points

		p.store.RecordAnswer(ans.IsCorrect, points)
		p.store.UpdatePlayerScore(me.ID, me.Score)

		pa = domain.PlayerAnswer{
			PlayerID:       me.ID,
			PlayerNickname: me.Nickname,
			PlayerAvatar:   me.Avatar,
			QuestionID:     q.ID,
			AnswerID:       ans.ID,
			TimeTaken:      taken,
			PointsEarned:   points,
			IsCorrect:      ans.IsCorrect,
		}

		p.persistAnswer(pa, me.Score)

		m, err := domain.NewAnswerMessage(p.code, pa, p.clock.Now())
		if err != nil {
			return errors.Internal(err)
		}
		p.room.Publish(p.ctx, m)

		p.log.Info().Bool("correct", pa.IsCorrect).Int("points", points).Msg("answered")
		return nil
	})

	return pa, err
}

func (p *Player) persistAnswer(pa domain.PlayerAnswer, score int) {
	if p.cfg.Cache != nil {
		_, err := cache.SetPlayerScore(p.ctx, p.cfg.Cache, p.code, pa.PlayerID, score)
		p.warn(err, "cache score update failed")
	}

	if b := p.cfg.Backend; b != nil {
		p.warn(b.UpdatePlayerScore(p.ctx, pa.PlayerID, score), "backend score update failed")
		p.warn(b.SubmitAnswer(p.ctx, pa), "backend answer insert failed")
	}
}

// Close leaves the game and empties the player's snapshot.
func (p *Player) Close() error {
	err := p.close()
	p.store.Reset()
	return err
}

func (p *Player) handle(m domain.Message) {
	switch m.Type {
	case domain.MessagePlayerJoined, domain.MessagePlayerLeft, domain.MessageGameStarted,
		domain.MessageGameUpdated, domain.MessagePhaseChange, domain.MessageSyncResponse:
	default:
		p.log.Debug().Str("type", string(m.Type)).Msg("message ignored")
		return
	}

	sess, err := m.Session()
	if err != nil {
		p.log.Debug().Err(err).Msg("bad session payload")
		return
	}

	switch m.Type {
	case domain.MessagePlayerJoined:
		p.merge(sess)

	case domain.MessagePlayerLeft:
		p.prune(sess, m.Removed, m.Timestamp)

	case domain.MessageGameStarted:
		if m.GameState == nil {
			// recovered from a poll, the wire state is unknown
			p.replace(sess)
			p.requestSync()
			return
		}
		p.follow(sess, m.GameState, m.Timestamp, true)

	case domain.MessagePhaseChange:
		p.follow(sess, m.GameState, m.Timestamp, true)

	case domain.MessageSyncResponse:
		p.follow(sess, m.GameState, m.Timestamp, false)

	case domain.MessageGameUpdated:
		p.replace(sess)
		if sess != nil && sess.Status == domain.StatusFinished && p.machine.Finish() {
			p.enter(p.machine.State())
		}
	}
}

// follow applies a session and wire state sent by the host. The roster of
// a host message newer than a removal readmits the player it names.
func (p *Player) follow(sess *domain.Session, gs *domain.GameState, at int64, live bool) {
	if sess != nil {
		for id, removedAt := range p.removed {
			if at > removedAt && sess.HasPlayer(id) {
				delete(p.removed, id)
			}
		}
	}

	p.replace(sess)

	if gs == nil {
		return
	}

	prev := p.machine.State()
	if !p.machine.Apply(*gs, live) {
		return
	}

	cur := p.machine.State()
	if cur.QuestionIndex != prev.QuestionIndex {
		p.store.ClearAnswer()
	}

	p.enter(cur)
}

func (p *Player) enter(gs domain.GameState) {
	switch {
	case gs.Phase == domain.PhaseCountdown:
		p.arm(phase.TagOf(gs), p.onTick)
	case gs.Phase == domain.PhaseQuestion && p.machine.TimeRemaining() != nil:
		p.arm(phase.TagOf(gs), p.onTick)
	default:
		p.disarm()
	}

	p.log.Debug().
		Str("phase", string(gs.Phase)).
		Int("question", gs.QuestionIndex).
		Msg("phase changed")

	p.changed(gs)
}

func (p *Player) onTick(tag phase.Tag) {
	if p.machine.Tick(tag) && phase.TagOf(p.machine.State()) == tag {
		p.arm(tag, p.onTick)
	}
}

// replace adopts a host session unless it is older than the one held. The
// player's own entry and score are kept, the player is their only writer.
func (p *Player) replace(sess *domain.Session) {
	if sess == nil {
		return
	}

	if cur := p.store.Session(); cur != nil && older(sess, cur) {
		return
	}

	next := sess.Clone()
	if me := p.store.Snapshot().Me; me != nil && !p.kicked() {
		found := false
		for i := range next.Players {
			if next.Players[i].ID == me.ID {
				next.Players[i].Score = me.Score
				found = true
			}
		}
		if !found {
			next.Players = append(next.Players, *me)
		}
	}

	p.store.Replace(next)
}

func (p *Player) merge(sess *domain.Session) {
	if sess == nil {
		return
	}

	for _, pl := range sess.Players {
		if _, ok := p.removed[pl.ID]; ok {
			continue
		}
		p.store.AddPlayer(pl)
	}
}

// prune drops the players sess lacks. Only a removal named by the host takes
// this player out; a roster that merely misses them is stale.
func (p *Player) prune(sess *domain.Session, removed string, at int64) {
	me := p.Me()

	if removed != "" {
		p.removed[removed] = at
		p.store.RemovePlayer(removed)
		if removed == me.ID {
			p.log.Warn().Msg("removed from the game by the host")
		}
	}

	if sess == nil {
		return
	}

	for _, id := range p.store.Session().PlayerIDs() {
		if id != me.ID && !sess.HasPlayer(id) {
			p.store.RemovePlayer(id)
		}
	}
}

func (p *Player) kicked() bool {
	_, ok := p.removed[p.Me().ID]
	return ok
}

func (p *Player) requestSync() {
	p.room.Publish(p.ctx, domain.NewSyncRequest(p.code, p.clock.Now()))
}

func (p *Player) timeLimit(i int) int {
	sess := p.store.Session()
	if sess == nil {
		return 0
	}

	q, ok := sess.Question(i)
	if !ok {
		return 0
	}
	return q.TimeLimit
}

var statusRank = map[domain.Status]int{
	domain.StatusWaiting:  0,
	domain.StatusPlaying:  1,
	domain.StatusFinished: 2,
}

// older reports whether s is behind cur in the game's progress.
func older(s, cur *domain.Session) bool {
	if s.CurrentQuestionIndex != cur.CurrentQuestionIndex {
		return s.CurrentQuestionIndex < cur.CurrentQuestionIndex
	}
	return statusRank[s.Status] < statusRank[cur.Status]
}
