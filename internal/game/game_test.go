package game_test

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizsync/internal/backend"
	"github.com/victornm/quizsync/internal/cache"
	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/errors"
	"github.com/victornm/quizsync/internal/game"
	"github.com/victornm/quizsync/internal/room"
	"github.com/victornm/quizsync/internal/transport"
)

const (
	waitFor = 2 * time.Second
	poll    = 5 * time.Millisecond
)

func TestGame_FullCycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(2))
	ann := e.join(t, h.Code(), "Ann")
	bob := e.join(t, h.Code(), "Bob")
	waitPlayers(t, h, 2)

	require.NoError(t, h.Start(ctx))
	waitPhase(t, ann, domain.PhaseCountdown, 0)
	waitPhase(t, bob, domain.PhaseCountdown, 0)

	e.tick(t, domain.CountdownTicks, h, ann, bob)
	requirePhase(t, h, domain.PhaseQuestion, 0)
	waitPhase(t, ann, domain.PhaseQuestion, 0)
	waitPhase(t, bob, domain.PhaseQuestion, 0)

	pa, err := ann.Answer(ctx, "a1")
	require.NoError(t, err)
	assert.True(t, pa.IsCorrect)
	assert.Equal(t, 1000, pa.PointsEarned, "answered with the full time left")

	_, err = ann.Answer(ctx, "a2")
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition), "second answer: %v", err)

	pa, err = bob.Answer(ctx, "a2")
	require.NoError(t, err)
	assert.False(t, pa.IsCorrect)
	assert.Zero(t, pa.PointsEarned)

	// every player answered, the host closes the question early
	waitPhase(t, h, domain.PhaseResults, 0)
	waitPhase(t, ann, domain.PhaseResults, 0)

	r, err := h.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a1": 1, "a2": 1}, r.Distribution)
	assert.Len(t, r.Answers, 2)
	assert.Equal(t, "q0", r.Question.ID)

	snap := ann.Snapshot()
	assert.True(t, snap.HasAnswered)
	require.NotNil(t, snap.LastAnswerCorrect)
	assert.True(t, *snap.LastAnswerCorrect)
	assert.Equal(t, 1000, snap.LastPointsEarned)
	assert.Equal(t, 1000, ann.Me().Score)

	top := h.Leaderboard()
	require.Len(t, top, 2)
	assert.Equal(t, "Ann", top[0].Nickname)
	assert.Equal(t, 1000, top[0].Score)

	require.NoError(t, h.ShowLeaderboard(ctx))
	waitPhase(t, bob, domain.PhaseLeaderboard, 0)

	require.NoError(t, h.Next(ctx))
	waitPhase(t, ann, domain.PhaseCountdown, 1)
	assert.False(t, ann.Snapshot().HasAnswered, "a new question clears the previous answer")

	e.tick(t, domain.CountdownTicks, h, ann, bob)
	waitPhase(t, ann, domain.PhaseQuestion, 1)

	// nobody answers, the timer closes the question
	e.tick(t, 5, h, ann, bob)
	requirePhase(t, h, domain.PhaseResults, 1)
	waitPhase(t, bob, domain.PhaseResults, 1)

	require.NoError(t, h.ShowLeaderboard(ctx))
	require.NoError(t, h.Next(ctx))
	waitPhase(t, ann, domain.PhaseFinished, 1)
	waitPhase(t, bob, domain.PhaseFinished, 1)

	cached, err := e.cache.Get(ctx, h.Code())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, cached.Status)
	assert.Equal(t, 1, cached.CurrentQuestionIndex)
	require.NotNil(t, cached.StartedAt)

	var buf bytes.Buffer
	require.NoError(t, h.Export(&buf))
	assert.Equal(t, "rank,nickname,score\n1,Ann,1000\n2,Bob,0\n", buf.String())
}

func TestGame_Join(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	waiting := e.host(t, testQuiz(1))

	started := e.host(t, testQuiz(1))
	early := e.join(t, started.Code(), "Early")
	waitPlayers(t, started, 1)
	require.NoError(t, started.Start(ctx))

	tests := map[string]struct {
		code     string
		nickname string
		playerID string
		wantCode errors.Code
	}{
		"nickname too short":   {code: waiting.Code(), nickname: "J", wantCode: errors.CodeInvalidArgument},
		"nickname too long":    {code: waiting.Code(), nickname: "abcdefghijklmnop", wantCode: errors.CodeInvalidArgument},
		"malformed code":       {code: "AB", nickname: "Ann", wantCode: errors.CodeInvalidArgument},
		"unknown game":         {code: "ZZZZZ9", nickname: "Ann", wantCode: errors.CodeNotFound},
		"game already started": {code: started.Code(), nickname: "Late", wantCode: errors.CodeFailedPrecondition},
		"unknown player":       {code: started.Code(), playerID: "nobody", wantCode: errors.CodeNotFound},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := game.Join(ctx, game.PlayerConfig{
				Config:   e.config(),
				Code:     tt.code,
				Nickname: tt.nickname,
				PlayerID: tt.playerID,
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, errors.Convert(err).Code, "got %v", err)
		})
	}

	t.Run("normalizes code and nickname", func(t *testing.T) {
		p, err := game.Join(ctx, game.PlayerConfig{
			Config:   e.config(),
			Code:     " " + strings.ToLower(waiting.Code()) + " ",
			Nickname: "  Zoë  ",
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close() })

		assert.Equal(t, waiting.Code(), p.Code())
		assert.Equal(t, "Zoë", p.Me().Nickname)
		assert.Contains(t, domain.Avatars, p.Me().Avatar)
	})

	t.Run("rejoin is admitted after the start", func(t *testing.T) {
		p, err := game.Join(ctx, game.PlayerConfig{
			Config:   e.config(),
			Code:     started.Code(),
			PlayerID: early.Me().ID,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = p.Close() })

		assert.Equal(t, "Early", p.Me().Nickname)
	})
}

func TestGame_JoinIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(1))
	p := e.join(t, h.Code(), "Ann")
	waitPlayers(t, h, 1)

	again, err := game.Join(ctx, game.PlayerConfig{Config: e.config(), Code: h.Code(), PlayerID: p.Me().ID})
	require.NoError(t, err)
	t.Cleanup(func() { _ = again.Close() })

	cached, err := e.cache.Get(ctx, h.Code())
	require.NoError(t, err)
	assert.Equal(t, []string{p.Me().ID}, cached.PlayerIDs())

	e.hub.Wait()
	requirePhase(t, h, domain.PhaseWaiting, 0)
	assert.Len(t, h.Session().Players, 1)
}

func TestGame_StartNeedsPlayer(t *testing.T) {
	e := newEnv(t)
	h := e.host(t, testQuiz(1))

	err := h.Start(context.Background())
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	requirePhase(t, h, domain.PhaseWaiting, 0)
}

func TestGame_HostActionsOutOfOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(1))
	e.join(t, h.Code(), "Ann")
	waitPlayers(t, h, 1)
	require.NoError(t, h.Start(ctx))

	assert.True(t, errors.Is(h.Next(ctx), errors.CodeFailedPrecondition))
	assert.True(t, errors.Is(h.ShowLeaderboard(ctx), errors.CodeFailedPrecondition))
	assert.True(t, errors.Is(h.Start(ctx), errors.CodeFailedPrecondition))

	_, err := h.Results(ctx)
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
	requirePhase(t, h, domain.PhaseCountdown, 0)
}

func TestGame_PlayerFollowsOnlyTheHost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(1))
	p := e.join(t, h.Code(), "Ann")
	waitPlayers(t, h, 1)

	require.NoError(t, h.Start(ctx))
	waitPhase(t, p, domain.PhaseCountdown, 0)
	require.NoError(t, h.Close())

	e.tick(t, 10, p)

	gs := requirePhase(t, p, domain.PhaseCountdown, 0)
	assert.Equal(t, 0, gs.CountdownValue(), "the countdown ran out locally")

	rem, err := p.TimeRemaining(ctx)
	require.NoError(t, err)
	require.NotNil(t, rem)
	assert.Equal(t, 5, *rem, "the question timer is primed but does not run before the question opens")
}

func TestGame_LateJoinConvergesViaSync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(1))
	p := e.join(t, h.Code(), "Ann")
	waitPlayers(t, h, 1)

	require.NoError(t, h.Start(ctx))
	waitPhase(t, p, domain.PhaseCountdown, 0)
	e.tick(t, domain.CountdownTicks, h, p)
	waitPhase(t, p, domain.PhaseQuestion, 0)

	id := p.Me().ID
	require.NoError(t, p.Close())
	assert.Nil(t, p.Snapshot().Session, "closing empties the snapshot")

	back, err := game.Join(ctx, game.PlayerConfig{Config: e.config(), Code: h.Code(), PlayerID: id})
	require.NoError(t, err)
	t.Cleanup(func() { _ = back.Close() })

	waitPhase(t, back, domain.PhaseQuestion, 0)
	assert.Equal(t, domain.StatusPlaying, back.Snapshot().Session.Status)

	rem, err := back.TimeRemaining(ctx)
	require.NoError(t, err)
	assert.Nil(t, rem, "time left is unknown after a sync")

	pa, err := back.Answer(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 500, pa.PointsEarned, "no speed bonus without a running timer")

	waitPhase(t, h, domain.PhaseResults, 0)
	waitPhase(t, back, domain.PhaseResults, 0)
}

func TestGame_HostValidatesAnswers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(1))
	raw := e.hub.Endpoint()

	announce(t, raw, h.Code(), domain.Player{ID: "x", Nickname: "Xena"}, domain.Player{ID: "y", Nickname: "Yuri"})
	waitPlayers(t, h, 2)

	require.NoError(t, h.Start(ctx))
	e.tick(t, domain.CountdownTicks, h)
	requirePhase(t, h, domain.PhaseQuestion, 0)

	send := func(pa domain.PlayerAnswer) {
		m, err := domain.NewAnswerMessage(h.Code(), pa, time.Now())
		require.NoError(t, err)
		raw.Publish(ctx, m)
		e.hub.Wait()
		requirePhase(t, h, domain.PhaseQuestion, 0)
	}

	correct := domain.PlayerAnswer{PlayerID: "x", QuestionID: "q0", AnswerID: "a1", PointsEarned: 1000, IsCorrect: true}
	send(correct)
	send(correct)

	r, err := h.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, r.Answers, 1, "duplicate delivery is counted once")
	assertScore(t, h, "x", 1000)

	send(domain.PlayerAnswer{PlayerID: "y", QuestionID: "q0", AnswerID: "a1", PointsEarned: 5000, IsCorrect: true})
	send(domain.PlayerAnswer{PlayerID: "y", QuestionID: "other", AnswerID: "a1", PointsEarned: 1000, IsCorrect: true})
	send(domain.PlayerAnswer{PlayerID: "y", QuestionID: "q0", AnswerID: "a9", PointsEarned: 1000, IsCorrect: true})
	send(domain.PlayerAnswer{PlayerID: "ghost", QuestionID: "q0", AnswerID: "a1", PointsEarned: 1000, IsCorrect: true})

	r, err = h.Results(ctx)
	require.NoError(t, err)
	assert.Len(t, r.Answers, 1, "invalid answers are dropped")

	// claims to be correct, the quiz says otherwise
	m, err := domain.NewAnswerMessage(h.Code(), domain.PlayerAnswer{
		PlayerID: "y", QuestionID: "q0", AnswerID: "a2", PointsEarned: 900, IsCorrect: true,
	}, time.Now())
	require.NoError(t, err)
	raw.Publish(ctx, m)

	waitPhase(t, h, domain.PhaseResults, 0)
	assertScore(t, h, "y", 0)

	r, err = h.Results(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a1": 1, "a2": 1}, r.Distribution)
	assert.False(t, r.Answers[1].IsCorrect)
}

func TestGame_Kick(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(1))
	ann := e.join(t, h.Code(), "Ann")
	bob := e.join(t, h.Code(), "Bob")
	waitPlayers(t, h, 2)
	require.Eventually(t, func() bool { return ann.Snapshot().Session.HasPlayer(bob.Me().ID) }, waitFor, poll)

	assert.True(t, errors.Is(h.Kick(ctx, "nobody"), errors.CodeNotFound))
	require.NoError(t, h.Kick(ctx, bob.Me().ID))

	assert.False(t, h.Session().HasPlayer(bob.Me().ID))
	require.Eventually(t, func() bool { return !ann.Snapshot().Session.HasPlayer(bob.Me().ID) }, waitFor, poll)
	require.Eventually(t, func() bool { return !bob.Snapshot().Session.HasPlayer(bob.Me().ID) }, waitFor, poll)

	cached, err := e.cache.Get(ctx, h.Code())
	require.NoError(t, err)
	assert.Equal(t, []string{ann.Me().ID}, cached.PlayerIDs())

	// a stale announcement does not bring the player back
	announce(t, e.hub.Endpoint(), h.Code(), bob.Me())
	e.hub.Wait()
	requirePhase(t, h, domain.PhaseWaiting, 0)
	assert.Equal(t, []string{ann.Me().ID}, h.Session().PlayerIDs())

	require.NoError(t, h.Start(ctx))
	waitPhase(t, bob, domain.PhaseCountdown, 0)
	e.tick(t, domain.CountdownTicks, h, ann, bob)
	waitPhase(t, bob, domain.PhaseQuestion, 0)

	_, err = bob.Answer(ctx, "a1")
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition), "removed players cannot answer: %v", err)
}

func TestGame_StaleRosterDoesNotRemovePlayer(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(1))
	ann := e.join(t, h.Code(), "Ann")
	waitPlayers(t, h, 1)
	stale := h.Session()

	carl := e.join(t, h.Code(), "Carl")
	waitPlayers(t, h, 2)

	raw := e.hub.Endpoint()
	publish := func(m domain.Message, err error) {
		require.NoError(t, err)
		raw.Publish(ctx, m)
	}

	// a removal of someone else sent with a roster that predates Carl, and
	// the same roster as a poll would replay it
	publish(domain.NewRemovalMessage(stale, "bob", e.clock.Now()))
	publish(domain.NewSessionMessage(domain.MessagePlayerLeft, stale, nil, e.clock.Now()))
	e.hub.Wait()

	requirePhase(t, carl, domain.PhaseWaiting, 0)
	assert.True(t, carl.Snapshot().Session.HasPlayer(carl.Me().ID), "Carl keeps himself on his roster")

	require.NoError(t, h.Start(ctx))
	waitPhase(t, carl, domain.PhaseCountdown, 0)
	e.tick(t, domain.CountdownTicks, h, ann, carl)
	waitPhase(t, carl, domain.PhaseQuestion, 0)

	_, err := carl.Answer(ctx, "a1")
	require.NoError(t, err)
	assertEventuallyScore(t, h, carl.Me().ID, 1000)
}

func TestGame_KickClosesQuestion(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	h := e.host(t, testQuiz(1))
	ann := e.join(t, h.Code(), "Ann")
	bob := e.join(t, h.Code(), "Bob")
	waitPlayers(t, h, 2)

	require.NoError(t, h.Start(ctx))
	waitPhase(t, ann, domain.PhaseCountdown, 0)
	e.tick(t, domain.CountdownTicks, h, ann)
	waitPhase(t, ann, domain.PhaseQuestion, 0)

	_, err := ann.Answer(ctx, "a1")
	require.NoError(t, err)
	e.hub.Wait()
	requirePhase(t, h, domain.PhaseQuestion, 0)

	require.NoError(t, h.Kick(ctx, bob.Me().ID))
	requirePhase(t, h, domain.PhaseResults, 0)
}

func TestGame_PollFallback(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cfg := e.config()
	cfg.Transport = nil

	h, err := game.NewHost(ctx, game.HostConfig{Config: cfg, Quiz: testQuiz(1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	p, err := game.Join(ctx, game.PlayerConfig{Config: cfg, Code: h.Code(), Nickname: "Ann"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	require.Eventually(t, func() bool {
		e.clock.Advance(room.DefaultPollInterval)
		return len(h.Session().Players) == 1
	}, waitFor, poll, "host should notice the join in the cache")

	require.NoError(t, h.Start(ctx))
	e.tick(t, domain.CountdownTicks, h)
	require.NoError(t, h.CloseQuestion(ctx))
	require.NoError(t, h.ShowLeaderboard(ctx))
	require.NoError(t, h.Next(ctx))
	requirePhase(t, h, domain.PhaseFinished, 0)

	require.Eventually(t, func() bool {
		e.clock.Advance(room.DefaultPollInterval)
		gs, err := p.State(ctx)
		return err == nil && gs.Phase == domain.PhaseFinished
	}, waitFor, poll, "player should see the end of the game in the cache")

	assert.Equal(t, domain.StatusFinished, p.Snapshot().Session.Status)
}

func TestGame_RecoverHost(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	quiz := testQuiz(3)
	require.NoError(t, e.cache.Put(ctx, &domain.Session{
		ID:                   "s1",
		Code:                 "REC0V3",
		Quiz:                 quiz,
		Status:               domain.StatusPlaying,
		CurrentQuestionIndex: 1,
		Players:              []domain.Player{{ID: "p1", Nickname: "Ann", Score: 700}},
	}))

	_, err := game.RecoverHost(ctx, game.HostConfig{Config: e.config()}, "NOPE00")
	assert.True(t, errors.Is(err, errors.CodeNotFound))

	h, err := game.RecoverHost(ctx, game.HostConfig{Config: e.config()}, "rec0v3")
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	requirePhase(t, h, domain.PhaseResults, 1)
	assert.Equal(t, 700, h.Leaderboard()[0].Score)

	require.NoError(t, h.ShowLeaderboard(ctx))
	require.NoError(t, h.Next(ctx))
	requirePhase(t, h, domain.PhaseCountdown, 2)
}

func TestGame_WritesThroughBackend(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	b := &fakeBackend{}
	cfg := e.config()
	cfg.Backend = b

	h, err := game.NewHost(ctx, game.HostConfig{Config: cfg, Quiz: testQuiz(1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	pcfg := e.config()
	pcfg.Backend = b
	p, err := game.Join(ctx, game.PlayerConfig{Config: pcfg, Code: h.Code(), Nickname: "Ann"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	waitPlayers(t, h, 1)
	require.NoError(t, h.Start(ctx))
	waitPhase(t, p, domain.PhaseCountdown, 0)
	e.tick(t, domain.CountdownTicks, h, p)
	waitPhase(t, p, domain.PhaseQuestion, 0)

	_, err = p.Answer(ctx, "a1")
	require.NoError(t, err)
	waitPhase(t, h, domain.PhaseResults, 0)

	assert.Equal(t, []string{
		"create " + h.Code(),
		"lookup " + h.Code(),
		"join Ann",
		"update playing 0",
		"update playing 0",
		"score 1000",
		"answer a1",
		"update playing 0",
	}, b.calls())
}

type env struct {
	clock *clockwork.FakeClock
	hub   *transport.Hub
	cache cache.Cache
}

func newEnv(t *testing.T) *env {
	t.Helper()

	hub := transport.NewHub(zerolog.Nop())
	t.Cleanup(hub.Wait)

	return &env{
		clock: clockwork.NewFakeClockAt(time.Unix(1_700_000_000, 0)),
		hub:   hub,
		cache: cache.NewMemory(),
	}
}

func (e *env) config() game.Config {
	return game.Config{
		Transport: e.hub.Endpoint(),
		Cache:     e.cache,
		Clock:     e.clock,
		Log:       zerolog.Nop(),
	}
}

func (e *env) host(t *testing.T, quiz domain.Quiz) *game.Host {
	t.Helper()

	h, err := game.NewHost(context.Background(), game.HostConfig{Config: e.config(), Quiz: quiz})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	return h
}

func (e *env) join(t *testing.T, code, nickname string) *game.Player {
	t.Helper()

	p, err := game.Join(context.Background(), game.PlayerConfig{Config: e.config(), Code: code, Nickname: nickname})
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	return p
}

type stater interface {
	State(ctx context.Context) (domain.GameState, error)
}

// tick advances the clock one second at a time, letting every process
// handle its timers before the next step.
func (e *env) tick(t *testing.T, n int, procs ...stater) {
	t.Helper()

	for range n {
		e.clock.Advance(game.DefaultTick)
		for _, p := range procs {
			_, _ = p.State(context.Background())
		}
	}
}

func requirePhase(t *testing.T, p stater, want domain.Phase, index int) domain.GameState {
	t.Helper()

	gs, err := p.State(context.Background())
	require.NoError(t, err)
	require.Equal(t, want, gs.Phase)
	require.Equal(t, index, gs.QuestionIndex)

	return gs
}

func waitPhase(t *testing.T, p stater, want domain.Phase, index int) {
	t.Helper()

	require.Eventually(t, func() bool {
		gs, err := p.State(context.Background())
		return err == nil && gs.Phase == want && gs.QuestionIndex == index
	}, waitFor, poll, "waiting for %s of question %d", want, index)
}

func waitPlayers(t *testing.T, h *game.Host, n int) {
	t.Helper()

	require.Eventually(t, func() bool { return len(h.Session().Players) == n }, waitFor, poll)
}

func assertScore(t *testing.T, h *game.Host, id string, want int) {
	t.Helper()

	p, ok := h.Session().Player(id)
	require.True(t, ok)
	assert.Equal(t, want, p.Score)
}

func assertEventuallyScore(t *testing.T, h *game.Host, id string, want int) {
	t.Helper()

	require.Eventually(t, func() bool {
		p, ok := h.Session().Player(id)
		return ok && p.Score == want
	}, waitFor, poll)
}

func announce(t *testing.T, tr transport.Transport, code string, players ...domain.Player) {
	t.Helper()

	m, err := domain.NewSessionMessage(domain.MessagePlayerJoined, &domain.Session{Code: code, Players: players}, nil, time.Now())
	require.NoError(t, err)
	tr.Publish(context.Background(), m)
}

func testQuiz(n int) domain.Quiz {
	q := domain.Quiz{ID: "quiz", Title: "Test"}
	for i := range n {
		q.Questions = append(q.Questions, domain.Question{
			ID:        fmt.Sprintf("q%d", i),
			Text:      "Question",
			TimeLimit: 5,
			Points:    1000,
			Answers: []domain.Answer{
				{ID: "a1", Text: "Right", IsCorrect: true, Color: domain.ColorRed},
				{ID: "a2", Text: "Wrong", Color: domain.ColorBlue},
			},
		})
	}
	return q
}

type fakeBackend struct {
	backend.Backend

	mu  sync.Mutex
	log []string
}

func (b *fakeBackend) record(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.log = append(b.log, s)
}

func (b *fakeBackend) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.log...)
}

func (b *fakeBackend) SessionByCode(_ context.Context, code string) (*domain.Session, error) {
	b.record("lookup " + code)
	return nil, errors.NotFound("game not found: code=%s", code)
}

func (b *fakeBackend) CreateSession(_ context.Context, s *domain.Session) error {
	b.record("create " + s.Code)
	return nil
}

func (b *fakeBackend) UpdateSession(_ context.Context, s *domain.Session) error {
	b.record(fmt.Sprintf("update %s %d", s.Status, s.CurrentQuestionIndex))
	return nil
}

func (b *fakeBackend) JoinGame(_ context.Context, _ string, p domain.Player) error {
	b.record("join " + p.Nickname)
	return nil
}

func (b *fakeBackend) UpdatePlayerScore(_ context.Context, _ string, score int) error {
	b.record(fmt.Sprintf("score %d", score))
	return nil
}

func (b *fakeBackend) SubmitAnswer(_ context.Context, a domain.PlayerAnswer) error {
	b.record("answer " + a.AnswerID)
	return nil
}

func (b *fakeBackend) Watch(ctx context.Context, _ string, _ func(*domain.Session)) error {
	<-ctx.Done()
	return nil
}

