// Package game runs the host and player processes of a quiz. Each process
// owns its session store and phase machine and applies every input through
// a single loop; the room delivers messages from peers into that loop.
package game

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/backend"
	"github.com/victornm/quizsync/internal/cache"
	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/phase"
	"github.com/victornm/quizsync/internal/room"
	"github.com/victornm/quizsync/internal/store"
	"github.com/victornm/quizsync/internal/transport"
)

const (
	DefaultTick = time.Second
	DefaultTopN = 5
)

var errClosed = stderrors.New("game: process closed")

// Config is shared by host and player processes. Transport, Cache and
// Backend are optional, a process with none of them plays alone.
type Config struct {
	Transport    transport.Transport
	Cache        cache.Cache
	Backend      backend.Backend
	Clock        clockwork.Clock
	Tick         time.Duration
	PollInterval time.Duration
	Log          zerolog.Logger

	// OnChange is called from the process loop after every phase change. It
	// must not call back into the process.
	OnChange func(gs domain.GameState, s *store.Snapshot)
}

// process holds what host and player have in common: the loop, the store,
// the room and the single running timer.
type process struct {
	cfg   Config
	log   zerolog.Logger
	clock clockwork.Clock
	tick  time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	loop  *loop
	store *store.Store
	room  *room.Room
}

func newProcess(cfg Config, component string) *process {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}

	log := cfg.Log.With().Str("component", component).Logger()
	ctx, cancel := context.WithCancel(context.Background())

	return &process{
		cfg:    cfg,
		log:    log,
		clock:  cfg.Clock,
		tick:   cfg.Tick,
		ctx:    ctx,
		cancel: cancel,
		loop:   newLoop(log, cfg.Clock),
		store:  store.New(),
	}
}

// open attaches the process to its room. Deliveries are moved onto the loop.
func (p *process) open(code, sessionID string, handle func(m domain.Message)) {
	p.log = p.log.With().Str("code", code).Logger()

	p.room = room.Open(p.ctx, room.Config{
		Code:         code,
		SessionID:    sessionID,
		Transport:    p.cfg.Transport,
		Cache:        p.cfg.Cache,
		Backend:      p.cfg.Backend,
		Clock:        p.clock,
		PollInterval: p.cfg.PollInterval,
		Log:          p.cfg.Log,
		Current:      p.store.Session,
	}, func(_ context.Context, m domain.Message) {
		p.loop.post(func() { handle(m) })
	})
}

// arm replaces the running timer with one that calls f on the loop after one
// tick. A timer replaced before it ran is discarded.
func (p *process) arm(tag phase.Tag, f func(tag phase.Tag)) {
	p.loop.schedule(p.tick, func() { f(tag) })
}

func (p *process) disarm() {
	p.loop.cancel()
}

func (p *process) publish(t domain.MessageType, gs *domain.GameState) {
	sess := p.store.Session()
	if sess == nil {
		return
	}

	m, err := domain.NewSessionMessage(t, sess, gs, p.clock.Now())
	if err != nil {
		p.log.Error().Err(err).Str("type", string(t)).Msg("build message failed")
		return
	}

	p.room.Publish(p.ctx, m)
}

func (p *process) changed(gs domain.GameState) {
	if p.cfg.OnChange != nil {
		p.cfg.OnChange(gs, p.store.Snapshot())
	}
}

// warn logs a failure of an optional collaborator. The game carries on.
func (p *process) warn(err error, msg string) {
	if err != nil {
		p.log.Warn().Err(err).Msg(msg)
	}
}

// close stops the loop first so that no handler runs against a closed room.
func (p *process) close() error {
	p.loop.stop()
	p.disarm()
	p.cancel()

	if p.room == nil {
		return nil
	}
	return p.room.Close()
}
