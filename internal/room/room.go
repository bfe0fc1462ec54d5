// Package room attaches a process to one game room. Messages arrive from the
// live transport when it is available, and are synthesized from the shared
// cache and the backend when broadcasts were missed. Callers see a single
// stream and cannot tell which path produced a message.
package room

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/backend"
	"github.com/victornm/quizsync/internal/cache"
	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/transport"
)

const DefaultPollInterval = 500 * time.Millisecond

type Handler func(ctx context.Context, m domain.Message)

type Config struct {
	Code string
	// SessionID keys the backend subscription.
	SessionID string

	// Transport, Cache and Backend are optional.
	Transport transport.Transport
	Cache     cache.Cache
	Backend   backend.Backend

	Clock        clockwork.Clock
	PollInterval time.Duration
	Log          zerolog.Logger

	// Current returns the caller's view of the session. Polled snapshots are
	// diffed against it.
	Current func() *domain.Session
}

type Room struct {
	code    string
	tr      transport.Transport
	cache   cache.Cache
	clock   clockwork.Clock
	log     zerolog.Logger
	current func() *domain.Session
	handler Handler

	sub    transport.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Open starts delivering messages for c.Code to h until Close. A transport
// that cannot subscribe is logged and skipped.
func Open(ctx context.Context, c Config, h Handler) *Room {
	clk := c.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	interval := c.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	r := &Room{
		code:    c.Code,
		cache:   c.Cache,
		clock:   clk,
		log:     c.Log.With().Str("component", "room").Str("code", c.Code).Logger(),
		current: c.Current,
		handler: h,
	}

	ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if c.Transport != nil {
		sub, err := c.Transport.Subscribe(ctx, c.Code, r.deliver)
		if err != nil {
			r.log.Warn().Err(err).Msg("transport unavailable, falling back to polling")
		} else {
			r.tr, r.sub = c.Transport, sub
		}
	}

	if r.cache != nil && r.current != nil {
		r.wg.Add(1)
		go r.poll(ctx, clk.NewTicker(interval))
	}

	if c.Backend != nil && c.SessionID != "" && r.current != nil {
		r.wg.Add(1)
		go r.watch(ctx, c.Backend, c.SessionID)
	}

	return r
}

// Live reports whether messages are pushed by a transport. A subscription
// whose connection dropped is no longer live.
func (r *Room) Live() bool {
	if r.sub == nil {
		return false
	}

	if d, ok := r.sub.(interface{ Done() <-chan struct{} }); ok {
		select {
		case <-d.Done():
			return false
		default:
		}
	}
	return true
}

// Publish broadcasts m to the other processes of the room. Without a live
// transport it does nothing; peers then catch up from the cache.
func (r *Room) Publish(ctx context.Context, m domain.Message) {
	if r.tr == nil {
		r.log.Debug().Str("type", string(m.Type)).Msg("no live transport, message not sent")
		return
	}

	r.tr.Publish(ctx, m)
}

func (r *Room) Close() error {
	r.cancel()

	var err error
	if r.sub != nil {
		err = r.sub.Close()
	}

	r.wg.Wait()
	return err
}

func (r *Room) deliver(ctx context.Context, m domain.Message) {
	if m.Code != r.code {
		r.log.Debug().Str("other", m.Code).Msg("message for another room dropped")
		return
	}

	if !m.Type.Known() {
		r.log.Debug().Str("type", string(m.Type)).Msg("unknown message type ignored")
		return
	}

	r.handler(ctx, m)
}

func (r *Room) poll(ctx context.Context, t clockwork.Ticker) {
	defer r.wg.Done()
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.Chan():
			cached, err := r.cache.Get(ctx, r.code)
			if err != nil {
				r.log.Debug().Err(err).Msg("poll cache failed")
				continue
			}

			r.reconcile(ctx, cached)
		}
	}
}

func (r *Room) watch(ctx context.Context, b backend.Backend, sessionID string) {
	defer r.wg.Done()

	err := b.Watch(ctx, sessionID, func(s *domain.Session) {
		r.reconcile(ctx, s)
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("backend subscription ended")
	}
}

func (r *Room) reconcile(ctx context.Context, seen *domain.Session) {
	cur := r.current()
	if cur == nil || seen == nil {
		return
	}

	now := r.clock.Now()
	for _, m := range Diff(cur, seen, now) {
		r.deliver(ctx, m)
	}
}
