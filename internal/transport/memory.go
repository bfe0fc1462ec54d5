package transport

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/domain"
)

const (
	defaultPoolSize = 10000
	defaultTimeout  = 30 * time.Second
)

// Hub connects in-process endpoints, standing in for a broadcast channel
// shared by processes on one machine.
type Hub struct {
	log  zerolog.Logger
	pool chan struct{}
	wg   *sync.WaitGroup

	mu   sync.RWMutex
	seq  int
	subs map[string]map[int]*memorySub
}

// NewHub creates a hub. Caller should call Wait to drain in-flight deliveries.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:  log.With().Str("component", "transport.memory").Logger(),
		pool: make(chan struct{}, defaultPoolSize),
		wg:   new(sync.WaitGroup),
		subs: make(map[string]map[int]*memorySub),
	}
}

// Endpoint returns a Transport for one process attached to the hub.
func (h *Hub) Endpoint() *Memory {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	return &Memory{hub: h, id: h.seq}
}

// Wait blocks until every dispatched message has been handled.
func (h *Hub) Wait() {
	h.wg.Wait()
}

func (h *Hub) publish(ctx context.Context, from int, m domain.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, s := range h.subs[m.Code] {
		if s.owner == from {
			continue
		}
		h.dispatch(ctx, s.h, m)
	}
}

func (h *Hub) dispatch(ctx context.Context, handler Handler, m domain.Message) {
	h.wg.Add(1)

	h.pool <- struct{}{}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultTimeout)
		defer func() {
			if r := recover(); r != nil {
				h.log.Error().
					Err(fmt.Errorf("%v, stack: %s", r, debug.Stack())).
					Str("type", string(m.Type)).
					Msg("handler panic")
			}

			cancel()
			<-h.pool
			h.wg.Done()
		}()

		handler(ctx, m)
	}()
}

type memorySub struct {
	hub   *Hub
	code  string
	key   int
	owner int
	h     Handler
	once  sync.Once
}

func (s *memorySub) Close() error {
	s.once.Do(func() {
		s.hub.mu.Lock()
		defer s.hub.mu.Unlock()

		delete(s.hub.subs[s.code], s.key)
	})
	return nil
}

// Memory is one endpoint of a Hub.
type Memory struct {
	hub *Hub
	id  int

	mu     sync.Mutex
	subs   []*memorySub
	closed bool
}

func (e *Memory) Publish(ctx context.Context, m domain.Message) {
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()

	if closed {
		return
	}

	e.hub.publish(ctx, e.id, m)
}

func (e *Memory) Subscribe(_ context.Context, code string, h Handler) (Subscription, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, fmt.Errorf("transport closed")
	}

	e.hub.mu.Lock()
	e.hub.seq++
	s := &memorySub{hub: e.hub, code: code, key: e.hub.seq, owner: e.id, h: h}
	if e.hub.subs[code] == nil {
		e.hub.subs[code] = make(map[int]*memorySub)
	}
	e.hub.subs[code][s.key] = s
	e.hub.mu.Unlock()

	e.subs = append(e.subs, s)
	return s, nil
}

func (e *Memory) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	for _, s := range e.subs {
		_ = s.Close()
	}
	e.subs = nil

	return nil
}
