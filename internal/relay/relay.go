// Package relay fans protocol messages out between the WebSocket connections
// attached to the same room. It keeps no game state.
package relay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/domain"
)

const (
	outboxSize   = 256
	writeTimeout = 5 * time.Second
)

type Config struct {
	Log zerolog.Logger
	// Registerer receives the relay metrics. Defaults to the global registry.
	Registerer prometheus.Registerer
}

type Relay struct {
	log zerolog.Logger

	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	closed bool

	connections prometheus.Gauge
	messages    *prometheus.CounterVec
	dropped     *prometheus.CounterVec
}

type client struct {
	code string
	conn *websocket.Conn
	out  chan domain.Message
}

func New(c Config) *Relay {
	reg := c.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Relay{
		log:   c.Log.With().Str("component", "relay").Logger(),
		rooms: make(map[string]map[*client]struct{}),

		connections: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "quizsync",
			Subsystem: "relay",
			Name:      "connections",
			Help:      "Number of open room connections.",
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizsync",
			Subsystem: "relay",
			Name:      "messages_total",
			Help:      "Messages relayed, by type.",
		}, []string{"type"}),
		dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizsync",
			Subsystem: "relay",
			Name:      "dropped_total",
			Help:      "Messages not relayed, by reason.",
		}, []string{"reason"}),
	}
}

// Serve relays messages from conn to the other connections of the room until
// conn is closed or ctx is done. The caller owns conn.
func (r *Relay) Serve(ctx context.Context, code string, conn *websocket.Conn) error {
	c := &client{code: code, conn: conn, out: make(chan domain.Message, outboxSize)}
	if !r.join(c) {
		return errors.New("relay closed")
	}
	defer r.leave(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log := r.log.With().Str("code", code).Logger()
	log.Debug().Msg("connection opened")

	go r.write(ctx, cancel, c, log)

	for {
		var m domain.Message
		if err := wsjson.Read(ctx, conn, &m); err != nil {
			if s := websocket.CloseStatus(err); s == websocket.StatusNormalClosure || s == websocket.StatusGoingAway || ctx.Err() != nil {
				log.Debug().Msg("connection closed")
				return nil
			}
			return err
		}

		if m.Code != code {
			r.dropped.WithLabelValues("code_mismatch").Inc()
			log.Debug().Str("other", m.Code).Msg("frame for another room dropped")
			continue
		}

		r.broadcast(c, m, log)
	}
}

func (r *Relay) write(ctx context.Context, cancel context.CancelFunc, c *client, log zerolog.Logger) {
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-c.out:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, c.conn, m)
			wcancel()

			if err != nil {
				log.Debug().Err(err).Msg("write failed")
				return
			}
		}
	}
}

func (r *Relay) broadcast(from *client, m domain.Message, log zerolog.Logger) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	r.messages.WithLabelValues(string(m.Type)).Inc()

	for c := range r.rooms[from.code] {
		if c == from {
			continue
		}

		select {
		case c.out <- m:
		default:
			r.dropped.WithLabelValues("slow_consumer").Inc()
			log.Warn().Str("type", string(m.Type)).Msg("outbox full, message dropped")
		}
	}
}

func (r *Relay) join(c *client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}

	if r.rooms[c.code] == nil {
		r.rooms[c.code] = make(map[*client]struct{})
	}
	r.rooms[c.code][c] = struct{}{}
	r.connections.Inc()

	return true
}

func (r *Relay) leave(c *client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms[c.code], c)
	if len(r.rooms[c.code]) == 0 {
		delete(r.rooms, c.code)
	}
	r.connections.Dec()
}

// Clients returns the number of connections attached to code.
func (r *Relay) Clients(code string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[code])
}

// Close disconnects every client and refuses new ones.
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	var conns []*websocket.Conn
	for _, room := range r.rooms {
		for c := range room {
			conns = append(conns, c.conn)
		}
	}
	r.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(websocket.StatusGoingAway, "relay shutting down")
	}
}
