package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/domain"
)

const writeTimeout = 5 * time.Second

type WebSocketConfig struct {
	// URL of the relay, e.g. ws://localhost:8080.
	URL        string
	HTTPClient *http.Client
	Log        zerolog.Logger
}

// WebSocket talks to a relay server which fans messages out to the other
// connections of the same room.
type WebSocket struct {
	url    string
	client *http.Client
	log    zerolog.Logger

	mu     sync.Mutex
	conns  map[string]*wsConn
	closed bool
}

func NewWebSocket(c WebSocketConfig) *WebSocket {
	return &WebSocket{
		url:    strings.TrimRight(c.URL, "/"),
		client: c.HTTPClient,
		log:    c.Log.With().Str("component", "transport.websocket").Logger(),
		conns:  make(map[string]*wsConn),
	}
}

func (w *WebSocket) Publish(_ context.Context, m domain.Message) {
	w.mu.Lock()
	conn := w.conns[m.Code]
	w.mu.Unlock()

	if conn == nil {
		w.log.Debug().Str("code", m.Code).Str("type", string(m.Type)).Msg("not attached, message dropped")
		return
	}

	select {
	case conn.out <- m:
	case <-conn.ctx.Done():
	default:
		w.log.Warn().Str("code", m.Code).Str("type", string(m.Type)).Msg("outbox full, message dropped")
	}
}

func (w *WebSocket) Subscribe(ctx context.Context, code string, h Handler) (Subscription, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil, fmt.Errorf("transport closed")
	}
	if _, ok := w.conns[code]; ok {
		return nil, fmt.Errorf("already subscribed to %s", code)
	}

	c, _, err := websocket.Dial(ctx, fmt.Sprintf("%s/rooms/%s/ws", w.url, code), &websocket.DialOptions{
		HTTPClient: w.client,
	})
	if err != nil {
		return nil, fmt.Errorf("dial relay: %w", err)
	}

	cctx, cancel := context.WithCancel(context.Background())
	conn := &wsConn{
		ws:     w,
		code:   code,
		c:      c,
		out:    make(chan domain.Message, outboxSize),
		ctx:    cctx,
		cancel: cancel,
	}

	conn.wg.Add(2)
	go conn.writePump()
	go conn.readPump(h)

	w.conns[code] = conn
	return conn, nil
}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	w.closed = true
	conns := make([]*wsConn, 0, len(w.conns))
	for _, c := range w.conns {
		conns = append(conns, c)
	}
	w.mu.Unlock()

	for _, c := range conns {
		_ = c.Close()
	}

	return nil
}

type wsConn struct {
	ws   *WebSocket
	code string
	c    *websocket.Conn
	out  chan domain.Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func (c *wsConn) writePump() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case m := <-c.out:
			ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
			err := wsjson.Write(ctx, c.c, m)
			cancel()

			if err != nil {
				c.ws.log.Warn().Err(err).Str("code", c.code).Str("type", string(m.Type)).Msg("write failed")
				c.cancel()
				return
			}
		}
	}
}

func (c *wsConn) readPump(h Handler) {
	defer c.wg.Done()
	defer c.detach()
	defer c.cancel()

	for {
		var m domain.Message
		if err := wsjson.Read(c.ctx, c.c, &m); err != nil {
			if c.ctx.Err() == nil {
				c.ws.log.Warn().Err(err).Str("code", c.code).Msg("connection lost")
			}
			return
		}

		h(c.ctx, m)
	}
}

// Done is closed once the connection is lost or closed.
func (c *wsConn) Done() <-chan struct{} {
	return c.ctx.Done()
}

// detach frees the room code so it can be subscribed again.
func (c *wsConn) detach() {
	c.ws.mu.Lock()
	if c.ws.conns[c.code] == c {
		delete(c.ws.conns, c.code)
	}
	c.ws.mu.Unlock()
}

func (c *wsConn) Close() error {
	c.once.Do(func() {
		c.detach()
		c.cancel()
		_ = c.c.Close(websocket.StatusNormalClosure, "")
		c.wg.Wait()
	})
	return nil
}
