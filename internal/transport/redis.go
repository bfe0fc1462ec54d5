package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/domain"
)

const publishTimeout = 5 * time.Second

type RedisConfig struct {
	Redis  redis.UniversalClient
	Prefix string
	Log    zerolog.Logger
}

// envelope tags a message with its sender so that subscribers can drop their
// own echoes.
type envelope struct {
	Origin  string         `json:"origin"`
	Message domain.Message `json:"message"`
}

// Redis broadcasts over Redis Pub/Sub, one channel per room.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	origin string
	log    zerolog.Logger

	out  chan domain.Message
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once

	mu   sync.Mutex
	subs []*redisSub
}

func NewRedis(c RedisConfig) *Redis {
	r := &Redis{
		redis:  c.Redis,
		prefix: c.Prefix,
		origin: uuid.NewString(),
		log:    c.Log.With().Str("component", "transport.redis").Logger(),
		out:    make(chan domain.Message, outboxSize),
		done:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.pump()

	return r
}

func (r *Redis) Publish(_ context.Context, m domain.Message) {
	select {
	case <-r.done:
		return
	default:
	}

	select {
	case r.out <- m:
	default:
		r.log.Warn().Str("code", m.Code).Str("type", string(m.Type)).Msg("outbox full, message dropped")
	}
}

// pump publishes queued messages one at a time so that a single sender's
// messages leave in order.
func (r *Redis) pump() {
	defer r.wg.Done()

	for {
		select {
		case <-r.done:
			return
		case m := <-r.out:
			if err := r.publish(m); err != nil {
				r.log.Warn().Err(err).Str("code", m.Code).Str("type", string(m.Type)).Msg("publish failed")
			}
		}
	}
}

func (r *Redis) publish(m domain.Message) error {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	b, err := json.Marshal(envelope{Origin: r.origin, Message: m})
	if err != nil {
		return fmt.Errorf("marshal %s: %v", m.Type, err)
	}

	return r.redis.Publish(ctx, r.channel(m.Code), b).Err()
}

func (r *Redis) Subscribe(ctx context.Context, code string, h Handler) (Subscription, error) {
	ps := r.redis.Subscribe(ctx, r.channel(code))

	// Wait for the confirmation so that an unreachable server is reported here.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", code, err)
	}

	s := &redisSub{ps: ps, done: make(chan struct{})}
	go s.run(ctx, r, h)

	r.mu.Lock()
	r.subs = append(r.subs, s)
	r.mu.Unlock()

	return s, nil
}

// Close stops publishing and closes every subscription.
func (r *Redis) Close() error {
	r.once.Do(func() { close(r.done) })
	r.wg.Wait()

	r.mu.Lock()
	subs := r.subs
	r.subs = nil
	r.mu.Unlock()

	for _, s := range subs {
		_ = s.Close()
	}

	return nil
}

func (r *Redis) channel(code string) string {
	return fmt.Sprintf("%s:room:%s", r.prefix, code)
}

type redisSub struct {
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

func (s *redisSub) run(ctx context.Context, r *Redis, h Handler) {
	defer close(s.done)

	for msg := range s.ps.Channel() {
		var e envelope
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			r.log.Warn().Err(err).Str("channel", msg.Channel).Msg("malformed message dropped")
			continue
		}

		if e.Origin == r.origin {
			continue
		}

		h(ctx, e.Message)
	}
}

func (s *redisSub) Close() error {
	var err error
	s.once.Do(func() {
		err = s.ps.Close()
		<-s.done
	})
	return err
}
