package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/errors"
)

const (
	defaultTTL       = 6 * time.Hour
	maxUpdateRetries = 10
)

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

type RedisConfig struct {
	Redis  redis.UniversalClient
	Prefix string
	TTL    time.Duration
}

// Redis stores sessions as JSON strings, one key per room code.
type Redis struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedis(c RedisConfig) *Redis {
	ttl := c.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	return &Redis{
		redis:  c.Redis,
		prefix: c.Prefix,
		ttl:    ttl,
	}
}

func (r *Redis) Get(ctx context.Context, code string) (*domain.Session, error) {
	return r.get(ctx, r.redis, code)
}

func (r *Redis) Put(ctx context.Context, s *domain.Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", s.Code, err)
	}

	if err := r.redis.Set(ctx, r.key(s.Code), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("set session %s: %w", s.Code, err)
	}

	return nil
}

// Update runs fn under WATCH so that a concurrent writer forces a retry
// instead of being overwritten.
func (r *Redis) Update(ctx context.Context, code string, fn func(s *domain.Session) error) (*domain.Session, error) {
	key := r.key(code)

	var out *domain.Session
	txf := func(tx *redis.Tx) error {
		s, err := r.get(ctx, tx, code)
		if err != nil {
			return err
		}

		if err := fn(s); err != nil {
			return err
		}

		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode session %s: %w", code, err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, b, r.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		out = s
		return nil
	}

	for range maxUpdateRetries {
		err := r.redis.Watch(ctx, txf, key)
		if stderrors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return out, nil
	}

	return nil, errors.New(errors.CodeUnavailable,
		errors.WithMessagef("update session %s: too much contention", code))
}

func (r *Redis) Delete(ctx context.Context, code string) error {
	if err := r.redis.Del(ctx, r.key(code)).Err(); err != nil {
		return fmt.Errorf("delete session %s: %w", code, err)
	}

	return nil
}

func (r *Redis) get(ctx context.Context, c getter, code string) (*domain.Session, error) {
	b, err := c.Get(ctx, r.key(code)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, notFound(code)
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", code, err)
	}

	var s domain.Session
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", code, err)
	}

	return &s, nil
}

func (r *Redis) key(code string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, code)
}
