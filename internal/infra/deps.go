package infra

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/backend"
	"github.com/victornm/quizsync/internal/cache"
	"github.com/victornm/quizsync/internal/config"
	"github.com/victornm/quizsync/internal/transport"
)

const (
	KindMemory    = "memory"
	KindRedis     = "redis"
	KindWebSocket = "websocket"
)

// Stack selects the collaborators of a game process.
type Stack struct {
	Redis     config.Redis
	Postgres  config.Postgres
	Transport config.Transport
	Cache     config.Cache
}

// Deps holds the opened collaborators. Transport and Backend may be nil.
type Deps struct {
	Cache     cache.Cache
	Transport transport.Transport
	Backend   backend.Backend

	closers []func()
}

// Open connects everything s asks for. Only the cache is required: an
// unreachable transport or backend is logged and left nil, the processes
// then fall back to polling the cache. A failure closes what was already
// opened.
func Open(ctx context.Context, s Stack, log zerolog.Logger) (_ *Deps, err error) {
	d := &Deps{}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	transportKind := s.Transport.Kind

	var rc redis.UniversalClient
	if s.Cache.Kind == KindRedis || transportKind == KindRedis {
		rc, err = ConnectRedis(ctx, s.Redis, log)
		switch {
		case err == nil:
			d.closers = append(d.closers, func() { _ = rc.Close() })
		case s.Cache.Kind == KindRedis:
			return nil, fmt.Errorf("redis: %w", err)
		default:
			log.Warn().Err(err).Msg("redis unavailable, running without a live transport")
			transportKind, err = "", nil
		}
	}

	switch s.Cache.Kind {
	case KindRedis:
		d.Cache = cache.NewRedis(cache.RedisConfig{Redis: rc, Prefix: s.Redis.Prefix, TTL: s.Redis.TTL})
	case KindMemory, "":
		d.Cache = cache.NewMemory()
	default:
		return nil, fmt.Errorf("unknown cache kind %q", s.Cache.Kind)
	}

	switch transportKind {
	case KindRedis:
		t := transport.NewRedis(transport.RedisConfig{Redis: rc, Prefix: s.Redis.Prefix, Log: log})
		d.Transport = t
		d.closers = append(d.closers, func() { _ = t.Close() })
	case KindWebSocket:
		t := transport.NewWebSocket(transport.WebSocketConfig{URL: s.Transport.RelayURL, Log: log})
		d.Transport = t
		d.closers = append(d.closers, func() { _ = t.Close() })
	case KindMemory:
		d.Transport = transport.NewHub(log).Endpoint()
	case "":
	default:
		return nil, fmt.Errorf("unknown transport kind %q", transportKind)
	}

	if s.Postgres.Enabled() {
		db, perr := ConnectPostgres(ctx, s.Postgres, log)
		if perr != nil {
			log.Warn().Err(perr).Msg("postgres unavailable, running without a backend")
			return d, nil
		}
		d.closers = append(d.closers, db.Close)
		d.Backend = backend.NewPostgres(backend.Config{DB: db, Log: log})
	}

	return d, nil
}

// Close releases the collaborators in reverse order of opening.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}
