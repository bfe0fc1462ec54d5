// Package infra opens connections to the external stores.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/config"
	"github.com/victornm/quizsync/internal/telemetry"
)

const connectTimeout = 10 * time.Second

func ConnectRedis(ctx context.Context, c config.Redis, log zerolog.Logger) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    c.Addrs,
		Password: c.Pass,
	})

	if err := telemetry.MonitorRedis(r, log); err != nil {
		return nil, fmt.Errorf("monitor: %w", err)
	}

	if err := r.Ping(ctx).Err(); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Info().Strs("addrs", c.Addrs).Msg("redis connected")
	return r, nil
}

func ConnectPostgres(ctx context.Context, c config.Postgres, log zerolog.Logger) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	cc, err := pgxpool.ParseConfig(c.URL())
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	log.Info().Str("addr", c.Addr).Str("db", c.Name).Msg("postgres connected")
	return db, nil
}
