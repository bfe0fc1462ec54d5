package telemetry

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// MonitorRedis instruments r with tracing and metrics, and traces every
// command to log at debug level.
func MonitorRedis(r redis.UniversalClient, log zerolog.Logger) error {
	if err := redisotel.InstrumentTracing(r); err != nil {
		return fmt.Errorf("instrument tracing: %w", err)
	}
	if err := redisotel.InstrumentMetrics(r); err != nil {
		return fmt.Errorf("instrument metrics: %w", err)
	}
	r.AddHook(redisLog{log: log.With().Str("component", "redis").Logger()})
	return nil
}

type redisLog struct {
	log zerolog.Logger
}

func (l redisLog) DialHook(hook redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := hook(ctx, network, addr)
		l.log.Debug().Err(err).
			Str("network", network).
			Str("addr", addr).
			Dur("took", time.Since(start)).
			Msg("dial")
		return conn, err
	}
}

func (l redisLog) ProcessHook(hook redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmd)
		l.log.Debug().Err(ignoreNil(err)).
			Str("cmd", cmd.Name()).
			Dur("took", time.Since(start)).
			Msg("process")
		return err
	}
}

func (l redisLog) ProcessPipelineHook(hook redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := hook(ctx, cmds)
		l.log.Debug().Err(ignoreNil(err)).
			Int("cmds", len(cmds)).
			Dur("took", time.Since(start)).
			Msg("pipeline")
		return err
	}
}

// redis.Nil is a miss, not a failure.
func ignoreNil(err error) error {
	if err == redis.Nil {
		return nil
	}
	return err
}
