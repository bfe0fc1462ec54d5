// Package server runs the relay: room WebSockets plus the read-only HTTP views
// of cached sessions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/victornm/quizsync/internal/api"
	"github.com/victornm/quizsync/internal/config"
	"github.com/victornm/quizsync/internal/infra"
	"github.com/victornm/quizsync/internal/relay"
)

type Config struct {
	Log      config.Log
	HTTP     config.HTTP
	Redis    config.Redis
	Postgres config.Postgres
	Cache    config.Cache
}

type Server struct {
	c   Config
	log zerolog.Logger

	deps  *infra.Deps
	relay *relay.Relay

	http *http.Server
}

func Init(c Config, log zerolog.Logger) (*Server, error) {
	s := &Server{c: c, log: log.With().Str("component", "server").Logger()}

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	// The relay reads sessions the processes write. Without a shared Redis
	// it can only see its own, empty, memory cache.
	stack := infra.Stack{
		Redis:    s.c.Redis,
		Postgres: s.c.Postgres,
		Cache:    s.c.Cache,
	}
	if stack.Cache.Kind == "" && len(s.c.Redis.Addrs) > 0 {
		stack.Cache.Kind = infra.KindRedis
	}

	deps, err := infra.Open(context.Background(), stack, s.log)
	if err != nil {
		return err
	}
	s.deps = deps

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.relay = relay.New(relay.Config{Log: s.log})

	api.New(api.Config{
		Router:  e,
		Relay:   s.relay,
		Cache:   s.deps.Cache,
		Backend: s.deps.Backend,
		Log:     s.log,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	var eg errgroup.Group
	eg.Go(func() error {
		s.log.Info().Msgf("HTTP listening on port %d", s.c.HTTP.Port)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		s.log.Error().Err(err).Msg("shutdown with error")
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Hijacked WebSocket connections are not tracked by http.Server.
	s.relay.Close()
	if err := s.http.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("shutdown HTTP failed")
	}

	s.deps.Close()

	s.log.Info().Msg("shutdown completed")
}
