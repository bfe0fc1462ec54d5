// Package api exposes the relay over HTTP: the room WebSocket and read-only
// views of a room's cached session.
package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/victornm/quizsync/internal/backend"
	"github.com/victornm/quizsync/internal/cache"
	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/errors"
	"github.com/victornm/quizsync/internal/leaderboard"
	"github.com/victornm/quizsync/internal/relay"
)

const defaultTopN = 5

type Config struct {
	Router gin.IRouter
	Relay  *relay.Relay
	Cache  cache.Cache
	// Backend is consulted when the cache does not know a room.
	Backend backend.Backend
	Log     zerolog.Logger
}

type API struct {
	relay   *relay.Relay
	cache   cache.Cache
	backend backend.Backend
	log     zerolog.Logger
}

type Leaderboard struct {
	Code    string              `json:"code"`
	Status  domain.Status       `json:"status"`
	Entries []leaderboard.Entry `json:"entries"`
}

func New(c Config) *API {
	a := &API{
		relay:   c.Relay,
		cache:   c.Cache,
		backend: c.Backend,
		log:     c.Log.With().Str("component", "api").Logger(),
	}

	rooms := c.Router.Group("/rooms/:code")
	rooms.GET("/ws", a.Connect)
	rooms.GET("/session", a.GetSession)
	rooms.GET("/leaderboard", a.GetLeaderboard)
	rooms.GET("/results.csv", a.ExportResults)

	return a
}

func (a *API) GetSession(c *gin.Context) {
	s, err := a.session(c.Request.Context(), c.Param("code"))
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, s)
}

func (a *API) GetLeaderboard(c *gin.Context) {
	n := defaultTopN
	if q := c.Query("n"); q != "" {
		v, err := strconv.Atoi(q)
		if err != nil || v <= 0 {
			a.abort(c, errors.InvalidField("n", "n must be a positive integer"))
			return
		}
		n = v
	}

	s, err := a.session(c.Request.Context(), c.Param("code"))
	if err != nil {
		a.abort(c, err)
		return
	}

	c.JSON(http.StatusOK, Leaderboard{
		Code:    s.Code,
		Status:  s.Status,
		Entries: leaderboard.Top(s.Players, n),
	})
}

func (a *API) ExportResults(c *gin.Context) {
	s, err := a.session(c.Request.Context(), c.Param("code"))
	if err != nil {
		a.abort(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\""+s.Code+"-results.csv\"")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	if err := leaderboard.Export(c.Writer, s.Players); err != nil {
		a.log.Warn().Err(err).Str("code", s.Code).Msg("export results failed")
	}
}

// session reads the room from the cache, then from the backend.
func (a *API) session(ctx context.Context, raw string) (*domain.Session, error) {
	code, err := domain.ValidateCode(raw)
	if err != nil {
		return nil, err
	}

	if a.cache != nil {
		s, err := a.cache.Get(ctx, code)
		if err == nil || !errors.Is(err, errors.CodeNotFound) {
			return s, err
		}
	}

	if a.backend != nil {
		return a.backend.SessionByCode(ctx, code)
	}

	return nil, errors.NotFound("game not found: code=%s", code)
}

func (a *API) abort(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal || e.Code == errors.CodeUnavailable {
		a.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}

	c.AbortWithStatusJSON(e.HTTPStatusCode(), e)
}
