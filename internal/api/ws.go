package api

import (
	"github.com/coder/websocket"
	"github.com/gin-gonic/gin"

	"github.com/victornm/quizsync/internal/domain"
)

// Connect upgrades the request and attaches it to the room's relay.
func (a *API) Connect(c *gin.Context) {
	code, err := domain.ValidateCode(c.Param("code"))
	if err != nil {
		a.abort(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		a.log.Debug().Err(err).Str("code", code).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	if err := a.relay.Serve(c.Request.Context(), code, conn); err != nil {
		a.log.Debug().Err(err).Str("code", code).Msg("connection ended")
	}
}
