// Package backend is the optional durable store shared by every process of a
// deployment. Game processes treat it as a slower, fallible peer: any error
// is logged and the cache and transport path carries on without it.
package backend

import (
	"context"

	"github.com/victornm/quizsync/internal/domain"
)

type Backend interface {
	// SessionByCode returns the session with its quiz and roster, or a
	// CodeNotFound error.
	SessionByCode(ctx context.Context, code string) (*domain.Session, error)
	SaveQuiz(ctx context.Context, q domain.Quiz) error
	// CreateSession stores the session together with its quiz snapshot.
	CreateSession(ctx context.Context, s *domain.Session) error
	// UpdateSession writes the host-owned fields: status, question index and
	// start time.
	UpdateSession(ctx context.Context, s *domain.Session) error
	JoinGame(ctx context.Context, sessionID string, p domain.Player) error
	RemovePlayer(ctx context.Context, playerID string) error
	UpdatePlayerScore(ctx context.Context, playerID string, score int) error
	SubmitAnswer(ctx context.Context, a domain.PlayerAnswer) error
	// Watch calls fn with a fresh copy of the session each time its row or
	// roster changes. It blocks until ctx is done.
	Watch(ctx context.Context, sessionID string, fn func(s *domain.Session)) error
}
