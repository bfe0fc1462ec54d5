// Package cache keeps the last known session snapshot per room code. It is
// shared by every process attached to a room and backs both recovery and the
// polling fallback.
package cache

import (
	"context"
	"slices"
	"time"

	"github.com/victornm/quizsync/internal/domain"
	"github.com/victornm/quizsync/internal/errors"
)

type Cache interface {
	// Get returns the cached session, or a CodeNotFound error.
	Get(ctx context.Context, code string) (*domain.Session, error)
	Put(ctx context.Context, s *domain.Session) error
	// Update applies fn to the cached session and stores the result. fn may be
	// called more than once when a concurrent writer wins.
	Update(ctx context.Context, code string, fn func(s *domain.Session) error) (*domain.Session, error)
	Delete(ctx context.Context, code string) error
}

func notFound(code string) error {
	return errors.NotFound("game not found: code=%s", code)
}

// AddPlayer appends p to the cached roster unless its id is already there.
func AddPlayer(ctx context.Context, c Cache, code string, p domain.Player) (*domain.Session, error) {
	return c.Update(ctx, code, func(s *domain.Session) error {
		if !s.HasPlayer(p.ID) {
			s.Players = append(s.Players, p)
		}
		return nil
	})
}

func RemovePlayer(ctx context.Context, c Cache, code, id string) (*domain.Session, error) {
	return c.Update(ctx, code, func(s *domain.Session) error {
		s.Players = slices.DeleteFunc(s.Players, func(p domain.Player) bool { return p.ID == id })
		return nil
	})
}

// SetPlayerScore writes one player's score, leaving the rest of the session
// as the cache has it.
func SetPlayerScore(ctx context.Context, c Cache, code, id string, score int) (*domain.Session, error) {
	return c.Update(ctx, code, func(s *domain.Session) error {
		for i := range s.Players {
			if s.Players[i].ID == id {
				s.Players[i].Score = score
			}
		}
		return nil
	})
}

// SetProgress writes the host-owned fields.
func SetProgress(ctx context.Context, c Cache, code string, status domain.Status, index int, startedAt *time.Time) (*domain.Session, error) {
	return c.Update(ctx, code, func(s *domain.Session) error {
		s.Status = status
		s.CurrentQuestionIndex = index
		s.StartedAt = startedAt
		return nil
	})
}
