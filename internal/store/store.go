// Package store holds the session state owned by one host or player process.
//
// Every mutation publishes a new Snapshot; a snapshot is never modified after
// it has been published, so readers may compare snapshots by pointer to detect
// change. Mutations that change nothing keep the current snapshot.
package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/victornm/quizsync/internal/domain"
)

// Snapshot is the state visible to one viewer. Me, HasAnswered and the
// last-answer fields are per-viewer and never travel on the wire.
type Snapshot struct {
	Version           uint64
	Session           *domain.Session
	Me                *domain.Player
	HasAnswered       bool
	LastAnswerCorrect *bool
	LastPointsEarned  int
}

type Store struct {
	mu  sync.Mutex
	cur atomic.Pointer[Snapshot]
}

func New() *Store {
	s := &Store{}
	s.cur.Store(&Snapshot{})
	return s
}

// Snapshot returns the current snapshot. Callers must not modify it.
func (s *Store) Snapshot() *Snapshot {
	return s.cur.Load()
}

// Session returns the current session, or nil before one is loaded.
func (s *Store) Session() *domain.Session {
	return s.cur.Load().Session
}

// Replace swaps the whole session.
func (s *Store) Replace(sess *domain.Session) *Snapshot {
	return s.update(func(n *Snapshot) bool {
		n.Session = sess.Clone()
		return true
	})
}

// SetMe records which player this process is.
func (s *Store) SetMe(p domain.Player) *Snapshot {
	return s.update(func(n *Snapshot) bool {
		n.Me = &p
		return true
	})
}

// AddPlayer appends p to the roster unless a player with the same id is
// already present.
func (s *Store) AddPlayer(p domain.Player) *Snapshot {
	return s.update(func(n *Snapshot) bool {
		if n.Session == nil || n.Session.HasPlayer(p.ID) {
			return false
		}

		n.Session = n.Session.Clone()
		n.Session.Players = append(n.Session.Players, p)
		return true
	})
}

func (s *Store) RemovePlayer(id string) *Snapshot {
	return s.update(func(n *Snapshot) bool {
		if n.Session == nil || !n.Session.HasPlayer(id) {
			return false
		}

		sess := n.Session.Clone()
		players := sess.Players[:0]
		for _, p := range sess.Players {
			if p.ID != id {
				players = append(players, p)
			}
		}
		sess.Players = players
		n.Session = sess
		return true
	})
}

// UpdatePlayerScore sets the score of one player, mirroring it into Me when
// the id is the viewer's own.
func (s *Store) UpdatePlayerScore(id string, score int) *Snapshot {
	return s.update(func(n *Snapshot) bool {
		changed := false

		if n.Session != nil {
			if p, ok := n.Session.Player(id); ok && p.Score != score {
				sess := n.Session.Clone()
				for i := range sess.Players {
					if sess.Players[i].ID == id {
						sess.Players[i].Score = score
					}
				}
				n.Session = sess
				changed = true
			}
		}

		if n.Me != nil && n.Me.ID == id && n.Me.Score != score {
			me := *n.Me
			me.Score = score
			n.Me = &me
			changed = true
		}

		return changed
	})
}

// NextQuestion advances the question pointer and clears the viewer's answer.
func (s *Store) NextQuestion() *Snapshot {
	return s.update(func(n *Snapshot) bool {
		if n.Session == nil {
			return false
		}

		n.Session = n.Session.Clone()
		n.Session.CurrentQuestionIndex++
		clearAnswer(n)
		return true
	})
}

// Start moves the session out of the lobby, stamping when it began.
func (s *Store) Start(at time.Time) *Snapshot {
	return s.update(func(n *Snapshot) bool {
		if n.Session == nil || n.Session.Status != domain.StatusWaiting {
			return false
		}

		n.Session = n.Session.Clone()
		n.Session.Status = domain.StatusPlaying
		n.Session.StartedAt = &at
		return true
	})
}

func (s *Store) SetStatus(status domain.Status) *Snapshot {
	return s.update(func(n *Snapshot) bool {
		if n.Session == nil || n.Session.Status == status {
			return false
		}

		n.Session = n.Session.Clone()
		n.Session.Status = status
		return true
	})
}

// RecordAnswer captures the viewer's verdict at submission time.
func (s *Store) RecordAnswer(correct bool, points int) *Snapshot {
	return s.update(func(n *Snapshot) bool {
		n.HasAnswered = true
		n.LastAnswerCorrect = &correct
		n.LastPointsEarned = points
		return true
	})
}

// ClearAnswer forgets the viewer's answer when a new question begins.
func (s *Store) ClearAnswer() *Snapshot {
	return s.update(func(n *Snapshot) bool {
		if !n.HasAnswered && n.LastAnswerCorrect == nil && n.LastPointsEarned == 0 {
			return false
		}

		clearAnswer(n)
		return true
	})
}

// Reset returns the store to its empty state.
func (s *Store) Reset() *Snapshot {
	return s.update(func(n *Snapshot) bool {
		*n = Snapshot{Version: n.Version}
		return true
	})
}

func (s *Store) update(fn func(n *Snapshot) bool) *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.cur.Load()
	next := *cur
	if !fn(&next) {
		return cur
	}

	next.Version = cur.Version + 1
	s.cur.Store(&next)
	return &next
}

func clearAnswer(n *Snapshot) {
	n.HasAnswered = false
	n.LastAnswerCorrect = nil
	n.LastPointsEarned = 0
}
