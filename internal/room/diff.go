package room

import (
	"time"

	"github.com/victornm/quizsync/internal/domain"
)

// Diff returns the messages that would have moved cur towards seen had the
// matching broadcasts been received. Scores are not compared.
func Diff(cur, seen *domain.Session, now time.Time) []domain.Message {
	var out []domain.Message

	msg := func(t domain.MessageType) {
		m, err := domain.NewSessionMessage(t, seen, nil, now)
		if err == nil {
			out = append(out, m)
		}
	}

	if joined(cur, seen) {
		msg(domain.MessagePlayerJoined)
	}

	if joined(seen, cur) {
		msg(domain.MessagePlayerLeft)
	}

	switch {
	case seen.Status == domain.StatusPlaying && cur.Status == domain.StatusWaiting:
		msg(domain.MessageGameStarted)
	case seen.Status == domain.StatusFinished && cur.Status != domain.StatusFinished:
		msg(domain.MessageGameUpdated)
	}

	return out
}

// joined reports whether b has a player a lacks.
func joined(a, b *domain.Session) bool {
	for _, p := range b.Players {
		if !a.HasPlayer(p.ID) {
			return true
		}
	}
	return false
}
