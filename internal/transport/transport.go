// Package transport broadcasts protocol messages between the processes
// attached to a room. Delivery is best effort: messages may be lost,
// duplicated or reordered across publishers, and a sender never receives its
// own messages.
package transport

import (
	"context"

	"github.com/victornm/quizsync/internal/domain"
)

// Handler receives one inbound message. Handlers of one subscription may be
// called concurrently.
type Handler func(ctx context.Context, m domain.Message)

type Subscription interface {
	Close() error
}

type Transport interface {
	// Publish hands m to the transport and returns without waiting for
	// delivery. Failures are logged, never returned.
	Publish(ctx context.Context, m domain.Message)
	Subscribe(ctx context.Context, code string, h Handler) (Subscription, error)
	Close() error
}

const outboxSize = 256
