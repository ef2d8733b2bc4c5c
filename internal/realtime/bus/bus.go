package bus

import (
	"context"

	"github.com/citrusqa/bitacora-backend/internal/realtime"
)

// Bus fans SSE messages across processes so every instance's hub sees every
// event regardless of which instance produced it.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Close() error
}
