package bus

import (
	"context"

	"github.com/yungbote/mediaforge-backend/internal/realtime"
)

// Bus relays job stream messages between backend instances.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}
