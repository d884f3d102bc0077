package bus

import (
	"context"

	"github.com/yungbote/calcbridge-backend/internal/realtime"
)

// Bus fans notifications out across API instances; each instance forwards
// received messages into its local hub.
type Bus interface {
	Publish(ctx context.Context, msg realtime.Message) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.Message)) error
	Close() error
}
