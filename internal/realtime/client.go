package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
)

const clientBuffer = 32

type Client struct {
	ID       uuid.UUID
	Identity Identity
	Outbound chan Message
	done     chan struct{}
	once     sync.Once
	Logger   *logger.Logger
}

func (c *Client) Done() <-chan struct{} { return c.done }
