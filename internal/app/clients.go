package app

import (
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/yungbote/calcbridge-backend/internal/clients/redis"
	"github.com/yungbote/calcbridge-backend/internal/clients/upstream"
	"github.com/yungbote/calcbridge-backend/internal/platform/logger"
	"github.com/yungbote/calcbridge-backend/internal/temporalx"
)

type Clients struct {
	// Redis and Temporal are nil when not configured.
	Redis    *goredis.Client
	Temporal temporalsdkclient.Client
	Upstream upstream.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var out Clients
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		out.Redis = rdb
	} else {
		log.Info("REDIS_ADDR not set; using in-process stores and local fan-out")
	}

	up, err := upstream.New(log, cfg.Upstream)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init upstream client: %w", err)
	}
	out.Upstream = up

	tc, err := temporalx.NewClient(log, cfg.Temporal)
	if err != nil {
		out.Close()
		return Clients{}, fmt.Errorf("init temporal client: %w", err)
	}
	out.Temporal = tc

	return out, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Temporal != nil {
		c.Temporal.Close()
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
