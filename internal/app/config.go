package app

import (
	"fmt"
	"time"

	"github.com/yungbote/calcbridge-backend/internal/clients/redis"
	"github.com/yungbote/calcbridge-backend/internal/clients/upstream"
	"github.com/yungbote/calcbridge-backend/internal/data/db"
	"github.com/yungbote/calcbridge-backend/internal/observability"
	"github.com/yungbote/calcbridge-backend/internal/platform/envutil"
	"github.com/yungbote/calcbridge-backend/internal/temporalx"
)

type Config struct {
	Port     string `env:"PORT" envDefault:"8080"`
	LogMode  string `env:"LOG_MODE" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL"`

	JWTSecretKey string   `env:"JWT_SECRET_KEY,notEmpty"`
	CORSOrigins  []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	CleanupGrace    time.Duration `env:"CALC_CLEANUP_GRACE" envDefault:"3s"`
	PendingQueryTTL time.Duration `env:"PENDING_QUERY_TTL" envDefault:"1h"`

	DataStoreTTL           time.Duration `env:"DATASTORE_TTL" envDefault:"24h"`
	DataStoreForwardDelete bool          `env:"DATASTORE_FORWARD_DELETE" envDefault:"false"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	Postgres db.PostgresConfig
	Redis    redis.Config
	Upstream upstream.Config
	Temporal temporalx.Config
	Otel     observability.OtelConfig
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envutil.Parse(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.CleanupGrace < 0 {
		return Config{}, fmt.Errorf("CALC_CLEANUP_GRACE must not be negative")
	}
	return cfg, nil
}

func (c Config) Addr() string { return ":" + c.Port }
