package temporalx

import (
	"strings"
	"time"

	"github.com/yungbote/calcbridge-backend/internal/platform/envutil"
)

type Config struct {
	Address   string `env:"TEMPORAL_ADDRESS"`
	Namespace string `env:"TEMPORAL_NAMESPACE" envDefault:"calcbridge"`
	TaskQueue string `env:"TEMPORAL_TASK_QUEUE" envDefault:"calcbridge"`

	ClientCertPath string `env:"TEMPORAL_CLIENT_CERT_PATH"`
	ClientKeyPath  string `env:"TEMPORAL_CLIENT_KEY_PATH"`
	ClientCAPath   string `env:"TEMPORAL_CLIENT_CA_PATH"`

	DialTimeout    time.Duration `env:"TEMPORAL_DIAL_TIMEOUT" envDefault:"5s"`
	DialMaxWait    time.Duration `env:"TEMPORAL_DIAL_MAX_WAIT" envDefault:"60s"`
	DialBackoff    time.Duration `env:"TEMPORAL_DIAL_BACKOFF" envDefault:"250ms"`
	DialBackoffMax time.Duration `env:"TEMPORAL_DIAL_BACKOFF_MAX" envDefault:"5s"`

	AutoRegisterNamespace bool `env:"TEMPORAL_AUTO_REGISTER_NAMESPACE" envDefault:"false"`
	RetentionDays         int  `env:"TEMPORAL_NAMESPACE_RETENTION_DAYS" envDefault:"7"`

	WorkerConcurrency int `env:"TEMPORAL_WORKER_CONCURRENCY" envDefault:"4"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := envutil.Parse(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Address = strings.TrimSpace(cfg.Address)
	cfg.Namespace = stringsOr(cfg.Namespace, "calcbridge")
	cfg.TaskQueue = stringsOr(cfg.TaskQueue, "calcbridge")
	return cfg, nil
}

// Enabled reports whether a Temporal frontend is configured.
func (c Config) Enabled() bool { return c.Address != "" }

func (c Config) hasTLS() bool {
	return c.ClientCertPath != "" || c.ClientKeyPath != "" || c.ClientCAPath != ""
}

func stringsOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
