package envutil

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Grace time.Duration `env:"CALCBRIDGE_TEST_GRACE" envDefault:"3s"`
	Port  int           `env:"CALCBRIDGE_TEST_PORT" envDefault:"8080"`
}

func TestParseDefaults(t *testing.T) {
	var cfg envTestConfig
	if err := Parse(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Grace != 3*time.Second || cfg.Port != 8080 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseError(t *testing.T) {
	t.Setenv("CALCBRIDGE_TEST_PORT", "not-an-int")
	var cfg envTestConfig
	err := Parse(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}
