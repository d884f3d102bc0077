package envutil

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Parse loads tagged struct fields from the environment.
func Parse(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
