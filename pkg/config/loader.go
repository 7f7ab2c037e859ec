package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by config structs that check their own invariants
// after parsing.
type Validator interface {
	Validate() error
}

// Load parses environment variables into the provided struct and, when the
// struct implements Validator, validates the result.
//
// Example:
//
//	type Config struct {
//	    Port          int           `env:"SEARCH_HTTP_PORT" envDefault:"8080"`
//	    EngineTimeout time.Duration `env:"ENGINE_TIMEOUT" envDefault:"5s"`
//	}
func Load(cfg any) error {
	return LoadWithEnv(cfg, nil)
}

// LoadWithEnv is Load with an explicit environment map instead of the process
// environment. A nil map reads the process environment.
func LoadWithEnv(cfg any, environment map[string]string) error {
	opts := env.Options{}
	if environment != nil {
		opts.Environment = environment
	}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
