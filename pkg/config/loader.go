// Package config loads env-tagged configuration structs from the process
// environment, with an optional .env file for development.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrNilPointer is returned when Load receives a nil target.
	ErrNilPointer = errors.New("nil pointer provided to config loader")

	// ErrParsing wraps env parse failures, including missing required vars.
	ErrParsing = errors.New("failed to parse environment into config")

	dotenvOnce sync.Once
)

// Load fills v from environment variables according to its `env` tags. The
// default .env file is loaded once per process; a missing file is fine.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsing, err)
	}
	return nil
}

// MustLoad panics on failure. Use for configuration without which the process
// cannot meaningfully start.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
