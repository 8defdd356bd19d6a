// Package config loads session configuration from JSON and process
// settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Env holds process settings read from the environment. Command-line
// flags take precedence over these values.
type Env struct {
	Listen       string `env:"MARKERPLACE_LISTEN" envDefault:":8080"`
	DBPath       string `env:"MARKERPLACE_DB" envDefault:"markerplace.db"`
	ConfigPath   string `env:"MARKERPLACE_CONFIG"`
	FixturesPath string `env:"MARKERPLACE_FIXTURES"`
	LogLevel     string `env:"MARKERPLACE_LOG_LEVEL" envDefault:"info"`

	// GRPCListen enables the scene stream service when set.
	GRPCListen string `env:"MARKERPLACE_GRPC_LISTEN"`
}

// LoadEnv parses Env from the process environment.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return e, nil
}

// LoadEnvFrom parses Env from an explicit variable map.
func LoadEnvFrom(vars map[string]string) (Env, error) {
	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Environment: vars}); err != nil {
		return Env{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return e, nil
}
