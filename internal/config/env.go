package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every variable read by FromEnv
const EnvPrefix = "AUTHFRONT_"

// FromEnv loads the configuration from AUTHFRONT_* environment variables,
// for deployments that run without a config file. For example
// AUTHFRONT_PROVIDER_ANON_KEY sets provider.anonKey.
func FromEnv() (Config, error) {
	cfg := Config{Version: VersionPrefix}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.Server.BaseURL = strings.TrimSuffix(cfg.Server.BaseURL, "/")
	cfg.Provider.URL = strings.TrimSuffix(cfg.Provider.URL, "/")

	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
