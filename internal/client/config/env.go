package config

import (
	"fmt"
	"time"
)

const envPrefix = "GOTOGETHER_"

func parseEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(envPrefix + "SERVER_URL"); ok && v != "" {
		cfg.ServerURL = v
	}
	if v, ok := lookup(envPrefix + "CLIENT_DB"); ok && v != "" {
		cfg.DatabasePath = v
	}
	if v, ok := lookup(envPrefix + "CLIENT_LOG_LEVEL"); ok && v != "" {
		cfg.LogLevel = v
	}
	if v, ok := lookup(envPrefix + "REQUEST_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sREQUEST_TIMEOUT: %w", envPrefix, err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}
