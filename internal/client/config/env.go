package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays configuration from environment variables. A .env file,
// if present, is loaded by main before this runs.
func parseEnv(config *Config) {
	if v := os.Getenv("STUDYSYNC_SERVER_ADDR"); v != "" {
		config.ServerEndpointAddr = v
	}
	if v := os.Getenv("STUDYSYNC_AUTH_TOKEN"); v != "" {
		config.AuthToken = v
	}
	if v := os.Getenv("STUDYSYNC_CLIENT_DB"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("STUDYSYNC_DISPATCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.DispatchTimeout = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("STUDYSYNC_FETCH_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.FetchTimeout = time.Duration(n) * time.Second
		}
	}
}
