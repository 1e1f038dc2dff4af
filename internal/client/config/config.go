// Package config handles configuration for the device-side client,
// including defaults, JSON overlay, environment variables, and
// command-line flags.
package config

import "time"

// Config holds runtime settings for the device companion.
//
// Fields:
//   - ServerEndpointAddr: base URL of the sync API (e.g., "http://127.0.0.1:8080").
//   - AuthToken: bearer token issued by the platform's auth service.
//   - DatabaseDSN: sqlite path for the device-local store.
//   - DispatchTimeout: per-call budget for fire-and-forget sync calls.
//   - FetchTimeout: budget for the recovery fetch.
type Config struct {
	ServerEndpointAddr string
	AuthToken          string
	DatabaseDSN        string
	DispatchTimeout    time.Duration
	FetchTimeout       time.Duration
}

// LoadDefaults populates c with development defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.AuthToken = ""
	c.DatabaseDSN = "studysync.db"
	c.DispatchTimeout = 5 * time.Second
	c.FetchTimeout = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from an optional JSON file, environment variables, and command-line flags.
// Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseEnv(cfg)
	parseFlags(cfg)
	return cfg
}
