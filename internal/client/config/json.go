package config

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/ssergeev/studysync/internal/flagx"
)

// jsonConfig is an intermediate DTO used only for reading JSON configuration
// files. Durations are expressed in seconds.
type jsonConfig struct {
	ServerEndpointAddr  string `json:"server_endpoint_addr"`
	AuthToken           string `json:"auth_token"`
	DatabaseDSN         string `json:"database_dsn"`
	DispatchTimeoutSecs int    `json:"dispatch_timeout_seconds"`
	FetchTimeoutSecs    int    `json:"fetch_timeout_seconds"`
}

// configFileFromArgs extracts the -c/-config flag without disturbing the
// component's own flag set.
func configFileFromArgs() string {
	args := flagx.FilterArgs(os.Args[1:], []string{"-c", "-config", "--config"})

	fs := flag.NewFlagSet("config-file", flag.ContinueOnError)
	short := fs.String("c", "", "path to JSON config file")
	long := fs.String("config", "", "path to JSON config file")
	if err := fs.Parse(args); err != nil {
		panic(err)
	}
	if *long != "" {
		return *long
	}
	return *short
}

// parseJson overlays configuration values from an optional JSON file.
func parseJson(config *Config) {
	path := configFileFromArgs()
	if path == "" {
		return
	}

	file, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	c := &jsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.ServerEndpointAddr != "" {
		config.ServerEndpointAddr = c.ServerEndpointAddr
	}
	if c.AuthToken != "" {
		config.AuthToken = c.AuthToken
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.DispatchTimeoutSecs > 0 {
		config.DispatchTimeout = time.Duration(c.DispatchTimeoutSecs) * time.Second
	}
	if c.FetchTimeoutSecs > 0 {
		config.FetchTimeout = time.Duration(c.FetchTimeoutSecs) * time.Second
	}
}
