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
	EndpointAddr        string `json:"endpoint_addr"`
	DatabaseDSN         string `json:"database_dsn"`
	SecretKey           string `json:"secret_key"`
	UserQuotaBytes      int64  `json:"user_quota_bytes"`
	UploadGrantTTLSecs  int    `json:"upload_grant_ttl_seconds"`
	S3Enabled           bool   `json:"s3_enabled"`
	S3AccessKey         string `json:"s3_access_key"`
	S3SecretKey         string `json:"s3_secret_key"`
	S3Bucket            string `json:"s3_bucket"`
	S3Region            string `json:"s3_region"`
	S3BaseEndpoint      string `json:"s3_base_endpoint"`
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

// parseJson overlays configuration values from an optional JSON file. When
// the file is named but unreadable or malformed, the function panics: a
// half-applied config is worse than a crash at startup.
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

	applyJson(config, c)
}

// applyJson copies only the fields the file actually set.
func applyJson(config *Config, c *jsonConfig) {
	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.SecretKey != "" {
		config.SecretKey = c.SecretKey
	}
	if c.UserQuotaBytes > 0 {
		config.UserQuotaBytes = c.UserQuotaBytes
	}
	if c.UploadGrantTTLSecs > 0 {
		config.UploadGrantTTL = time.Duration(c.UploadGrantTTLSecs) * time.Second
	}
	if c.S3Enabled {
		config.S3Enabled = true
	}
	if c.S3AccessKey != "" {
		config.S3AccessKey = c.S3AccessKey
	}
	if c.S3SecretKey != "" {
		config.S3SecretKey = c.S3SecretKey
	}
	if c.S3Bucket != "" {
		config.S3Bucket = c.S3Bucket
	}
	if c.S3Region != "" {
		config.S3Region = c.S3Region
	}
	if c.S3BaseEndpoint != "" {
		config.S3BaseEndpoint = c.S3BaseEndpoint
	}
}
