package config

import (
	"os"
	"strconv"
	"time"
)

// parseEnv overlays configuration from environment variables. A .env file,
// if present, is loaded by main before this runs.
func parseEnv(config *Config) {
	if v := os.Getenv("STUDYSYNC_ADDR"); v != "" {
		config.EndpointAddr = v
	}
	if v := os.Getenv("STUDYSYNC_DATABASE_DSN"); v != "" {
		config.DatabaseDSN = v
	}
	if v := os.Getenv("STUDYSYNC_SECRET_KEY"); v != "" {
		config.SecretKey = v
	}
	if v := os.Getenv("STUDYSYNC_USER_QUOTA_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			config.UserQuotaBytes = n
		}
	}
	if v := os.Getenv("STUDYSYNC_UPLOAD_GRANT_TTL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.UploadGrantTTL = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("STUDYSYNC_S3_ENABLED"); v != "" {
		config.S3Enabled = v == "1" || v == "true"
	}
	if v := os.Getenv("STUDYSYNC_S3_ACCESS_KEY"); v != "" {
		config.S3AccessKey = v
	}
	if v := os.Getenv("STUDYSYNC_S3_SECRET_KEY"); v != "" {
		config.S3SecretKey = v
	}
	if v := os.Getenv("STUDYSYNC_S3_BUCKET"); v != "" {
		config.S3Bucket = v
	}
	if v := os.Getenv("STUDYSYNC_S3_REGION"); v != "" {
		config.S3Region = v
	}
	if v := os.Getenv("STUDYSYNC_S3_ENDPOINT"); v != "" {
		config.S3BaseEndpoint = v
	}
}
