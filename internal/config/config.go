package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	HTTPPort    int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	MaxConcurrent int           `envconfig:"MAX_CONCURRENT" default:"3"`
	QueueSize     int           `envconfig:"QUEUE_SIZE" default:"100"`
	FetchTimeout  time.Duration `envconfig:"FETCH_TIMEOUT" default:"30m"`
	MaxRetries    int           `envconfig:"MAX_RETRIES" default:"3"`
	RetryInitial  time.Duration `envconfig:"RETRY_INITIAL_DELAY" default:"2s"`
	RetryMaxDelay time.Duration `envconfig:"RETRY_MAX_DELAY" default:"1m"`

	DownloadDir string `envconfig:"DOWNLOAD_DIR" default:"./downloads"`
	TempDir     string `envconfig:"TEMP_DIR" default:"./tmp"`
	HistoryDir  string `envconfig:"HISTORY_DIR" default:"./history"`

	RetentionHours  int           `envconfig:"RETENTION_HOURS" default:"168"`
	MaxStorageBytes int64         `envconfig:"MAX_STORAGE_BYTES" default:"10737418240"`
	KeepRecentCount int           `envconfig:"KEEP_RECENT_COUNT" default:"5"`
	CleanupInterval time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`

	RegistryMaxEntries int `envconfig:"REGISTRY_MAX_ENTRIES" default:"500"`
	HistoryListLimit   int `envconfig:"HISTORY_LIST_LIMIT" default:"200"`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.MaxConcurrent < 1 || c.MaxConcurrent > 10 {
		return fmt.Errorf("max concurrent downloads must be between 1 and 10: %d", c.MaxConcurrent)
	}

	if c.QueueSize <= 0 {
		return fmt.Errorf("queue size must be positive: %d", c.QueueSize)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative: %d", c.MaxRetries)
	}

	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.TempDir == "" {
		return fmt.Errorf("temp directory cannot be empty")
	}
	if c.TempDir == c.DownloadDir {
		return fmt.Errorf("temp and download directories must differ")
	}
	if c.HistoryDir == "" {
		return fmt.Errorf("history directory cannot be empty")
	}

	if c.RetentionHours <= 0 {
		return fmt.Errorf("retention hours must be positive: %d", c.RetentionHours)
	}
	if c.MaxStorageBytes <= 0 {
		return fmt.Errorf("max storage bytes must be positive: %d", c.MaxStorageBytes)
	}
	if c.KeepRecentCount < 0 {
		return fmt.Errorf("keep recent count must not be negative: %d", c.KeepRecentCount)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup interval must be positive: %s", c.CleanupInterval)
	}

	return nil
}

// RetentionAge returns the retention window as a duration.
func (c *Config) RetentionAge() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}
