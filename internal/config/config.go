package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Fetch    FetchConfig    `mapstructure:"fetch" validate:"required"`
	Image    ImageConfig    `mapstructure:"image" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains the profile database settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// QueueConfig controls the ingestion task queue, its scheduler and janitor.
type QueueConfig struct {
	TickInterval    time.Duration `mapstructure:"tick_interval" validate:"required,gt=0"`
	MaxConcurrent   int           `mapstructure:"max_concurrent" validate:"required,gt=0"`
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"required,gt=0"`
	JanitorInterval time.Duration `mapstructure:"janitor_interval" validate:"required,gt=0"`
	Retention       time.Duration `mapstructure:"retention" validate:"required,gt=0"`
	// TaskTimeout bounds a whole attempt. Zero means no deadline beyond the fetch timeout.
	TaskTimeout time.Duration `mapstructure:"task_timeout" validate:"gte=0"`
}

// FetchConfig controls downloading of remote source images.
type FetchConfig struct {
	Timeout         time.Duration `mapstructure:"timeout" validate:"required,gt=0"`
	MaxPayloadBytes int64         `mapstructure:"max_payload_bytes" validate:"required,gt=0"`
	AllowedHosts    []string      `mapstructure:"allowed_hosts" validate:"required,min=1,dive,required"`
}

// ImageConfig controls validation and optimization of avatar images.
type ImageConfig struct {
	Width        int    `mapstructure:"width" validate:"required,gt=0"`
	Height       int    `mapstructure:"height" validate:"required,gt=0"`
	Quality      int    `mapstructure:"quality" validate:"required,gte=1,lte=100"`
	Format       string `mapstructure:"format" validate:"required,oneof=webp jpeg png"`
	MaxSizeBytes int    `mapstructure:"max_size_bytes" validate:"required,gt=0"`
	QualityFloor int    `mapstructure:"quality_floor" validate:"required,gte=1,ltefield=Quality"`
	QualityStep  int    `mapstructure:"quality_step" validate:"required,gt=0"`
	MinDimension int    `mapstructure:"min_dimension" validate:"required,gt=0"`
	MaxDimension int    `mapstructure:"max_dimension" validate:"required,gtfield=MinDimension"`
}

// StorageConfig selects and configures the avatar object store.
type StorageConfig struct {
	Backend       string `mapstructure:"backend" validate:"required,oneof=gcs local"`
	Bucket        string `mapstructure:"bucket" validate:"required_if=Backend gcs"`
	LocalDir      string `mapstructure:"local_dir" validate:"required_if=Backend local"`
	PublicBaseURL string `mapstructure:"public_base_url" validate:"omitempty,url"`
	CacheControl  string `mapstructure:"cache_control"`
	// Endpoint overrides the GCS API endpoint, e.g. for an emulator.
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}
