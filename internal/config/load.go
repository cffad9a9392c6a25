package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-avatars/internal/source"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. AVATAR_QUEUE_MAX_CONCURRENT for queue.max_concurrent.
const EnvPrefix = "AVATAR"

// setDefaults registers every known key so that environment variables can
// override it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("database.url", "")

	v.SetDefault("queue.tick_interval", 2*time.Second)
	v.SetDefault("queue.max_concurrent", 15)
	v.SetDefault("queue.max_attempts", 3)
	v.SetDefault("queue.janitor_interval", time.Hour)
	v.SetDefault("queue.retention", 24*time.Hour)
	v.SetDefault("queue.task_timeout", time.Duration(0))

	v.SetDefault("fetch.timeout", 10*time.Second)
	v.SetDefault("fetch.max_payload_bytes", int64(10*1024*1024))
	v.SetDefault("fetch.allowed_hosts", source.DefaultAllowedHosts)

	v.SetDefault("image.width", 128)
	v.SetDefault("image.height", 128)
	v.SetDefault("image.quality", 80)
	v.SetDefault("image.format", "webp")
	v.SetDefault("image.max_size_bytes", 50*1024)
	v.SetDefault("image.quality_floor", 30)
	v.SetDefault("image.quality_step", 20)
	v.SetDefault("image.min_dimension", 16)
	v.SetDefault("image.max_dimension", 5000)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.local_dir", "./data/avatars")
	v.SetDefault("storage.public_base_url", "")
	v.SetDefault("storage.cache_control", "public, max-age=3600")
	v.SetDefault("storage.endpoint", "")
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
