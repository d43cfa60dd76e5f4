// Package config provides configuration loading, validation, and management
// for the tablescout application. It handles reading from YAML files,
// BOT_-prefixed environment variables, and default values.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// TaskConfig holds the schedule for a single background task.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// SchedulerConfig holds the scheduled-task map.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// Config defines the application configuration parameters for all components
// of the tablescout system: logging, the LINE transport, AI integration, the
// restaurant search API, database, and the scheduler.
type Config struct {
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogJSON  bool   `mapstructure:"log_json"`

	Line struct {
		ChannelSecret      string `mapstructure:"channel_secret"       validate:"required"`
		ChannelAccessToken string `mapstructure:"channel_access_token" validate:"required"`
	} `mapstructure:"line"`

	AI struct {
		Backend     string        `mapstructure:"backend"     validate:"oneof=openai gemini"`
		Token       string        `mapstructure:"token"       validate:"required"`
		BaseURL     string        `mapstructure:"base_url"    validate:"omitempty,url"`
		Model       string        `mapstructure:"model"`
		Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
		Timeout     time.Duration `mapstructure:"timeout"     validate:"min=1s,max=10m"`
	} `mapstructure:"ai"`

	Search struct {
		APIKey  string        `mapstructure:"api_key"  validate:"required"`
		BaseURL string        `mapstructure:"base_url" validate:"url"`
		Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s,max=5m"`
	} `mapstructure:"search"`

	Session struct {
		TTL time.Duration `mapstructure:"ttl" validate:"min=1m"`
	} `mapstructure:"session"`

	Database struct {
		Path string `mapstructure:"path" validate:"required"`
	} `mapstructure:"database"`

	Server struct {
		Addr string `mapstructure:"addr" validate:"required"`
	} `mapstructure:"server"`

	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// Load loads and validates configuration from:
// 1. Default values
// 2. config.yaml file (optional)
// 3. BOT_* environment variables
func Load() (*Config, error) {
	setDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetEnvPrefix("BOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Config file is optional, env vars may carry everything.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_json", true)

	viper.SetDefault("ai.backend", "openai")
	viper.SetDefault("ai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("ai.model", "gpt-4o")
	viper.SetDefault("ai.temperature", 0.7)
	viper.SetDefault("ai.timeout", 2*time.Minute)

	viper.SetDefault("search.base_url", "https://api.yelp.com/ai/chat/v2")
	viper.SetDefault("search.timeout", 30*time.Second)

	viper.SetDefault("session.ttl", 6*time.Hour)

	viper.SetDefault("database.path", "storage.db")

	viper.SetDefault("server.addr", ":8080")

	viper.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
	})
}
