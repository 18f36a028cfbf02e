package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Invoker modes understood by the sandbox entrypoint.
const (
	ModeAll    = "all"
	ModeSingle = "single"
)

// Config represents the application configuration
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Images  []ImageConfig `mapstructure:"images"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport string `mapstructure:"transport"`
	HTTPPort  int    `mapstructure:"http_port"`
}

// SandboxConfig holds sandbox configuration
type SandboxConfig struct {
	Backend            string `mapstructure:"backend"`
	Engine             string `mapstructure:"engine"`
	TimeoutSec         int    `mapstructure:"timeout_sec"`
	CleanupTimeoutSec  int    `mapstructure:"cleanup_timeout_sec"`
	MemoryMB           int    `mapstructure:"memory_mb"`
	PidsLimit          int    `mapstructure:"pids_limit"`
	Locale             string `mapstructure:"locale"`
	InvokerPath        string `mapstructure:"invoker_path"`
	EnableLocalBackend bool   `mapstructure:"enable_local_backend"`
}

// ImageConfig describes one sandbox image run for every submission.
type ImageConfig struct {
	Name    string `mapstructure:"name"`
	Image   string `mapstructure:"image"`
	Mode    string `mapstructure:"mode"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("ALLRUBY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	return load(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.transport", "stdio")
	v.SetDefault("server.http_port", 8080)

	v.SetDefault("sandbox.backend", "docker")
	v.SetDefault("sandbox.engine", "")
	v.SetDefault("sandbox.timeout_sec", 10)
	v.SetDefault("sandbox.cleanup_timeout_sec", 10)
	v.SetDefault("sandbox.memory_mb", 100)
	v.SetDefault("sandbox.pids_limit", 1024)
	v.SetDefault("sandbox.locale", "C.UTF-8")
	v.SetDefault("sandbox.invoker_path", "/usr/local/libexec/allruby/invoker")
	v.SetDefault("sandbox.enable_local_backend", false)

	v.SetDefault("images", []map[string]any{
		{"name": "all-ruby", "image": "rubylang/all-ruby", "mode": ModeAll, "enabled": true},
		{"name": "rubyfarm", "image": "rubylang/rubyfarm", "mode": ModeSingle, "enabled": false},
	})

	v.SetDefault("logging.mode", "production")
	v.SetDefault("logging.level", "info")
}

func load(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "stdio" && c.Server.Transport != "http" {
		return fmt.Errorf("invalid server.transport: %s, must be 'stdio' or 'http'", c.Server.Transport)
	}

	if c.Sandbox.TimeoutSec <= 0 {
		return fmt.Errorf("sandbox.timeout_sec must be positive, got: %d", c.Sandbox.TimeoutSec)
	}

	if c.Sandbox.CleanupTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.cleanup_timeout_sec must be positive, got: %d", c.Sandbox.CleanupTimeoutSec)
	}

	if c.Sandbox.MemoryMB <= 0 {
		return fmt.Errorf("sandbox.memory_mb must be positive, got: %d", c.Sandbox.MemoryMB)
	}

	if c.Sandbox.PidsLimit <= 0 {
		return fmt.Errorf("sandbox.pids_limit must be positive, got: %d", c.Sandbox.PidsLimit)
	}

	if c.Sandbox.InvokerPath == "" {
		return fmt.Errorf("sandbox.invoker_path must be set")
	}

	supportedBackends := map[string]bool{
		"docker": true,
		"podman": true,
		"local":  c.Sandbox.EnableLocalBackend, // local only enabled if specifically allowed
	}

	if !supportedBackends[c.Sandbox.Backend] {
		return fmt.Errorf("unsupported sandbox.backend: %s", c.Sandbox.Backend)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	seen := make(map[string]bool, len(c.Images))
	for i, img := range c.Images {
		if img.Name == "" {
			return fmt.Errorf("images[%d].name must be set", i)
		}
		if seen[img.Name] {
			return fmt.Errorf("duplicate image name: %s", img.Name)
		}
		seen[img.Name] = true
		if img.Image == "" {
			return fmt.Errorf("images[%d].image must be set", i)
		}
		if img.Mode != ModeAll && img.Mode != ModeSingle {
			return fmt.Errorf("invalid images[%d].mode: %s, must be '%s' or '%s'", i, img.Mode, ModeAll, ModeSingle)
		}
	}

	if len(c.EnabledImages()) == 0 {
		return fmt.Errorf("at least one image must be enabled")
	}

	return nil
}

// EnabledImages returns the enabled images in configuration order
func (c *Config) EnabledImages() []ImageConfig {
	var images []ImageConfig
	for _, img := range c.Images {
		if img.Enabled {
			images = append(images, img)
		}
	}
	return images
}

// GetTimeout returns the execution timeout as a duration
func (c *Config) GetTimeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutSec) * time.Second
}

// GetCleanupTimeout returns the deadline for the post-run cleanup call
func (c *Config) GetCleanupTimeout() time.Duration {
	return time.Duration(c.Sandbox.CleanupTimeoutSec) * time.Second
}
