// Package config loads console settings with viper: configs/config.yml,
// overridden by CALIB_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully resolved console configuration.
type Config struct {
	Port    string        `mapstructure:"port"`
	Log     LogConfig     `mapstructure:"log"`
	DB      DBConfig      `mapstructure:"db"`
	Rig     RigConfig     `mapstructure:"rig"`
	Poller  PollerConfig  `mapstructure:"poller"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Archive ArchiveConfig `mapstructure:"archive"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// RigConfig points at the rig server's REST and socket endpoints.
type RigConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	WSEndpoint       string        `mapstructure:"ws_endpoint"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	WSReconnectDelay time.Duration `mapstructure:"ws_reconnect_delay"`
	WSMaxReconnect   time.Duration `mapstructure:"ws_max_reconnect_delay"`
	WSPingInterval   time.Duration `mapstructure:"ws_ping_interval"`
}

type PollerConfig struct {
	StatusInterval time.Duration `mapstructure:"status_interval"`
	DebugInterval  time.Duration `mapstructure:"debug_interval"`
}

type AuthConfig struct {
	SigningKey string        `mapstructure:"signing_key"`
	TokenTTL   time.Duration `mapstructure:"token_ttl"`
}

// ArchiveConfig controls the optional long-term telemetry sink.
type ArchiveConfig struct {
	Influx InfluxConfig `mapstructure:"influx"`
}

type InfluxConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Token    string `mapstructure:"token"`
	Database string `mapstructure:"database"`
}

const envPrefix = "CALIB"

// SetDefaults registers the fallback value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("db.path", "console.db")

	v.SetDefault("rig.base_url", "http://localhost:5000")
	v.SetDefault("rig.ws_endpoint", "ws://localhost:5000/sessionsocket")
	v.SetDefault("rig.request_timeout", 5*time.Second)
	v.SetDefault("rig.ws_reconnect_delay", 1*time.Second)
	v.SetDefault("rig.ws_max_reconnect_delay", 30*time.Second)
	v.SetDefault("rig.ws_ping_interval", 30*time.Second)

	v.SetDefault("poller.status_interval", 500*time.Millisecond)
	v.SetDefault("poller.debug_interval", 500*time.Millisecond)

	// empty defaults make these keys known to Unmarshal, so env-only setups work
	v.SetDefault("auth.signing_key", "")
	v.SetDefault("auth.token_ttl", time.Hour)

	v.SetDefault("archive.influx.enabled", false)
	v.SetDefault("archive.influx.host", "")
	v.SetDefault("archive.influx.token", "")
	v.SetDefault("archive.influx.database", "")
}

// Load reads configs/config.yml (when present) and the environment.
func Load() (*Config, error) {
	v := viper.New()
	v.AddConfigPath("configs")
	v.AddConfigPath(".")
	v.SetConfigName("config")
	return load(v)
}

// LoadFile reads the given file and the environment.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Rig.BaseURL) == "" {
		return errors.New("rig.base_url is required")
	}
	if strings.TrimSpace(c.Auth.SigningKey) == "" {
		return errors.New("auth.signing_key is required")
	}
	if c.Poller.StatusInterval <= 0 || c.Poller.DebugInterval <= 0 {
		return errors.New("poller intervals must be positive")
	}
	if c.Archive.Influx.Enabled && (c.Archive.Influx.Host == "" || c.Archive.Influx.Database == "") {
		return errors.New("archive.influx.host and archive.influx.database are required when the archive is enabled")
	}
	return nil
}
