package wsfeed

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the file-loadable counterpart of Options. ${VAR} references
// in the file are expanded from the environment before parsing.
type Config struct {
	Host    string `yaml:"host"`
	Secure  bool   `yaml:"secure"`
	Channel string `yaml:"channel"`

	Reconnect         ReconnectPolicy `yaml:"reconnect"`
	HeartbeatInterval time.Duration   `yaml:"heartbeat_interval"`
	PongTimeout       time.Duration   `yaml:"pong_timeout"`
}

// LoadConfig reads path, expands environment variables, applies defaults
// and validates.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config file")
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.Wrap(err, "parse config yaml")
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Channel == "" {
		c.Channel = DefaultChannel
	}
	def := DefaultReconnectPolicy()
	if c.Reconnect.MaxAttempts <= 0 {
		c.Reconnect.MaxAttempts = def.MaxAttempts
	}
	if c.Reconnect.BaseDelay <= 0 {
		c.Reconnect.BaseDelay = def.BaseDelay
	}
	if c.Reconnect.Multiplier <= 0 {
		c.Reconnect.Multiplier = def.Multiplier
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}
}

// Validate rejects configs that cannot possibly dial.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("config: host is required")
	}
	if c.Reconnect.Multiplier < 1 {
		return errors.New("config: reconnect multiplier must be >= 1")
	}
	if c.PongTimeout < 0 {
		return errors.New("config: pong_timeout cannot be negative")
	}
	return nil
}

// ClientOptions converts the config into Options ready for NewClient or
// NewHub.
func (c *Config) ClientOptions(log Logger) Options {
	return Options{
		Host:              c.Host,
		Secure:            c.Secure,
		Channel:           c.Channel,
		Reconnect:         c.Reconnect,
		HeartbeatInterval: c.HeartbeatInterval,
		PongTimeout:       c.PongTimeout,
		Logger:            log,
	}
}
