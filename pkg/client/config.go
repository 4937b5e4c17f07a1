// Copyright 2024-2026 Aiku AI

package client

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	up "go.mau.fi/util/configupgrade"
	"gopkg.in/yaml.v3"

	"github.com/aiku/upryzing-go/pkg/hydration"
)

//go:embed example-config.yaml
var ExampleConfig string

// EnvPrefix prefixes the environment variables read by LoadEnv.
const EnvPrefix = "UPRYZING"

// Config holds the client configuration.
type Config struct {
	BaseURL      string `yaml:"base_url" envconfig:"BASE_URL" validate:"required,url"`
	WebSocketURL string `yaml:"ws_url" envconfig:"WS_URL" validate:"omitempty,url"`

	// Partials allows update and delete events for entities that are not
	// loaded. Such events carry an entity with only its ids set.
	Partials      bool `yaml:"partials" envconfig:"PARTIALS"`
	SyncUnreads   bool `yaml:"sync_unreads" envconfig:"SYNC_UNREADS"`
	AutoReconnect bool `yaml:"auto_reconnect" envconfig:"AUTO_RECONNECT"`

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" envconfig:"HEARTBEAT_INTERVAL" validate:"gte=0"`
	PongTimeout       time.Duration `yaml:"pong_timeout" envconfig:"PONG_TIMEOUT" validate:"gte=0"`

	RequestRate  float64 `yaml:"request_rate" envconfig:"REQUEST_RATE" validate:"gte=0"`
	RequestBurst int     `yaml:"request_burst" envconfig:"REQUEST_BURST" validate:"gte=0"`

	// RetryDelay overrides events.DefaultRetryDelay.
	RetryDelay func(failures int) time.Duration `yaml:"-" ignored:"true"`
	// ChannelIsMuted suppresses mention notifications for a channel.
	ChannelIsMuted func(channel hydration.Channel) bool `yaml:"-" ignored:"true"`
}

// DefaultConfig returns the configuration described by ExampleConfig.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal([]byte(ExampleConfig), &cfg); err != nil {
		panic(fmt.Errorf("failed to parse example config: %w", err))
	}
	return cfg
}

func (c *Config) UnmarshalYAML(node *yaml.Node) error {
	type rawConfig Config
	return node.Decode((*rawConfig)(c))
}

// LoadEnv overrides fields from UPRYZING_* environment variables.
func (c *Config) LoadEnv() error {
	if err := envconfig.Process(EnvPrefix, c); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	return nil
}

var validate = validator.New()

func (c *Config) PostProcess() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.HeartbeatInterval > 0 && c.PongTimeout == 0 {
		c.PongTimeout = c.HeartbeatInterval
	}
	return nil
}

func (c *Config) channelIsMuted(channel hydration.Channel) bool {
	return c.ChannelIsMuted != nil && c.ChannelIsMuted(channel)
}

func upgradeConfig(helper up.Helper) {
	helper.Copy(up.Str, "base_url")
	helper.Copy(up.Str, "ws_url")
	helper.Copy(up.Bool, "partials")
	helper.Copy(up.Bool, "sync_unreads")
	helper.Copy(up.Bool, "auto_reconnect")
	helper.Copy(up.Str, "heartbeat_interval")
	helper.Copy(up.Str, "pong_timeout")
	helper.Copy(up.Int|up.Float, "request_rate")
	helper.Copy(up.Int, "request_burst")
}

// GetConfig returns the example config, the value to decode into and the
// upgrader that carries user values over to the current layout.
func GetConfig(cfg *Config) (example string, data any, upgrader up.Upgrader) {
	return ExampleConfig, cfg, &up.StructUpgrader{
		SimpleUpgrader: up.SimpleUpgrader(upgradeConfig),
		Blocks:         nil,
		Base:           ExampleConfig,
	}
}

// LoadConfig reads the file at path, upgrades it against the example config,
// applies environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	_, _, upgrader := GetConfig(cfg)
	output, _, err := up.Do(path, false, upgrader.(*up.StructUpgrader))
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade config: %w", err)
	}
	if err := yaml.Unmarshal(output, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.LoadEnv(); err != nil {
		return nil, err
	}
	if err := cfg.PostProcess(); err != nil {
		return nil, err
	}
	return cfg, nil
}
