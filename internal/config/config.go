package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models hypolab.yml.
type Config struct {
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
		WSPath   string `yaml:"ws_path"`
	} `yaml:"server"`
	Broadcast struct {
		SessionBuffer       int `yaml:"session_buffer"`
		WriteTimeoutSeconds int `yaml:"write_timeout_seconds"`
	} `yaml:"broadcast"`
	Bus struct {
		ReconnectDelaySeconds int `yaml:"reconnect_delay_seconds"`
	} `yaml:"bus"`
	Journal struct {
		Enabled   bool   `yaml:"enabled"`
		Workspace string `yaml:"workspace"`
	} `yaml:"journal"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
	Seed     *bool           `yaml:"seed"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

type WebhookConfig struct {
	URL            string   `yaml:"url"`
	Events         []string `yaml:"events"`
	Secret         string   `yaml:"secret"`
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	Enabled        *bool    `yaml:"enabled"`
}

// SeedEnabled reports whether demo data should be loaded. Seeding is on
// unless explicitly disabled.
func (c *Config) SeedEnabled() bool {
	return c.Seed == nil || *c.Seed
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with hypolab config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Addr) == "" {
		return fmt.Errorf("config.server.addr is required")
	}
	if !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("config.server.base_path must start with /")
	}
	if !strings.HasPrefix(c.Server.WSPath, "/") {
		return fmt.Errorf("config.server.ws_path must start with /")
	}
	if c.Broadcast.SessionBuffer < 1 {
		return fmt.Errorf("config.broadcast.session_buffer must be positive")
	}
	if c.Broadcast.WriteTimeoutSeconds < 1 {
		return fmt.Errorf("config.broadcast.write_timeout_seconds must be positive")
	}
	if c.Bus.ReconnectDelaySeconds < 1 {
		return fmt.Errorf("config.bus.reconnect_delay_seconds must be positive")
	}
	switch c.Logging.Format {
	case "text", "json", "auto":
	default:
		return fmt.Errorf("config.logging.format must be 'text', 'json' or 'auto'")
	}
	for i, hook := range c.Webhooks {
		if strings.TrimSpace(hook.URL) == "" {
			return fmt.Errorf("config.webhooks[%d].url is required", i)
		}
		if hook.TimeoutSeconds < 0 {
			return fmt.Errorf("config.webhooks[%d].timeout_seconds must not be negative", i)
		}
		for _, evt := range hook.Events {
			if strings.TrimSpace(evt) == "" {
				return fmt.Errorf("config.webhooks[%d] has empty event kind", i)
			}
		}
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "hypolab.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys missing
// from data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `server:
  addr: 127.0.0.1:8080
  base_path: /api
  ws_path: /ws

broadcast:
  session_buffer: 64
  write_timeout_seconds: 10

bus:
  reconnect_delay_seconds: 5

journal:
  enabled: false
  workspace: .

logging:
  level: info
  format: text # text, json or auto

auth:
  jwt_secret: ""

seed: true

webhooks: []
`
