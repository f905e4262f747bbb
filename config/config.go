package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/techdispatch/core/dispatch"
	"github.com/kilianp07/techdispatch/core/metrics"
	"github.com/kilianp07/techdispatch/core/pricing"
	"github.com/kilianp07/techdispatch/infra/mqtt"
)

type Config struct {
	MQTT      mqtt.Config     `json:"mqtt"`
	Dispatch  dispatch.Config `json:"dispatch"`
	Pricing   pricing.Config  `json:"pricing"`
	Metrics   metrics.Config  `json:"metrics"`
	Logging   LoggingConfig   `json:"logging"`
	Store     StoreConfig     `json:"store"`
	HTTP      HTTPConfig      `json:"http"`
	Sentry    SentryConfig    `json:"sentry"`
	Telemetry TelemetryConfig `json:"telemetry"`
	Seed      SeedConfig      `json:"seed"`
}

// Load reads a YAML or JSON file and applies K_ prefixed environment
// overrides, for example K_MQTT__BROKER.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied. It runs
// the engine in memory without MQTT.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// SetDefaults fills unset fields of every section.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Metrics.SetDefaults()
	c.Logging.SetDefaults()
	c.Store.SetDefaults()
	c.HTTP.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if _, err := pricing.NewStatic(c.Pricing); err != nil {
		return fmt.Errorf("pricing: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Telemetry.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if c.MQTT.UseTLS && c.MQTT.TLSConfig == nil {
		if c.MQTT.ClientCert == "" || c.MQTT.ClientKey == "" || c.MQTT.CABundle == "" {
			return fmt.Errorf("mqtt: use_tls requires client_cert, client_key and ca_bundle")
		}
	}
	return nil
}
