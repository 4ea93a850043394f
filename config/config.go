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

	"github.com/matthieuc/gpiolink/core/agent"
	"github.com/matthieuc/gpiolink/core/bench"
	"github.com/matthieuc/gpiolink/core/metrics"
	"github.com/matthieuc/gpiolink/infra/mqtt"
	"github.com/matthieuc/gpiolink/internal/broker"
)

type Config struct {
	MQTT    mqtt.Config    `json:"mqtt"`
	Broker  broker.Config  `json:"broker"`
	Agent   agent.Config   `json:"agent"`
	Bench   bench.Config   `json:"bench"`
	Metrics metrics.Config `json:"metrics"`
	GPIO    GPIOConfig     `json:"gpio"`
}

// GPIOConfig sizes the board the agent drives.
type GPIOConfig struct {
	// Driver selects the board implementation. Only "sim" is built in.
	Driver string `json:"driver"`
	// Inputs is the number of digital inputs on the board.
	Inputs int `json:"inputs"`
	// LEDs is the number of LEDs on the board.
	LEDs int `json:"leds"`
}

// SetDefaults applies sane defaults.
func (c *GPIOConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sim"
	}
	if c.Inputs == 0 {
		c.Inputs = 4
	}
	if c.LEDs == 0 {
		c.LEDs = 4
	}
}

// Validate checks mandatory fields.
func (c GPIOConfig) Validate() error {
	if c.Driver != "sim" {
		return fmt.Errorf("unknown gpio driver %s", c.Driver)
	}
	if c.Inputs <= 0 || c.LEDs < 0 {
		return fmt.Errorf("invalid gpio dimensions")
	}
	return nil
}

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
	if err := k.Load(env.Provider("GPIOLINK_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "gpiolink_")
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

// SetDefaults applies defaults across all sections.
func (c *Config) SetDefaults() {
	if c.MQTT.Broker == "" {
		c.MQTT.Broker = "tcp://127.0.0.1:1883"
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "gpiolink-agent"
	}
	c.Broker.SetDefaults()
	c.Agent.SetDefaults()
	c.Bench.SetDefaults()
	c.Metrics.SetDefaults()
	c.GPIO.SetDefaults()
}

// Validate checks all sections.
func (c Config) Validate() error {
	if err := c.Broker.Validate(); err != nil {
		return err
	}
	if err := c.Agent.Validate(); err != nil {
		return err
	}
	if err := c.Bench.Validate(); err != nil {
		return err
	}
	if err := c.GPIO.Validate(); err != nil {
		return err
	}
	for _, pin := range c.Agent.Pins {
		if pin >= c.GPIO.Inputs {
			return fmt.Errorf("watched pin %d exceeds gpio inputs (%d)", pin, c.GPIO.Inputs)
		}
	}
	if c.Agent.StopPin >= c.GPIO.Inputs {
		return fmt.Errorf("stop pin %d exceeds gpio inputs (%d)", c.Agent.StopPin, c.GPIO.Inputs)
	}
	return nil
}
