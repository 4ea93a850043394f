package agent

import "fmt"

// Config controls the poll/publish loop.
type Config struct {
	// Pins are the digital input indexes watched for state changes.
	Pins []int `json:"pins"`
	// StopPin, when it reads true, terminates the agent loop. -1 disables it.
	StopPin int `json:"stop_pin"`
	// PollIntervalMS is the sampling period for all watched pins.
	PollIntervalMS int `json:"poll_interval_ms"`
	// TopicPrefix roots every published and subscribed topic.
	TopicPrefix string `json:"topic_prefix"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if len(c.Pins) == 0 {
		c.Pins = []int{0, 1, 2}
	}
	// Pin 0 is conventionally a watched button, so a zero value means the
	// stop pin is unset.
	if c.StopPin == 0 {
		c.StopPin = -1
	}
	if c.PollIntervalMS == 0 {
		c.PollIntervalMS = 50
	}
	if c.TopicPrefix == "" {
		c.TopicPrefix = "gpiolink"
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if len(c.Pins) == 0 {
		return fmt.Errorf("at least one watched pin is required")
	}
	for _, p := range c.Pins {
		if p < 0 {
			return fmt.Errorf("invalid pin index %d", p)
		}
	}
	if c.PollIntervalMS <= 0 {
		return fmt.Errorf("poll_interval_ms must be positive")
	}
	if c.TopicPrefix == "" {
		return fmt.Errorf("topic_prefix is required")
	}
	return nil
}
