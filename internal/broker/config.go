package broker

import (
	"fmt"
	"strconv"
	"strings"
)

// Config describes the external broker process managed by the Supervisor.
// The MQTT/TCP listener is always expected; brokers with MQTT-SN support
// additionally get the UDP port through the {udp_port} argument placeholder.
type Config struct {
	// Enabled starts the supervised broker alongside the agent. When false
	// the agent expects an already running broker.
	Enabled bool `json:"enabled"`
	// Binary is the path to the broker executable.
	Binary string `json:"binary"`
	// ConfigFile is passed to the broker with -c when set.
	ConfigFile string `json:"config_file"`
	// TCPPort is the MQTT listener port.
	TCPPort int `json:"tcp_port"`
	// UDPPort is the MQTT-SN listener port, passed to SN-capable brokers via
	// the {udp_port} placeholder. Plain MQTT brokers ignore it.
	UDPPort int `json:"udp_port"`
	// Args are extra arguments. The placeholders {tcp_port} and {udp_port}
	// are expanded before launch.
	Args []string `json:"args"`
	// ReadyTimeoutMS bounds the wait for the TCP listener to accept.
	ReadyTimeoutMS int `json:"ready_timeout_ms"`
	// GracefulTimeoutMS is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeoutMS int `json:"graceful_timeout_ms"`
	// RestartOnFailure restarts the broker when it exits unexpectedly.
	RestartOnFailure bool `json:"restart_on_failure"`
	// RestartDelayMS is the pause before a restart attempt.
	RestartDelayMS int `json:"restart_delay_ms"`
	// MaxRestartAttempts caps restarts. 0 means unlimited.
	MaxRestartAttempts int `json:"max_restart_attempts"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Binary == "" {
		c.Binary = "mosquitto"
	}
	if c.TCPPort == 0 {
		c.TCPPort = 1883
	}
	if c.UDPPort == 0 {
		c.UDPPort = 1884
	}
	if c.ReadyTimeoutMS == 0 {
		c.ReadyTimeoutMS = 5000
	}
	if c.GracefulTimeoutMS == 0 {
		c.GracefulTimeoutMS = 5000
	}
	if c.RestartDelayMS == 0 {
		c.RestartDelayMS = 1000
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Binary == "" {
		return fmt.Errorf("broker binary is required")
	}
	if c.TCPPort <= 0 || c.TCPPort > 65535 {
		return fmt.Errorf("invalid tcp_port %d", c.TCPPort)
	}
	if c.UDPPort <= 0 || c.UDPPort > 65535 {
		return fmt.Errorf("invalid udp_port %d", c.UDPPort)
	}
	if c.UDPPort == c.TCPPort {
		return fmt.Errorf("tcp_port and udp_port must differ")
	}
	return nil
}

// MQTTSNEnabled reports whether the launch arguments wire the MQTT-SN
// listener port. mosquitto and other plain MQTT brokers never reference it.
func (c Config) MQTTSNEnabled() bool {
	for _, a := range c.Args {
		if strings.Contains(a, "{udp_port}") {
			return true
		}
	}
	return false
}

// BuildArgs assembles the launch arguments with port placeholders expanded.
func (c Config) BuildArgs() []string {
	var args []string
	if c.ConfigFile != "" {
		args = append(args, "-c", c.ConfigFile)
	}
	if len(c.Args) == 0 && c.ConfigFile == "" {
		args = append(args, "-p", strconv.Itoa(c.TCPPort))
	}
	for _, a := range c.Args {
		a = strings.ReplaceAll(a, "{tcp_port}", strconv.Itoa(c.TCPPort))
		a = strings.ReplaceAll(a, "{udp_port}", strconv.Itoa(c.UDPPort))
		args = append(args, a)
	}
	return args
}
