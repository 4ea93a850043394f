package agent

import (
	"fmt"
	"strconv"
	"strings"
)

// Topic layout under the configured prefix:
//
//	<prefix>/button/<pin>/state   JSON ButtonEvent per observed change
//	<prefix>/button/<pin>/status  retained "online"/"offline"
//	<prefix>/led/<led>/set        LED commands consumed by the agent
func ButtonStateTopic(prefix string, pin int) string {
	return fmt.Sprintf("%s/button/%d/state", prefix, pin)
}

func ButtonStatusTopic(prefix string, pin int) string {
	return fmt.Sprintf("%s/button/%d/status", prefix, pin)
}

// LEDSetFilter returns the wildcard filter matching every LED command topic.
func LEDSetFilter(prefix string) string {
	return prefix + "/led/+/set"
}

// LEDIndexFromTopic extracts the LED index from a command topic.
func LEDIndexFromTopic(topic string) (int, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-1] != "set" || parts[len(parts)-3] != "led" {
		return 0, fmt.Errorf("unexpected led topic %q", topic)
	}
	idx, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0, fmt.Errorf("led index in topic %q: %w", topic, err)
	}
	return idx, nil
}
