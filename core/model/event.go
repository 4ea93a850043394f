package model

import "time"

// ButtonEvent is published whenever a watched input pin changes state.
type ButtonEvent struct {
	MessageID string    `json:"message_id"`
	Pin       int       `json:"pin"`
	Pressed   bool      `json:"pressed"`
	Timestamp time.Time `json:"timestamp"`
}

// LEDCommand instructs the agent to drive an LED. Action is one of "on",
// "off" or "toggle".
type LEDCommand struct {
	Action string `json:"action"`
}

// Valid reports whether the action is one the agent understands.
func (c LEDCommand) Valid() bool {
	switch c.Action {
	case ActionOn, ActionOff, ActionToggle:
		return true
	}
	return false
}

// LED command actions.
const (
	ActionOn     = "on"
	ActionOff    = "off"
	ActionToggle = "toggle"
)

// Status payloads published on the per-pin status topics.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)
