package gpio

import "errors"

// ErrPinOutOfRange is returned when a pin or LED index is not present on the
// board.
var ErrPinOutOfRange = errors.New("pin index out of range")

// Board abstracts the digital I/O surface the agent drives: indexed digital
// inputs (buttons) and indexed digital outputs (LEDs).
type Board interface {
	// ReadPin samples the digital input at the given index.
	ReadPin(pin int) (bool, error)

	// SetLED drives the LED at the given index to the requested state.
	SetLED(led int, on bool) error

	// ToggleLED inverts the LED at the given index and returns the new state.
	ToggleLED(led int) (bool, error)
}
