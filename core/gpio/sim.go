package gpio

import "sync"

// SimBoard is an in-memory Board for tests and development hosts without
// real hardware. Inputs are set programmatically via SetPin.
type SimBoard struct {
	mu   sync.RWMutex
	pins []bool
	leds []bool
}

// NewSimBoard creates a simulated board with the given number of input pins
// and LEDs. All inputs read false and all LEDs start off.
func NewSimBoard(pins, leds int) *SimBoard {
	return &SimBoard{pins: make([]bool, pins), leds: make([]bool, leds)}
}

// ReadPin samples the simulated input at the given index.
func (b *SimBoard) ReadPin(pin int) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if pin < 0 || pin >= len(b.pins) {
		return false, ErrPinOutOfRange
	}
	return b.pins[pin], nil
}

// SetPin drives a simulated input, mimicking a button press or release.
func (b *SimBoard) SetPin(pin int, pressed bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if pin < 0 || pin >= len(b.pins) {
		return ErrPinOutOfRange
	}
	b.pins[pin] = pressed
	return nil
}

// SetLED drives the simulated LED to the requested state.
func (b *SimBoard) SetLED(led int, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if led < 0 || led >= len(b.leds) {
		return ErrPinOutOfRange
	}
	b.leds[led] = on
	return nil
}

// ToggleLED inverts the simulated LED and returns the new state.
func (b *SimBoard) ToggleLED(led int) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if led < 0 || led >= len(b.leds) {
		return false, ErrPinOutOfRange
	}
	b.leds[led] = !b.leds[led]
	return b.leds[led], nil
}

// LED reports the current state of the simulated LED.
func (b *SimBoard) LED(led int) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if led < 0 || led >= len(b.leds) {
		return false, ErrPinOutOfRange
	}
	return b.leds[led], nil
}
