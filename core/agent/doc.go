// Package agent implements the poll/publish loop at the heart of gpiolink.
//
// It watches a configured set of digital input pins, publishes a JSON
// ButtonEvent per observed state change and drives LEDs from commands
// received on the wildcard filter <prefix>/led/+/set.
//
// Key components:
//   - Agent: samples pins on a ticker, compares against the last observed
//     levels and publishes one message per change.
//   - Session: the MQTT surface the agent needs, mockable in tests.
//   - Topic helpers mapping pins and LEDs to the gpiolink topic layout.
//
// The loop terminates on context cancellation or when the configured stop
// pin reads true. On exit every watched pin is marked offline with a
// retained status message.
package agent
