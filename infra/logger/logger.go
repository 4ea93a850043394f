package logger

import corelogger "github.com/matthieuc/gpiolink/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger discards every log call.
type NopLogger = corelogger.Nop

// New returns a Logger for the given component. Output format and level are
// controlled by the GPIOLINK_ENV and GPIOLINK_LOG_LEVEL environment variables.
func New(component string) Logger {
	return NewZerologLogger(component)
}
