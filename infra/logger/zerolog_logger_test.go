package logger

import (
	"testing"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("GPIOLINK_ENV", "dev")
	t.Setenv("GPIOLINK_LOG_LEVEL", "debug")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerBadLevelFallsBack(t *testing.T) {
	t.Setenv("GPIOLINK_LOG_LEVEL", "shouting")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Infof("still logs at info")
}
