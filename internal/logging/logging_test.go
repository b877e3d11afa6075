package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLevels(t *testing.T) {
	cases := []struct {
		level   string
		verbose bool
		want    zapcore.Level
	}{
		{"", false, zapcore.InfoLevel},
		{"warn", false, zapcore.WarnLevel},
		{"error", false, zapcore.ErrorLevel},
		{"warn", true, zapcore.DebugLevel},
	}
	for _, c := range cases {
		logger, err := New(c.level, c.verbose)
		if err != nil {
			t.Fatalf("New(%q, %v) failed: %v", c.level, c.verbose, err)
		}
		if !logger.Core().Enabled(c.want) {
			t.Errorf("New(%q, %v): expected %s enabled", c.level, c.verbose, c.want)
		}
		if c.want > zapcore.DebugLevel && logger.Core().Enabled(c.want-1) {
			t.Errorf("New(%q, %v): expected %s disabled", c.level, c.verbose, c.want-1)
		}
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("chatty", false); err == nil {
		t.Error("expected error for unknown level")
	}
}
