package logging

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"Warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestSetup_InfoLevel_FiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	defer slog.SetDefault(slog.Default())

	logger := Setup("info", &buf)
	logger.Debug("debug msg")
	logger.Info("info msg")

	out := buf.String()
	assert.NotContains(t, out, "debug msg")
	assert.Contains(t, out, "info msg")
}

func TestSetup_TimeIsRFC3339UTC(t *testing.T) {
	var buf bytes.Buffer
	defer slog.SetDefault(slog.Default())

	Setup("debug", &buf).Info("hello")

	assert.Regexp(t, regexp.MustCompile(`time=\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`), buf.String())
}

func TestSetup_InstallsDefault(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	defer slog.SetDefault(prev)

	Setup("info", &buf)
	slog.Info("via default")

	assert.Contains(t, buf.String(), "via default")
}
