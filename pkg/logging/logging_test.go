package logging

import (
	"bytes"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{in: "", want: slog.LevelInfo},
		{in: "DEBUG", want: slog.LevelDebug},
		{in: " warning ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "verbose", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNew_WritesToOutputAndFile(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "heatcycle.log")

	logger, err := New(Options{Level: "debug", File: path, Output: &out})
	require.NoError(t, err)

	logger.Debug("cycle started", "entity_id", "switch.heater")
	log.Printf("server listening")
	require.NoError(t, logger.Close())

	assert.Contains(t, out.String(), "cycle started")
	assert.Contains(t, out.String(), "entity_id=switch.heater")
	assert.Contains(t, out.String(), "server listening")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "cycle started")
}

func TestNew_LevelFilters(t *testing.T) {
	defer log.SetOutput(os.Stderr)

	var out bytes.Buffer
	logger, err := New(Options{Level: "warn", Output: &out})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, out.String(), "hidden")
	assert.Contains(t, out.String(), "shown")
}
