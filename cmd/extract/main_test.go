package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/heatcycle/pkg/config"
	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/export"
	"github.com/nicktill/heatcycle/pkg/history"
)

var entityFlags = []string{
	"-indoor", "sensor.office_temperature",
	"-outdoor", "sensor.outdoor_temperature",
	"-target", "climate.office",
	"-heating", "climate.office",
}

func TestParseFlags(t *testing.T) {
	args := append([]string{"-days", "14", "-split", "60", "-format", "json", "-end", "2024-02-01T00:00:00Z"}, entityFlags...)
	opts, err := parseFlags(args, config.Env{SupervisorURL: config.DefaultSupervisorURL})
	require.NoError(t, err)

	assert.Equal(t, "sensor.office_temperature", opts.device.IndoorEntity)
	assert.Equal(t, 14, opts.device.HistoryDays)
	assert.Equal(t, export.FormatJSON, opts.format)
	assert.Equal(t, config.DefaultSupervisorURL, opts.env.SupervisorURL)

	cfg, err := opts.extractionConfig(time.Now())
	require.NoError(t, err)
	end := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, end, cfg.End)
	assert.Equal(t, end.Add(-14*24*time.Hour), cfg.Start)
	assert.Equal(t, 60, cfg.SplitMinutes)
}

func TestParseFlagsPreset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
devices:
  - device_id: bedroom
    indoor_temp_entity_id: sensor.bedroom_temperature
    outdoor_temp_entity_id: sensor.outdoor_temperature
    target_temp_entity_id: climate.bedroom
    heating_state_entity_id: switch.bedroom_heater
    on_time_entity_id: sensor.bedroom_on_time
`), 0644))

	opts, err := parseFlags([]string{"-devices", path, "-device", "bedroom"}, config.Env{})
	require.NoError(t, err)
	assert.Equal(t, "bedroom", opts.device.DeviceID)

	cfg, err := opts.extractionConfig(time.Now())
	require.NoError(t, err)
	assert.Equal(t, cycles.StrategyCounter, cfg.ResolvedStrategy())

	_, err = parseFlags([]string{"-devices", path, "-device", "attic"}, config.Env{})
	assert.Equal(t, exitInvalidConfig, exitCode(err))
}

func TestStrategyOverride(t *testing.T) {
	args := append([]string{"-strategy", "counter"}, entityFlags...)
	opts, err := parseFlags(args, config.Env{})
	require.NoError(t, err)

	_, err = opts.extractionConfig(time.Now())
	assert.ErrorIs(t, err, cycles.ErrOnTimeRequired)
}

func TestParseFlagsErrors(t *testing.T) {
	_, err := parseFlags(append([]string{"-format", "xml"}, entityFlags...), config.Env{})
	assert.ErrorIs(t, err, cycles.ErrInvalidConfig)

	opts, err := parseFlags(append([]string{"-end", "yesterday"}, entityFlags...), config.Env{})
	require.NoError(t, err)
	_, err = opts.extractionConfig(time.Now())
	assert.ErrorIs(t, err, cycles.ErrInvalidConfig)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{cycles.ErrOnTimeRequired, exitInvalidConfig},
		{fmt.Errorf("x: %w", cycles.ErrNoValidCycles), exitNoCycles},
		{fmt.Errorf("fetch history: %w", history.ErrConnection), exitConnection},
		{os.ErrPermission, exitError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exitCode(tt.err), tt.err.Error())
	}
}

func TestWrite(t *testing.T) {
	examples := []cycles.TrainingExample{{
		OutdoorTemp: 4, IndoorTemp: 19, TargetTemp: 21, Humidity: 50,
		HourOfDay: 7, DurationMinutes: 40, Timestamp: time.Date(2024, 1, 5, 7, 0, 0, 0, time.UTC),
	}}

	var csvOut bytes.Buffer
	require.NoError(t, write(&csvOut, export.FormatCSV, "office", cycles.Config{}, examples))
	lines := strings.Split(strings.TrimSpace(csvOut.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(export.CSVHeader, ","), lines[0])

	var jsonOut bytes.Buffer
	require.NoError(t, write(&jsonOut, export.FormatJSON, "office", cycles.Config{}, examples))
	assert.Contains(t, jsonOut.String(), `"device_id": "office"`)
}
