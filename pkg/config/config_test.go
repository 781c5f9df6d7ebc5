package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicktill/heatcycle/pkg/cycles"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestLoadDefaults(t *testing.T) {
	env := loadFrom(envMap(nil))

	assert.Equal(t, DefaultPort, env.Port)
	assert.Equal(t, DefaultDataDir, env.DataDir)
	assert.Equal(t, int64(DefaultMaxStorageGB), env.MaxStorageGB)
	assert.Equal(t, int64(DefaultMaxMemoryMB), env.MaxMemoryMB)
	assert.Equal(t, DefaultSupervisorURL, env.SupervisorURL)
	assert.Equal(t, DefaultMQTTTopic, env.MQTTTopic)
	assert.Equal(t, StatisticsWebSocket, env.Statistics)
	assert.Empty(t, env.Token)
	assert.Empty(t, env.MQTTBroker)
}

func TestLoadOverrides(t *testing.T) {
	env := loadFrom(envMap(map[string]string{
		"PORT":                        "9000",
		"SUPERVISOR_URL":              "http://ha.local:8123",
		"SUPERVISOR_TOKEN":            "secret",
		"HEATCYCLE_MAX_STORAGE_GB":    "4",
		"HEATCYCLE_MAX_MEMORY_MB":     "not-a-number",
		"HEATCYCLE_MQTT_BROKER":       "tcp://core-mosquitto:1883",
		"HEATCYCLE_STATISTICS_SOURCE": "Downsample",
		"LOG_LEVEL":                   "debug",
	}))

	assert.Equal(t, "9000", env.Port)
	assert.Equal(t, "http://ha.local:8123", env.SupervisorURL)
	assert.Equal(t, "secret", env.Token)
	assert.Equal(t, int64(4), env.MaxStorageGB)
	assert.Equal(t, int64(DefaultMaxMemoryMB), env.MaxMemoryMB, "malformed value falls back")
	assert.Equal(t, "tcp://core-mosquitto:1883", env.MQTTBroker)
	assert.Equal(t, StatisticsDownsample, env.Statistics)
	assert.Equal(t, "debug", env.LogLevel)
}

func TestGetEnvInt64RejectsNonPositive(t *testing.T) {
	got := getEnvInt64(envMap(map[string]string{"N": "-3"}), "N", 7)
	assert.Equal(t, int64(7), got)
}

func validDevice() Device {
	return Device{
		DeviceID:      "living_room",
		IndoorEntity:  "sensor.living_room_temperature",
		OutdoorEntity: "sensor.outdoor_temperature",
		TargetEntity:  "climate.living_room",
		HeatingEntity: "climate.living_room",
	}
}

func TestDeviceExtractionConfig(t *testing.T) {
	now := time.Date(2024, 2, 1, 12, 0, 0, 0, time.UTC)

	cfg, err := validDevice().ExtractionConfig(now)
	require.NoError(t, err)
	assert.Equal(t, now, cfg.End)
	assert.Equal(t, now.Add(-DefaultHistoryDays*24*time.Hour), cfg.Start)
	assert.Equal(t, cycles.StrategyBoolean, cfg.ResolvedStrategy())
	assert.Nil(t, cfg.Location)

	d := validDevice()
	d.HistoryDays = 7
	d.OnTimeEntity = "sensor.thermostat_on_time"
	d.UseStatistics = true
	d.Timezone = "Europe/Paris"
	cfg, err = d.ExtractionConfig(now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(-7*24*time.Hour), cfg.Start)
	assert.Equal(t, cycles.StrategyStatistics, cfg.ResolvedStrategy())
	require.NotNil(t, cfg.Location)
	assert.Equal(t, "Europe/Paris", cfg.Location.String())
}

func TestDeviceValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Device)
	}{
		{"missing device id", func(d *Device) { d.DeviceID = "" }},
		{"history too long", func(d *Device) { d.HistoryDays = MaxHistoryDays + 1 }},
		{"negative history", func(d *Device) { d.HistoryDays = -1 }},
		{"bad timezone", func(d *Device) { d.Timezone = "Mars/Olympus" }},
		{"split too short", func(d *Device) { d.SplitMinutes = 5 }},
		{"statistics without on-time", func(d *Device) { d.UseStatistics = true }},
		{"missing indoor", func(d *Device) { d.IndoorEntity = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDevice()
			tt.mutate(&d)
			_, err := d.ExtractionConfig(time.Now())
			require.Error(t, err)
			assert.ErrorIs(t, err, cycles.ErrInvalidConfig)
		})
	}
}

const devicesYAML = `
devices:
  - device_id: office
    indoor_temp_entity_id: sensor.office_temperature
    outdoor_temp_entity_id: sensor.outdoor_temperature
    target_temp_entity_id: climate.office
    heating_state_entity_id: climate.office
    cycle_split_duration_minutes: 60
  - device_id: bedroom
    indoor_temp_entity_id: sensor.bedroom_temperature
    outdoor_temp_entity_id: sensor.outdoor_temperature
    target_temp_entity_id: climate.bedroom
    heating_state_entity_id: switch.bedroom_heater
    on_time_entity_id: sensor.bedroom_on_time
    on_time_buffer_minutes: 20
    history_days: 14
`

func TestParseDevices(t *testing.T) {
	devices, err := ParseDevices([]byte(devicesYAML))
	require.NoError(t, err)
	require.Equal(t, 2, devices.Len())

	list := devices.List()
	assert.Equal(t, "bedroom", list[0].DeviceID)
	assert.Equal(t, "office", list[1].DeviceID)

	bedroom, err := devices.Get("bedroom")
	require.NoError(t, err)
	assert.Equal(t, 14, bedroom.HistoryDays)
	assert.Equal(t, 20, bedroom.OnTimeBufferMinutes)
	assert.Equal(t, "sensor.bedroom_on_time", bedroom.OnTimeEntity)

	office, err := devices.Get("office")
	require.NoError(t, err)
	assert.Equal(t, 60, office.SplitMinutes)

	_, err = devices.Get("garage")
	assert.ErrorIs(t, err, ErrUnknownDevice)
}

func TestParseDevicesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "devices: [\n"},
		{"duplicate id", `
devices:
  - device_id: a
    indoor_temp_entity_id: sensor.i
    outdoor_temp_entity_id: sensor.o
    target_temp_entity_id: sensor.t
    heating_state_entity_id: switch.h
  - device_id: a
    indoor_temp_entity_id: sensor.i
    outdoor_temp_entity_id: sensor.o
    target_temp_entity_id: sensor.t
    heating_state_entity_id: switch.h
`},
		{"invalid device", `
devices:
  - device_id: a
    outdoor_temp_entity_id: sensor.o
`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseDevices([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoadDevices(t *testing.T) {
	empty, err := LoadDevices("")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	path := filepath.Join(t.TempDir(), "devices.yaml")
	require.NoError(t, os.WriteFile(path, []byte(devicesYAML), 0644))
	devices, err := LoadDevices(path)
	require.NoError(t, err)
	assert.Equal(t, 2, devices.Len())

	_, err = LoadDevices(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
