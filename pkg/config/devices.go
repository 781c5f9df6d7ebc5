package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"
	_ "time/tzdata" // add-on images ship without a zoneinfo database

	"gopkg.in/yaml.v3"

	"github.com/nicktill/heatcycle/pkg/cycles"
)

// ErrInvalidDevice is returned for device presets that cannot be extracted.
// It wraps cycles.ErrInvalidConfig so callers can treat both alike.
var ErrInvalidDevice = fmt.Errorf("%w: invalid device", cycles.ErrInvalidConfig)

// ErrUnknownDevice is returned when no preset has the requested id.
var ErrUnknownDevice = errors.New("unknown device")

// Device is one thermostat's extraction preset. The same shape is accepted
// as the body of an ad-hoc extraction request.
type Device struct {
	DeviceID            string `yaml:"device_id" json:"device_id"`
	IndoorEntity        string `yaml:"indoor_temp_entity_id" json:"indoor_temp_entity_id"`
	OutdoorEntity       string `yaml:"outdoor_temp_entity_id" json:"outdoor_temp_entity_id"`
	TargetEntity        string `yaml:"target_temp_entity_id" json:"target_temp_entity_id"`
	HeatingEntity       string `yaml:"heating_state_entity_id" json:"heating_state_entity_id"`
	HumidityEntity      string `yaml:"humidity_entity_id,omitempty" json:"humidity_entity_id,omitempty"`
	OnTimeEntity        string `yaml:"on_time_entity_id,omitempty" json:"on_time_entity_id,omitempty"`
	HistoryDays         int    `yaml:"history_days,omitempty" json:"history_days,omitempty"`
	SplitMinutes        int    `yaml:"cycle_split_duration_minutes,omitempty" json:"cycle_split_duration_minutes,omitempty"`
	OnTimeBufferMinutes int    `yaml:"on_time_buffer_minutes,omitempty" json:"on_time_buffer_minutes,omitempty"`
	UseStatistics       bool   `yaml:"use_statistics,omitempty" json:"use_statistics,omitempty"`
	Timezone            string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// Days returns the history window in days, applying the default.
func (d Device) Days() int {
	if d.HistoryDays == 0 {
		return DefaultHistoryDays
	}
	return d.HistoryDays
}

// Validate checks the fields the extraction config does not cover.
func (d Device) Validate() error {
	if d.DeviceID == "" {
		return fmt.Errorf("%w: device_id is required", ErrInvalidDevice)
	}
	if days := d.Days(); days < MinHistoryDays || days > MaxHistoryDays {
		return fmt.Errorf("%w: history_days must be between %d and %d, got %d",
			ErrInvalidDevice, MinHistoryDays, MaxHistoryDays, days)
	}
	if d.Timezone != "" {
		if _, err := time.LoadLocation(d.Timezone); err != nil {
			return fmt.Errorf("%w: timezone %q: %v", ErrInvalidDevice, d.Timezone, err)
		}
	}
	return nil
}

// ExtractionConfig builds the extraction config for the window ending at now.
func (d Device) ExtractionConfig(now time.Time) (cycles.Config, error) {
	if err := d.Validate(); err != nil {
		return cycles.Config{}, err
	}

	cfg := cycles.Config{
		IndoorEntity:        d.IndoorEntity,
		OutdoorEntity:       d.OutdoorEntity,
		TargetEntity:        d.TargetEntity,
		HeatingEntity:       d.HeatingEntity,
		HumidityEntity:      d.HumidityEntity,
		OnTimeEntity:        d.OnTimeEntity,
		Start:               now.Add(-time.Duration(d.Days()) * 24 * time.Hour),
		End:                 now,
		SplitMinutes:        d.SplitMinutes,
		OnTimeBufferMinutes: d.OnTimeBufferMinutes,
	}
	if d.UseStatistics {
		cfg.Strategy = cycles.StrategyStatistics
	}
	if d.Timezone != "" {
		loc, _ := time.LoadLocation(d.Timezone)
		cfg.Location = loc
	}
	if err := cfg.Validate(); err != nil {
		return cycles.Config{}, err
	}
	return cfg, nil
}

// Devices is a read-only set of presets keyed by device id.
type Devices struct {
	byID map[string]Device
}

type devicesFile struct {
	Devices []Device `yaml:"devices"`
}

// LoadDevices reads presets from a YAML file. An empty path yields an empty set.
func LoadDevices(path string) (*Devices, error) {
	if path == "" {
		return &Devices{byID: map[string]Device{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read devices file: %w", err)
	}
	return ParseDevices(data)
}

// ParseDevices parses and validates a YAML devices document.
func ParseDevices(data []byte) (*Devices, error) {
	var file devicesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	devices := &Devices{byID: make(map[string]Device, len(file.Devices))}
	for i, d := range file.Devices {
		if _, err := d.ExtractionConfig(time.Now()); err != nil {
			return nil, fmt.Errorf("device %d (%q): %w", i, d.DeviceID, err)
		}
		if _, dup := devices.byID[d.DeviceID]; dup {
			return nil, fmt.Errorf("%w: duplicate device_id %q", ErrInvalidDevice, d.DeviceID)
		}
		devices.byID[d.DeviceID] = d
	}
	return devices, nil
}

// Get returns the preset for id.
func (ds *Devices) Get(id string) (Device, error) {
	d, ok := ds.byID[id]
	if !ok {
		return Device{}, fmt.Errorf("%w: %q", ErrUnknownDevice, id)
	}
	return d, nil
}

// List returns all presets sorted by device id.
func (ds *Devices) List() []Device {
	out := make([]Device, 0, len(ds.byID))
	for _, d := range ds.byID {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// Len returns the number of presets.
func (ds *Devices) Len() int {
	return len(ds.byID)
}
