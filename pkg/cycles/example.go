package cycles

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// MaxCycleMinutes bounds the duration of a single training example.
const MaxCycleMinutes = 300.0

// ErrInvalidExample is returned by NewTrainingExample for out-of-range values.
var ErrInvalidExample = errors.New("invalid training example")

// TrainingExample is one labeled heating run: starting at IndoorTemp, the
// room reached TargetTemp after DurationMinutes.
type TrainingExample struct {
	OutdoorTemp           float64   `json:"outdoor_temp"`
	IndoorTemp            float64   `json:"indoor_temp"`
	TargetTemp            float64   `json:"target_temp"`
	Humidity              float64   `json:"humidity"`
	HourOfDay             int       `json:"hour_of_day"`
	MinutesSinceLastCycle float64   `json:"minutes_since_last_cycle"`
	DurationMinutes       float64   `json:"heating_duration_minutes"`
	Timestamp             time.Time `json:"timestamp"`
}

// NewTrainingExample validates the fields and returns the example.
func NewTrainingExample(e TrainingExample) (TrainingExample, error) {
	checks := []struct {
		name     string
		value    float64
		min, max float64
	}{
		{"outdoor_temp", e.OutdoorTemp, -50, 60},
		{"indoor_temp", e.IndoorTemp, -20, 50},
		{"target_temp", e.TargetTemp, 0, 50},
		{"humidity", e.Humidity, 0, 100},
		{"hour_of_day", float64(e.HourOfDay), 0, 23},
	}
	for _, c := range checks {
		if math.IsNaN(c.value) || c.value < c.min || c.value > c.max {
			return TrainingExample{}, fmt.Errorf("%w: %s must be between %v and %v, got %v",
				ErrInvalidExample, c.name, c.min, c.max, c.value)
		}
	}
	if !(e.DurationMinutes > 0 && e.DurationMinutes < MaxCycleMinutes) {
		return TrainingExample{}, fmt.Errorf("%w: duration must be in (0, %v) minutes, got %v",
			ErrInvalidExample, MaxCycleMinutes, e.DurationMinutes)
	}
	if e.MinutesSinceLastCycle < 0 || math.IsNaN(e.MinutesSinceLastCycle) {
		return TrainingExample{}, fmt.Errorf("%w: minutes since last cycle must not be negative, got %v",
			ErrInvalidExample, e.MinutesSinceLastCycle)
	}
	if e.Timestamp.IsZero() {
		return TrainingExample{}, fmt.Errorf("%w: timestamp is required", ErrInvalidExample)
	}
	return e, nil
}
