package cycles

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTrainingExample(t *testing.T) {
	valid := TrainingExample{
		OutdoorTemp:     2,
		IndoorTemp:      18.5,
		TargetTemp:      21,
		Humidity:        50,
		HourOfDay:       7,
		DurationMinutes: 42,
		Timestamp:       t0,
	}

	tests := []struct {
		name   string
		modify func(*TrainingExample)
		ok     bool
	}{
		{name: "valid", modify: func(e *TrainingExample) {}, ok: true},
		{name: "zero duration", modify: func(e *TrainingExample) { e.DurationMinutes = 0 }},
		{name: "duration of 300", modify: func(e *TrainingExample) { e.DurationMinutes = 300 }},
		{name: "duration just under 300", modify: func(e *TrainingExample) { e.DurationMinutes = 299.9 }, ok: true},
		{name: "outdoor too cold", modify: func(e *TrainingExample) { e.OutdoorTemp = -51 }},
		{name: "indoor too hot", modify: func(e *TrainingExample) { e.IndoorTemp = 51 }},
		{name: "negative target", modify: func(e *TrainingExample) { e.TargetTemp = -1 }},
		{name: "humidity over 100", modify: func(e *TrainingExample) { e.Humidity = 101 }},
		{name: "hour 24", modify: func(e *TrainingExample) { e.HourOfDay = 24 }},
		{name: "negative since last", modify: func(e *TrainingExample) { e.MinutesSinceLastCycle = -1 }},
		{name: "NaN indoor", modify: func(e *TrainingExample) { e.IndoorTemp = math.NaN() }},
		{name: "missing timestamp", modify: func(e *TrainingExample) { e.Timestamp = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := valid
			tt.modify(&e)
			got, err := NewTrainingExample(e)
			if tt.ok {
				require.NoError(t, err)
				assert.Equal(t, e, got)
				return
			}
			assert.ErrorIs(t, err, ErrInvalidExample)
		})
	}
}
