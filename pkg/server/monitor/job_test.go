package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJobMonitor_RecordSuccess(t *testing.T) {
	m := NewJobMonitor(time.Hour)
	m.RecordFailure(errors.New("disk full"))
	m.RecordSuccess(12)

	status := m.Status()
	assert.True(t, status.Healthy)
	assert.Equal(t, 2, status.Runs)
	assert.Equal(t, 1, status.Failures)
	assert.Equal(t, 12, status.LastItems)
	assert.Zero(t, status.ConsecutiveErrors)
	assert.Empty(t, status.LastError)
	assert.NotEmpty(t, status.LastSuccess)
	assert.NotEmpty(t, status.TimeSinceSuccess)
}

func TestJobMonitor_RecordFailure(t *testing.T) {
	m := NewOnDemandMonitor()
	m.RecordFailure(errors.New("home assistant unreachable"))

	status := m.Status()
	assert.Equal(t, 1, status.ConsecutiveErrors)
	assert.Equal(t, "home assistant unreachable", status.LastError)
	assert.NotEmpty(t, status.LastAttempt)
	assert.Empty(t, status.LastSuccess)
}

func TestJobMonitor_IsHealthy(t *testing.T) {
	failTimes := func(m *JobMonitor, n int) {
		for i := 0; i < n; i++ {
			m.RecordFailure(errors.New("boom"))
		}
	}

	tests := []struct {
		name     string
		monitor  func() *JobMonitor
		expected bool
	}{
		{
			name:     "scheduled job never succeeded",
			monitor:  func() *JobMonitor { return NewJobMonitor(time.Hour) },
			expected: false,
		},
		{
			name:     "on-demand job never ran",
			monitor:  NewOnDemandMonitor,
			expected: true,
		},
		{
			name: "recent success",
			monitor: func() *JobMonitor {
				m := NewJobMonitor(time.Hour)
				m.RecordSuccess(0)
				return m
			},
			expected: true,
		},
		{
			name: "stale success",
			monitor: func() *JobMonitor {
				m := NewJobMonitor(time.Hour)
				m.lastSuccess = time.Now().Add(-2 * time.Hour)
				return m
			},
			expected: false,
		},
		{
			name: "failures up to the limit",
			monitor: func() *JobMonitor {
				m := NewOnDemandMonitor()
				failTimes(m, MaxConsecutiveErrors)
				return m
			},
			expected: true,
		},
		{
			name: "too many consecutive errors",
			monitor: func() *JobMonitor {
				m := NewJobMonitor(time.Hour)
				m.RecordSuccess(1)
				failTimes(m, MaxConsecutiveErrors+1)
				return m
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := tt.monitor()
			assert.Equal(t, tt.expected, m.IsHealthy())
			assert.Equal(t, tt.expected, m.Status().Healthy)
		})
	}
}
