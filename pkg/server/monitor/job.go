package monitor

import (
	"sync"
	"time"
)

// MaxConsecutiveErrors is how many failures in a row a job may have before
// it is reported unhealthy.
const MaxConsecutiveErrors = 3

// JobMonitor tracks the outcome of a recurring or on-demand job.
type JobMonitor struct {
	// maxAge > 0 marks a scheduled job: it must have succeeded at least
	// once and within maxAge to be healthy.
	maxAge time.Duration

	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	consecutiveErrors int
	lastError         string
	runs              int
	failures          int
	lastItems         int
}

// NewJobMonitor returns a monitor for a scheduled job that must succeed
// every maxAge.
func NewJobMonitor(maxAge time.Duration) *JobMonitor {
	return &JobMonitor{maxAge: maxAge}
}

// NewOnDemandMonitor returns a monitor for a job that only runs when asked
// to, such as extraction. Never having run is healthy.
func NewOnDemandMonitor() *JobMonitor {
	return &JobMonitor{}
}

// RecordSuccess records a successful run that produced items results.
func (m *JobMonitor) RecordSuccess(items int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	m.lastSuccess = now
	m.lastAttempt = now
	m.consecutiveErrors = 0
	m.lastError = ""
	m.runs++
	m.lastItems = items
}

// RecordFailure records a failed run.
func (m *JobMonitor) RecordFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastAttempt = time.Now()
	m.consecutiveErrors++
	m.runs++
	m.failures++
	if err != nil {
		m.lastError = err.Error()
	}
}

// IsHealthy reports whether the job is working properly.
func (m *JobMonitor) IsHealthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthyLocked()
}

func (m *JobMonitor) healthyLocked() bool {
	if m.consecutiveErrors > MaxConsecutiveErrors {
		return false
	}
	if m.maxAge <= 0 {
		return true
	}
	return !m.lastSuccess.IsZero() && time.Since(m.lastSuccess) <= m.maxAge
}

// JobStatus is the health-check view of a JobMonitor.
type JobStatus struct {
	Healthy           bool   `json:"healthy"`
	Runs              int    `json:"runs"`
	Failures          int    `json:"failures,omitempty"`
	LastItems         int    `json:"last_items,omitempty"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns the current job status.
func (m *JobMonitor) Status() JobStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status := JobStatus{
		Healthy:   m.healthyLocked(),
		Runs:      m.runs,
		Failures:  m.failures,
		LastItems: m.lastItems,
	}

	if !m.lastSuccess.IsZero() {
		status.LastSuccess = m.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(m.lastSuccess).Round(time.Second).String()
	}
	if !m.lastAttempt.IsZero() {
		status.LastAttempt = m.lastAttempt.Format(time.RFC3339)
	}
	if m.consecutiveErrors > 0 {
		status.ConsecutiveErrors = m.consecutiveErrors
		status.LastError = m.lastError
	}
	return status
}
