package cycles

import (
	"log/slog"
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

type endReason string

const (
	reasonHeatingOff     endReason = "heating_off"
	reasonHeatingStopped endReason = "heating_stopped"
	reasonTargetExceeded endReason = "target_exceeded"
	reasonTargetReached  endReason = "target_reached"
)

// accumulator holds the snapshot taken when a cycle starts. A nil
// *accumulator means the machine is idle.
type accumulator struct {
	startTime    time.Time
	startIndoor  reading
	startTarget  reading
	startOutdoor reading
	humidity     float64

	// lastHeatingTime is only used by the counter detector.
	lastHeatingTime time.Time
}

// closedCycle is a finished cycle before validation and splitting.
type closedCycle struct {
	accumulator
	endTime time.Time
	endTemp reading
	reason  endReason
}

func (c closedCycle) durationMinutes() float64 {
	return c.endTime.Sub(c.startTime).Minutes()
}

// run is the per-call detection context shared by both detectors.
type run struct {
	set     history.Set
	sensors sensors
	logger  *slog.Logger
}

// open snapshots the start of a cycle at t.
func (r *run) open(t time.Time, indoor, target reading) *accumulator {
	acc := &accumulator{
		startTime:    t,
		startIndoor:  indoor,
		startTarget:  target,
		startOutdoor: r.sensors.outdoor.valueAt(r.set, t),
		humidity:     r.sensors.humidityAt(r.set, t),
	}
	r.logger.Debug("heating cycle started",
		"start", t.Format(time.RFC3339), "indoor", indoor.value, "target", target.value)
	return acc
}

// close finalizes acc at end; the end temperature is the indoor temperature
// in effect at end.
func (r *run) close(acc *accumulator, end time.Time, reason endReason) closedCycle {
	c := closedCycle{
		accumulator: *acc,
		endTime:     end,
		endTemp:     r.sensors.indoor.valueAt(r.set, end),
		reason:      reason,
	}
	r.logger.Debug("heating cycle ended",
		"end", end.Format(time.RFC3339), "reason", string(reason),
		"duration_minutes", c.durationMinutes())
	return c
}

// stepBoolean advances the boolean-signal machine by one heating-signal
// record. It returns the accumulator to carry into the next step (nil when
// idle) and the cycle closed by this record, if any.
func (r *run) stepBoolean(acc *accumulator, rec history.StateRecord, heatingKind history.Kind) (*accumulator, *closedCycle) {
	t := rec.Timestamp
	heating := history.IsHeating(rec, heatingKind)
	indoor := r.sensors.indoor.valueAt(r.set, t)
	target := r.sensors.target.valueAt(r.set, t)

	if acc == nil {
		if shouldStart(heating, indoor, target) {
			return r.open(t, indoor, target), nil
		}
		return nil, nil
	}

	reason := reasonHeatingOff
	if heating {
		reason = temperatureEnd(indoor, target)
	}
	if reason == "" {
		return acc, nil
	}
	closed := r.close(acc, t, reason)
	return nil, &closed
}

// detectBoolean runs the boolean-signal machine over the heating entity's
// history. A cycle still open when the history ends is dropped.
func (r *run) detectBoolean(heating entityRef) []closedCycle {
	var (
		acc    *accumulator
		closed []closedCycle
	)
	for _, rec := range r.set[heating.id] {
		if rec.Timestamp.IsZero() {
			continue
		}
		var c *closedCycle
		acc, c = r.stepBoolean(acc, rec, heating.kind)
		if c != nil {
			closed = append(closed, *c)
		}
	}
	if acc != nil {
		r.logger.Debug("dropping open heating cycle at end of history",
			"start", acc.startTime.Format(time.RFC3339))
	}
	return closed
}
