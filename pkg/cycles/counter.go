package cycles

import (
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

// onTimeValue reads a cumulative on-time record. Sentinel states count as
// zero; any other unparseable state makes the record unusable.
func onTimeValue(rec history.StateRecord) (float64, bool) {
	if history.IsSentinel(rec.State) {
		return 0, true
	}
	return history.ParseValue(rec.State)
}

// stepCounter advances the cumulative-counter detector by one on-time
// record.
//
// Temperature conditions close a cycle at the current record. A stop in
// heating is debounced: the cycle only closes once no heating was seen for
// buffer, and it closes at the last heating record rather than at the record
// that noticed the timeout.
func (r *run) stepCounter(acc *accumulator, rec history.StateRecord, buffer time.Duration) (*accumulator, *closedCycle) {
	onTime, ok := onTimeValue(rec)
	if !ok {
		r.logger.Debug("skipping unparseable on-time record",
			"entity_id", rec.EntityID, "state", rec.State)
		return acc, nil
	}

	t := rec.Timestamp
	heating := onTime > 0
	indoor := r.sensors.indoor.valueAt(r.set, t)
	target := r.sensors.target.valueAt(r.set, t)

	if acc == nil {
		if !shouldStart(heating, indoor, target) {
			return nil, nil
		}
		acc = r.open(t, indoor, target)
		acc.lastHeatingTime = t
		return acc, nil
	}

	if heating {
		acc.lastHeatingTime = t
	} else if t.Sub(acc.lastHeatingTime) >= buffer {
		closed := r.close(acc, acc.lastHeatingTime, reasonHeatingStopped)
		return nil, &closed
	}

	if reason := temperatureEnd(indoor, target); reason != "" {
		closed := r.close(acc, t, reason)
		return nil, &closed
	}
	return acc, nil
}

// detectCounter runs the counter detector over the on-time entity's history.
// A cycle still open when the history ends is dropped.
func (r *run) detectCounter(onTime entityRef, buffer time.Duration) []closedCycle {
	var (
		acc    *accumulator
		closed []closedCycle
	)
	for _, rec := range r.set[onTime.id] {
		if rec.Timestamp.IsZero() {
			continue
		}
		var c *closedCycle
		acc, c = r.stepCounter(acc, rec, buffer)
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
