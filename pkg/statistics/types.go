package statistics

import (
	"strconv"
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

// Period is a statistics period as named by Home Assistant.
type Period string

const (
	Period5m   Period = "5minute"
	PeriodHour Period = "hour"
)

// Duration returns the length of the period, or 0 for unknown periods.
func (p Period) Duration() time.Duration {
	switch p {
	case Period5m:
		return 5 * time.Minute
	case PeriodHour:
		return time.Hour
	}
	return 0
}

// Row is one statistics row. Missing values are nil.
type Row struct {
	Start time.Time
	Mean  *float64
	Min   *float64
	Max   *float64
	State *float64
	Sum   *float64
}

// Value returns the value used for the row's state record: mean, then
// state, then sum.
func (r Row) Value() (float64, bool) {
	for _, v := range []*float64{r.Mean, r.State, r.Sum} {
		if v != nil {
			return *v, true
		}
	}
	return 0, false
}

// Record converts the row into a state record for entityID. It returns false
// when the row has no usable value or no start time.
func (r Row) Record(entityID string) (history.StateRecord, bool) {
	v, ok := r.Value()
	if !ok || r.Start.IsZero() {
		return history.StateRecord{}, false
	}
	return history.StateRecord{
		EntityID:  entityID,
		State:     strconv.FormatFloat(v, 'f', -1, 64),
		Timestamp: r.Start,
	}, true
}

// ToSet converts statistics rows per entity into a sorted history set.
// Rows without a usable value are dropped.
func ToSet(rows map[string][]Row) history.Set {
	set := make(history.Set, len(rows))
	for id, rs := range rows {
		h := make(history.EntityHistory, 0, len(rs))
		for _, r := range rs {
			if rec, ok := r.Record(id); ok {
				h = append(h, rec)
			}
		}
		if len(h) == 0 {
			continue
		}
		h.Sort()
		set[id] = h
	}
	return set
}
