package statistics

import (
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

// Aggregate accumulates the numeric states of one entity in one bucket.
type Aggregate struct {
	EntityID string
	Start    time.Time

	Sum   float64
	Count uint64
	Min   float64
	Max   float64
	Last  float64
}

// Average returns the mean value of the bucket.
func (a *Aggregate) Average() float64 {
	if a.Count == 0 {
		return 0
	}
	return a.Sum / float64(a.Count)
}

func (a *Aggregate) add(v float64) {
	if a.Count == 0 || v < a.Min {
		a.Min = v
	}
	if a.Count == 0 || v > a.Max {
		a.Max = v
	}
	a.Sum += v
	a.Count++
	a.Last = v
}

// Row converts the aggregate into a statistics row.
func (a *Aggregate) Row() Row {
	mean, lo, hi, last := a.Average(), a.Min, a.Max, a.Last
	return Row{Start: a.Start, Mean: &mean, Min: &lo, Max: &hi, State: &last}
}

// AggregateHistory buckets the numeric states of h into periods of the given
// length. Sentinel and non-numeric states are ignored. h must be sorted;
// the result is ordered by bucket start.
func AggregateHistory(entityID string, h history.EntityHistory, period time.Duration) []Aggregate {
	var out []Aggregate
	for _, rec := range h {
		if rec.Timestamp.IsZero() || history.IsSentinel(rec.State) {
			continue
		}
		v, ok := history.ParseValue(rec.State)
		if !ok {
			continue
		}

		bucket := bucketStart(rec.Timestamp, period)
		if n := len(out); n == 0 || !out[n-1].Start.Equal(bucket) {
			out = append(out, Aggregate{EntityID: entityID, Start: bucket})
		}
		out[len(out)-1].add(v)
	}
	return out
}

// Downsample reduces h to one record per period. Scalar entities get the
// bucket mean; structured entities keep the last record of each bucket,
// attributes included, restamped at the bucket start.
func Downsample(entityID string, h history.EntityHistory, period time.Duration) history.EntityHistory {
	if period <= 0 {
		return h
	}

	if history.ClassifyEntity(entityID) == history.KindStructured {
		var out history.EntityHistory
		for _, rec := range h {
			if rec.Timestamp.IsZero() {
				continue
			}
			bucket := bucketStart(rec.Timestamp, period)
			rec.Timestamp = bucket
			if n := len(out); n > 0 && out[n-1].Timestamp.Equal(bucket) {
				out[n-1] = rec
				continue
			}
			out = append(out, rec)
		}
		return out
	}

	aggs := AggregateHistory(entityID, h, period)
	out := make(history.EntityHistory, 0, len(aggs))
	for i := range aggs {
		if rec, ok := aggs[i].Row().Record(entityID); ok {
			out = append(out, rec)
		}
	}
	return out
}

// bucketStart rounds t down to the start of its period.
func bucketStart(t time.Time, period time.Duration) time.Time {
	return t.Truncate(period)
}
