package statistics

import (
	"context"
	"time"

	"github.com/nicktill/heatcycle/pkg/history"
)

// Source serves statistics by downsampling full-resolution history from
// another source.
type Source struct {
	history history.Source
	period  time.Duration
}

// NewSource wraps src. Unknown periods fall back to Period5m.
func NewSource(src history.Source, period Period) *Source {
	d := period.Duration()
	if d == 0 {
		d = Period5m.Duration()
	}
	return &Source{history: src, period: d}
}

// FetchRange implements history.Source.
func (s *Source) FetchRange(ctx context.Context, entityIDs []string, start, end time.Time) (history.Set, error) {
	set, err := s.history.FetchRange(ctx, entityIDs, start, end)
	if err != nil {
		return nil, err
	}

	out := make(history.Set, len(set))
	for id, h := range set {
		h.Sort()
		if ds := Downsample(id, h, s.period); len(ds) > 0 {
			out[id] = ds
		}
	}
	return out, nil
}
