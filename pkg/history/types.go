package history

import (
	"context"
	"errors"
	"sort"
	"time"
)

// ErrConnection is returned when a source cannot be reached, rejects the
// credentials, or answers with something that is not a history payload.
var ErrConnection = errors.New("history source connection failed")

// StateRecord is a single state change of one entity.
type StateRecord struct {
	EntityID   string         `json:"entity_id"`
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Timestamp  time.Time      `json:"last_changed"`
}

// EntityHistory is the ordered record list of one entity.
// Timestamps never decrease.
type EntityHistory []StateRecord

// Set maps entity ids to their histories for one requested window.
type Set map[string]EntityHistory

// Source returns the history of the given entities for [start, end).
// Entities without records in the window may be missing from the result.
type Source interface {
	FetchRange(ctx context.Context, entityIDs []string, start, end time.Time) (Set, error)
}

// SourceFunc adapts a plain function to Source.
type SourceFunc func(ctx context.Context, entityIDs []string, start, end time.Time) (Set, error)

// FetchRange calls f.
func (f SourceFunc) FetchRange(ctx context.Context, entityIDs []string, start, end time.Time) (Set, error) {
	return f(ctx, entityIDs, start, end)
}

// Sort orders the history by timestamp. Records with equal timestamps keep
// their relative order.
func (h EntityHistory) Sort() {
	sort.SliceStable(h, func(i, j int) bool {
		return h[i].Timestamp.Before(h[j].Timestamp)
	})
}

// IsSorted reports whether timestamps never decrease.
func (h EntityHistory) IsSorted() bool {
	for i := 1; i < len(h); i++ {
		if h[i].Timestamp.Before(h[i-1].Timestamp) {
			return false
		}
	}
	return true
}

// Merge appends every history of other to s. The result is unsorted until
// Sort is called.
func (s Set) Merge(other Set) {
	for id, records := range other {
		s[id] = append(s[id], records...)
	}
}

// Sort sorts every history in the set.
func (s Set) Sort() {
	for _, h := range s {
		h.Sort()
	}
}

// Count returns the total number of records across all entities.
func (s Set) Count() int {
	n := 0
	for _, h := range s {
		n += len(h)
	}
	return n
}
