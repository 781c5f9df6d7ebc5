package storage

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/nicktill/heatcycle/pkg/cycles"
)

// Dataset is the stored result of one extraction run.
type Dataset struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	CreatedAt time.Time `json:"created_at"`

	// Extraction window and settings
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Strategy     string    `json:"strategy"`
	SplitMinutes int       `json:"cycle_split_duration_minutes,omitempty"`

	ExampleCount int                      `json:"example_count"`
	Examples     []cycles.TrainingExample `json:"examples,omitempty"`
}

// NewDataset wraps extracted examples in a dataset with a fresh id.
func NewDataset(deviceID string, cfg cycles.Config, examples []cycles.TrainingExample) *Dataset {
	return &Dataset{
		ID:           uuid.NewString(),
		DeviceID:     deviceID,
		CreatedAt:    time.Now().UTC(),
		Start:        cfg.Start,
		End:          cfg.End,
		Strategy:     string(cfg.ResolvedStrategy()),
		SplitMinutes: cfg.SplitMinutes,
		ExampleCount: len(examples),
		Examples:     examples,
	}
}

// Summary returns a copy without examples.
func (d *Dataset) Summary() Dataset {
	s := *d
	s.Examples = nil
	return s
}

// Validate checks the fields every backend relies on.
func (d *Dataset) Validate() error {
	if _, err := ParseID(d.ID); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		return fmt.Errorf("dataset %s: created_at is required", d.ID)
	}
	return nil
}

// ParseID parses a dataset id.
func ParseID(id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.UUID{}, fmt.Errorf("%w %q: %v", ErrInvalidID, id, err)
	}
	return u, nil
}

// SortNewestFirst orders datasets by creation time, newest first. Ties are
// broken by id to keep the order stable.
func SortNewestFirst(ds []Dataset) {
	sort.Slice(ds, func(i, j int) bool {
		if !ds[i].CreatedAt.Equal(ds[j].CreatedAt) {
			return ds[i].CreatedAt.After(ds[j].CreatedAt)
		}
		return ds[i].ID < ds[j].ID
	})
}
