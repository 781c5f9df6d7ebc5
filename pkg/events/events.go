package events

import (
	"context"
	"errors"
	"time"

	"github.com/nicktill/heatcycle/pkg/storage"
)

// Event types
const (
	TypeDatasetCreated = "dataset_created"
	TypeDatasetDeleted = "dataset_deleted"
)

// Event is pushed to subscribers when the dataset store changes.
type Event struct {
	Type         string    `json:"type"`
	Timestamp    int64     `json:"timestamp"`
	DatasetID    string    `json:"dataset_id"`
	DeviceID     string    `json:"device_id,omitempty"`
	ExampleCount int       `json:"example_count,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
}

// DatasetCreated builds the event for a freshly stored dataset.
func DatasetCreated(ds *storage.Dataset) Event {
	return Event{
		Type:         TypeDatasetCreated,
		Timestamp:    time.Now().Unix(),
		DatasetID:    ds.ID,
		DeviceID:     ds.DeviceID,
		ExampleCount: ds.ExampleCount,
		Start:        ds.Start,
		End:          ds.End,
	}
}

// DatasetDeleted builds the event for a removed dataset.
func DatasetDeleted(id string) Event {
	return Event{
		Type:      TypeDatasetDeleted,
		Timestamp: time.Now().Unix(),
		DatasetID: id,
	}
}

// Notifier delivers events to one kind of subscriber.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
