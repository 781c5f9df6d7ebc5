package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no dataset has the requested id.
var ErrNotFound = errors.New("dataset not found")

// ErrInvalidID is returned for dataset ids that are not UUIDs.
var ErrInvalidID = errors.New("invalid dataset id")

// Storage defines the interface for dataset storage backends.
// Implementations: memory (testing), badger (production)
type Storage interface {
	// Put stores a dataset, replacing any dataset with the same id
	Put(ctx context.Context, ds *Dataset) error

	// Get returns the dataset with the given id, examples included
	Get(ctx context.Context, id string) (*Dataset, error)

	// List returns dataset summaries (no examples), newest first
	List(ctx context.Context, req ListRequest) ([]Dataset, error)

	// Delete removes one dataset
	Delete(ctx context.Context, id string) error

	// Prune removes datasets created before the given time and returns
	// how many were removed
	Prune(ctx context.Context, before time.Time) (int, error)

	// Close cleanly shuts down the storage
	Close() error

	// Stats returns storage statistics
	Stats(ctx context.Context) (*Stats, error)
}

// ListRequest specifies which datasets to list
type ListRequest struct {
	// Filter by device (optional)
	DeviceID string

	// Limit number of results (0 = no limit)
	Limit int
}

// Stats provides storage health and usage info
type Stats struct {
	// Stored datasets
	TotalDatasets uint64 `json:"total_datasets"`

	// Training examples across all datasets
	TotalExamples uint64 `json:"total_examples"`

	// Distinct devices with at least one dataset
	TotalDevices uint64 `json:"total_devices"`

	// Storage size in bytes
	SizeBytes uint64 `json:"size_bytes"`

	// Creation time of the oldest and newest datasets
	OldestDataset time.Time `json:"oldest_dataset"`
	NewestDataset time.Time `json:"newest_dataset"`
}
