package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nicktill/heatcycle/pkg/storage"
)

// Storage stores datasets in memory. Data is lost on restart.
// Useful for testing and one-shot extractions.
type Storage struct {
	datasets map[string]*storage.Dataset
	mu       sync.RWMutex
}

// New creates an in-memory storage backend
func New() *Storage {
	return &Storage{
		datasets: make(map[string]*storage.Dataset),
	}
}

// Put stores a dataset
func (s *Storage) Put(ctx context.Context, ds *storage.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}

	stored := *ds
	stored.ExampleCount = len(ds.Examples)
	stored.Examples = append(ds.Examples[:0:0], ds.Examples...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[ds.ID] = &stored
	return nil
}

// Get returns one dataset with its examples
func (s *Storage) Get(ctx context.Context, id string) (*storage.Dataset, error) {
	if _, err := storage.ParseID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.datasets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	c := *ds
	c.Examples = append(ds.Examples[:0:0], ds.Examples...)
	return &c, nil
}

// List returns dataset summaries, newest first
func (s *Storage) List(ctx context.Context, req storage.ListRequest) ([]storage.Dataset, error) {
	s.mu.RLock()
	var results []storage.Dataset
	for _, ds := range s.datasets {
		if req.DeviceID != "" && ds.DeviceID != req.DeviceID {
			continue
		}
		results = append(results, ds.Summary())
	}
	s.mu.RUnlock()

	storage.SortNewestFirst(results)
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// Delete removes one dataset
func (s *Storage) Delete(ctx context.Context, id string) error {
	if _, err := storage.ParseID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.datasets[id]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	delete(s.datasets, id)
	return nil
}

// Prune removes datasets created before the cutoff
func (s *Storage) Prune(ctx context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, ds := range s.datasets {
		if ds.CreatedAt.Before(before) {
			delete(s.datasets, id)
			removed++
		}
	}
	return removed, nil
}

// Close is a no-op for memory storage
func (s *Storage) Close() error {
	return nil
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &storage.Stats{
		TotalDatasets: uint64(len(s.datasets)),
	}

	devices := make(map[string]bool)
	for _, ds := range s.datasets {
		devices[ds.DeviceID] = true
		stats.TotalExamples += uint64(ds.ExampleCount)

		if stats.OldestDataset.IsZero() || ds.CreatedAt.Before(stats.OldestDataset) {
			stats.OldestDataset = ds.CreatedAt
		}
		if ds.CreatedAt.After(stats.NewestDataset) {
			stats.NewestDataset = ds.CreatedAt
		}
	}
	stats.TotalDevices = uint64(len(devices))

	// Rough size estimate (each example ~200 bytes as JSON)
	stats.SizeBytes = stats.TotalExamples * 200

	return stats, nil
}
