package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/storage"
)

// Importer restores datasets from JSON exports
type Importer struct {
	storage storage.Storage
}

// NewImporter creates a new importer
func NewImporter(store storage.Storage) *Importer {
	return &Importer{storage: store}
}

// ImportResult contains stats about the import operation
type ImportResult struct {
	DatasetID        string    `json:"dataset_id"`
	DeviceID         string    `json:"device_id"`
	ExamplesImported int       `json:"examples_imported"`
	ImportedAt       time.Time `json:"imported_at"`
	Errors           []string  `json:"errors,omitempty"`
}

// ImportFromJSON reads one export document and stores it as a dataset.
// Examples that fail validation are skipped and reported in Errors. The
// original id is kept unless it is missing or already taken.
func (im *Importer) ImportFromJSON(ctx context.Context, r io.Reader) (*ImportResult, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	if doc.Metadata.Version != "" && doc.Metadata.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported export version %q", doc.Metadata.Version)
	}

	var validationErrors []string
	valid := make([]cycles.TrainingExample, 0, len(doc.Examples))
	for i, ex := range doc.Examples {
		checked, err := cycles.NewTrainingExample(ex)
		if err != nil {
			validationErrors = append(validationErrors, fmt.Sprintf("example %d: %v", i, err))
			continue
		}
		valid = append(valid, checked)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid examples to import (%d rejected)", len(validationErrors))
	}

	ds := doc.Dataset
	ds.Examples = valid
	ds.ExampleCount = len(valid)
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = time.Now().UTC()
	}
	if _, err := storage.ParseID(ds.ID); err != nil {
		ds.ID = uuid.NewString()
	} else {
		taken, err := im.exists(ctx, ds.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check dataset %s: %w", ds.ID, err)
		}
		if taken {
			ds.ID = uuid.NewString()
		}
	}

	if err := im.storage.Put(ctx, &ds); err != nil {
		return nil, fmt.Errorf("failed to store dataset: %w", err)
	}

	return &ImportResult{
		DatasetID:        ds.ID,
		DeviceID:         ds.DeviceID,
		ExamplesImported: len(valid),
		ImportedAt:       time.Now(),
		Errors:           validationErrors,
	}, nil
}

func (im *Importer) exists(ctx context.Context, id string) (bool, error) {
	_, err := im.storage.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}
