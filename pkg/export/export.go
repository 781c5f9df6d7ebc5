package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/storage"
)

// Supported formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// FormatVersion is written into JSON exports and checked on import.
const FormatVersion = "1.0"

// CSVHeader is the column order of CSV exports. The trainer reads these
// names directly.
var CSVHeader = []string{
	"timestamp",
	"outdoor_temp",
	"indoor_temp",
	"target_temp",
	"humidity",
	"hour_of_day",
	"minutes_since_last_cycle",
	"heating_duration_minutes",
}

// Exporter handles exporting stored datasets to various formats
type Exporter struct {
	storage storage.Storage
}

// NewExporter creates a new exporter
func NewExporter(store storage.Storage) *Exporter {
	return &Exporter{storage: store}
}

// ExportResult contains stats about the export
type ExportResult struct {
	DatasetID        string    `json:"dataset_id"`
	ExamplesExported int       `json:"examples_exported"`
	Format           string    `json:"format"`
	ExportedAt       time.Time `json:"exported_at"`
}

// Document is the JSON export layout.
type Document struct {
	Metadata Metadata                 `json:"metadata"`
	Dataset  storage.Dataset          `json:"dataset"`
	Examples []cycles.TrainingExample `json:"examples"`
}

// Metadata describes a JSON export.
type Metadata struct {
	ExportedAt   time.Time `json:"exported_at"`
	ExampleCount int       `json:"example_count"`
	Format       string    `json:"format"`
	Version      string    `json:"version"`
}

// Export writes the dataset with the given id in format to w.
func (e *Exporter) Export(ctx context.Context, w io.Writer, id, format string) (*ExportResult, error) {
	ds, err := e.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatJSON, "":
		err = WriteJSON(w, ds)
		format = FormatJSON
	case FormatCSV:
		err = WriteCSV(w, ds.Examples)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, err
	}

	return &ExportResult{
		DatasetID:        ds.ID,
		ExamplesExported: len(ds.Examples),
		Format:           format,
		ExportedAt:       time.Now(),
	}, nil
}

// WriteJSON writes ds as an export document.
func WriteJSON(w io.Writer, ds *storage.Dataset) error {
	doc := Document{
		Metadata: Metadata{
			ExportedAt:   time.Now().UTC(),
			ExampleCount: len(ds.Examples),
			Format:       FormatJSON,
			Version:      FormatVersion,
		},
		Dataset:  ds.Summary(),
		Examples: ds.Examples,
	}
	if doc.Examples == nil {
		doc.Examples = []cycles.TrainingExample{}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// WriteCSV writes examples as CSV with CSVHeader.
func WriteCSV(w io.Writer, examples []cycles.TrainingExample) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(CSVHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, ex := range examples {
		row := []string{
			ex.Timestamp.UTC().Format(time.RFC3339),
			formatFloat(ex.OutdoorTemp),
			formatFloat(ex.IndoorTemp),
			formatFloat(ex.TargetTemp),
			formatFloat(ex.Humidity),
			strconv.Itoa(ex.HourOfDay),
			formatFloat(ex.MinutesSinceLastCycle),
			formatFloat(ex.DurationMinutes),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
