// Package export writes stored training datasets in the formats the trainer
// reads, and restores datasets from earlier JSON exports.
//
// # Supported Formats
//
// JSON Format:
//   - Dataset metadata (device, window, strategy, split) plus all examples
//   - Export metadata (timestamp, example count, format version)
//   - Can be re-imported with POST /v1/datasets/import
//
// CSV Format:
//   - One row per example, columns in CSVHeader order
//   - Loads directly into pandas or a spreadsheet
//   - Export-only
//
// # HTTP API
//
// Export endpoint: GET /v1/datasets/{id}/export
// Query parameters:
//   - format: "json" or "csv" (default: json)
//
// Import endpoint: POST /v1/datasets/import
// Body: a JSON export (Content-Type: application/json)
//
// Imported examples are validated with cycles.NewTrainingExample; invalid
// ones are skipped and listed in the response.
package export
