// Package api serves the extraction and dataset endpoints under /v1.
//
// Extraction requests carry a device preset (the same shape as an entry in
// the devices file). A successful extraction is stored as a dataset and
// announced to the configured notifiers.
package api
