package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultChunkSize is the longest window requested from a source at once.
const DefaultChunkSize = 7 * 24 * time.Hour

// FetcherConfig holds Fetcher configuration.
type FetcherConfig struct {
	// ChunkSize caps the window of one source request (0 = DefaultChunkSize).
	ChunkSize time.Duration

	// Logger receives per-chunk debug output (nil = slog.Default()).
	Logger *slog.Logger
}

// Fetcher assembles a complete, sorted Set for an arbitrary window from a
// Source with a bounded request window.
type Fetcher struct {
	source    Source
	chunkSize time.Duration
	logger    *slog.Logger
}

// NewFetcher creates a fetcher over src.
func NewFetcher(src Source, cfg FetcherConfig) *Fetcher {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Fetcher{
		source:    src,
		chunkSize: cfg.ChunkSize,
		logger:    cfg.Logger,
	}
}

// Fetch returns the history of entityIDs for [start, end).
//
// Windows longer than the chunk size are requested as consecutive sub-ranges,
// one after the other, and merged. Every history in the result is sorted.
// Records duplicated at chunk boundaries are kept. Any source error aborts
// the fetch; the returned error always matches ErrConnection.
func (f *Fetcher) Fetch(ctx context.Context, entityIDs []string, start, end time.Time) (Set, error) {
	result := make(Set)
	if !start.Before(end) {
		return result, nil
	}

	chunks := 0
	for chunkStart := start; chunkStart.Before(end); {
		chunkEnd := chunkStart.Add(f.chunkSize)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks++

		f.logger.Debug("fetching history chunk",
			"chunk", chunks,
			"start", chunkStart.Format(time.RFC3339),
			"end", chunkEnd.Format(time.RFC3339))

		part, err := f.source.FetchRange(ctx, entityIDs, chunkStart, chunkEnd)
		if err != nil {
			if errors.Is(err, ErrConnection) {
				return nil, fmt.Errorf("chunk %d (%s to %s): %w",
					chunks, chunkStart.Format(time.RFC3339), chunkEnd.Format(time.RFC3339), err)
			}
			return nil, fmt.Errorf("%w: chunk %d (%s to %s): %w", ErrConnection,
				chunks, chunkStart.Format(time.RFC3339), chunkEnd.Format(time.RFC3339), err)
		}
		result.Merge(part)

		chunkStart = chunkEnd
	}

	result.Sort()

	if chunks > 1 {
		for id, h := range result {
			f.logger.Info("merged chunked history",
				"entity_id", id, "records", len(h), "chunks", chunks)
		}
	}
	return result, nil
}
