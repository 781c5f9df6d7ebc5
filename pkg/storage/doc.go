/*
Package storage provides the pluggable storage abstraction for extracted
training datasets.

A Dataset is the output of one extraction run for one device: the window and
settings it was extracted with plus its training examples. Datasets are
written once and read by the trainer, either directly or through an export.

# Backends

  - memory: in-memory storage for tests and one-shot runs
  - badger: BadgerDB for the add-on's persistent /data volume

All backends implement the Storage interface:

	type Storage interface {
	    Put(ctx context.Context, ds *Dataset) error
	    Get(ctx context.Context, id string) (*Dataset, error)
	    List(ctx context.Context, req ListRequest) ([]Dataset, error)
	    Delete(ctx context.Context, id string) error
	    Prune(ctx context.Context, before time.Time) (int, error)
	    Stats(ctx context.Context) (*Stats, error)
	    Close() error
	}

# Usage Example

	store, err := badger.New(badger.Config{Path: "/data/datasets"})
	if err != nil {
	    log.Fatal(err)
	}
	defer store.Close()

	ds := storage.NewDataset("living_room", cfg, examples)
	if err := store.Put(ctx, ds); err != nil {
	    return err
	}

	// Summaries only; use Get for the examples
	recent, err := store.List(ctx, storage.ListRequest{DeviceID: "living_room", Limit: 10})

# Retention

Datasets are immutable. Old ones are removed with Prune:

	removed, err := store.Prune(ctx, time.Now().Add(-90*24*time.Hour))

# Best Practices

 1. Always call Close() when done to flush pending writes
 2. Use context.WithTimeout() so a slow disk cannot hang a request
 3. Use List for overviews; it never returns examples
*/
package storage
