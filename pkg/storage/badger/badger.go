package badger

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"

	"github.com/nicktill/heatcycle/pkg/storage"
)

// Key prefixes
const (
	prefixData  byte = 'd' // [d][device hash 8][created_at 8][id 16] -> dataset JSON
	prefixIndex byte = 'i' // [i][id 16] -> data key
)

const dataKeyLen = 1 + 8 + 8 + 16

// DefaultCacheMaxCost bounds the read cache, counted in training examples.
const DefaultCacheMaxCost = 100_000

// Storage implements storage.Storage using BadgerDB (LSM tree) with a
// ristretto read cache in front of Get.
type Storage struct {
	db    *badger.DB
	cache *ristretto.Cache[string, *storage.Dataset]
}

// Config holds BadgerDB configuration
type Config struct {
	// Path to store database files
	Path string

	// InMemory mode (for testing)
	InMemory bool

	// MaxMemoryMB limits BadgerDB memory usage in MB (0 = laptop-friendly defaults)
	MaxMemoryMB int64

	// CacheMaxCost bounds the read cache in training examples
	// (0 = DefaultCacheMaxCost, negative disables the cache)
	CacheMaxCost int64
}

// New creates a BadgerDB storage backend
func New(cfg Config) (*Storage, error) {
	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	// Datasets are small and written rarely: a 16 MB memtable is plenty
	// unless the operator asks for more.
	memTableSize := int64(16 << 20)
	if cfg.MaxMemoryMB > 0 {
		memTableSize = cfg.MaxMemoryMB << 20 / 3
	}
	blockCacheSize := memTableSize / 2
	indexCacheSize := memTableSize / 4

	opts = opts.
		WithCompression(options.Snappy).
		WithNumVersionsToKeep(1).
		WithMemTableSize(memTableSize).
		WithNumMemtables(3).
		WithBlockCacheSize(blockCacheSize).
		WithIndexCacheSize(indexCacheSize).
		WithMaxLevels(4).
		WithNumLevelZeroTables(2).
		WithNumLevelZeroTablesStall(4).
		WithValueThreshold(1024).
		WithNumCompactors(2).
		WithValueLogFileSize(64 << 20) // default is 2 GB

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	s := &Storage{db: db}
	if cfg.CacheMaxCost >= 0 {
		maxCost := cfg.CacheMaxCost
		if maxCost == 0 {
			maxCost = DefaultCacheMaxCost
		}
		cache, err := ristretto.NewCache(&ristretto.Config[string, *storage.Dataset]{
			NumCounters: 10_000,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Put stores a dataset
// CRITICAL: Enforces context timeout/cancellation to prevent indefinite blocking
func (s *Storage) Put(ctx context.Context, ds *storage.Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := ds.Validate(); err != nil {
		return err
	}
	id, _ := uuid.Parse(ds.ID)

	stored := *ds
	stored.ExampleCount = len(ds.Examples)
	value, err := json.Marshal(&stored)
	if err != nil {
		return fmt.Errorf("failed to encode dataset: %w", err)
	}
	key := makeDataKey(ds.DeviceID, ds.CreatedAt, id)

	err = s.run(ctx, "put", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			// Replacing a dataset may move it to a new data key.
			if old, err := lookupDataKey(txn, id); err == nil {
				if err := txn.Delete(old); err != nil {
					return err
				}
			} else if !errors.Is(err, storage.ErrNotFound) {
				return err
			}

			if err := txn.Set(key, value); err != nil {
				return fmt.Errorf("failed to write dataset: %w", err)
			}
			return txn.Set(makeIndexKey(id), key)
		})
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Del(ds.ID)
	}
	return nil
}

// Get returns one dataset with its examples
func (s *Storage) Get(ctx context.Context, id string) (*storage.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uid, err := storage.ParseID(id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if ds, ok := s.cache.Get(id); ok {
			return copyDataset(ds), nil
		}
	}

	var ds *storage.Dataset
	err = s.run(ctx, "get", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			key, err := lookupDataKey(txn, uid)
			if err != nil {
				return err
			}
			item, err := txn.Get(key)
			if err != nil {
				return fmt.Errorf("dataset %s: index points to missing data: %w", id, err)
			}
			return item.Value(func(val []byte) error {
				ds, err = decodeDataset(val)
				return err
			})
		})
	})
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		s.cache.Set(id, ds, int64(len(ds.Examples))+1)
	}
	return copyDataset(ds), nil
}

// List returns dataset summaries, newest first
func (s *Storage) List(ctx context.Context, req storage.ListRequest) ([]storage.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte{prefixData}
	if req.DeviceID != "" {
		prefix = binary.BigEndian.AppendUint64(prefix, xxhash.Sum64String(req.DeviceID))
	}

	var results []storage.Dataset
	err := s.run(ctx, "list", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			return iterate(ctx, txn, prefix, true, func(item *badger.Item) error {
				return item.Value(func(val []byte) error {
					ds, err := decodeDataset(val)
					if err != nil {
						return err
					}
					// Device hashes can collide.
					if req.DeviceID != "" && ds.DeviceID != req.DeviceID {
						return nil
					}
					results = append(results, ds.Summary())
					return nil
				})
			})
		})
	})
	if err != nil {
		return nil, err
	}

	storage.SortNewestFirst(results)
	if req.Limit > 0 && len(results) > req.Limit {
		results = results[:req.Limit]
	}
	return results, nil
}

// Delete removes one dataset
func (s *Storage) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	uid, err := storage.ParseID(id)
	if err != nil {
		return err
	}

	err = s.run(ctx, "delete", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			key, err := lookupDataKey(txn, uid)
			if err != nil {
				return err
			}
			if err := txn.Delete(key); err != nil {
				return err
			}
			return txn.Delete(makeIndexKey(uid))
		})
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		s.cache.Del(id)
	}
	return nil
}

// Prune removes datasets created before the cutoff
func (s *Storage) Prune(ctx context.Context, before time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var removed []uuid.UUID
	err := s.run(ctx, "prune", func() error {
		return s.db.Update(func(txn *badger.Txn) error {
			var keys [][]byte
			err := iterate(ctx, txn, []byte{prefixData}, false, func(item *badger.Item) error {
				createdAt, id, ok := parseDataKey(item.Key())
				if !ok || !createdAt.Before(before) {
					return nil
				}
				keys = append(keys, item.KeyCopy(nil))
				removed = append(removed, id)
				return nil
			})
			if err != nil {
				return err
			}

			for i, key := range keys {
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(makeIndexKey(removed[i])); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return 0, err
	}

	if s.cache != nil {
		for _, id := range removed {
			s.cache.Del(id.String())
		}
	}
	return len(removed), nil
}

// Close shuts down BadgerDB cleanly
func (s *Storage) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.db.Close()
}

// RunGC runs BadgerDB's value log garbage collection
// This reclaims disk space from deleted datasets
// discardRatio: run GC if this fraction of file can be discarded (0.5 = 50%)
// Returns badger.ErrNoRewrite when there was nothing to collect
func (s *Storage) RunGC(discardRatio float64) error {
	return s.db.RunValueLogGC(discardRatio)
}

// Stats returns storage statistics
func (s *Storage) Stats(ctx context.Context) (*storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stats := &storage.Stats{}
	err := s.run(ctx, "stats", func() error {
		return s.db.View(func(txn *badger.Txn) error {
			devices := make(map[string]bool)
			err := iterate(ctx, txn, []byte{prefixData}, true, func(item *badger.Item) error {
				var meta struct {
					DeviceID     string `json:"device_id"`
					ExampleCount int    `json:"example_count"`
				}
				if err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, &meta)
				}); err != nil {
					return fmt.Errorf("failed to decode dataset: %w", err)
				}

				stats.TotalDatasets++
				stats.TotalExamples += uint64(meta.ExampleCount)
				devices[meta.DeviceID] = true

				if createdAt, _, ok := parseDataKey(item.Key()); ok {
					if stats.OldestDataset.IsZero() || createdAt.Before(stats.OldestDataset) {
						stats.OldestDataset = createdAt
					}
					if createdAt.After(stats.NewestDataset) {
						stats.NewestDataset = createdAt
					}
				}
				return nil
			})
			stats.TotalDevices = uint64(len(devices))
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	lsmSize, vlogSize := s.db.Size()
	stats.SizeBytes = uint64(lsmSize + vlogSize)
	return stats, nil
}

// run executes fn in a goroutine and stops waiting when ctx is done.
// Badger transactions cannot be interrupted, so fn itself may keep running.
func (s *Storage) run(ctx context.Context, op string, fn func() error) error {
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%s operation cancelled: %w", op, ctx.Err())
	}
}

// iterate calls fn for every key with prefix, checking ctx every 1000 keys.
func iterate(ctx context.Context, txn *badger.Txn, prefix []byte, values bool, fn func(*badger.Item) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = values
	opts.Prefix = prefix

	it := txn.NewIterator(opts)
	defer it.Close()

	n := 0
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
		if n%1000 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if err := fn(it.Item()); err != nil {
			return err
		}
	}
	return nil
}

func lookupDataKey(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(makeIndexKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

// makeDataKey creates a key that groups datasets by device and sorts them
// by creation time.
// Format: [d][device hash (8 bytes)][created_at ns (8 bytes)][id (16 bytes)]
func makeDataKey(deviceID string, createdAt time.Time, id uuid.UUID) []byte {
	key := make([]byte, 0, dataKeyLen)
	key = append(key, prefixData)
	key = binary.BigEndian.AppendUint64(key, xxhash.Sum64String(deviceID))
	key = binary.BigEndian.AppendUint64(key, uint64(createdAt.UnixNano()))
	return append(key, id[:]...)
}

// parseDataKey extracts the creation time and id from a data key
func parseDataKey(key []byte) (time.Time, uuid.UUID, bool) {
	if len(key) != dataKeyLen || key[0] != prefixData {
		return time.Time{}, uuid.UUID{}, false
	}
	createdAt := time.Unix(0, int64(binary.BigEndian.Uint64(key[9:17]))).UTC()
	id, err := uuid.FromBytes(key[17:])
	if err != nil {
		return time.Time{}, uuid.UUID{}, false
	}
	return createdAt, id, true
}

func makeIndexKey(id uuid.UUID) []byte {
	return append([]byte{prefixIndex}, id[:]...)
}

func decodeDataset(data []byte) (*storage.Dataset, error) {
	var ds storage.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("failed to decode dataset: %w", err)
	}
	return &ds, nil
}

// copyDataset keeps callers from mutating cached datasets.
func copyDataset(ds *storage.Dataset) *storage.Dataset {
	c := *ds
	c.Examples = append(c.Examples[:0:0], ds.Examples...)
	return &c
}
