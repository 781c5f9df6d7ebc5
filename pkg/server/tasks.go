package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/nicktill/heatcycle/pkg/config"
	"github.com/nicktill/heatcycle/pkg/server/monitor"
	"github.com/nicktill/heatcycle/pkg/storage"
	"github.com/nicktill/heatcycle/pkg/storage/badger"
)

// Retention retry policy
const (
	retentionMaxRetries = 3
	retentionBaseDelay  = 30 * time.Second
)

// pruneOnce deletes datasets older than the retention window.
func pruneOnce(ctx context.Context, store storage.Storage, retention time.Duration, now time.Time) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, config.DatasetTimeout*6)
	defer cancel()
	return store.Prune(ctx, now.Add(-retention))
}

// RunRetention deletes expired datasets on startup and then every
// config.RetentionInterval.
func RunRetention(store storage.Storage, monitor *monitor.JobMonitor, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(config.RetentionInterval)
	defer ticker.Stop()

	runWithRetry := func() {
		for attempt := 0; attempt <= retentionMaxRetries; attempt++ {
			if attempt > 0 {
				delay := retentionBaseDelay * time.Duration(1<<(attempt-1)) // 30s, 60s, 120s
				log.Printf("Retrying retention in %v (attempt %d/%d)...", delay, attempt+1, retentionMaxRetries+1)
				select {
				case <-time.After(delay):
				case <-stop:
					return
				}
			}

			start := time.Now()
			removed, err := pruneOnce(context.Background(), store, config.DatasetRetention, start)
			if err == nil {
				monitor.RecordSuccess(removed)
				if removed > 0 {
					log.Printf("Retention removed %d datasets older than %v in %v",
						removed, config.DatasetRetention, time.Since(start).Round(time.Millisecond))
				}
				return
			}

			monitor.RecordFailure(err)
			log.Printf("Retention failed (attempt %d/%d): %v", attempt+1, retentionMaxRetries+1, err)
			if status := monitor.Status(); status.ConsecutiveErrors > retentionMaxRetries {
				log.Printf("ALERT: Retention has been failing! Consecutive errors: %d", status.ConsecutiveErrors)
			}
		}

		log.Printf("Retention failed after %d attempts, will retry on next schedule", retentionMaxRetries+1)
	}

	log.Printf("Retention scheduler started (keeps %v, runs every %v)", config.DatasetRetention, config.RetentionInterval)
	runWithRetry()

	for {
		select {
		case <-ticker.C:
			runWithRetry()
		case <-stop:
			log.Println("Stopping retention scheduler")
			return
		}
	}
}

// RunBadgerGC reclaims value-log space left behind by deleted datasets.
func RunBadgerGC(store storage.Storage, stop chan bool, wg *sync.WaitGroup) {
	defer wg.Done()

	badgerStore, ok := store.(*badger.Storage)
	if !ok {
		log.Println("Storage is not BadgerDB, skipping GC")
		return
	}

	ticker := time.NewTicker(config.BadgerGCInterval)
	defer ticker.Stop()

	log.Printf("BadgerDB GC scheduler started (runs every %v)", config.BadgerGCInterval)

	for {
		select {
		case <-ticker.C:
			start := time.Now()
			// Rewrite a value-log file once half of it is garbage
			err := badgerStore.RunGC(0.5)
			log.Println(gcResult(err, time.Since(start)))
		case <-stop:
			log.Println("Stopping BadgerDB GC scheduler")
			return
		}
	}
}

// gcResult describes the outcome of one value-log GC pass.
func gcResult(err error, took time.Duration) string {
	took = took.Round(time.Millisecond)
	switch {
	case err == nil:
		return fmt.Sprintf("GC completed in %v (disk space reclaimed)", took)
	case errors.Is(err, badgerdb.ErrNoRewrite):
		return fmt.Sprintf("GC completed in %v (no rewrite needed)", took)
	default:
		return fmt.Sprintf("⚠️  GC failed after %v: %v", took, err)
	}
}
