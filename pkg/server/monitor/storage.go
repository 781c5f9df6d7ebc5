package monitor

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrStorageFull is returned by CheckLimit once the data directory has
// reached its configured size.
var ErrStorageFull = errors.New("storage limit reached")

// StorageMonitor tracks data directory usage. Walking the directory is
// expensive, so the result is cached.
type StorageMonitor struct {
	dataDir       string
	maxBytes      int64
	cachedUsage   int64
	lastCheck     time.Time
	cacheDuration time.Duration
	mu            sync.Mutex
}

// NewStorageMonitor creates a new storage monitor. maxBytes <= 0 disables
// the limit.
func NewStorageMonitor(dataDir string, maxBytes int64) *StorageMonitor {
	return &StorageMonitor{
		dataDir:       dataDir,
		maxBytes:      maxBytes,
		cacheDuration: 10 * time.Second,
	}
}

// GetUsage returns current storage usage in bytes (cached).
func (sm *StorageMonitor) GetUsage() (int64, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if !sm.lastCheck.IsZero() && time.Since(sm.lastCheck) < sm.cacheDuration {
		return sm.cachedUsage, nil
	}

	usage, err := calculateDirSize(sm.dataDir)
	if err != nil {
		return 0, err
	}

	sm.cachedUsage = usage
	sm.lastCheck = time.Now()
	return usage, nil
}

// GetLimit returns the configured storage limit in bytes.
func (sm *StorageMonitor) GetLimit() int64 {
	return sm.maxBytes
}

// CheckLimit returns ErrStorageFull when usage has reached the limit.
// Errors reading the directory are returned as is.
func (sm *StorageMonitor) CheckLimit() error {
	if sm.maxBytes <= 0 {
		return nil
	}
	used, err := sm.GetUsage()
	if err != nil {
		return err
	}
	if used >= sm.maxBytes {
		return fmt.Errorf("%w: %d of %d bytes used", ErrStorageFull, used, sm.maxBytes)
	}
	return nil
}

// calculateDirSize sums on-disk usage of every file under path.
func calculateDirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		actualSize, err := getActualFileSize(filePath, info)
		if err != nil {
			size += info.Size()
		} else {
			size += actualSize
		}
		return nil
	})
	return size, err
}
