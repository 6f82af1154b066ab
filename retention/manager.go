// Package retention implements the JSONL sink's optional background
// pruning: delete files older than a retention window, then trim further
// by total byte budget, oldest first.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rodoHasArrived/Market-Data-Collector-sub007/internal/logger"
	"github.com/rodoHasArrived/Market-Data-Collector-sub007/monitoring"
)

const minSweepInterval = 15 * time.Second

// Config configures a Manager's sweep behavior.
type Config struct {
	DataRoot      string
	RetentionDays int           // 0 disables age-based pruning
	MaxTotalBytes int64         // 0 disables byte-budget pruning
	SweepInterval time.Duration // clamped up to minSweepInterval
	Patterns      []string      // glob patterns relative to DataRoot, e.g. "*.jsonl", "*.jsonl.gz"
}

// Manager periodically sweeps DataRoot for files matching Patterns and
// deletes the ones that fall outside the configured budget. A single
// RWMutex guards the "last sweep" timestamp so Sweep and LastSweep never
// race each other, without serializing callers against an in-progress
// sweep's file I/O.
type Manager struct {
	cfg Config

	mu        sync.RWMutex
	lastSweep time.Time

	stop chan struct{}
	done chan struct{}
}

// New constructs a Manager. Call Start to begin the periodic background
// sweep, or call Sweep directly for an on-demand pass.
func New(cfg Config) *Manager {
	if cfg.SweepInterval < minSweepInterval {
		cfg.SweepInterval = minSweepInterval
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = []string{"*.jsonl", "*.jsonl.gz"}
	}
	return &Manager{cfg: cfg, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start launches the background sweep loop. It is the retention manager's
// one long-lived cooperative task.
func (m *Manager) Start() {
	go m.loop()
}

// Stop signals the background loop to exit and waits for it to finish.
func (m *Manager) Stop() {
	close(m.stop)
	<-m.done
}

func (m *Manager) loop() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if err := m.Sweep(); err != nil {
				logger.Log.Warn("Retention sweep failed: {error}", err)
			}
		}
	}
}

// LastSweep reports when Sweep last completed, or the zero time if it
// hasn't run yet.
func (m *Manager) LastSweep() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSweep
}

type fileEntry struct {
	path    string
	size    int64
	modTime time.Time
}

// Sweep performs one pruning pass: age-based deletion first, then
// byte-budget trimming from the oldest remaining file. Failures are
// logged and do not abort the sweep; a failing file is skipped.
func (m *Manager) Sweep() error {
	files, err := m.enumerate()
	if err != nil {
		return fmt.Errorf("retention: enumerating files: %w", err)
	}

	now := time.Now()
	var survivors []fileEntry
	var ageFilesRemoved int
	var ageBytesFreed int64
	if m.cfg.RetentionDays > 0 {
		cutoff := now.AddDate(0, 0, -m.cfg.RetentionDays)
		for _, f := range files {
			if f.modTime.Before(cutoff) {
				if m.remove(f.path) {
					ageFilesRemoved++
					ageBytesFreed += f.size
				}
				continue
			}
			survivors = append(survivors, f)
		}
	} else {
		survivors = files
	}
	if ageFilesRemoved > 0 {
		monitoring.RecordRetentionSweep("age", ageFilesRemoved, ageBytesFreed)
	}

	var budgetFilesRemoved int
	var budgetBytesFreed int64
	if m.cfg.MaxTotalBytes > 0 {
		sort.Slice(survivors, func(i, j int) bool { return survivors[i].modTime.Before(survivors[j].modTime) })
		var total int64
		for _, f := range survivors {
			total += f.size
		}
		i := 0
		for total > m.cfg.MaxTotalBytes && i < len(survivors) {
			total -= survivors[i].size
			if m.remove(survivors[i].path) {
				budgetFilesRemoved++
				budgetBytesFreed += survivors[i].size
			}
			i++
		}
	}
	if budgetFilesRemoved > 0 {
		monitoring.RecordRetentionSweep("max_total_bytes", budgetFilesRemoved, budgetBytesFreed)
	}

	m.mu.Lock()
	m.lastSweep = now
	m.mu.Unlock()
	return nil
}

// remove deletes path and reports whether it actually freed space: a file
// already gone (e.g. removed by a concurrent sweep) is not a removal.
func (m *Manager) remove(path string) bool {
	if err := os.Remove(path); err != nil {
		if !os.IsNotExist(err) {
			logger.Log.Warn("Retention failed to remove {path}: {error}", path, err)
		}
		return false
	}
	return true
}

func (m *Manager) enumerate() ([]fileEntry, error) {
	var files []fileEntry
	err := filepath.Walk(m.cfg.DataRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		for _, pattern := range m.cfg.Patterns {
			if matched, _ := filepath.Match(pattern, info.Name()); matched {
				files = append(files, fileEntry{path: path, size: info.Size(), modTime: info.ModTime()})
				break
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return files, nil
}
