// Package tempfiles manages the scratch directory used while transcoding and
// transcribing uploads. Files are named uniquely and swept once they outlive
// their maximum age, so a crashed worker cannot fill the disk.
package tempfiles

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// Manager creates uniquely named scratch files under a single directory and
// removes stale ones.
type Manager struct {
	dir    string
	maxAge time.Duration
}

// New ensures the scratch directory exists.
func New(dir string, maxAge time.Duration) (*Manager, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Manager{dir: dir, maxAge: maxAge}, nil
}

// Path returns a unique path preserving the original file's extension.
func (m *Manager) Path(originalName string) string {
	suffix := make([]byte, 4)
	_, _ = rand.Read(suffix)
	name := fmt.Sprintf("%d_%s%s", time.Now().Unix(), hex.EncodeToString(suffix), filepath.Ext(originalName))
	return filepath.Join(m.dir, name)
}

// Sweep removes files older than the maximum age and reports how many were
// deleted.
func (m *Manager) Sweep() (int, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return 0, fmt.Errorf("read temp dir: %w", err)
	}
	cutoff := time.Now().Add(-m.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(m.dir, entry.Name())); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// SweepPeriodically runs Sweep on a ticker until the context is cancelled.
// Call it in a goroutine from main.
func (m *Manager) SweepPeriodically(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed, err := m.Sweep(); err != nil {
				log.Printf("temp sweep failed: %v", err)
			} else if removed > 0 {
				log.Printf("temp sweep removed %d stale files", removed)
			}
		}
	}
}
