package tapclient

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/quiet-signal-labs/audiotap/internal/shmem"
)

// watchFallbackInterval paces the polling path when no filesystem watcher
// is available, and backstops the watcher against events lost during setup.
const watchFallbackInterval = time.Second

// WaitForRegion blocks until the driver publishes the capture region or the
// context is canceled. It prefers a filesystem watch on the region
// directory and degrades to polling when a watcher cannot be created.
func WaitForRegion(ctx context.Context) error {
	if IsRegionAvailable() {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Debug("fsnotify unavailable, polling for region", "err", err)
		return pollForRegion(ctx)
	}
	defer watcher.Close()

	if err := watcher.Add(shmem.Dir()); err != nil {
		slog.Debug("cannot watch region directory, polling", "dir", shmem.Dir(), "err", err)
		return pollForRegion(ctx)
	}

	// The region may have appeared between the first check and the watch
	// being installed.
	if IsRegionAvailable() {
		return nil
	}

	target := shmem.Path(RegionName)
	ticker := time.NewTicker(watchFallbackInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-watcher.Events:
			if ev.Op.Has(fsnotify.Create) && filepath.Clean(ev.Name) == target {
				return nil
			}
		case err := <-watcher.Errors:
			slog.Debug("region watcher error", "err", err)
		case <-ticker.C:
			if IsRegionAvailable() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func pollForRegion(ctx context.Context) error {
	ticker := time.NewTicker(watchFallbackInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if IsRegionAvailable() {
				return nil
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
