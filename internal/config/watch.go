package config

import (
	"context"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events editors emit for a single save
const reloadDelay = 100 * time.Millisecond

// Watch reloads h whenever its file changes, until ctx is cancelled.
// The parent directory is watched so atomic rename-over saves are seen.
func Watch(ctx context.Context, h *Holder) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	target, err := filepath.Abs(h.Path())
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return err
	}
	log.Printf("setting up file watcher for %s", target)

	go func() {
		defer watcher.Close()

		var pending <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					pending = time.After(reloadDelay)
				} else if event.Op&fsnotify.Remove == fsnotify.Remove {
					log.Printf("config file %s removed, keeping current settings", target)
				}
			case <-pending:
				pending = nil
				if err := h.Reload(); err != nil {
					log.Printf("config: reload of %s failed, keeping current settings: %v", target, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Println("watcher error:", err)
			}
		}
	}()
	return nil
}
