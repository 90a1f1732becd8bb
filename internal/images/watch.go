package images

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchLocal watches the bundled image directory until ctx is done. When an
// <id>.jpg file is created or rewritten, the cached tier is retried for that
// card. It returns nil on cancellation.
func (r *Resolver) WatchLocal(ctx context.Context) error {
	if r.opts.LocalDir == "" {
		return fmt.Errorf("no local image directory configured")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(r.opts.LocalDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", r.opts.LocalDir, err)
	}
	slog.Info("Watching local card images", "dir", r.opts.LocalDir)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			id, ok := imageID(event.Name)
			if !ok {
				continue
			}
			r.Forget(id, TierCached)
			slog.Debug("Local card image appeared", "card_id", id)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Image watcher error", "err", err)
		}
	}
}

// imageID extracts the card id from a path like dir/89631139.jpg.
func imageID(path string) (int64, bool) {
	base := filepath.Base(path)
	if !strings.HasSuffix(base, ".jpg") {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimSuffix(base, ".jpg"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
