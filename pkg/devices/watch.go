package devices

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"codeberg.org/miketth/keywarp/pkg/remap"
)

// StreamHandler receives hot-plugged devices and loses unplugged ones.
// The engine implements it.
type StreamHandler interface {
	Attach(stream *remap.Stream)
	Detach(path string)
}

// settleDelay gives udev time to finish setting up a freshly created
// device node before we open it.
const settleDelay = 100 * time.Millisecond

// Watch follows dir for appearing and disappearing event nodes. A failed
// grab of a new device is logged, never fatal; the daemon keeps running.
func (m *Manager) Watch(ctx context.Context, dir string, handler StreamHandler) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	m.log.Debugw("watching for hotplug", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !strings.HasPrefix(filepath.Base(event.Name), "event") {
				continue
			}

			switch {
			case event.Op.Has(fsnotify.Create):
				time.Sleep(settleDelay)
				m.handleAdd(event.Name, handler)
			case event.Op.Has(fsnotify.Remove):
				handler.Detach(event.Name)
				m.Release(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.log.Warnw("hotplug watcher", "error", err)
		}
	}
}

func (m *Manager) handleAdd(path string, handler StreamHandler) {
	matched, err := m.TryGrab(path)
	if err != nil {
		m.log.Warnw("hotplug grab failed", "path", path, "error", err)
		return
	}
	if !matched {
		return
	}

	if stream := m.takeStream(path); stream != nil {
		handler.Attach(stream)
	}
}
