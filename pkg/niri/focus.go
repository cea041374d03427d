package niri

import (
	"context"
	"fmt"
	"sync"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// FocusWatcher follows the compositor's event stream and tracks the app id
// of the focused window. This feeds the future automatic profile-switch
// path; for now the focused app id is only recorded and logged.
//
// TODO: drive automatic profile switching from the focused app id once the
// profile app_id hints are acted on.
type FocusWatcher struct {
	client *Client
	log    *zap.SugaredLogger

	mu      sync.Mutex
	windows map[int64]string // window id -> app id
	focused string
}

func NewFocusWatcher(client *Client, log *zap.SugaredLogger) *FocusWatcher {
	return &FocusWatcher{
		client:  client,
		log:     log,
		windows: make(map[int64]string),
	}
}

// FocusedAppID returns the app id of the currently focused window, or "".
func (w *FocusWatcher) FocusedAppID() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.focused
}

// Run subscribes to the event stream and consumes it until ctx is
// cancelled or the socket fails.
func (w *FocusWatcher) Run(ctx context.Context) error {
	if _, err := w.client.Request(`"EventStream"`); err != nil {
		return fmt.Errorf("subscribe to events: %w", err)
	}

	for {
		resultCh := make(chan string)
		errCh := make(chan error)
		go func() {
			line, err := w.client.ReadLine()
			if err != nil {
				errCh <- err
				return
			}
			resultCh <- line
		}()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case line := <-resultCh:
			w.processLine(line)
		case err := <-errCh:
			return fmt.Errorf("get event: %w", err)
		}
	}
}

func (w *FocusWatcher) processLine(line string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if win := gjson.Get(line, "WindowOpenedOrChanged.window"); win.Exists() {
		id := win.Get("id").Int()
		w.windows[id] = win.Get("app_id").String()
		return
	}

	if ev := gjson.Get(line, "WindowFocusChanged"); ev.Exists() {
		id := ev.Get("id")
		if !id.Exists() {
			w.focused = ""
			return
		}
		w.focused = w.windows[id.Int()]
		w.log.Debugw("focus changed", "app_id", w.focused)
		return
	}

	if ev := gjson.Get(line, "WindowClosed"); ev.Exists() {
		delete(w.windows, ev.Get("id").Int())
	}
}
