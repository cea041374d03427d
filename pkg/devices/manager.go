// Package devices owns the physical input devices: matching them against
// configuration, the exclusive grab/ungrab lifecycle, hotplug, and the
// one-way handoff of grabbed devices to the event loop as streams.
package devices

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	evdev "github.com/holoplot/go-evdev"
	"go.uber.org/zap"

	"codeberg.org/miketth/keywarp/pkg/config"
	"codeberg.org/miketth/keywarp/pkg/remap"
)

// ErrAlreadyGrabbed is returned when a path is grabbed twice.
var ErrAlreadyGrabbed = errors.New("device already grabbed")

// errInaccessible marks failures that happen before the device could be
// matched against configuration. The node may not be a keyboard at all,
// so GrabAll skips these instead of aborting startup.
var errInaccessible = errors.New("device not accessible")

type grabbedDevice struct {
	dev      *evdev.InputDevice
	info     remap.DeviceInfo
	remapper *remap.Remapper
}

// Manager tracks currently grabbed devices until they are handed off to
// the engine. Grabbing and streaming are separate phases: once a device
// becomes a stream the manager no longer knows it.
type Manager struct {
	mu      sync.Mutex
	cfg     *config.Config
	store   remap.ProfileStore
	grabbed map[string]*grabbedDevice
	log     *zap.SugaredLogger
}

func NewManager(cfg *config.Config, store remap.ProfileStore, log *zap.SugaredLogger) *Manager {
	return &Manager{
		cfg:     cfg,
		store:   store,
		grabbed: make(map[string]*grabbedDevice),
		log:     log,
	}
}

// SetConfig swaps the configuration used for future grabs. Devices already
// grabbed or streamed keep their rules.
func (m *Manager) SetConfig(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// TryGrab opens the device at path, matches it by exact name against the
// configuration and takes exclusive ownership. Returns false when the
// device is not configured; that is not an error. A device held by another
// process is.
func (m *Manager) TryGrab(path string) (bool, error) {
	m.mu.Lock()
	cfg := m.cfg
	_, taken := m.grabbed[path]
	m.mu.Unlock()

	if taken {
		return false, fmt.Errorf("%s: %w", path, ErrAlreadyGrabbed)
	}

	dev, err := evdev.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w: %w", path, errInaccessible, err)
	}

	name, err := dev.Name()
	if err != nil {
		dev.Close()
		return false, fmt.Errorf("read name of %s: %w: %w", path, errInaccessible, err)
	}

	if !hasKeys(dev) {
		dev.Close()
		return false, nil
	}

	devCfg := cfg.Match(name)
	if devCfg == nil {
		dev.Close()
		return false, nil
	}

	if err := dev.Grab(); err != nil {
		dev.Close()
		return false, fmt.Errorf("grab %s (%q): %w", path, name, err)
	}

	profile, err := m.pickProfile(devCfg, name)
	if err != nil {
		dev.Ungrab()
		dev.Close()
		return false, err
	}

	remapper, err := remap.NewRemapper(devCfg, profile)
	if err != nil {
		dev.Ungrab()
		dev.Close()
		return false, err
	}

	info := remap.DeviceInfo{Path: path, Name: name}
	if id, err := dev.InputID(); err == nil {
		info.Vendor = id.Vendor
		info.Product = id.Product
	}

	m.mu.Lock()
	m.grabbed[path] = &grabbedDevice{dev: dev, info: info, remapper: remapper}
	m.mu.Unlock()

	m.log.Infow("grabbed device", "path", path, "name", name, "profile", profile)
	return true, nil
}

// pickProfile restores the stored last-active profile when it still exists
// in the configuration, falling back to default. A device without a
// default profile cannot be served.
func (m *Manager) pickProfile(devCfg *config.DeviceConfig, name string) (string, error) {
	if _, ok := devCfg.Profiles[config.DefaultProfile]; !ok {
		return "", fmt.Errorf("device %q: %w", name, config.ErrNoDefaultProfile)
	}

	stored, err := m.store.ActiveProfile(name)
	if err != nil {
		m.log.Warnw("read stored profile", "device", name, "error", err)
		return config.DefaultProfile, nil
	}
	if stored != "" {
		if _, ok := devCfg.Profiles[stored]; ok {
			return stored, nil
		}
		m.log.Warnw("stored profile no longer configured", "device", name, "profile", stored)
	}

	return config.DefaultProfile, nil
}

// Release ungrabs and closes the device at path. No-op when the manager
// does not hold it.
func (m *Manager) Release(path string) {
	m.mu.Lock()
	gd, ok := m.grabbed[path]
	if ok {
		delete(m.grabbed, path)
	}
	m.mu.Unlock()

	if !ok {
		return
	}

	if err := gd.dev.Ungrab(); err != nil {
		m.log.Debugw("ungrab", "path", path, "error", err)
	}
	if err := gd.dev.Close(); err != nil {
		m.log.Warnw("close device", "path", path, "error", err)
	}
	m.log.Infow("released device", "path", path)
}

// GrabAll scans dir and grabs every configured device found there. A grab
// failure on a configured device is fatal: the daemon's guarantee of
// exclusive remapping cannot be partially honored at startup. Nodes that
// cannot even be opened or identified are skipped with a warning; nothing
// says they were keyboards we needed.
func (m *Manager) GrabAll(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", dir, err)
	}

	matched := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "event") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		ok, err := m.TryGrab(path)
		if errors.Is(err, errInaccessible) {
			m.log.Warnw("skipping device node", "path", path, "error", err)
			continue
		}
		if err != nil {
			return err
		}
		if ok {
			matched++
		}
	}

	m.log.Infof("grabbed %d devices", matched)
	return nil
}

// Streams converts every grabbed device into an event stream and forgets
// them all: ownership moves to the caller. The device handle cannot be
// both polled as a stream and kept for a later re-grab.
func (m *Manager) Streams() []*remap.Stream {
	m.mu.Lock()
	defer m.mu.Unlock()

	streams := make([]*remap.Stream, 0, len(m.grabbed))
	for _, gd := range m.grabbed {
		streams = append(streams, makeStream(gd))
	}
	clear(m.grabbed)

	return streams
}

func (m *Manager) takeStream(path string) *remap.Stream {
	m.mu.Lock()
	defer m.mu.Unlock()

	gd, ok := m.grabbed[path]
	if !ok {
		return nil
	}
	delete(m.grabbed, path)

	return makeStream(gd)
}

func makeStream(gd *grabbedDevice) *remap.Stream {
	return &remap.Stream{
		Info:     gd.info,
		Remapper: gd.remapper,
		Reader:   &grabbedReader{dev: gd.dev},
	}
}

// grabbedReader releases the exclusive grab when the stream closes.
type grabbedReader struct {
	dev *evdev.InputDevice
}

func (r *grabbedReader) ReadOne() (*evdev.InputEvent, error) {
	return r.dev.ReadOne()
}

func (r *grabbedReader) Close() error {
	_ = r.dev.Ungrab()
	return r.dev.Close()
}

func hasKeys(dev *evdev.InputDevice) bool {
	for _, t := range dev.CapableTypes() {
		if t == evdev.EV_KEY {
			return true
		}
	}
	return false
}
