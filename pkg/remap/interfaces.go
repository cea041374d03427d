package remap

import (
	evdev "github.com/holoplot/go-evdev"
)

// Key event values on the wire.
const (
	KeyReleased int32 = 0
	KeyPressed  int32 = 1
	KeyRepeated int32 = 2
)

// OutputEvent is one key event destined for the virtual keyboard.
type OutputEvent struct {
	Code  evdev.EvCode
	Value int32
}

// EventSink is the shared virtual output device. Emit writes one batch of
// key events atomically at the wire level; batches from concurrent callers
// are serialized but may interleave with each other.
type EventSink interface {
	Emit(events []OutputEvent) error
}

// EventReader is a grabbed device's event stream. Close releases the
// exclusive grab.
type EventReader interface {
	ReadOne() (*evdev.InputEvent, error)
	Close() error
}

// ProfileStore remembers the last active profile per device across
// restarts. Only the profile name is stored, never chord or macro state.
type ProfileStore interface {
	ActiveProfile(device string) (string, error)
	SetActiveProfile(device, profile string) error
}

// DeviceInfo is immutable metadata for a grabbed physical device.
type DeviceInfo struct {
	Path    string
	Name    string
	Vendor  uint16
	Product uint16
}

// Stream is the event-producing representation of a grabbed device, handed
// over by the device manager. Once a Stream exists the manager no longer
// tracks the device; the engine owns it until the reader fails or the
// daemon shuts down.
type Stream struct {
	Info     DeviceInfo
	Remapper *Remapper
	Reader   EventReader
}
