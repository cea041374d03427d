// Package remap is the core of the daemon: the per-device combo/remap/macro
// state machine, the macro executor, and the engine that multiplexes all
// grabbed devices into the single virtual output device.
package remap

import (
	"fmt"
	"sync"

	evdev "github.com/holoplot/go-evdev"

	"codeberg.org/miketth/keywarp/pkg/config"
	"codeberg.org/miketth/keywarp/pkg/keys"
)

// Result is the outcome of processing one raw input event. Events are
// emitted in order; Macro, when non-nil, must be dispatched out of band;
// SwitchTo, when non-empty, names the profile a switch binding selected.
type Result struct {
	Events   []OutputEvent
	Macro    []config.Action
	SwitchTo string
}

type activeCombo struct {
	trigger evdev.EvCode
	outputs []evdev.EvCode
}

// Remapper transforms one device's raw key events according to its active
// profile. Process never blocks and performs no I/O; the caller forwards
// the result to the output device.
type Remapper struct {
	mu sync.Mutex

	device  *config.DeviceConfig
	profile *config.Profile

	// heldMods tracks which physical modifier keys are currently down, so
	// that releasing LeftCtrl while RightCtrl is still held keeps Ctrl in
	// the normalized set.
	heldMods map[evdev.EvCode]keys.Modifier
	held     keys.Modifier

	combo         *activeCombo
	runningMacros map[evdev.EvCode]struct{}

	// switchTriggers holds profile-switch keys whose press was consumed.
	// The matching release arrives after the switch, in the new profile,
	// and must be swallowed too or downstream sees a release for a key it
	// never saw pressed.
	switchTriggers map[evdev.EvCode]struct{}
}

// NewRemapper builds a remapper for device with the given starting profile.
func NewRemapper(device *config.DeviceConfig, profile string) (*Remapper, error) {
	p, ok := device.Profiles[profile]
	if !ok {
		return nil, fmt.Errorf("device %q: unknown profile %q", device.Name, profile)
	}

	return &Remapper{
		device:         device,
		profile:        p,
		heldMods:       make(map[evdev.EvCode]keys.Modifier),
		runningMacros:  make(map[evdev.EvCode]struct{}),
		switchTriggers: make(map[evdev.EvCode]struct{}),
	}, nil
}

// ProfileName returns the name of the active profile.
func (r *Remapper) ProfileName() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.profile.Name
}

// SwitchProfile installs the named profile and discards all chord-tracking
// state: a partially-held chord is abandoned, not carried across profiles.
func (r *Remapper) SwitchProfile(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.device.Profiles[name]
	if !ok {
		return fmt.Errorf("device %q: unknown profile %q", r.device.Name, name)
	}

	r.profile = p
	r.held = keys.ModNone
	clear(r.heldMods)
	r.combo = nil
	clear(r.runningMacros)
	// switchTriggers survives: the key that selected this profile is still
	// physically down and its release must stay swallowed.

	return nil
}

// Process turns one raw event into zero or more output events. Unrecognized
// and unmapped keys pass through unchanged; only EV_KEY events produce
// output.
func (r *Remapper) Process(ev *evdev.InputEvent) Result {
	if ev.Type != evdev.EV_KEY {
		return Result{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	code := ev.Code
	passthrough := Result{Events: []OutputEvent{{Code: code, Value: ev.Value}}}

	// keys reserved for the compositor are never touched
	if _, reserved := r.profile.Passthrough[code]; reserved {
		return passthrough
	}

	// modifiers are tracked for chord matching but always forwarded, so
	// plain Shift+letter typing keeps working
	if mod, ok := keys.ModifierFromCode(code); ok {
		switch ev.Value {
		case KeyPressed:
			r.heldMods[code] = mod
			r.held = r.held.With(mod)
		case KeyReleased:
			delete(r.heldMods, code)
			r.recomputeHeld()
		}
		return passthrough
	}

	switch ev.Value {
	case KeyPressed:
		return r.processPress(code, passthrough)
	case KeyReleased:
		return r.processRelease(code, passthrough)
	default:
		return r.processRepeat(code, passthrough)
	}
}

func (r *Remapper) processPress(code evdev.EvCode, passthrough Result) Result {
	chord := keys.Chord{Mods: r.held, Key: code}

	if target, ok := r.device.ProfileSwitch[chord]; ok {
		r.switchTriggers[code] = struct{}{}
		return Result{SwitchTo: target}
	}

	if actions, ok := r.profile.Macros[code]; ok {
		r.runningMacros[code] = struct{}{}
		return Result{Macro: actions}
	}

	// combo lookup requires the held set to be exactly the chord's set;
	// Ctrl+Q does not fire on Ctrl+Shift+Q nor on bare Q
	if r.combo == nil {
		if outputs, ok := r.profile.Combos[chord]; ok {
			r.combo = &activeCombo{trigger: code, outputs: outputs}
			events := make([]OutputEvent, len(outputs))
			for i, out := range outputs {
				events[i] = OutputEvent{Code: out, Value: KeyPressed}
			}
			return Result{Events: events}
		}
	}

	if to, ok := r.profile.Remap[code]; ok {
		return Result{Events: []OutputEvent{{Code: to, Value: KeyPressed}}}
	}

	return passthrough
}

func (r *Remapper) processRelease(code evdev.EvCode, passthrough Result) Result {
	if _, swallowed := r.switchTriggers[code]; swallowed {
		delete(r.switchTriggers, code)
		return Result{}
	}

	if _, running := r.runningMacros[code]; running {
		delete(r.runningMacros, code)
		return Result{}
	}

	if r.combo != nil && r.combo.trigger == code {
		outputs := r.combo.outputs
		r.combo = nil
		events := make([]OutputEvent, len(outputs))
		for i := range outputs {
			events[i] = OutputEvent{Code: outputs[len(outputs)-1-i], Value: KeyReleased}
		}
		return Result{Events: events}
	}

	if to, ok := r.profile.Remap[code]; ok {
		return Result{Events: []OutputEvent{{Code: to, Value: KeyReleased}}}
	}

	return passthrough
}

func (r *Remapper) processRepeat(code evdev.EvCode, passthrough Result) Result {
	if _, swallowed := r.switchTriggers[code]; swallowed {
		return Result{}
	}

	if _, running := r.runningMacros[code]; running {
		return Result{}
	}

	if r.combo != nil && r.combo.trigger == code {
		main := r.combo.outputs[len(r.combo.outputs)-1]
		return Result{Events: []OutputEvent{{Code: main, Value: KeyRepeated}}}
	}

	if to, ok := r.profile.Remap[code]; ok {
		return Result{Events: []OutputEvent{{Code: to, Value: KeyRepeated}}}
	}

	return passthrough
}

func (r *Remapper) recomputeHeld() {
	r.held = keys.ModNone
	for _, mod := range r.heldMods {
		r.held = r.held.With(mod)
	}
}
