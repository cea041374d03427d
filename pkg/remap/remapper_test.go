package remap

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"

	"codeberg.org/miketth/keywarp/pkg/config"
	"codeberg.org/miketth/keywarp/pkg/keys"
)

func testDevice() *config.DeviceConfig {
	return &config.DeviceConfig{
		Name: "test keyboard",
		Profiles: map[string]*config.Profile{
			"default": {
				Name: "default",
				Remap: map[evdev.EvCode]evdev.EvCode{
					evdev.KEY_CAPSLOCK: evdev.KEY_ESC,
				},
				Combos: map[keys.Chord][]evdev.EvCode{
					{Mods: keys.ModCtrl, Key: evdev.KEY_Q}:                 {evdev.KEY_F4},
					{Mods: keys.ModCtrl | keys.ModShift, Key: evdev.KEY_T}: {evdev.KEY_LEFTCTRL, evdev.KEY_N},
				},
				Macros: map[evdev.EvCode][]config.Action{
					evdev.KEY_F9: {{Kind: config.ActionKey, Keys: "a"}},
				},
				Passthrough: map[evdev.EvCode]struct{}{
					evdev.KEY_VOLUMEUP: {},
				},
			},
			"gaming": {
				Name:   "gaming",
				Remap:  map[evdev.EvCode]evdev.EvCode{},
				Combos: map[keys.Chord][]evdev.EvCode{},
				Macros: map[evdev.EvCode][]config.Action{},
			},
		},
		ProfileSwitch: map[keys.Chord]string{
			{Mods: keys.ModSuper, Key: evdev.KEY_2}: "gaming",
		},
	}
}

func newTestRemapper(t *testing.T) *Remapper {
	t.Helper()
	r, err := NewRemapper(testDevice(), "default")
	if err != nil {
		t.Fatalf("NewRemapper: %v", err)
	}
	return r
}

func keyEvent(code evdev.EvCode, value int32) *evdev.InputEvent {
	return &evdev.InputEvent{Type: evdev.EV_KEY, Code: code, Value: value}
}

func wantEvents(t *testing.T, got Result, want ...OutputEvent) {
	t.Helper()
	if len(got.Events) != len(want) {
		t.Fatalf("got %d events %v, want %d %v", len(got.Events), got.Events, len(want), want)
	}
	for i := range want {
		if got.Events[i] != want[i] {
			t.Errorf("event %d = %+v, want %+v", i, got.Events[i], want[i])
		}
	}
}

func TestRemapPressRelease(t *testing.T) {
	r := newTestRemapper(t)

	res := r.Process(keyEvent(evdev.KEY_CAPSLOCK, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_ESC, KeyPressed})

	res = r.Process(keyEvent(evdev.KEY_CAPSLOCK, KeyReleased))
	wantEvents(t, res, OutputEvent{evdev.KEY_ESC, KeyReleased})
}

func TestUnmappedPassthrough(t *testing.T) {
	r := newTestRemapper(t)

	for _, value := range []int32{KeyPressed, KeyRepeated, KeyReleased} {
		res := r.Process(keyEvent(evdev.KEY_B, value))
		wantEvents(t, res, OutputEvent{evdev.KEY_B, value})
	}
}

func TestUnrecognizedCodePassthrough(t *testing.T) {
	r := newTestRemapper(t)

	// a code with no catalog name must still flow through untouched
	odd := evdev.EvCode(0x2e7)
	res := r.Process(keyEvent(odd, KeyPressed))
	wantEvents(t, res, OutputEvent{odd, KeyPressed})
}

func TestNonKeyEventsIgnored(t *testing.T) {
	r := newTestRemapper(t)

	res := r.Process(&evdev.InputEvent{Type: evdev.EV_SYN, Code: 0, Value: 0})
	if len(res.Events) != 0 {
		t.Errorf("EV_SYN produced events: %v", res.Events)
	}
}

func TestComboExactMatch(t *testing.T) {
	r := newTestRemapper(t)

	// bare Q: no combo
	res := r.Process(keyEvent(evdev.KEY_Q, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_Q, KeyPressed})
	r.Process(keyEvent(evdev.KEY_Q, KeyReleased))

	// Ctrl+Q fires
	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyPressed))
	res = r.Process(keyEvent(evdev.KEY_Q, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_F4, KeyPressed})

	res = r.Process(keyEvent(evdev.KEY_Q, KeyReleased))
	wantEvents(t, res, OutputEvent{evdev.KEY_F4, KeyReleased})
	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyReleased))
}

func TestComboSupersetDoesNotFire(t *testing.T) {
	r := newTestRemapper(t)

	// Ctrl+Shift+Q is not Ctrl+Q
	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyPressed))
	r.Process(keyEvent(evdev.KEY_LEFTSHIFT, KeyPressed))
	res := r.Process(keyEvent(evdev.KEY_Q, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_Q, KeyPressed})
}

func TestComboSubsetDoesNotFire(t *testing.T) {
	r := newTestRemapper(t)

	// Ctrl+T is not Ctrl+Shift+T
	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyPressed))
	res := r.Process(keyEvent(evdev.KEY_T, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_T, KeyPressed})
}

func TestComboModifierNormalization(t *testing.T) {
	for _, ctrl := range []evdev.EvCode{evdev.KEY_LEFTCTRL, evdev.KEY_RIGHTCTRL} {
		r := newTestRemapper(t)
		r.Process(keyEvent(ctrl, KeyPressed))
		res := r.Process(keyEvent(evdev.KEY_Q, KeyPressed))
		wantEvents(t, res, OutputEvent{evdev.KEY_F4, KeyPressed})
	}
}

func TestComboBothVariantsHeld(t *testing.T) {
	r := newTestRemapper(t)

	// releasing one Ctrl while the other stays down keeps Ctrl held
	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyPressed))
	r.Process(keyEvent(evdev.KEY_RIGHTCTRL, KeyPressed))
	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyReleased))

	res := r.Process(keyEvent(evdev.KEY_Q, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_F4, KeyPressed})
}

func TestComboMultiKeyOutputReleaseOrder(t *testing.T) {
	r := newTestRemapper(t)

	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyPressed))
	r.Process(keyEvent(evdev.KEY_LEFTSHIFT, KeyPressed))
	res := r.Process(keyEvent(evdev.KEY_T, KeyPressed))
	wantEvents(t, res,
		OutputEvent{evdev.KEY_LEFTCTRL, KeyPressed},
		OutputEvent{evdev.KEY_N, KeyPressed},
	)

	res = r.Process(keyEvent(evdev.KEY_T, KeyReleased))
	wantEvents(t, res,
		OutputEvent{evdev.KEY_N, KeyReleased},
		OutputEvent{evdev.KEY_LEFTCTRL, KeyReleased},
	)
}

func TestModifiersPassThrough(t *testing.T) {
	r := newTestRemapper(t)

	res := r.Process(keyEvent(evdev.KEY_LEFTSHIFT, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_LEFTSHIFT, KeyPressed})
	res = r.Process(keyEvent(evdev.KEY_LEFTSHIFT, KeyReleased))
	wantEvents(t, res, OutputEvent{evdev.KEY_LEFTSHIFT, KeyReleased})
}

func TestMacroTriggerSwallowed(t *testing.T) {
	r := newTestRemapper(t)

	res := r.Process(keyEvent(evdev.KEY_F9, KeyPressed))
	if len(res.Events) != 0 {
		t.Errorf("macro trigger press emitted events: %v", res.Events)
	}
	if len(res.Macro) != 1 {
		t.Fatalf("macro not dispatched: %+v", res)
	}

	res = r.Process(keyEvent(evdev.KEY_F9, KeyRepeated))
	if len(res.Events) != 0 || res.Macro != nil {
		t.Errorf("macro trigger repeat leaked: %+v", res)
	}

	res = r.Process(keyEvent(evdev.KEY_F9, KeyReleased))
	if len(res.Events) != 0 || res.Macro != nil {
		t.Errorf("macro trigger release leaked: %+v", res)
	}
}

func TestNiriPassthroughUntouched(t *testing.T) {
	r := newTestRemapper(t)

	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyPressed))
	res := r.Process(keyEvent(evdev.KEY_VOLUMEUP, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_VOLUMEUP, KeyPressed})
}

func TestProfileSwitchBinding(t *testing.T) {
	r := newTestRemapper(t)

	r.Process(keyEvent(evdev.KEY_LEFTMETA, KeyPressed))
	res := r.Process(keyEvent(evdev.KEY_2, KeyPressed))
	if res.SwitchTo != "gaming" {
		t.Fatalf("SwitchTo = %q, want gaming", res.SwitchTo)
	}
	if len(res.Events) != 0 {
		t.Errorf("switch binding emitted events: %v", res.Events)
	}
}

func TestProfileSwitchTriggerReleaseSwallowed(t *testing.T) {
	r := newTestRemapper(t)

	r.Process(keyEvent(evdev.KEY_LEFTMETA, KeyPressed))
	res := r.Process(keyEvent(evdev.KEY_2, KeyPressed))
	if res.SwitchTo != "gaming" {
		t.Fatalf("SwitchTo = %q, want gaming", res.SwitchTo)
	}

	// the engine installs the new profile before the trigger comes back up
	if err := r.SwitchProfile("gaming"); err != nil {
		t.Fatalf("SwitchProfile: %v", err)
	}

	res = r.Process(keyEvent(evdev.KEY_2, KeyRepeated))
	if len(res.Events) != 0 {
		t.Errorf("trigger repeat leaked: %v", res.Events)
	}

	res = r.Process(keyEvent(evdev.KEY_2, KeyReleased))
	if len(res.Events) != 0 {
		t.Errorf("trigger release leaked: %v", res.Events)
	}

	// the key works normally again on its next press
	res = r.Process(keyEvent(evdev.KEY_2, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_2, KeyPressed})
}

func TestSwitchProfileResetsChordState(t *testing.T) {
	r := newTestRemapper(t)

	r.Process(keyEvent(evdev.KEY_LEFTCTRL, KeyPressed))
	if err := r.SwitchProfile("gaming"); err != nil {
		t.Fatalf("SwitchProfile: %v", err)
	}
	if r.ProfileName() != "gaming" {
		t.Errorf("ProfileName = %q, want gaming", r.ProfileName())
	}

	// the held Ctrl was abandoned; back on default, Ctrl+Q must not fire
	if err := r.SwitchProfile("default"); err != nil {
		t.Fatalf("SwitchProfile back: %v", err)
	}
	res := r.Process(keyEvent(evdev.KEY_Q, KeyPressed))
	wantEvents(t, res, OutputEvent{evdev.KEY_Q, KeyPressed})
}

func TestSwitchProfileUnknown(t *testing.T) {
	r := newTestRemapper(t)
	if err := r.SwitchProfile("nosuch"); err == nil {
		t.Error("expected error for unknown profile")
	}
}
