package keys

import (
	"testing"

	evdev "github.com/holoplot/go-evdev"
)

func TestModifierSet(t *testing.T) {
	m := ModNone.With(ModCtrl).With(ModShift)
	if !m.Has(ModCtrl) || !m.Has(ModShift) || m.Has(ModAlt) {
		t.Errorf("unexpected set: %v", m)
	}
	m = m.Without(ModCtrl)
	if m.Has(ModCtrl) || !m.Has(ModShift) {
		t.Errorf("Without(ModCtrl) gave %v", m)
	}
	if !ModNone.IsEmpty() || m.IsEmpty() {
		t.Error("IsEmpty misreported")
	}
}

func TestModifierString(t *testing.T) {
	tests := []struct {
		mod  Modifier
		want string
	}{
		{ModNone, ""},
		{ModCtrl, "Ctrl"},
		{ModCtrl | ModShift, "Ctrl+Shift"},
		{ModCtrl | ModShift | ModAlt | ModSuper, "Ctrl+Shift+Alt+Super"},
	}

	for _, tt := range tests {
		if got := tt.mod.String(); got != tt.want {
			t.Errorf("Modifier(%d).String() = %q, want %q", tt.mod, got, tt.want)
		}
	}
}

func TestModifierFromCode(t *testing.T) {
	tests := []struct {
		code evdev.EvCode
		want Modifier
		ok   bool
	}{
		{evdev.KEY_LEFTCTRL, ModCtrl, true},
		{evdev.KEY_RIGHTCTRL, ModCtrl, true},
		{evdev.KEY_LEFTSHIFT, ModShift, true},
		{evdev.KEY_RIGHTSHIFT, ModShift, true},
		{evdev.KEY_LEFTALT, ModAlt, true},
		{evdev.KEY_RIGHTALT, ModAlt, true},
		{evdev.KEY_LEFTMETA, ModSuper, true},
		{evdev.KEY_RIGHTMETA, ModSuper, true},
		{evdev.KEY_A, ModNone, false},
	}

	for _, tt := range tests {
		got, ok := ModifierFromCode(tt.code)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ModifierFromCode(%d) = (%v, %v), want (%v, %v)", tt.code, got, ok, tt.want, tt.ok)
		}
	}
}

func TestParseChord(t *testing.T) {
	tests := []struct {
		in      string
		want    Chord
		wantErr bool
	}{
		{"Ctrl+Q", Chord{ModCtrl, evdev.KEY_Q}, false},
		{"ctrl+shift+q", Chord{ModCtrl | ModShift, evdev.KEY_Q}, false},
		{"Super+1", Chord{ModSuper, evdev.KEY_1}, false},
		{"f4", Chord{ModNone, evdev.KEY_F4}, false},
		{"Ctrl+Nosuch", Chord{}, true},
		{"Nosuch+Q", Chord{}, true},
		{"Ctrl+Shift", Chord{}, true}, // trigger must not be a modifier
	}

	for _, tt := range tests {
		got, err := ParseChord(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChord(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseChord(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestParseKeySpec(t *testing.T) {
	mods, main, err := ParseKeySpec("Ctrl+Shift+V")
	if err != nil {
		t.Fatalf("ParseKeySpec: %v", err)
	}
	if main != evdev.KEY_V {
		t.Errorf("main = %d, want KEY_V", main)
	}
	if len(mods) != 2 || mods[0] != evdev.KEY_LEFTCTRL || mods[1] != evdev.KEY_LEFTSHIFT {
		t.Errorf("mods = %v, want [LEFTCTRL LEFTSHIFT]", mods)
	}

	// a lone modifier is the main key
	mods, main, err = ParseKeySpec("Ctrl")
	if err != nil {
		t.Fatalf("ParseKeySpec lone modifier: %v", err)
	}
	if len(mods) != 0 || main != evdev.KEY_LEFTCTRL {
		t.Errorf("lone modifier = (%v, %d), want ([], LEFTCTRL)", mods, main)
	}

	if _, _, err := ParseKeySpec("Ctrl+Nosuch"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, _, err := ParseKeySpec("A+B"); err == nil {
		t.Error("expected error for non-modifier prefix")
	}
}
