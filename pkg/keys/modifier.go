package keys

import (
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Modifier is a set of canonical modifiers. Left and right physical
// variants fold into the same bit, so chord matching cannot tell them
// apart.
type Modifier uint8

const (
	// ModNone is the empty set.
	ModNone Modifier = 0

	// ModCtrl is either Control key.
	ModCtrl Modifier = 1 << iota

	// ModShift is either Shift key.
	ModShift

	// ModAlt is either Alt key.
	ModAlt

	// ModSuper is either Super (Meta/Win) key.
	ModSuper
)

// Has returns true if m contains mod.
func (m Modifier) Has(mod Modifier) bool {
	return m&mod != 0
}

// With returns m with mod added.
func (m Modifier) With(mod Modifier) Modifier {
	return m | mod
}

// Without returns m with mod removed.
func (m Modifier) Without(mod Modifier) Modifier {
	return m &^ mod
}

// IsEmpty returns true if no modifiers are set.
func (m Modifier) IsEmpty() bool {
	return m == ModNone
}

// String returns a representation like "Ctrl+Shift".
func (m Modifier) String() string {
	if m == ModNone {
		return ""
	}

	var parts []string
	if m.Has(ModCtrl) {
		parts = append(parts, "Ctrl")
	}
	if m.Has(ModShift) {
		parts = append(parts, "Shift")
	}
	if m.Has(ModAlt) {
		parts = append(parts, "Alt")
	}
	if m.Has(ModSuper) {
		parts = append(parts, "Super")
	}
	return strings.Join(parts, "+")
}

var modifierCodes = map[evdev.EvCode]Modifier{
	evdev.KEY_LEFTCTRL:   ModCtrl,
	evdev.KEY_RIGHTCTRL:  ModCtrl,
	evdev.KEY_LEFTSHIFT:  ModShift,
	evdev.KEY_RIGHTSHIFT: ModShift,
	evdev.KEY_LEFTALT:    ModAlt,
	evdev.KEY_RIGHTALT:   ModAlt,
	evdev.KEY_LEFTMETA:   ModSuper,
	evdev.KEY_RIGHTMETA:  ModSuper,
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"super":   ModSuper,
	"meta":    ModSuper,
	"win":     ModSuper,
	"cmd":     ModSuper,
}

// ModifierFromCode normalizes a physical key code to its canonical
// modifier. The second return is false for non-modifier keys.
func ModifierFromCode(code evdev.EvCode) (Modifier, bool) {
	m, ok := modifierCodes[code]
	return m, ok
}

// ModifierFromName resolves a modifier name (case-insensitive). The second
// return is false for names that are not modifiers.
func ModifierFromName(name string) (Modifier, bool) {
	m, ok := modifierNames[strings.ToLower(strings.TrimSpace(name))]
	return m, ok
}

// IsModifier reports whether code is a physical modifier key.
func IsModifier(code evdev.EvCode) bool {
	_, ok := modifierCodes[code]
	return ok
}
