package keys

import (
	"fmt"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// Chord is a trigger key plus the exact set of modifiers that must be held
// for it to fire. Comparable, so it can key combo tables directly.
type Chord struct {
	Mods Modifier
	Key  evdev.EvCode
}

// String returns a representation like "Ctrl+Shift+q".
func (c Chord) String() string {
	mods := c.Mods.String()
	if mods == "" {
		return Name(c.Key)
	}
	return mods + "+" + Name(c.Key)
}

// ParseChord parses a combo string like "Ctrl+Shift+Q". The last token is
// the trigger key and must not itself be a modifier; every preceding token
// must be a modifier name.
func ParseChord(s string) (Chord, error) {
	parts := strings.Split(s, "+")

	last := parts[len(parts)-1]
	code, ok := Lookup(last)
	if !ok {
		return Chord{}, fmt.Errorf("%q: %w", last, ErrUnknownKey)
	}
	if IsModifier(code) {
		return Chord{}, fmt.Errorf("chord %q: trigger %q is a modifier", s, last)
	}

	var mods Modifier
	for _, part := range parts[:len(parts)-1] {
		mod, ok := ModifierFromName(part)
		if !ok {
			return Chord{}, fmt.Errorf("chord %q: %q is not a modifier", s, part)
		}
		mods = mods.With(mod)
	}

	return Chord{Mods: mods, Key: code}, nil
}

// ParseKeySpec parses a macro key spec like "Ctrl+Shift+V" into the
// modifier key codes in listed order plus the main key. A lone modifier
// token ("Ctrl") is itself the main key with no modifiers.
func ParseKeySpec(s string) (mods []evdev.EvCode, main evdev.EvCode, err error) {
	parts := strings.Split(s, "+")

	for i, part := range parts {
		code, ok := Lookup(part)
		if !ok {
			return nil, 0, fmt.Errorf("key spec %q: %q: %w", s, part, ErrUnknownKey)
		}

		if i == len(parts)-1 {
			main = code
			continue
		}
		if !IsModifier(code) {
			return nil, 0, fmt.Errorf("key spec %q: %q is not a modifier", s, part)
		}
		mods = append(mods, code)
	}

	return mods, main, nil
}

// ParseOutputSpec parses a combo output like "Ctrl+T" or "f4" into the
// ordered list of key codes to hold: modifiers in listed order, main key
// last.
func ParseOutputSpec(s string) ([]evdev.EvCode, error) {
	mods, main, err := ParseKeySpec(s)
	if err != nil {
		return nil, err
	}
	return append(mods, main), nil
}
