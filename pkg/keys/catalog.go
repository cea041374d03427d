// Package keys is the single source of truth for key names: it maps
// human-readable names to evdev key codes and back, and parses the chord
// and key-spec strings used in configuration files. Both config validation
// and the runtime remapper resolve names through this package, so a name
// accepted at validation time always means the same code at runtime.
package keys

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	evdev "github.com/holoplot/go-evdev"
)

// ErrUnknownKey is returned when a key name cannot be resolved to a code.
var ErrUnknownKey = errors.New("unknown key name")

// rawPrefix is the escape format for codes without a friendly name,
// e.g. "code:465".
const rawPrefix = "code:"

var nameToCode = map[string]evdev.EvCode{
	"a": evdev.KEY_A,
	"b": evdev.KEY_B,
	"c": evdev.KEY_C,
	"d": evdev.KEY_D,
	"e": evdev.KEY_E,
	"f": evdev.KEY_F,
	"g": evdev.KEY_G,
	"h": evdev.KEY_H,
	"i": evdev.KEY_I,
	"j": evdev.KEY_J,
	"k": evdev.KEY_K,
	"l": evdev.KEY_L,
	"m": evdev.KEY_M,
	"n": evdev.KEY_N,
	"o": evdev.KEY_O,
	"p": evdev.KEY_P,
	"q": evdev.KEY_Q,
	"r": evdev.KEY_R,
	"s": evdev.KEY_S,
	"t": evdev.KEY_T,
	"u": evdev.KEY_U,
	"v": evdev.KEY_V,
	"w": evdev.KEY_W,
	"x": evdev.KEY_X,
	"y": evdev.KEY_Y,
	"z": evdev.KEY_Z,

	"0": evdev.KEY_0,
	"1": evdev.KEY_1,
	"2": evdev.KEY_2,
	"3": evdev.KEY_3,
	"4": evdev.KEY_4,
	"5": evdev.KEY_5,
	"6": evdev.KEY_6,
	"7": evdev.KEY_7,
	"8": evdev.KEY_8,
	"9": evdev.KEY_9,

	"f1":  evdev.KEY_F1,
	"f2":  evdev.KEY_F2,
	"f3":  evdev.KEY_F3,
	"f4":  evdev.KEY_F4,
	"f5":  evdev.KEY_F5,
	"f6":  evdev.KEY_F6,
	"f7":  evdev.KEY_F7,
	"f8":  evdev.KEY_F8,
	"f9":  evdev.KEY_F9,
	"f10": evdev.KEY_F10,
	"f11": evdev.KEY_F11,
	"f12": evdev.KEY_F12,

	"esc":        evdev.KEY_ESC,
	"tab":        evdev.KEY_TAB,
	"space":      evdev.KEY_SPACE,
	"enter":      evdev.KEY_ENTER,
	"backspace":  evdev.KEY_BACKSPACE,
	"capslock":   evdev.KEY_CAPSLOCK,
	"numlock":    evdev.KEY_NUMLOCK,
	"scrolllock": evdev.KEY_SCROLLLOCK,
	"sysrq":      evdev.KEY_SYSRQ,
	"pause":      evdev.KEY_PAUSE,
	"compose":    evdev.KEY_COMPOSE,

	"minus":      evdev.KEY_MINUS,
	"equal":      evdev.KEY_EQUAL,
	"leftbrace":  evdev.KEY_LEFTBRACE,
	"rightbrace": evdev.KEY_RIGHTBRACE,
	"semicolon":  evdev.KEY_SEMICOLON,
	"apostrophe": evdev.KEY_APOSTROPHE,
	"grave":      evdev.KEY_GRAVE,
	"backslash":  evdev.KEY_BACKSLASH,
	"comma":      evdev.KEY_COMMA,
	"dot":        evdev.KEY_DOT,
	"slash":      evdev.KEY_SLASH,
	"102nd":      evdev.KEY_102ND,

	"insert":   evdev.KEY_INSERT,
	"delete":   evdev.KEY_DELETE,
	"home":     evdev.KEY_HOME,
	"end":      evdev.KEY_END,
	"pageup":   evdev.KEY_PAGEUP,
	"pagedown": evdev.KEY_PAGEDOWN,
	"up":       evdev.KEY_UP,
	"down":     evdev.KEY_DOWN,
	"left":     evdev.KEY_LEFT,
	"right":    evdev.KEY_RIGHT,

	"kp0":        evdev.KEY_KP0,
	"kp1":        evdev.KEY_KP1,
	"kp2":        evdev.KEY_KP2,
	"kp3":        evdev.KEY_KP3,
	"kp4":        evdev.KEY_KP4,
	"kp5":        evdev.KEY_KP5,
	"kp6":        evdev.KEY_KP6,
	"kp7":        evdev.KEY_KP7,
	"kp8":        evdev.KEY_KP8,
	"kp9":        evdev.KEY_KP9,
	"kpdot":      evdev.KEY_KPDOT,
	"kpenter":    evdev.KEY_KPENTER,
	"kpplus":     evdev.KEY_KPPLUS,
	"kpminus":    evdev.KEY_KPMINUS,
	"kpasterisk": evdev.KEY_KPASTERISK,
	"kpslash":    evdev.KEY_KPSLASH,

	"leftctrl":   evdev.KEY_LEFTCTRL,
	"rightctrl":  evdev.KEY_RIGHTCTRL,
	"leftshift":  evdev.KEY_LEFTSHIFT,
	"rightshift": evdev.KEY_RIGHTSHIFT,
	"leftalt":    evdev.KEY_LEFTALT,
	"rightalt":   evdev.KEY_RIGHTALT,
	"leftmeta":   evdev.KEY_LEFTMETA,
	"rightmeta":  evdev.KEY_RIGHTMETA,

	"mute":           evdev.KEY_MUTE,
	"volumeup":       evdev.KEY_VOLUMEUP,
	"volumedown":     evdev.KEY_VOLUMEDOWN,
	"playpause":      evdev.KEY_PLAYPAUSE,
	"nextsong":       evdev.KEY_NEXTSONG,
	"previoussong":   evdev.KEY_PREVIOUSSONG,
	"brightnessup":   evdev.KEY_BRIGHTNESSUP,
	"brightnessdown": evdev.KEY_BRIGHTNESSDOWN,
}

var aliases = map[string]string{
	"escape":      "esc",
	"return":      "enter",
	"caps":        "capslock",
	"del":         "delete",
	"ins":         "insert",
	"pgup":        "pageup",
	"pgdn":        "pagedown",
	"print":       "sysrq",
	"printscreen": "sysrq",
	"menu":        "compose",
	"ctrl":        "leftctrl",
	"control":     "leftctrl",
	"shift":       "leftshift",
	"alt":         "leftalt",
	"altgr":       "rightalt",
	"super":       "leftmeta",
	"meta":        "leftmeta",
	"win":         "leftmeta",
	"cmd":         "leftmeta",
}

var codeToName map[evdev.EvCode]string

func init() {
	codeToName = make(map[evdev.EvCode]string, len(nameToCode))
	for name, code := range nameToCode {
		codeToName[code] = name
	}
}

// Lookup resolves a key name to its evdev code. Matching is
// case-insensitive and accepts aliases and the code:<n> raw escape.
func Lookup(name string) (evdev.EvCode, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if canonical, ok := aliases[n]; ok {
		n = canonical
	}
	if code, ok := nameToCode[n]; ok {
		return code, true
	}
	if raw, found := strings.CutPrefix(n, rawPrefix); found {
		v, err := strconv.ParseUint(raw, 10, 16)
		if err != nil || v > uint64(evdev.KEY_MAX) {
			return 0, false
		}
		return evdev.EvCode(v), true
	}
	return 0, false
}

// Name returns the canonical name for a code, or the code:<n> escape when
// the code has no friendly name. Name(c) always resolves back to c via
// Lookup.
func Name(code evdev.EvCode) string {
	if name, ok := codeToName[code]; ok {
		return name
	}
	return fmt.Sprintf("%s%d", rawPrefix, code)
}
