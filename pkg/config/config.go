// Package config loads and validates the keywarp configuration file. The
// rest of the daemon only ever sees the validated Config: key names are
// already resolved to codes, macro actions are typed, and the per-profile
// rule tables are guaranteed disjoint, so the remapper never has to decide
// which category owns a trigger key.
package config

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	evdev "github.com/holoplot/go-evdev"

	"codeberg.org/miketth/keywarp/pkg/keys"
)

// DefaultProfile is the profile every device must define; it becomes the
// active profile when no other choice is recorded.
const DefaultProfile = "default"

// Macro delay bounds in milliseconds.
const (
	MinDelay = 1 * time.Millisecond
	MaxDelay = 10000 * time.Millisecond
)

var ErrNoDefaultProfile = errors.New("device has no default profile")

// ActionKind discriminates macro actions.
type ActionKind int

const (
	// ActionKey taps a key spec like "Ctrl+C".
	ActionKey ActionKind = iota
	// ActionDelay pauses the macro.
	ActionDelay
)

// Action is one step of a macro sequence.
type Action struct {
	Kind  ActionKind
	Keys  string // key spec, for ActionKey
	Delay time.Duration
}

// Profile is a named bundle of rules for one device.
type Profile struct {
	Name string

	// AppID is a hint for future automatic switching. Parsed, not acted on.
	AppID string

	Remap       map[evdev.EvCode]evdev.EvCode
	Combos      map[keys.Chord][]evdev.EvCode
	Macros      map[evdev.EvCode][]Action
	Passthrough map[evdev.EvCode]struct{}
}

// DeviceConfig is the configuration for one physical device, matched by
// exact device name.
type DeviceConfig struct {
	Name          string
	Profiles      map[string]*Profile
	ProfileSwitch map[keys.Chord]string
}

// Config is the validated daemon configuration, immutable once built.
type Config struct {
	Devices []*DeviceConfig
}

// Match returns the device config whose name equals name, or nil.
func (c *Config) Match(name string) *DeviceConfig {
	for _, d := range c.Devices {
		if d.Name == name {
			return d
		}
	}
	return nil
}

type rawConfig struct {
	Device []rawDevice `toml:"device"`
}

type rawDevice struct {
	Name          string                `toml:"name"`
	ProfileSwitch map[string]string     `toml:"profile_switch"`
	Profiles      map[string]rawProfile `toml:"profiles"`
}

type rawProfile struct {
	AppID           string              `toml:"app_id"`
	NiriPassthrough []string            `toml:"niri_passthrough"`
	Remap           map[string]string   `toml:"remap"`
	Combo           map[string]string   `toml:"combo"`
	Macro           map[string][]string `toml:"macro"`
}

// Load reads, parses and validates the configuration file at path.
func Load(path string) (*Config, error) {
	var raw rawConfig
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	return build(&raw)
}

func build(raw *rawConfig) (*Config, error) {
	cfg := &Config{}
	seen := make(map[string]struct{})

	for _, rd := range raw.Device {
		if rd.Name == "" {
			return nil, errors.New("device without a name")
		}
		if _, dup := seen[rd.Name]; dup {
			return nil, fmt.Errorf("device %q configured twice", rd.Name)
		}
		seen[rd.Name] = struct{}{}

		dev, err := buildDevice(&rd)
		if err != nil {
			return nil, fmt.Errorf("device %q: %w", rd.Name, err)
		}
		cfg.Devices = append(cfg.Devices, dev)
	}

	return cfg, nil
}

func buildDevice(raw *rawDevice) (*DeviceConfig, error) {
	dev := &DeviceConfig{
		Name:          raw.Name,
		Profiles:      make(map[string]*Profile, len(raw.Profiles)),
		ProfileSwitch: make(map[keys.Chord]string, len(raw.ProfileSwitch)),
	}

	for name, rp := range raw.Profiles {
		profile, err := buildProfile(name, &rp)
		if err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
		dev.Profiles[name] = profile
	}

	if _, ok := dev.Profiles[DefaultProfile]; !ok {
		return nil, ErrNoDefaultProfile
	}

	for spec, target := range raw.ProfileSwitch {
		chord, err := keys.ParseChord(spec)
		if err != nil {
			return nil, fmt.Errorf("profile_switch %q: %w", spec, err)
		}
		if _, dup := dev.ProfileSwitch[chord]; dup {
			return nil, fmt.Errorf("profile_switch %q: duplicate binding for %s", spec, chord)
		}
		if _, ok := dev.Profiles[target]; !ok {
			return nil, fmt.Errorf("profile_switch %q: unknown profile %q", spec, target)
		}
		dev.ProfileSwitch[chord] = target
	}

	return dev, nil
}

var delayRe = regexp.MustCompile(`^delay\((\d+)\)$`)

func buildProfile(name string, raw *rawProfile) (*Profile, error) {
	p := &Profile{
		Name:        name,
		AppID:       raw.AppID,
		Remap:       make(map[evdev.EvCode]evdev.EvCode, len(raw.Remap)),
		Combos:      make(map[keys.Chord][]evdev.EvCode, len(raw.Combo)),
		Macros:      make(map[evdev.EvCode][]Action, len(raw.Macro)),
		Passthrough: make(map[evdev.EvCode]struct{}, len(raw.NiriPassthrough)),
	}

	// owner tracks which rule category claimed a trigger key, to reject
	// profiles where two categories fight over the same key.
	owner := make(map[evdev.EvCode]string)
	claim := func(code evdev.EvCode, category string) error {
		if prev, taken := owner[code]; taken {
			return fmt.Errorf("key %q claimed by both %s and %s", keys.Name(code), prev, category)
		}
		owner[code] = category
		return nil
	}

	for from, to := range raw.Remap {
		fromCode, ok := keys.Lookup(from)
		if !ok {
			return nil, fmt.Errorf("remap %q: %w", from, keys.ErrUnknownKey)
		}
		if keys.IsModifier(fromCode) {
			return nil, fmt.Errorf("remap %q: source is a modifier", from)
		}
		toCode, ok := keys.Lookup(to)
		if !ok {
			return nil, fmt.Errorf("remap %q -> %q: %w", from, to, keys.ErrUnknownKey)
		}
		if err := claim(fromCode, "remap"); err != nil {
			return nil, err
		}
		p.Remap[fromCode] = toCode
	}

	comboKeys := make(map[evdev.EvCode]struct{})
	for spec, out := range raw.Combo {
		chord, err := keys.ParseChord(spec)
		if err != nil {
			return nil, fmt.Errorf("combo %q: %w", spec, err)
		}
		if _, dup := p.Combos[chord]; dup {
			return nil, fmt.Errorf("combo %q: duplicate binding for %s", spec, chord)
		}
		outCodes, err := keys.ParseOutputSpec(out)
		if err != nil {
			return nil, fmt.Errorf("combo %q -> %q: %w", spec, out, err)
		}
		if _, claimed := comboKeys[chord.Key]; !claimed {
			if err := claim(chord.Key, "combo"); err != nil {
				return nil, err
			}
			comboKeys[chord.Key] = struct{}{}
		}
		p.Combos[chord] = outCodes
	}

	for trigger, steps := range raw.Macro {
		code, ok := keys.Lookup(trigger)
		if !ok {
			return nil, fmt.Errorf("macro %q: %w", trigger, keys.ErrUnknownKey)
		}
		if keys.IsModifier(code) {
			return nil, fmt.Errorf("macro %q: trigger is a modifier", trigger)
		}
		if err := claim(code, "macro"); err != nil {
			return nil, err
		}

		actions, err := parseActions(steps)
		if err != nil {
			return nil, fmt.Errorf("macro %q: %w", trigger, err)
		}
		p.Macros[code] = actions
	}

	for _, key := range raw.NiriPassthrough {
		code, ok := keys.Lookup(key)
		if !ok {
			return nil, fmt.Errorf("niri_passthrough %q: %w", key, keys.ErrUnknownKey)
		}
		if err := claim(code, "niri_passthrough"); err != nil {
			return nil, err
		}
		p.Passthrough[code] = struct{}{}
	}

	return p, nil
}

func parseActions(steps []string) ([]Action, error) {
	actions := make([]Action, 0, len(steps))

	for _, step := range steps {
		if m := delayRe.FindStringSubmatch(step); m != nil {
			ms, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, fmt.Errorf("delay %q: %w", step, err)
			}
			delay := time.Duration(ms) * time.Millisecond
			if delay < MinDelay || delay > MaxDelay {
				return nil, fmt.Errorf("delay %q: out of range [%v, %v]", step, MinDelay, MaxDelay)
			}
			actions = append(actions, Action{Kind: ActionDelay, Delay: delay})
			continue
		}

		if _, _, err := keys.ParseKeySpec(step); err != nil {
			return nil, err
		}
		actions = append(actions, Action{Kind: ActionKey, Keys: step})
	}

	return actions, nil
}
