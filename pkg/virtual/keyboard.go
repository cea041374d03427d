// Package virtual owns the process-wide synthetic keyboard. Every remapped
// event and every macro funnels through the one Keyboard, so downstream
// software sees a single input device it cannot tell from hardware.
package virtual

import (
	"fmt"
	"sync"

	evdev "github.com/holoplot/go-evdev"
	"go.uber.org/zap"

	"codeberg.org/miketth/keywarp/pkg/remap"
)

const deviceName = "keywarp virtual keyboard"

// Keyboard is a uinput-backed keyboard advertising the full key range.
// Emit batches are atomic at the wire level; concurrent producers are
// serialized by the mutex, which is never held across anything that waits.
type Keyboard struct {
	mu  sync.Mutex
	dev *evdev.InputDevice
	log *zap.SugaredLogger
}

func NewKeyboard(log *zap.SugaredLogger) (*Keyboard, error) {
	capabilities := map[evdev.EvType][]evdev.EvCode{
		evdev.EV_KEY: allKeyCodes(),
	}

	dev, err := evdev.CreateDevice(deviceName, evdev.InputID{
		BusType: 0x03,
		Vendor:  0x1d6b,
		Product: 0x0104,
		Version: 1,
	}, capabilities)
	if err != nil {
		return nil, fmt.Errorf("create uinput device: %w", err)
	}

	log.Infow("virtual keyboard created", "name", deviceName)

	return &Keyboard{dev: dev, log: log}, nil
}

// Emit writes one batch of key events followed by a single SYN_REPORT.
func (k *Keyboard) Emit(events []remap.OutputEvent) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	for _, ev := range events {
		err := k.dev.WriteOne(&evdev.InputEvent{
			Type:  evdev.EV_KEY,
			Code:  ev.Code,
			Value: ev.Value,
		})
		if err != nil {
			return fmt.Errorf("write key event: %w", err)
		}
	}

	err := k.dev.WriteOne(&evdev.InputEvent{
		Type: evdev.EV_SYN,
		Code: evdev.SYN_REPORT,
	})
	if err != nil {
		return fmt.Errorf("write syn: %w", err)
	}

	return nil
}

// Close destroys the virtual device node.
func (k *Keyboard) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dev.Close()
}

func allKeyCodes() []evdev.EvCode {
	codes := make([]evdev.EvCode, 0, evdev.KEY_MAX)
	for code := evdev.EvCode(1); code <= evdev.KEY_MAX; code++ {
		codes = append(codes, code)
	}
	return codes
}
