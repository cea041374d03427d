package remap

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"codeberg.org/miketth/keywarp/pkg/config"
	"codeberg.org/miketth/keywarp/pkg/keys"
)

// MacroExecutor plays stored action sequences against the shared output
// device. It holds no per-device state; any number of macros may run
// concurrently, and each key action is emitted as one atomic batch.
type MacroExecutor struct {
	sink EventSink
	log  *zap.SugaredLogger
}

func NewMacroExecutor(sink EventSink, log *zap.SugaredLogger) *MacroExecutor {
	return &MacroExecutor{sink: sink, log: log}
}

// Execute runs the action sequence in order. Delays suspend only this
// macro. An unresolvable key name aborts the remaining actions; events
// already emitted are not rolled back. Delay bounds are checked before
// anything is emitted.
func (m *MacroExecutor) Execute(ctx context.Context, actions []config.Action) error {
	for _, action := range actions {
		if action.Kind != config.ActionDelay {
			continue
		}
		if action.Delay < config.MinDelay || action.Delay > config.MaxDelay {
			return fmt.Errorf("delay %v out of range [%v, %v]", action.Delay, config.MinDelay, config.MaxDelay)
		}
	}

	m.log.Debugf("macro: running %d actions", len(actions))

	for _, action := range actions {
		switch action.Kind {
		case config.ActionDelay:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(action.Delay):
			}

		case config.ActionKey:
			if err := m.tap(action.Keys); err != nil {
				return err
			}
		}
	}

	return nil
}

// tap presses the spec's modifiers in listed order, taps the main key, and
// releases the modifiers in reverse order, all as one batch.
func (m *MacroExecutor) tap(spec string) error {
	mods, main, err := keys.ParseKeySpec(spec)
	if err != nil {
		return err
	}

	events := make([]OutputEvent, 0, 2*len(mods)+2)
	for _, mod := range mods {
		events = append(events, OutputEvent{Code: mod, Value: KeyPressed})
	}
	events = append(events,
		OutputEvent{Code: main, Value: KeyPressed},
		OutputEvent{Code: main, Value: KeyReleased},
	)
	for i := len(mods) - 1; i >= 0; i-- {
		events = append(events, OutputEvent{Code: mods[i], Value: KeyReleased})
	}

	if err := m.sink.Emit(events); err != nil {
		return fmt.Errorf("emit %q: %w", spec, err)
	}
	return nil
}
