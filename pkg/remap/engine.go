package remap

import (
	"context"
	"fmt"
	"sync"

	evdev "github.com/holoplot/go-evdev"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

type streamEvent struct {
	stream *Stream
	ev     *evdev.InputEvent
	err    error
}

// Engine is the single consumer of all grabbed devices. It merges the
// per-device streams into one channel, routes each event through the
// device's remapper, and forwards the output to the shared sink. Events
// from one device keep their arrival order; ordering across devices is
// ready-driven and not guaranteed.
type Engine struct {
	mu      sync.Mutex
	streams map[string]*Stream // keyed by device path
	running bool
	ctx     context.Context

	sink   EventSink
	exec   *MacroExecutor
	store  ProfileStore
	log    *zap.SugaredLogger
	events chan streamEvent
}

func NewEngine(sink EventSink, store ProfileStore, log *zap.SugaredLogger) *Engine {
	return &Engine{
		streams: make(map[string]*Stream),
		sink:    sink,
		exec:    NewMacroExecutor(sink, log),
		store:   store,
		log:     log,
		events:  make(chan streamEvent),
	}
}

// Attach takes ownership of a stream. Before Run the stream is parked;
// while running its reader starts immediately.
func (e *Engine) Attach(stream *Stream) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.streams[stream.Info.Path] = stream
	e.log.Infow("device attached",
		"path", stream.Info.Path,
		"name", stream.Info.Name,
		"profile", stream.Remapper.ProfileName(),
	)

	if e.running {
		go e.read(e.ctx, stream)
	}
}

// Detach closes a stream's reader, releasing the device. No-op for paths
// the engine does not own.
func (e *Engine) Detach(path string) {
	e.mu.Lock()
	stream, ok := e.streams[path]
	if ok {
		delete(e.streams, path)
	}
	e.mu.Unlock()

	if !ok {
		return
	}
	if err := stream.Reader.Close(); err != nil {
		e.log.Warnw("close device", "path", path, "error", err)
	}
	e.log.Infow("device detached", "path", path)
}

// Run consumes events until ctx is cancelled. A read error on one device
// ends that device's stream only; the loop keeps serving the rest.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	e.running = true
	e.ctx = ctx
	for _, stream := range e.streams {
		go e.read(ctx, stream)
	}
	e.mu.Unlock()

	defer e.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case se := <-e.events:
			if se.err != nil {
				e.log.Warnw("device read failed, dropping device",
					"path", se.stream.Info.Path, "error", se.err)
				e.Detach(se.stream.Info.Path)
				continue
			}
			e.handle(se.stream, se.ev)
		}
	}
}

func (e *Engine) read(ctx context.Context, stream *Stream) {
	for {
		ev, err := stream.Reader.ReadOne()

		select {
		case e.events <- streamEvent{stream: stream, ev: ev, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

func (e *Engine) handle(stream *Stream, ev *evdev.InputEvent) {
	res := stream.Remapper.Process(ev)

	if res.SwitchTo != "" {
		if err := e.switchProfile(stream, res.SwitchTo); err != nil {
			e.log.Errorw("switch profile", "device", stream.Info.Name, "error", err)
		}
	}

	if len(res.Events) > 0 {
		if err := e.sink.Emit(res.Events); err != nil {
			e.log.Errorw("emit", "device", stream.Info.Name, "error", err)
		}
	}

	if res.Macro != nil {
		// detached: the device's own events keep flowing while the macro
		// plays out
		go func() {
			if err := e.exec.Execute(e.ctx, res.Macro); err != nil {
				e.log.Errorw("macro aborted", "device", stream.Info.Name, "error", err)
			}
		}()
	}
}

// SwitchProfile activates the named profile on the named device and
// records the choice in the profile store.
func (e *Engine) SwitchProfile(device, profile string) error {
	e.mu.Lock()
	var stream *Stream
	for _, s := range e.streams {
		if s.Info.Name == device {
			stream = s
			break
		}
	}
	e.mu.Unlock()

	if stream == nil {
		return fmt.Errorf("no grabbed device named %q", device)
	}
	return e.switchProfile(stream, profile)
}

func (e *Engine) switchProfile(stream *Stream, profile string) error {
	if err := stream.Remapper.SwitchProfile(profile); err != nil {
		return err
	}
	if err := e.store.SetActiveProfile(stream.Info.Name, profile); err != nil {
		e.log.Warnw("persist profile", "device", stream.Info.Name, "error", err)
	}
	e.log.Infow("profile switched", "device", stream.Info.Name, "profile", profile)
	return nil
}

// ActiveProfiles reports the active profile per grabbed device name.
func (e *Engine) ActiveProfiles() map[string]string {
	e.mu.Lock()
	defer e.mu.Unlock()

	profiles := make(map[string]string, len(e.streams))
	for _, s := range e.streams {
		profiles[s.Info.Name] = s.Remapper.ProfileName()
	}
	return profiles
}

func (e *Engine) closeAll() {
	e.mu.Lock()
	streams := make([]*Stream, 0, len(e.streams))
	for _, s := range e.streams {
		streams = append(streams, s)
	}
	clear(e.streams)
	e.mu.Unlock()

	var errs *multierror.Error
	for _, s := range streams {
		if err := s.Reader.Close(); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("close %s: %w", s.Info.Path, err))
		}
	}
	if err := errs.ErrorOrNil(); err != nil {
		e.log.Warnw("release devices", "error", err)
	}
}
