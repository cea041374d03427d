package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	stdlog "log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"codeberg.org/miketth/keywarp/pkg/config"
	"codeberg.org/miketth/keywarp/pkg/control"
	"codeberg.org/miketth/keywarp/pkg/devices"
	"codeberg.org/miketth/keywarp/pkg/niri"
	"codeberg.org/miketth/keywarp/pkg/profilestore/sqlite"
	"codeberg.org/miketth/keywarp/pkg/remap"
	"codeberg.org/miketth/keywarp/pkg/virtual"
)

const inputDir = "/dev/input"

func main() {
	err := run()
	if err != nil {
		stdlog.Fatalf("error: %+v", err)
	}
}

func run() error {
	configPath := flag.String("config", filepath.Join(xdg.ConfigHome, "keywarp", "config.toml"), "path to config file")
	statePath := flag.String("state", filepath.Join(xdg.StateHome, "keywarp", "profiles.db"), "path to profile state db")
	socketPath := flag.String("socket", filepath.Join(xdg.RuntimeDir, "keywarp.sock"), "path to control socket")
	watchFocus := flag.Bool("watch-focus", false, "follow niri window focus events")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(*statePath), 0755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	store, err := sqlite.NewStore(*statePath, log)
	if err != nil {
		return fmt.Errorf("open profile store: %w", err)
	}
	defer store.Close()

	keyboard, err := virtual.NewKeyboard(log)
	if err != nil {
		return fmt.Errorf("create virtual keyboard: %w", err)
	}
	defer keyboard.Close()

	manager := devices.NewManager(cfg, store, log)
	if err := manager.GrabAll(inputDir); err != nil {
		return fmt.Errorf("grab devices: %w", err)
	}

	engine := remap.NewEngine(keyboard, store, log)
	for _, stream := range manager.Streams() {
		engine.Attach(stream)
	}

	log.Info("started keywarp")

	errChan := make(chan error, 6)
	var wg sync.WaitGroup

	start := func(name string, f func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f(ctx); err != nil {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	start("engine", engine.Run)
	start("hotplug watcher", func(ctx context.Context) error {
		return manager.Watch(ctx, inputDir, engine)
	})
	start("control server", control.NewServer(*socketPath, engine, log).Run)
	start("reload", func(ctx context.Context) error {
		return reloadLoop(ctx, *configPath, manager, log)
	})
	start("systemd notify", systemdNotifyLoop)

	if *watchFocus {
		client, err := niri.Connect()
		if err != nil {
			log.Warnw("focus watching disabled", "error", err)
		} else {
			defer client.Close()
			start("focus watcher", niri.NewFocusWatcher(client, log).Run)
		}
	}

	err = <-errChan
	switch {
	case errors.Is(err, context.Canceled):
		log.Info("shutting down")
		wg.Wait()
		return nil
	case err != nil:
		return err
	}

	return nil
}

// reloadLoop re-reads the configuration on SIGHUP. A valid file replaces
// the configuration used for future grabs; a bad one is logged and the
// previous configuration stays in effect. Live remappers keep their rules
// either way.
func reloadLoop(ctx context.Context, path string, manager *devices.Manager, log *zap.SugaredLogger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-hup:
			cfg, err := config.Load(path)
			if err != nil {
				log.Errorw("reload failed, keeping previous configuration", "error", err)
				continue
			}
			manager.SetConfig(cfg)
			log.Info("configuration reloaded")
		}
	}
}

func systemdNotifyLoop(ctx context.Context) error {
	supported, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		return fmt.Errorf("notify systemd: %w", err)
	}
	if !supported {
		return nil
	}

	_, _ = daemon.SdNotify(false, "STATUS=Remapping keys")

	t, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("check watchdog: %w", err)
	}
	if t == 0 {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-time.After(t / 2):
			_, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			if err != nil {
				return fmt.Errorf("notify watchdog: %w", err)
			}
		}
	}
}

func newLogger(debug bool) (*zap.SugaredLogger, error) {
	loggerConfig := zap.NewDevelopmentConfig()

	loggerConfig.OutputPaths = []string{"stdout"}
	loggerConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if !debug {
		loggerConfig.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := loggerConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	return logger.Sugar(), nil
}
