// Package app wires the profile store, supervisor, controller, history
// journal and notifications into one application instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/yllada/wiresock-manager/common"
	"github.com/yllada/wiresock-manager/config"
	"github.com/yllada/wiresock-manager/history"
	"github.com/yllada/wiresock-manager/notify"
	"github.com/yllada/wiresock-manager/procutil"
	"github.com/yllada/wiresock-manager/vpn"
)

// Application owns every long-lived component. Front-ends get one from
// New, call Start, and Close it on exit.
type Application struct {
	config     *config.Config
	store      *vpn.ProfileStore
	supervisor *vpn.Supervisor
	controller *vpn.Controller
	history    *history.Store
	sender     notify.Sender
	lock       *procutil.FileLock

	spawner vpn.Spawner

	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// Option customizes an Application.
type Option func(*Application)

// WithSpawner replaces the process spawner.
func WithSpawner(sp vpn.Spawner) Option {
	return func(a *Application) { a.spawner = sp }
}

// WithSender replaces the notification sender. It only takes effect when
// notifications are enabled in the configuration.
func WithSender(s notify.Sender) Option {
	return func(a *Application) { a.sender = s }
}

// New builds an Application from cfg. Nothing runs until Start.
//
// Only one Application may use a data directory at a time; New fails with
// common.ErrInstanceRunning while another one holds it.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Application, error) {
	a := &Application{config: cfg}
	for _, opt := range opts {
		opt(a)
	}

	lock, err := lockDataDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	a.lock = lock

	store, err := vpn.NewProfileStore(cfg.DataDir)
	if err != nil {
		lock.Unlock()
		return nil, err
	}
	a.store = store

	a.supervisor = vpn.NewSupervisor(store, vpn.Options{
		GraceInterval:      cfg.Supervisor.GraceInterval,
		TerminationTimeout: cfg.Supervisor.TerminationTimeout,
		KillTimeout:        cfg.Supervisor.KillTimeout,
		Spawner:            a.spawner,
	})
	a.controller = vpn.NewController(a.supervisor, store)

	if cfg.History.Enabled {
		hs, err := history.Open(ctx, filepath.Join(cfg.DataDir, common.HistoryFileName))
		if err != nil {
			// The journal is optional; run without it.
			common.LogWarn("Connection history disabled: %v", err)
		} else {
			if n, err := hs.Abandon(ctx, time.Now()); err == nil && n > 0 {
				common.LogInfo("Closed %d attempts left open by a previous run", n)
			}
			a.history = hs
		}
	}

	if cfg.Notifications.Enabled && a.sender == nil {
		a.sender = notify.New(common.AppName)
	}
	if !cfg.Notifications.Enabled {
		a.sender = nil
	}

	return a, nil
}

func lockDataDir(dir string) (*procutil.FileLock, error) {
	if err := common.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	path := filepath.Join(dir, common.LockFileName)
	lock, pid, err := procutil.LockFile(path)
	if errors.Is(err, procutil.ErrLocked) {
		if pid > 0 {
			return nil, fmt.Errorf("%w (PID %d holds %s)", common.ErrInstanceRunning, pid, path)
		}
		return nil, fmt.Errorf("%w (%s is locked)", common.ErrInstanceRunning, path)
	}
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return lock, nil
}

// Start attaches the log, history and notification subscribers.
func (a *Application) Start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)

	a.subscribe(ctx, "log", func(ctx context.Context, events <-chan vpn.Event) {
		vpn.Dispatch(ctx, events, vpn.LogHandler{})
	})

	if a.history != nil {
		rec := history.NewRecorder(a.history, a.config.History.Keep)
		a.subscribe(ctx, "history", rec.Run)
	}

	if a.sender != nil {
		n := notify.NewStateNotifier(a.sender)
		a.subscribe(ctx, "notify", func(ctx context.Context, events <-chan vpn.Event) {
			vpn.Dispatch(ctx, events, n)
		})
	}
}

func (a *Application) subscribe(ctx context.Context, name string, run func(context.Context, <-chan vpn.Event)) {
	events, _ := a.supervisor.Subscribe()
	a.wg.Add(1)
	common.SafeGo("subscriber "+name, func() {
		defer a.wg.Done()
		run(ctx, events)
	})
}

// Autostart connects the default profile when autostart is enabled. It
// returns the profile it tried, or "" when there was nothing to do.
func (a *Application) Autostart(ctx context.Context) (string, error) {
	name := a.store.StartupProfile()
	if name == "" {
		return "", nil
	}
	common.LogInfo("Autostart: connecting %q", name)
	return name, a.controller.Execute(ctx, vpn.ConnectCommand(name))
}

// Close disconnects, waits for subscribers to drain and releases resources.
func (a *Application) Close() error {
	var errs []error
	a.once.Do(func() {
		if err := a.supervisor.Close(); err != nil {
			errs = append(errs, fmt.Errorf("supervisor: %w", err))
		}

		// Subscriptions are closed by the supervisor; wait for the consumers
		// to finish what was queued before cancelling them.
		done := make(chan struct{})
		go func() {
			a.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			common.LogWarn("Event subscribers did not finish in time")
		}
		if a.cancel != nil {
			a.cancel()
		}

		if a.history != nil {
			if err := a.history.Close(); err != nil {
				errs = append(errs, fmt.Errorf("history: %w", err))
			}
		}
		if c, ok := a.sender.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("notifications: %w", err))
			}
		}
		if err := a.lock.Unlock(); err != nil {
			errs = append(errs, fmt.Errorf("lock: %w", err))
		}
	})
	return errors.Join(errs...)
}

// Config returns the runtime configuration.
func (a *Application) Config() *config.Config { return a.config }

// Profiles returns the profile store.
func (a *Application) Profiles() *vpn.ProfileStore { return a.store }

// Supervisor returns the connection supervisor.
func (a *Application) Supervisor() *vpn.Supervisor { return a.supervisor }

// Controller returns the command executor.
func (a *Application) Controller() *vpn.Controller { return a.controller }

// History returns the attempt journal, or nil when it is disabled.
func (a *Application) History() *history.Store { return a.history }
