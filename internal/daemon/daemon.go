// Package daemon wires every internal package together into the running
// init process: the single-instance lock, the event bus, the job
// installer, the reaper, the control surface, and the main run loop's
// startup/shutdown coordination.
package daemon

import (
	"context"
	"fmt"
	"os"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/ubports/upstart-sub001/internal/bus"
	"github.com/ubports/upstart-sub001/internal/config"
	"github.com/ubports/upstart-sub001/internal/control"
	"github.com/ubports/upstart-sub001/internal/job"
	"github.com/ubports/upstart-sub001/internal/reaper"
	"github.com/ubports/upstart-sub001/internal/ulog"
)

// Daemon owns every long-lived subsystem for one session (system or
// --user).
type Daemon struct {
	Config    *config.Config
	Installer *job.Installer
	Bus       *bus.Bus
	Reaper    *reaper.Reaper
	Control   *control.Server

	lock *flock.Flock
}

// lockPath picks the single-instance lock file location; a second
// `init`/`--user` invocation against the same path fails fast rather than
// silently fighting the first for the same jobs.
func lockPath(cfg *config.Config) string {
	if cfg.User {
		return cfg.LogDir + "/.upstart.lock"
	}
	return "/run/upstart.lock"
}

// New acquires the single-instance lock and builds every subsystem, but
// does not start any goroutines yet; call Run for that.
func New(cfg *config.Config) (*Daemon, error) {
	lock := flock.New(lockPath(cfg))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("daemon: acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("daemon: another instance already holds %s", lock.Path())
	}

	r, subreaperOK, err := reaper.New()
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("daemon: reaper: %w", err)
	}
	if !subreaperOK {
		ulog.Warnf("daemon: PR_SET_CHILD_SUBREAPER unavailable on this kernel, only direct children will be reaped")
	}

	return &Daemon{
		Config:    cfg,
		Installer: job.NewInstaller(),
		Bus:       bus.New(),
		Reaper:    r,
		lock:      lock,
	}, nil
}

// Run starts the reaper, bus and (if set) control goroutines under a
// golang.org/x/sync/errgroup and blocks until ctx is cancelled, then stops
// them in the same order they were started (reaper, bus, control) and
// waits for all of them. None of these goroutines returns an error, so
// only the cancellation of ctx ends Run.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Reaper.Run()
		return nil
	})
	g.Go(func() error {
		d.Bus.Run()
		return nil
	})
	if d.Control != nil {
		g.Go(func() error {
			d.Control.Run()
			return nil
		})
	}

	<-gctx.Done()

	d.Reaper.Stop()
	if err := d.Bus.Stop(); err != nil {
		ulog.Warnf("daemon: bus shutdown: %v", err)
	}
	if d.Control != nil {
		if err := d.Control.Stop(); err != nil {
			ulog.Warnf("daemon: control shutdown: %v", err)
		}
	}

	return g.Wait()
}

// Close releases the single-instance lock; call it only after Run has
// returned, and never across a stateful re-exec (the replacement process
// must acquire it fresh once it has fully taken over).
func (d *Daemon) Close() {
	d.lock.Unlock()
	os.Remove(d.lock.Path())
}
