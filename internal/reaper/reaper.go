// Package reaper owns the daemon's single SIGCHLD handler: it sits as a
// subreaper over every job process (direct children and any further
// descendants that get re-parented to us once their own parent exits),
// waits for state changes with a non-blocking wait4 loop, and dispatches
// both ordinary exits and the ptrace trace-state machine of §4.5 back to
// the job whose pid it matches. Grounded on canonical-pebble's
// internal/overlord/servstate/reaper.go SIGCHLD loop, generalised from a
// single exit-code channel map to the richer per-pid callback the ptrace
// dance requires.
package reaper

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/ubports/upstart-sub001/internal/ulog"
)

// Event is what the reaper reports for a pid: either a terminal exit or a
// ptrace stop that needs a disposition decision (continue, detach, etc).
type Event struct {
	PID    int
	Exited bool
	Status unix.WaitStatus // valid when Exited

	Stopped    bool
	StopSignal unix.Signal   // valid when Stopped
	TraceEvent int           // status.TrapCause(): unix.PTRACE_EVENT_*, 0 for a plain SIGTRAP, -1 otherwise
}

// Handler receives Events for one registered pid until it reports Exited.
type Handler func(Event)

// Reaper is the daemon-wide subreaper. Create one with New during
// startup, call Run in its own goroutine, and Register a Handler for
// every pid Spawn hands back.
type Reaper struct {
	mu       sync.Mutex
	handlers map[int]Handler

	sigChld chan os.Signal
	stop    chan struct{}
	done    chan struct{}
}

// New installs this process as a child subreaper (PR_SET_CHILD_SUBREAPER)
// so exited grandchildren of a forking daemon process are reparented to
// us instead of init, and returns a Reaper ready to Run. ok is false on
// kernels predating Linux 3.4, in which case only direct children are
// ever reaped.
func New() (r *Reaper, ok bool, err error) {
	err = unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0)
	if err == unix.EINVAL {
		err = nil
		ok = false
	} else if err == nil {
		ok = true
	}
	return &Reaper{
		handlers: map[int]Handler{},
		sigChld:  make(chan os.Signal, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, ok, err
}

// Register arranges for fn to receive every Event for pid until it sees
// one with Exited set, at which point the registration is dropped.
func (r *Reaper) Register(pid int, fn Handler) {
	r.mu.Lock()
	r.handlers[pid] = fn
	r.mu.Unlock()
}

// Run blocks consuming SIGCHLD until Stop is called; it is meant to run
// in its own goroutine for the lifetime of the daemon.
func (r *Reaper) Run() {
	defer close(r.done)
	signal.Notify(r.sigChld, unix.SIGCHLD)
	defer signal.Stop(r.sigChld)

	// A child may have already exited between Spawn returning and
	// Register being called; do one sweep up front so it isn't missed.
	r.reapOnce()

	for {
		select {
		case <-r.sigChld:
			r.reapOnce()
		case <-r.stop:
			return
		}
	}
}

// Stop asks Run to return and waits for it to do so.
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
}

func (r *Reaper) reapOnce() {
	for {
		var status unix.WaitStatus
		pid, err := unix.Wait4(-1, &status, unix.WNOHANG, nil)
		switch {
		case err == unix.ECHILD:
			return
		case err != nil:
			ulog.Warnf("reaper: wait4: %v", err)
			return
		case pid <= 0:
			return
		}
		r.dispatch(pid, status)
	}
}

func (r *Reaper) dispatch(pid int, status unix.WaitStatus) {
	r.mu.Lock()
	fn, ok := r.handlers[pid]
	r.mu.Unlock()
	if !ok {
		ulog.WithField("pid", pid).Debugf("reaper: exit/stop with no registered handler")
		return
	}

	ev := Event{PID: pid}
	switch {
	case status.Exited() || status.Signaled():
		ev.Exited = true
		ev.Status = status
		r.mu.Lock()
		delete(r.handlers, pid)
		r.mu.Unlock()
	case status.Stopped():
		ev.Stopped = true
		ev.StopSignal = status.StopSignal()
		ev.TraceEvent = status.TrapCause()
	default:
		return
	}
	fn(ev)
}
