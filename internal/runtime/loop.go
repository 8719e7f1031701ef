package runtime

import (
	"context"
	"os"
	"os/signal"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ubports/upstart-sub001/internal/bus"
	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/job"
	"github.com/ubports/upstart-sub001/internal/reaper"
	"github.com/ubports/upstart-sub001/internal/respawn"
	"github.com/ubports/upstart-sub001/internal/spawn"
	"github.com/ubports/upstart-sub001/internal/ulog"
)

// Loop is the cooperative single-threaded scheduler: everything it does
// happens on ticks driven by one signal channel, so two state
// transitions for the same instance are never evaluated concurrently
// without the instance's own mutex being involved.
type Loop struct {
	Installer *job.Installer
	Bus       *bus.Bus
	Reaper    *reaper.Reaper
	Timers    *TimerSet

	Instances func() []*job.Instance

	// LogDir is the directory ConsoleLog job output is persisted under;
	// defaults to /var/log/upstart, matching config.Config's own default.
	LogDir string

	// ReexecRequested is set by the SIGTERM handler and observed by the
	// caller's top-level main after Run returns, since the actual
	// marshal-and-exec step needs access to open fds main() owns.
	ReexecRequested bool
	ReloadRequested bool

	sigCh chan os.Signal
	stop  chan struct{}
}

// NewLoop wires a Loop against the daemon's already-constructed
// subsystems.
func NewLoop(installer *job.Installer, b *bus.Bus, r *reaper.Reaper, instances func() []*job.Instance) *Loop {
	return &Loop{
		Installer: installer,
		Bus:       b,
		Reaper:    r,
		Timers:    NewTimerSet(),
		Instances: instances,
		LogDir:    "/var/log/upstart",
		sigCh:     make(chan os.Signal, 8),
		stop:      make(chan struct{}),
	}
}

// Run blocks processing signals and timer deadlines until Stop is
// called or a SIGTERM requests a stateful re-exec, whichever comes
// first.
//
// Signal handling follows §5's synthetic-event table: SIGHUP triggers a
// reload, SIGTERM a stateful re-exec, SIGUSR1 is only logged (the Loop
// holds no control-bus connection to reconnect), and SIGINT/SIGWINCH/
// SIGPWR are each translated into a plain emitted
// event (ctrl-alt-del, kbdrequest, and power-status-changed
// respectively) rather than being handled directly.
func (l *Loop) Run() {
	signal.Notify(l.sigCh,
		unix.SIGHUP, unix.SIGTERM, unix.SIGUSR1,
		unix.SIGINT, unix.SIGWINCH, unix.SIGPWR)
	defer signal.Stop(l.sigCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case sig := <-l.sigCh:
			if l.handleSignal(sig) {
				return
			}
		case now := <-ticker.C:
			l.tick(now)
		case <-l.stop:
			return
		}
	}
}

// Stop asks Run to return on its next iteration.
func (l *Loop) Stop() { close(l.stop) }

func (l *Loop) handleSignal(sig os.Signal) (exit bool) {
	switch sig {
	case unix.SIGTERM:
		ulog.Infof("runtime: SIGTERM received, requesting stateful re-exec")
		l.ReexecRequested = true
		return true
	case unix.SIGHUP:
		ulog.Infof("runtime: SIGHUP received, reloading job configuration")
		l.ReloadRequested = true
	case unix.SIGUSR1:
		ulog.Infof("runtime: SIGUSR1 received; no control-bus connection to reconnect")
	case unix.SIGINT:
		l.emitSynthetic("ctrl-alt-del")
	case unix.SIGWINCH:
		l.emitSynthetic("kbdrequest")
	case unix.SIGPWR:
		l.emitSynthetic("power-status-changed")
	}
	return false
}

func (l *Loop) emitSynthetic(name string) {
	if err := l.Bus.Emit(event.New(name, nil)); err != nil {
		ulog.Warnf("runtime: emit %q: %v", name, err)
	}
}

func (l *Loop) tick(now time.Time) {
	instances := l.Instances()
	result := bus.Run(l.Bus, l.Installer.List(), instances)

	for _, c := range result.StartMatched {
		inst := job.NewInstance(c, "")
		inst.SetGoal(job.GoalStart)
		ulog.WithField("job", c.Name).Infof("starting, triggered by StartOn")
	}
	for _, inst := range result.StopMatched {
		inst.SetGoal(job.GoalStop)
		ulog.WithField("job", inst.Class.Name).Infof("stopping, triggered by StopOn")
	}

	for _, inst := range instances {
		if role, ok := inst.ActiveRole(); ok && inst.PID[role] == 0 {
			l.spawnRole(inst, role)
		}
	}

	for _, t := range l.Timers.DueBefore(now) {
		l.fireTimer(t)
	}

	for _, inst := range instances {
		if inst.Destroyable() {
			l.Installer.Remove(inst.Class.Name)
		}
	}
}

// spawnRole builds a Spec for role from inst's class and expanded
// environment and spawns it via the fork/re-exec helper trampoline,
// registering the reaper handler that advances inst's state machine once
// the role exits. A role with no configured process (Processes[role] ==
// nil) is skipped by simply advancing past it, matching §4.4's "a class
// missing an optional role stanza moves straight through that state."
func (l *Loop) spawnRole(inst *job.Instance, role job.Role) {
	spec := spawn.BuildSpec(inst.Class, inst, role)
	if spec == nil {
		inst.Advance()
		return
	}

	ctx := context.Background()
	var con *spawn.Console
	if spec.Console != job.ConsoleNone {
		logPath := ""
		if spec.Console == job.ConsoleLog {
			logPath = inst.EnsureLogPath(l.LogDir, role)
		}
		c, err := spawn.OpenConsole(ctx, spec.Console, logPath)
		if err != nil {
			ulog.WithField("job", inst.Class.Name).Warnf("open console %s: %v", role, err)
			inst.Failed = true
			inst.FailedRole = role
			return
		}
		con = c
		con.ApplyTo(spec)
	}

	result, setupErr, err := spawn.Spawn(ctx, spec)
	if con != nil {
		// The fds handed to the child (log pty slave, /dev/console) are
		// no longer needed on the daemon's side once the helper has
		// them open across its own fork/exec.
		con.Close()
	}
	if setupErr != nil {
		ulog.WithField("job", inst.Class.Name).Warnf("spawn %s: %v", role, setupErr)
		inst.Failed = true
		inst.FailedRole = role
		if con != nil {
			con.CloseAfterExit()
		}
		return
	}
	if err != nil {
		ulog.WithField("job", inst.Class.Name).Warnf("spawn %s: %v", role, err)
		inst.Failed = true
		inst.FailedRole = role
		if con != nil {
			con.CloseAfterExit()
		}
		return
	}

	inst.PID[role] = result.PID
	l.Reaper.Register(result.PID, func(ev reaper.Event) {
		if !ev.Exited {
			return
		}
		inst.PID[role] = 0
		if con != nil {
			con.CloseAfterExit()
		}
		if role == job.RoleMain {
			if EvaluateExit(inst, ev.Status, time.Now()) == respawn.DecisionRespawn {
				inst.Goal = job.GoalRespawn
			}
		}
		inst.Advance()
	})
}

func (l *Loop) fireTimer(t *Timer) {
	switch t.Kind {
	case TimerKill:
		ulog.WithField("job", t.ClassName).Warnf("kill timeout expired")
	case TimerRespawn:
		ulog.WithField("job", t.ClassName).Infof("respawn interval elapsed")
	}
}

// EvaluateExit is the glue between the reaper reporting a pid's exit and
// the respawn governor's verdict; the caller (which owns the instance
// table) invokes this from its reaper.Handler for the main role.
func EvaluateExit(inst *job.Instance, status unix.WaitStatus, now time.Time) respawn.Decision {
	code := status.ExitStatus()
	if status.Signaled() {
		code = -int(status.Signal())
	}
	return respawn.Evaluate(inst, code, now)
}
