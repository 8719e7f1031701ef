// Package respawn decides, after a job's main process exits, whether it
// should be started again, and separately manages the kill-timer
// escalation (SIGTERM then SIGKILL) used to stop a process that a given
// KillTimeout says has had long enough to shut down on its own.
package respawn

import (
	"time"

	"golang.org/x/sys/unix"

	"github.com/ubports/upstart-sub001/internal/job"
	"github.com/ubports/upstart-sub001/internal/ulog"
)

// Decision is the respawn governor's verdict for one exit.
type Decision int

const (
	DecisionStop Decision = iota
	DecisionRespawn
	DecisionFailed // respawn limit exceeded; class is disabled until restarted by hand
)

// Evaluate applies §4.4's respawn-rate-limit rule: an instance whose
// class has Respawn set is restarted unless the exit was in NormalExit,
// the Goal was already STOP, or it has exceeded RespawnLimit respawns
// within RespawnInterval seconds, in which case the job is marked failed
// instead of looping forever.
//
// now is passed in rather than read via time.Now so the caller can supply
// a monotonic clock consistent with whatever was restored across a
// stateful re-exec.
func Evaluate(inst *job.Instance, status int, now time.Time) Decision {
	if inst.Goal == job.GoalStop {
		return DecisionStop
	}
	if inst.Class.IsNormalExit(status) {
		return DecisionStop
	}
	if !inst.Class.Respawn {
		return DecisionStop
	}

	if inst.RespawnTime.IsZero() || now.Sub(inst.RespawnTime) > inst.Class.RespawnInterval {
		inst.RespawnTime = now
		inst.RespawnCount = 0
	}
	inst.RespawnCount++

	if inst.Class.RespawnLimit > 0 && inst.RespawnCount > inst.Class.RespawnLimit {
		ulog.WithField("job", inst.Class.Name).Warnf(
			"respawning too fast (%d times in %s), disabling", inst.RespawnCount, inst.Class.RespawnInterval)
		return DecisionFailed
	}
	return DecisionRespawn
}

// KillEscalation tracks the SIGTERM-then-SIGKILL timer for one role's
// shutdown: Start sends KillSignal at once and arms a single timer for
// KillTimeout that sends SIGKILL when it fires, unless Cancel was called
// first.
type KillEscalation struct {
	timer *time.Timer
}

// Start begins the escalation: kill sends sig to pid's whole process
// group immediately and arms a follow-up SIGKILL after timeout unless
// Cancel is called first (the caller cancels once the reaper reports the
// pid has exited). Every spawned job is its own
// session and process-group leader (internal/spawn always sets
// Setsid), so pid is always a valid pgid to negate, matching
// original_source/init/system.c's system_kill.
func Start(pid int, sig unix.Signal, timeout time.Duration) *KillEscalation {
	killGroup(pid, sig)
	k := &KillEscalation{}
	k.timer = time.AfterFunc(timeout, func() {
		ulog.WithField("pid", pid).Warnf("kill timeout expired, sending SIGKILL")
		killGroup(pid, unix.SIGKILL)
	})
	return k
}

// killGroup signals pid's process group, falling back to the bare pid if
// the group id can't be determined (e.g. the process has already exited).
func killGroup(pid int, sig unix.Signal) {
	pgid, err := unix.Getpgid(pid)
	if err != nil || pgid <= 0 {
		unix.Kill(pid, sig)
		return
	}
	unix.Kill(-pgid, sig)
}

// Cancel stops the pending SIGKILL escalation; call it as soon as the
// reaper confirms the pid has exited.
func (k *KillEscalation) Cancel() {
	if k != nil && k.timer != nil {
		k.timer.Stop()
	}
}
