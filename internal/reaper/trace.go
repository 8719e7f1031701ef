package reaper

import (
	"golang.org/x/sys/unix"

	"github.com/ubports/upstart-sub001/internal/job"
)

// TraceStep is the disposition the ptrace sub-state machine of §4.5
// reaches for one Event: either let the tracee run on, forward a real
// signal it was stopped by, or declare the Expectation satisfied.
type TraceStep int

const (
	TraceContinue TraceStep = iota
	TraceForwardSignal
	TraceSatisfied
)

// AdvanceTrace applies one Event to an instance's current TraceState and
// returns the next TraceState plus what the caller should do about it.
// The table is exactly the one named in §4.5:
//
//	NEW      + stopped(SIGTRAP)        -> NORMAL, continue
//	NORMAL   + PTRACE_EVENT_FORK/CLONE -> NEW_CHILD (if Expect==Fork and
//	                                      this is the first fork) else
//	                                      satisfied for ExpectNone/Stop
//	NEW_CHILD+ stopped(SIGSTOP)        -> NORMAL, continue
//	NORMAL   + PTRACE_EVENT_EXEC       -> satisfied (daemon has re-exec'd
//	                                      past the fork it was expected to
//	                                      make)
//	anything else stopped              -> forward the signal, continue
func AdvanceTrace(expect job.Expectation, cur job.TraceState, forksSoFar int, ev Event) (next job.TraceState, step TraceStep) {
	if !ev.Stopped {
		return cur, TraceContinue
	}

	switch cur {
	case job.TraceNone, job.TraceNew:
		if ev.StopSignal == unix.SIGTRAP {
			return job.TraceNormal, TraceContinue
		}
		return cur, TraceForwardSignal

	case job.TraceNewChild:
		if ev.StopSignal == unix.SIGSTOP {
			return job.TraceNormal, TraceContinue
		}
		return cur, TraceForwardSignal

	case job.TraceNormal:
		switch ev.TraceEvent {
		case unix.PTRACE_EVENT_FORK, unix.PTRACE_EVENT_CLONE, unix.PTRACE_EVENT_VFORK:
			if expect == job.ExpectFork && forksSoFar == 0 {
				return job.TraceNewChild, TraceContinue
			}
			if expect == job.ExpectDaemon && forksSoFar < 1 {
				return job.TraceNewChild, TraceContinue
			}
			return cur, TraceSatisfied
		case unix.PTRACE_EVENT_EXEC:
			return cur, TraceSatisfied
		default:
			if ev.StopSignal == unix.SIGTRAP {
				return cur, TraceContinue
			}
			return cur, TraceForwardSignal
		}
	}
	return cur, TraceForwardSignal
}
