package reaper

import (
	"testing"

	"golang.org/x/sys/unix"

	"github.com/ubports/upstart-sub001/internal/job"
)

func TestAdvanceTraceIgnoresNonStoppedEvents(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectFork, job.TraceNew, 0, Event{Exited: true})
	if next != job.TraceNew || step != TraceContinue {
		t.Fatalf("got (%v, %v), want (TraceNew, TraceContinue)", next, step)
	}
}

func TestAdvanceTraceInitialSigtrapEntersNormal(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectFork, job.TraceNew, 0, Event{Stopped: true, StopSignal: unix.SIGTRAP})
	if next != job.TraceNormal || step != TraceContinue {
		t.Fatalf("got (%v, %v), want (TraceNormal, TraceContinue)", next, step)
	}
}

func TestAdvanceTraceFirstForkWithExpectForkGoesToNewChild(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectFork, job.TraceNormal, 0,
		Event{Stopped: true, TraceEvent: unix.PTRACE_EVENT_FORK})
	if next != job.TraceNewChild || step != TraceContinue {
		t.Fatalf("got (%v, %v), want (TraceNewChild, TraceContinue)", next, step)
	}
}

func TestAdvanceTraceSecondForkWithExpectForkIsSatisfied(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectFork, job.TraceNormal, 1,
		Event{Stopped: true, TraceEvent: unix.PTRACE_EVENT_FORK})
	if next != job.TraceNormal || step != TraceSatisfied {
		t.Fatalf("got (%v, %v), want (TraceNormal, TraceSatisfied)", next, step)
	}
}

func TestAdvanceTraceExpectNoneForkIsSatisfiedImmediately(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectNone, job.TraceNormal, 0,
		Event{Stopped: true, TraceEvent: unix.PTRACE_EVENT_FORK})
	if next != job.TraceNormal || step != TraceSatisfied {
		t.Fatalf("got (%v, %v), want (TraceNormal, TraceSatisfied)", next, step)
	}
}

func TestAdvanceTraceNewChildWaitsForSigstop(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectFork, job.TraceNewChild, 1,
		Event{Stopped: true, StopSignal: unix.SIGSTOP})
	if next != job.TraceNormal || step != TraceContinue {
		t.Fatalf("got (%v, %v), want (TraceNormal, TraceContinue)", next, step)
	}
}

func TestAdvanceTraceNewChildForwardsOtherSignals(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectFork, job.TraceNewChild, 1,
		Event{Stopped: true, StopSignal: unix.SIGUSR1})
	if next != job.TraceNewChild || step != TraceForwardSignal {
		t.Fatalf("got (%v, %v), want (TraceNewChild, TraceForwardSignal)", next, step)
	}
}

func TestAdvanceTraceExecEventIsSatisfied(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectDaemon, job.TraceNormal, 0,
		Event{Stopped: true, TraceEvent: unix.PTRACE_EVENT_EXEC})
	if next != job.TraceNormal || step != TraceSatisfied {
		t.Fatalf("got (%v, %v), want (TraceNormal, TraceSatisfied)", next, step)
	}
}

func TestAdvanceTraceOtherSignalsForwardInNormal(t *testing.T) {
	next, step := AdvanceTrace(job.ExpectFork, job.TraceNormal, 0,
		Event{Stopped: true, StopSignal: unix.SIGUSR2})
	if next != job.TraceNormal || step != TraceForwardSignal {
		t.Fatalf("got (%v, %v), want (TraceNormal, TraceForwardSignal)", next, step)
	}
}
