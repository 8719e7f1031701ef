package spawn

import (
	"os"

	"github.com/ubports/upstart-sub001/internal/job"
)

// Spec is everything the spawn helper child needs to carry out the
// ordered pre-exec setup of §4.3 and then exec the role's real argv. It
// travels from the parent to the re-exec'd helper as JSON over an
// inherited fd (the "spec-fd" of the donation pattern), never as
// command-line arguments, so it is never truncated or shell-reinterpreted.
type Spec struct {
	Argv []string
	Env  []string

	Script     bool
	ScriptBody string // only used when Argv is empty and Script is true

	Setsid bool
	Trace  bool // PTRACE_TRACEME before exec, for Expectation != ExpectNone

	Rlimits     []job.Rlimit
	Umask       uint32
	Nice        int
	OOMScoreAdj int // job.OOMScoreAdjUnset means "leave at inherited value"

	Chroot string
	ChDir  string

	SetUID string
	SetGID string

	DropCapBoundingSet bool

	AppArmorLoadPath string
	AppArmorProfile  string

	Cgroups []job.Cgroup

	// Console is the class's configured console policy, read by
	// BuildSpec from Class.Console; the caller resolves it into actual
	// fds via OpenConsole/Console.ApplyTo before calling Spawn.
	Console job.ConsolePolicy

	// inheritConsole, when set, has the helper share the daemon's own stdio
	// rather than a /dev/console fd, a log pty, or /dev/null. Nothing in
	// this package sets it, so Spawn never takes that branch.
	inheritConsole bool

	// ConsoleSetCtty is set by console.go for ConsoleOwner: once the
	// helper is running as its own session leader, it must still issue
	// TIOCSCTTY itself to become /dev/console's controlling process,
	// since that ioctl only affects the calling process's session.
	ConsoleSetCtty bool

	// stdin/stdout/stderr are set by console.go's Console.ApplyTo for
	// every policy except ConsoleNone; when all three are nil and
	// inheritConsole is false, Spawn wires the helper to /dev/null.
	stdin, stdout, stderr *os.File
}

// SetStdio attaches the fds console.go resolved for this role's console
// policy. Passing all-nil is equivalent to not calling it.
func (s *Spec) SetStdio(stdin, stdout, stderr *os.File) {
	s.stdin, s.stdout, s.stderr = stdin, stdout, stderr
}
