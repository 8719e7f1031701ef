// Package process describes a single process attached to a job-class role:
// either a direct command or a shell script, content-addressable by its
// trimmed (script, command) pair.
package process

import (
	"strings"
)

// Spec is a frozen description of one process. When Script is false and
// Command contains no shell metacharacters, it is split on whitespace and
// exec'd directly; otherwise it runs under a POSIX shell with "-e".
type Spec struct {
	Script  bool
	Command string
}

// shellMeta is the set of characters whose presence in a bare command
// forces it to run under a shell instead of being exec'd directly.
const shellMeta = "$`;&|<>()[]{}*?~!\"'\\\n"

// HasShellChars reports whether s contains any POSIX shell metacharacter.
func HasShellChars(s string) bool {
	return strings.ContainsAny(s, shellMeta)
}

// New builds a Spec, trimming trailing newlines so two specs that differ
// only in trailing whitespace compare equal (content-addressable per §4.2).
func New(script bool, command string) Spec {
	return Spec{Script: script, Command: strings.TrimRight(command, "\n")}
}

// Key returns the content-address of the spec.
func (s Spec) Key() string {
	if s.Script {
		return "script:" + s.Command
	}
	return "exec:" + s.Command
}

// Argv splits a non-script command on whitespace for direct exec. Callers
// must only call this when !HasShellChars(Command).
func (s Spec) Argv() []string {
	return strings.Fields(s.Command)
}

// ShellBody returns the body to hand to the shell, prepending "exec " when
// this spec was declared as a script wrapping a direct command that
// originally contained shell metacharacters (§4.2: "the command is
// prepended with exec only if it was originally declared as a direct
// command that contained shell characters; otherwise it is passed
// verbatim").
func (s Spec) ShellBody(declaredAsCommandWithShellChars bool) string {
	if declaredAsCommandWithShellChars {
		return "exec " + s.Command
	}
	return s.Command
}

// IsSingleLine reports whether the script body (after trailing-newline
// trimming already applied by New) is single-line, in which case the shell
// receives it via "-c" rather than a drip-fed pipe.
func (s Spec) IsSingleLine() bool {
	return !strings.Contains(s.Command, "\n")
}
