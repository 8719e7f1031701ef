package spawn

import (
	"encoding/json"
	"os"
	"syscall"
)

// HelperArg is the argv[1] the daemon re-execs itself with to enter the
// setup-helper path; cmd/init's main() checks for it before doing
// anything else, mirroring the self-re-exec trampoline gVisor's sandbox
// launcher uses to hand a freshly forked process a donated fd bundle
// (runsc/donation) rather than trying to run arbitrary setup code between
// fork and exec from the parent's goroutine.
const HelperArg = "--upstart-spawn-helper"

// specFD and errFD are the two inherited descriptors the helper always
// receives, donated as ExtraFiles[0] and ExtraFiles[1] by Spawn.
const (
	specFD = 3
	errFD  = 4
)

// RunHelper is the entire body of the re-exec'd helper process. It never
// returns: on success it execve's into the target role's process image;
// on any setup failure it reports a SetupError on errFD and exits 127.
// cmd/init's main must call this immediately upon recognising HelperArg
// and must not have done anything else observable (opened files, spawned
// goroutines) beforehand.
func RunHelper() {
	specFile := os.NewFile(specFD, "spec-fd")
	errFile := os.NewFile(errFD, "err-fd")
	// ExtraFiles arrive without close-on-exec; set it so a successful
	// execve closes errFD and the parent reads EOF.
	syscall.CloseOnExec(errFD)

	var spec Spec
	dec := json.NewDecoder(specFile)
	if err := dec.Decode(&spec); err != nil {
		writeSetupError(errFile, OpFork, 0, "")
		os.Exit(127)
	}
	specFile.Close()

	runSetup(&spec, errFile)
	// runSetup never returns.
}
