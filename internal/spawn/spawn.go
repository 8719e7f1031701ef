package spawn

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff"
	"golang.org/x/sys/unix"

	"github.com/ubports/upstart-sub001/internal/ulog"
)

// Result is what a successful Spawn call hands back to the caller: the
// pid to track in the job table.
type Result struct {
	PID int
}

// Spawn starts spec as a new process via the re-exec'd setup helper and
// waits only long enough to learn whether the helper's ordered setup
// steps succeeded, not for the process to run to completion. A nil
// *SetupError with a nil error means the helper's error pipe fd closed on
// a successful exec, per the §4.3 handshake.
//
// EAGAIN from the underlying fork (the classic "process table full, or
// this user is over its nproc rlimit" condition) is retried every 200ms
// until it succeeds or ctx is done, the same resilience pattern the gVisor
// sandbox launcher applies to its own forking of the boot process.
func Spawn(ctx context.Context, spec *Spec) (*Result, *SetupError, error) {
	var res *Result
	var setupErr *SetupError

	op := func() error {
		r, se, err := spawnOnce(spec)
		if err != nil {
			var errno unix.Errno
			if errors.As(err, &errno) && errno == unix.EAGAIN {
				ulog.Warnf("spawn: fork returned EAGAIN, retrying")
				return err
			}
			return backoff.Permanent(err)
		}
		res, setupErr = r, se
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(200*time.Millisecond), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return nil, nil, err
	}
	return res, setupErr, nil
}

func spawnOnce(spec *Spec) (*Result, *SetupError, error) {
	specRead, specWrite, err := os.Pipe()
	if err != nil {
		return nil, nil, err
	}

	errRead, errWrite, err := os.Pipe()
	if err != nil {
		specRead.Close()
		specWrite.Close()
		return nil, nil, err
	}

	self, err := os.Executable()
	if err != nil {
		self = "/proc/self/exe"
	}

	cmd := exec.Cmd{
		Path:       self,
		Args:       []string{self, HelperArg},
		ExtraFiles: []*os.File{specRead, errWrite},
		SysProcAttr: &unix.SysProcAttr{
			Setsid:    spec.Setsid,
			Pdeathsig: unix.SIGKILL,
		},
	}

	var devNull *os.File
	switch {
	case spec.stdin != nil || spec.stdout != nil || spec.stderr != nil:
		cmd.Stdin, cmd.Stdout, cmd.Stderr = spec.stdin, spec.stdout, spec.stderr
	case spec.inheritConsole:
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	default:
		devNull, _ = os.OpenFile(os.DevNull, os.O_RDWR, 0)
		if devNull != nil {
			cmd.Stdin, cmd.Stdout, cmd.Stderr = devNull, devNull, devNull
		}
	}
	if devNull != nil {
		defer devNull.Close()
	}

	if err := cmd.Start(); err != nil {
		specRead.Close()
		specWrite.Close()
		errRead.Close()
		errWrite.Close()
		return nil, nil, err
	}

	// Parent closes the ends the helper now owns; os/exec's ExtraFiles
	// plumbing dup'd them onto fds 3 and 4 in the child, so closing the
	// parent's copies here does not affect the helper.
	specRead.Close()
	errWrite.Close()

	enc := json.NewEncoder(specWrite)
	encErr := enc.Encode(spec)
	specWrite.Close()
	if encErr != nil {
		errRead.Close()
		return nil, nil, encErr
	}

	setupErr, readErr := readSetupError(errRead)
	errRead.Close()
	if readErr != nil {
		return nil, nil, readErr
	}

	return &Result{PID: cmd.Process.Pid}, setupErr, nil
}

