//go:build linux

package spawn

import (
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"strconv"

	"github.com/syndtr/gocapability/capability"
	"golang.org/x/sys/unix"

	"github.com/ubports/upstart-sub001/internal/job"
)

// runSetup performs the ordered pre-exec steps of §4.3 inside the
// re-exec'd helper process, reporting the first failure (if any) on
// errFD and never returning on success (it execve's into spec.Argv).
// Each step is individually grounded on the corresponding upstart C
// source behaviour (original_source/init/job_process.c) translated into
// the golang.org/x/sys/unix primitives the gVisor sandbox launcher uses
// for the same family of setup calls.
//
// setsid() itself (step 4) is not repeated here: the parent already
// requests it via SysProcAttr.Setsid before the helper is even started,
// so by the time this function runs the process is already its own
// session and process-group leader. Calling it again would just return
// EPERM.
func runSetup(spec *Spec, errFD *os.File) {
	if spec.ConsoleSetCtty {
		if err := unix.IoctlSetInt(0, unix.TIOCSCTTY, 0); err != nil {
			abort(errFD, OpConsole, "", err)
		}
	}

	if spec.AppArmorProfile != "" {
		if err := switchAppArmorProfile(spec.AppArmorProfile); err != nil {
			abort(errFD, OpAppArmor, spec.AppArmorProfile, err)
		}
	}

	for _, rl := range spec.Rlimits {
		lim := unix.Rlimit{Cur: rl.Cur, Max: rl.Max}
		if err := unix.Setrlimit(rl.Resource, &lim); err != nil {
			abort(errFD, OpRlimit, strconv.Itoa(rl.Resource), err)
		}
	}

	unix.Umask(int(spec.Umask))

	if spec.Nice != 0 {
		if err := unix.Setpriority(unix.PRIO_PROCESS, 0, spec.Nice); err != nil {
			abort(errFD, OpPriority, strconv.Itoa(spec.Nice), err)
		}
	}

	if spec.OOMScoreAdj != job.OOMScoreAdjUnset {
		if err := writeOOMScoreAdj(spec.OOMScoreAdj); err != nil {
			abort(errFD, OpOOMScoreAdj, strconv.Itoa(spec.OOMScoreAdj), err)
		}
	}

	if spec.Chroot != "" {
		if err := unix.Chroot(spec.Chroot); err != nil {
			abort(errFD, OpChroot, spec.Chroot, err)
		}
	}

	chdir := spec.ChDir
	if spec.Chroot != "" && chdir == "" {
		chdir = "/"
	}
	if chdir != "" {
		if err := unix.Chdir(chdir); err != nil {
			abort(errFD, OpChdir, chdir, err)
		}
	}

	uid, gid, groups, badGID, err := resolveIdentity(spec.SetUID, spec.SetGID)
	if err != nil {
		if badGID {
			abort(errFD, OpBadSetGID, spec.SetGID, err)
		}
		abort(errFD, OpBadSetUID, spec.SetUID, err)
	}

	if len(spec.Cgroups) > 0 {
		if serr := JoinCgroups(os.Getpid(), spec.Cgroups); serr != nil {
			abort(errFD, serr.Operation, serr.Arg, unix.Errno(serr.Errno))
		}
	}

	if gid != nil {
		if err := unix.Setgid(int(*gid)); err != nil {
			abort(errFD, OpSetGid, spec.SetGID, err)
		}
	}
	if uid != nil {
		if err := unix.Setgroups(groups); err != nil {
			abort(errFD, OpInitGroups, spec.SetUID, err)
		}
		if err := unix.Setuid(int(*uid)); err != nil {
			abort(errFD, OpSetUid, spec.SetUID, err)
		}
	}

	if spec.DropCapBoundingSet {
		if err := dropBoundingCapabilities(); err != nil {
			abort(errFD, OpCapabilities, "", err)
		}
	}

	// Step 9: reset every signal disposition this process (or the Go
	// runtime underneath it) may have changed back to its default, and
	// drop any blocked-signal mask, so the exec'd job starts with a
	// clean slate instead of inheriting handling it never asked for.
	signal.Reset()
	var empty unix.Sigset_t
	unix.PthreadSigmask(unix.SIG_SETMASK, &empty, nil)

	if spec.Trace {
		if err := unix.PtraceTraceme(); err != nil {
			abort(errFD, OpTraceMe, "", err)
		}
	}

	argv0 := spec.Argv[0]
	path, lookErr := lookPath(argv0)
	if lookErr != nil {
		abort(errFD, OpExec, argv0, lookErr)
	}
	// errFD is O_CLOEXEC: a successful execve closes it for us, which is
	// exactly how the parent distinguishes "child wrote nothing" (success)
	// from "child wrote a SetupError" (failure) without an extra signal.
	execErr := unix.Exec(path, spec.Argv, spec.Env)
	abort(errFD, OpExec, argv0, execErr)
}

func abort(errFD *os.File, op Op, arg string, err error) {
	errno := Errno(0)
	if en, ok := err.(unix.Errno); ok {
		errno = Errno(en)
	}
	writeSetupError(errFD, op, errno, arg)
	os.Exit(127)
}

func writeOOMScoreAdj(score int) error {
	return os.WriteFile("/proc/self/oom_score_adj", []byte(strconv.Itoa(score)), 0644)
}

// resolveIdentity looks up the named (or numeric) user and group, mirroring
// the "setuid NAME" / "setgid NAME" stanzas of original_source/init/
// parse_job.c, and computes the supplementary group list an initgroups(3)
// call would produce.
func resolveIdentity(setUID, setGID string) (uid, gid *uint32, groups []int, badGID bool, err error) {
	if setGID != "" {
		g, err := lookupGroup(setGID)
		if err != nil {
			return nil, nil, nil, true, err
		}
		gid = &g
	}
	if setUID == "" {
		return nil, gid, nil, false, nil
	}
	u, err := user.Lookup(setUID)
	if err != nil {
		if _, numErr := strconv.Atoi(setUID); numErr == nil {
			u, err = user.LookupId(setUID)
		}
		if err != nil {
			return nil, nil, nil, false, err
		}
	}
	uidNum, _ := strconv.ParseUint(u.Uid, 10, 32)
	u32 := uint32(uidNum)
	uid = &u32

	if gid == nil {
		gidNum, _ := strconv.ParseUint(u.Gid, 10, 32)
		g32 := uint32(gidNum)
		gid = &g32
	}

	gidStrs, err := u.GroupIds()
	if err == nil {
		for _, s := range gidStrs {
			if n, err := strconv.Atoi(s); err == nil {
				groups = append(groups, n)
			}
		}
	}
	return uid, gid, groups, false, nil
}

func lookupGroup(name string) (uint32, error) {
	g, err := user.LookupGroup(name)
	if err != nil {
		if _, numErr := strconv.Atoi(name); numErr == nil {
			g, err = user.LookupGroupId(name)
		}
		if err != nil {
			return 0, err
		}
	}
	n, err := strconv.ParseUint(g.Gid, 10, 32)
	return uint32(n), err
}

// dropBoundingCapabilities clears every capability from the bounding set,
// the same PR_CAPBSET_DROP loop the gVisor sandbox launcher performs via
// syndtr/gocapability before dropping privileges for an unprivileged
// sandbox process.
func dropBoundingCapabilities() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return err
	}
	if err := caps.Load(); err != nil {
		return err
	}
	caps.Clear(capability.BOUNDING)
	return caps.Apply(capability.BOUNDING)
}

// switchAppArmorProfile writes the target profile to /proc/self/attr/exec
// so the kernel applies it across the following execve, matching the
// `apparmor switch PROFILE` stanza.
func switchAppArmorProfile(profile string) error {
	return os.WriteFile("/proc/self/attr/exec", []byte("exec "+profile), 0)
}

func lookPath(argv0 string) (string, error) {
	if containsSlash(argv0) {
		return argv0, nil
	}
	path := os.Getenv("PATH")
	for _, dir := range splitPath(path) {
		if dir == "" {
			dir = "."
		}
		candidate := dir + "/" + argv0
		if st, err := os.Stat(candidate); err == nil && !st.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("spawn: %q not found in PATH", argv0)
}

func containsSlash(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return true
		}
	}
	return false
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == ':' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}
