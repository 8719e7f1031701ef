package job

import (
	"time"

	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/process"
)

// Session (supplemented from original_source/init/main.c) scopes a set of
// job classes to a named root directory and control-bus address, used by
// --user/--session mode so per-user daemons don't collide with the system
// one.
type Session struct {
	Name    string
	ChDir   string
	BusAddr string
}

// Rlimit mirrors one `limit RESOURCE soft hard` stanza. Unlimited is
// represented as Cur/Max == RlimInfinity.
type Rlimit struct {
	Resource int // unix.RLIMIT_* value
	Cur, Max uint64
}

// RlimInfinity is the sentinel for "unlimited", preserved across the
// stateful re-exec JSON round-trip as RLIM_INFINITY (§8 boundary).
const RlimInfinity = ^uint64(0)

// Cgroup is one `cgroup CONTROLLER [NAME [KEY VALUE]]` stanza.
type Cgroup struct {
	Controller string
	Name       string
	Settings   map[string]string
}

// AppArmor is either `apparmor load PATH` or `apparmor switch PROFILE`.
type AppArmor struct {
	LoadPath string
	Profile  string
}

// Class is the immutable template a job's instances are materialised
// from. Once installed it is never mutated in place; a reload replaces
// the class map entry (see Installer).
type Class struct {
	Name        string
	Session     *Session
	Description string
	Author      string
	Version     string

	// InstanceTemplate is expanded per-instance (e.g. "$ID") to produce the
	// instance name under which an Instance is keyed within this class.
	InstanceTemplate string

	DefaultEnv []string // KEY=VALUE, base environment for every instance
	ExportVars []string // names exported to children beyond DefaultEnv

	// StartOn/StopOn are excluded from JSON marshaling: the stateful
	// re-exec snapshot carries them as collapsed text (see
	// internal/state) and re-parses them on restore, since an Operator
	// tree's Matched field points into the live event table, which does
	// not exist yet at the point a Class is being decoded.
	StartOn *event.Operator `json:"-"`
	StopOn  *event.Operator `json:"-"`

	Emits []string

	Processes [roleCount]*process.Spec

	Expect Expectation
	Task   bool

	KillTimeout time.Duration
	KillSignal  int // unix.SIGTERM by default

	Respawn         bool
	RespawnLimit    int
	RespawnInterval time.Duration

	// NormalExit holds exit codes (non-negative) and signal numbers
	// (negated) that do not count as failures for the respawn governor.
	NormalExit map[int]struct{}

	Console ConsolePolicy
	Umask   uint32
	Nice    int

	// OOMScoreAdj is the resolved oom_score_adj (-1000..1000), or
	// OOMScoreAdjUnset if not configured.
	OOMScoreAdj int

	Limits [16]*Rlimit // indexed by unix.RLIMIT_*

	Chroot  string
	ChDir   string
	SetUID  string
	SetGID  string

	AppArmor *AppArmor
	Cgroups  []Cgroup

	Deleted bool
}

// OOMScoreAdjUnset marks a class that never configured an oom stanza.
const OOMScoreAdjUnset = 1001

// LegacyOOMScore implements the legacy `oom [score] N` / `oom never`
// mapping from original_source/init/parse_job.c and job_process.c:
//
//	oom never  -> score-adj -1000
//	oom N      -> (N*1000) / (17 if N < 0 else 15)
func LegacyOOMScore(never bool, legacy int) int {
	if never {
		return -1000
	}
	divisor := 15
	if legacy < 0 {
		divisor = 17
	}
	return (legacy * 1000) / divisor
}

// NewClass returns a Class with defaults matching the daemon's documented
// fallbacks (kill signal SIGTERM-equivalent 15, no oom adjustment, etc).
func NewClass(name string) *Class {
	return &Class{
		Name:        name,
		KillTimeout: 5 * time.Second,
		KillSignal:  15, // unix.SIGTERM; kept as int to avoid a build-tag import here
		OOMScoreAdj: OOMScoreAdjUnset,
		NormalExit:  map[int]struct{}{},
	}
}

// NormalExitCode registers a status code as "normal" (does not trigger
// respawn-as-failure accounting).
func (c *Class) NormalExitCode(code int) { c.NormalExit[code] = struct{}{} }

// NormalExitSignal registers a signal number (encoded negative) as normal.
func (c *Class) NormalExitSignal(sig int) { c.NormalExit[-sig] = struct{}{} }

// IsNormalExit reports whether status (a non-negative exit code, or a negative
// encoded signal number) is in the class's normal-exit set.
func (c *Class) IsNormalExit(status int) bool {
	_, ok := c.NormalExit[status]
	return ok
}
