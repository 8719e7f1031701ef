package job

import (
	"os"
	"sync"
	"time"

	"github.com/ubports/upstart-sub001/internal/event"
)

// ProcessData captures an in-flight spawn for one role: the error-fd, an
// optional shell-feeder fd plus script payload still being drip-fed, and a
// child-exit status that arrived before setup had finished (so a SIGCHLD
// racing the error-pipe read is never lost, per §4.3 and the stateful
// re-exec scenario of §6 scenario 6).
type ProcessData struct {
	Valid        bool
	ErrFD        *os.File
	FeederFD     *os.File
	ScriptBody   string
	ScriptOffset int

	LatchedStatus    int
	HasLatchedStatus bool
}

// BlockedKind tags the union held by a Blocked record.
type BlockedKind int

const (
	BlockedEvent BlockedKind = iota
	BlockedJob
	BlockedDBusMessage
)

// Blocked is a tagged union {EVENT(event)|JOB(instance)|DBUS_MESSAGE(serial,
// bytes)} appended to a waiter's list; it holds exactly one blocker
// reference and releases it on Release.
type Blocked struct {
	Kind BlockedKind

	Event    *event.Event
	Job      *Instance
	Serial   uint32
	Marshal  []byte

	released bool
}

// Release drops this Blocked's single reference, unblocking the underlying
// event if this was an EVENT blocker.
func (b *Blocked) Release() {
	if b.released {
		return
	}
	b.released = true
	if b.Kind == BlockedEvent && b.Event != nil {
		b.Event.Unblock()
	}
}

// Instance is a live realisation of a Class, keyed within it by its
// expanded instance name.
type Instance struct {
	mu sync.Mutex

	Class        *Class
	Name         string // expanded instance name, "" for a singleton class

	Goal  Goal
	State State

	PID [roleCount]int

	Env     []string // base environment at start
	StopEnv []string // additional bindings supplied with a stop transition

	KillTimerArmed bool
	KillTimerRole  Role
	killTimer      *time.Timer

	TraceState TraceState
	TraceForks int

	RespawnTime  time.Time
	RespawnCount int
	Failed       bool
	FailedRole   Role

	Pending [roleCount]ProcessData

	LogPath [roleCount]string

	// StopOn is this instance's own copy of Class.StopOn (via
	// event.Copy), since an operator tree carries per-match Value/Matched
	// state that must not be shared across sibling instances of the same
	// class. Excluded from JSON for the same reason as Class.StartOn.
	StopOn *event.Operator `json:"-"`

	Blocking []*Blocked

	// Blocker is the event this instance is waiting to fully propagate
	// before advancing (latched while StartOn/StopOn's Handle call is still
	// being processed for the tick that triggered this instance).
	Blocker *event.Event

	destroyAfterTick bool
}

// NewInstance materialises an instance from its class.
func NewInstance(class *Class, name string) *Instance {
	inst := &Instance{
		Class: class,
		Name:  name,
		Goal:  GoalStop,
		State: StateWaiting,
	}
	if class.StopOn != nil {
		inst.StopOn = event.Copy(class.StopOn)
	}
	for i := range inst.PID {
		inst.PID[i] = 0
	}
	return inst
}

// Key returns the (class name, instance name) pair instances are indexed
// by in the runtime's instance table.
func (i *Instance) Key() (string, string) { return i.Class.Name, i.Name }

// SetGoal changes Goal and advances State once via NextState, matching the
// "goal changes drive state transitions" control flow of §2.
func (i *Instance) SetGoal(g Goal) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Goal = g
	i.State = NextState(i.Goal, i.State)
}

// Advance moves State forward once more under the current Goal, used after
// a role finishes spawning/exiting.
func (i *Instance) Advance() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.State = NextState(i.Goal, i.State)
}

// ActiveRole reports the role currently spawning or spawned in State, if
// any.
func (i *Instance) ActiveRole() (Role, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return roleForState(i.State)
}

// MarkDestroyable flags the instance for destruction on the next main-loop
// tick, per §3's "destroyed one main-loop tick after reaching the terminal
// state."
func (i *Instance) MarkDestroyable() {
	i.mu.Lock()
	i.destroyAfterTick = true
	i.mu.Unlock()
}

// Destroyable reports whether the instance reached WAITING and is flagged
// for destruction.
func (i *Instance) Destroyable() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.destroyAfterTick && i.State.Terminal()
}

// EnsureLogPath returns this instance's on-disk log path for role,
// computing and caching it under dir on first use. Mirrors
// original_source/init/job_process.c's job_process_log_path: one file
// per class (instance name appended when non-empty), slashes in the
// class name remapped so nested-looking names don't escape dir.
func (i *Instance) EnsureLogPath(dir string, role Role) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.LogPath[role] != "" {
		return i.LogPath[role]
	}
	name := remapSlashes(i.Class.Name)
	if i.Name != "" {
		name += "-" + remapSlashes(i.Name)
	}
	if role != RoleMain {
		name += "-" + role.String()
	}
	i.LogPath[role] = dir + "/" + name + ".log"
	return i.LogPath[role]
}

func remapSlashes(s string) string {
	out := []byte(s)
	for idx, c := range out {
		if c == '/' {
			out[idx] = '-'
		}
	}
	return string(out)
}

// AddBlocked appends a waiter to this instance's Blocking list.
func (i *Instance) AddBlocked(b *Blocked) {
	i.mu.Lock()
	i.Blocking = append(i.Blocking, b)
	i.mu.Unlock()
}

// ReleaseBlocked releases and clears every waiter on this instance,
// typically called once it reaches a terminal state.
func (i *Instance) ReleaseBlocked() {
	i.mu.Lock()
	blocked := i.Blocking
	i.Blocking = nil
	i.mu.Unlock()
	for _, b := range blocked {
		b.Release()
	}
}

// ExpandEnv produces this instance's full environment: class defaults,
// then the start-time Env, then (if a stop was requested) StopEnv, using
// event.Env's Set (last-write-wins) semantics.
func (i *Instance) ExpandEnv() event.Env {
	var env event.Env
	env.Append(event.Env(i.Class.DefaultEnv))
	env.Append(event.Env(i.Env))
	env.Append(event.Env(i.StopEnv))
	return env
}
