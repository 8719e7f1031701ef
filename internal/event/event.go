// Package event implements the event model and the boolean expression
// engine over event matchers described by the daemon: named, enveloped
// signals with KEY=VALUE bindings, and the AND/OR/MATCH operator trees
// rooted in a job class's start-on or an instance's stop-on.
package event

import (
	"fmt"
	"sync"
)

// Env is an ordered array of "KEY=VALUE" bindings, matching the shape the
// daemon hands to exec(3) and to expression expansion.
type Env []string

// Get returns the value bound to key, and whether it was present.
func (e Env) Get(key string) (string, bool) {
	prefix := key + "="
	for _, kv := range e {
		if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
			return kv[len(prefix):], true
		}
	}
	return "", false
}

// Set appends or overwrites key's binding, preserving the position of the
// first occurrence (later writes of the same name win, set semantics).
func (e *Env) Set(key, value string) {
	prefix := key + "="
	for i, kv := range *e {
		if len(kv) >= len(prefix) && kv[:len(prefix)] == prefix {
			(*e)[i] = prefix + value
			return
		}
	}
	*e = append(*e, prefix+value)
}

// Append merges other into e using Set semantics (later writes win).
func (e *Env) Append(other Env) {
	for _, kv := range other {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				e.Set(kv[:i], kv[i+1:])
				break
			}
		}
	}
}

// Event is a named record carrying an environment, an optional externally
// produced file descriptor, and a blockers counter. An event with
// Blockers() > 0 is retained; at zero it is eligible for poll-free.
type Event struct {
	mu       sync.Mutex
	Name     string
	Env      Env
	FD       int // -1 when none
	blockers int
}

// New creates an event with no blockers.
func New(name string, env Env) *Event {
	return &Event{Name: name, Env: env, FD: -1}
}

// Block increments the blocker count; used whenever an operator leaf
// latches a reference to this event, or a Blocked record is created for it.
func (e *Event) Block() {
	e.mu.Lock()
	e.blockers++
	e.mu.Unlock()
}

// Unblock decrements the blocker count. It is a fatal assertion (per §7) to
// unblock an event with zero blockers; callers must pair every Block with
// exactly one Unblock.
func (e *Event) Unblock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.blockers == 0 {
		panic(fmt.Sprintf("event: blocker underflow on %q", e.Name))
	}
	e.blockers--
}

// Blockers reports the current blocker count.
func (e *Event) Blockers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blockers
}

// Freeable reports whether the event has no remaining blockers and may be
// poll-freed by the bus.
func (e *Event) Freeable() bool {
	return e.Blockers() == 0
}
