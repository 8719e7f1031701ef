// Package state implements the daemon's stateful re-exec: on SIGTERM,
// marshal the whole live daemon (sessions, event bus, every job class
// and instance, including in-flight ProcessData; operator trees travel as
// collapsed text without their match state) to JSON, exec self with
// --state-fd pointing at a pipe carrying
// that JSON, and restore it on the other side before resuming the main
// loop. If the restore read doesn't complete within a few seconds the
// new process falls back to a stateless boot rather than hanging
// forever on a parent that died mid-handoff.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/job"
)

// Snapshot is the complete wire format written across the state-fd.
type Snapshot struct {
	Sessions  []*job.Session
	Events    []*wireEvent
	Classes   []*wireClass
	Instances []*wireInstance
}

// wireEvent captures an Event's name and environment. Its blocker count
// is not serialized, and Restore does not recompute it: restored events
// start with no blockers.
type wireEvent struct {
	ID   int
	Name string
	Env  []string
}

// wireClass mirrors job.Class, replacing the two *event.Operator fields
// with their collapsed text form (event.Collapse) and re-parsing them on
// restore, since Operator's Matched field holds pointers into the live
// event table that only make sense once that table exists.
type wireClass struct {
	Class   *job.Class
	StartOn string
	StopOn  string
}

type wireInstance struct {
	ClassName string
	Instance  *job.Instance
	StopOnRef string // collapsed StopOn text, re-parsed against restored events
}

// exprparse is referenced only through a function value supplied by the
// caller (Restore's parse parameter) so this package does not import
// internal/exprparse directly and create an import cycle back through
// internal/event; the caller supplies the real parser.
type ParseFunc func(text string) (*event.Operator, error)

// Marshal builds a Snapshot from the live daemon state and writes it as
// JSON to w (the write end of the pipe donated to the re-exec'd process
// as --state-fd).
func Marshal(w *os.File, sessions []*job.Session, events []*event.Event, classes []*job.Class, instances []*job.Instance) error {
	snap := Snapshot{Sessions: sessions}

	eventIDs := map[*event.Event]int{}
	for i, ev := range events {
		eventIDs[ev] = i
		snap.Events = append(snap.Events, &wireEvent{ID: i, Name: ev.Name, Env: ev.Env})
	}

	for _, c := range classes {
		wc := &wireClass{Class: c}
		if c.StartOn != nil {
			wc.StartOn = event.Collapse(c.StartOn)
		}
		if c.StopOn != nil {
			wc.StopOn = event.Collapse(c.StopOn)
		}
		snap.Classes = append(snap.Classes, wc)
	}

	for _, inst := range instances {
		wi := &wireInstance{ClassName: inst.Class.Name, Instance: inst}
		if inst.StopOn != nil {
			wi.StopOnRef = event.Collapse(inst.StopOn)
		}
		snap.Instances = append(snap.Instances, wi)
	}

	enc := json.NewEncoder(w)
	return enc.Encode(snap)
}

// restoreTimeout bounds how long a re-exec'd process will wait for the
// old process to finish writing its snapshot before giving up and
// starting clean, so a parent that dies mid-write (panic, OOM-killed)
// cannot wedge the replacement init process forever.
const restoreTimeout = 3 * time.Second

// Restore reads a Snapshot from r (the read end of --state-fd), parsing
// every collapsed operator string back into a tree with parse, and
// returns fresh Event objects in id order. The restored trees carry no
// match state: no operator is marked matched and no Operator.Matched
// reference to a restored event is rebuilt.
func Restore(r *os.File, parse ParseFunc) (*Snapshot, []*event.Event, error) {
	type result struct {
		snap *Snapshot
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		var snap Snapshot
		dec := json.NewDecoder(r)
		err := dec.Decode(&snap)
		ch <- result{&snap, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, nil, res.err
		}
		events := make([]*event.Event, len(res.snap.Events))
		for _, we := range res.snap.Events {
			events[we.ID] = event.New(we.Name, we.Env)
		}
		for _, wc := range res.snap.Classes {
			if wc.StartOn != "" {
				op, err := parse(wc.StartOn)
				if err != nil {
					return nil, nil, fmt.Errorf("state: restore %s StartOn: %w", wc.Class.Name, err)
				}
				wc.Class.StartOn = op
			}
			if wc.StopOn != "" {
				op, err := parse(wc.StopOn)
				if err != nil {
					return nil, nil, fmt.Errorf("state: restore %s StopOn: %w", wc.Class.Name, err)
				}
				wc.Class.StopOn = op
			}
		}
		for _, wi := range res.snap.Instances {
			if wi.StopOnRef == "" {
				continue
			}
			op, err := parse(wi.StopOnRef)
			if err != nil {
				return nil, nil, fmt.Errorf("state: restore %s StopOn: %w", wi.Instance.Name, err)
			}
			wi.Instance.StopOn = op
		}
		return res.snap, events, nil
	case <-time.After(restoreTimeout):
		return nil, nil, fmt.Errorf("state: timed out waiting for predecessor's state handoff")
	}
}
