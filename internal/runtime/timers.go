// Package runtime holds the daemon's main loop: the single-threaded,
// cooperative scheduler that turns signals and a periodic tick (event
// drain, role spawning, due kill/respawn timers) into one ordered stream
// of state-machine transitions, plus the btree-ordered timer set it uses to
// know which of those timers is due next without scanning every
// instance on every tick.
package runtime

import (
	"time"

	"github.com/google/btree"
)

// TimerKind distinguishes the two timer families a running instance can
// have outstanding at once.
type TimerKind int

const (
	TimerKill TimerKind = iota
	TimerRespawn
)

// Timer is one scheduled deadline, ordered in the btree by Deadline then
// by a monotonically increasing Seq so two timers landing in the same
// nanosecond still have a total order (btree.Item requires Less to be a
// strict weak ordering).
type Timer struct {
	Deadline                time.Time
	Seq                     int64
	Kind                    TimerKind
	ClassName, InstanceName string
}

// Less implements btree.Item.
func (t *Timer) Less(than btree.Item) bool {
	o := than.(*Timer)
	if !t.Deadline.Equal(o.Deadline) {
		return t.Deadline.Before(o.Deadline)
	}
	return t.Seq < o.Seq
}

// TimerSet is an ordered set of pending timers, letting the main loop
// ask "what's the next deadline" in O(log n) instead of scanning every
// instance every tick, the same structural role a btree plays in
// schedulers that need a sorted-by-time working set without a full heap
// rebuild on every cancellation.
type TimerSet struct {
	tree *btree.BTree
	seq  int64
}

// NewTimerSet returns an empty set with a degree tuned for a few hundred
// concurrent timers (a typical system's job count), not the thousands a
// generic cache would expect.
func NewTimerSet() *TimerSet {
	return &TimerSet{tree: btree.New(8)}
}

// Add inserts a new timer and returns it so the caller can later Cancel
// it by value (the reaper confirming the process exited before the
// timer fired).
func (s *TimerSet) Add(deadline time.Time, kind TimerKind, class, instance string) *Timer {
	s.seq++
	t := &Timer{Deadline: deadline, Seq: s.seq, Kind: kind, ClassName: class, InstanceName: instance}
	s.tree.ReplaceOrInsert(t)
	return t
}

// Cancel removes a previously Added timer; a no-op if it already fired.
func (s *TimerSet) Cancel(t *Timer) {
	s.tree.Delete(t)
}

// Next returns the earliest pending timer, if any, without removing it.
func (s *TimerSet) Next() (*Timer, bool) {
	item := s.tree.Min()
	if item == nil {
		return nil, false
	}
	return item.(*Timer), true
}

// DueBefore pops and returns every timer whose deadline is at or before
// now, in deadline order, removing them from the set.
func (s *TimerSet) DueBefore(now time.Time) []*Timer {
	var due []*Timer
	for {
		item := s.tree.Min()
		if item == nil {
			break
		}
		t := item.(*Timer)
		if t.Deadline.After(now) {
			break
		}
		s.tree.Delete(t)
		due = append(due, t)
	}
	return due
}

// Len reports how many timers are currently pending.
func (s *TimerSet) Len() int { return s.tree.Len() }
