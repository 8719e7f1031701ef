package bus

import (
	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/job"
)

// Tick is one main-loop pass: every event drained this round is handed to
// event.Handle against every class's StartOn operator and every live
// instance's StopOn operator, in that order, so a single event can both
// trigger a new instance to start and an existing one to stop. Callers
// that see StartMatched/StopMatched true for a given class/instance are
// responsible for actually driving the job state machine forward
// (internal/job + internal/runtime own that), Tick only reports which
// operators fully latched this round.
type Tick struct {
	StartMatched []*job.Class
	StopMatched  []*job.Instance
}

// Run drains the bus and evaluates every queued event against every
// class's StartOn and every instance's StopOn, in FIFO order (so a
// storm-throttled burst still resolves deterministically event by
// event rather than all at once against a single merged environment).
func Run(b *Bus, classes []*job.Class, instances []*job.Instance) Tick {
	var t Tick

	for _, ev := range b.Drain() {
		for _, c := range classes {
			if c.StartOn == nil {
				continue
			}
			if event.Handle(c.StartOn, ev, event.Env(ev.Env)) && c.StartOn.Value {
				t.StartMatched = append(t.StartMatched, c)
				event.Reset(c.StartOn)
			}
		}
		for _, inst := range instances {
			if inst.StopOn == nil {
				continue
			}
			if event.Handle(inst.StopOn, ev, event.Env(ev.Env)) && inst.StopOn.Value {
				t.StopMatched = append(t.StopMatched, inst)
				event.Reset(inst.StopOn)
			}
		}
	}
	return t
}
