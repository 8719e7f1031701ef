// Package bus is the daemon's event FIFO: every emitted Event is queued
// here and drained, one tick per main-loop iteration, against every
// class's StartOn and every running instance's StopOn. It also throttles
// runaway event storms so a misbehaving job cannot wedge the whole
// daemon by emitting faster than it can be processed.
package bus

import (
	"time"

	"github.com/joeycumines/go-utilpkg/catrate"
	"golang.org/x/time/rate"
	tomb "gopkg.in/tomb.v1"

	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/ulog"
)

// Bus is the FIFO event queue plus its storm-throttling limiters.
type Bus struct {
	queue chan *event.Event

	// accept caps the overall rate events are admitted to the queue at
	// all, independent of source; storm is a per-event-name sliding-window
	// limiter so one noisy event name gets throttled without starving
	// every other event.
	accept *rate.Limiter
	storm  *catrate.Limiter

	t tomb.Tomb
}

// New returns a Bus with a generous default accept rate (the daemon is
// expected to see bursts at boot) and a per-event-name storm limiter
// capping any single event name to 100/s, 1000/min.
func New() *Bus {
	return &Bus{
		queue:  make(chan *event.Event, 4096),
		accept: rate.NewLimiter(rate.Limit(500), 1000),
		storm: catrate.NewLimiter(map[time.Duration]int{
			time.Second: 100,
			time.Minute: 1000,
		}),
	}
}

// ErrThrottled is returned by Emit when an event is dropped for exceeding
// either the global accept rate or its own per-name storm limit.
type ErrThrottled struct{ Name string }

func (e ErrThrottled) Error() string { return "bus: event " + e.Name + " throttled" }

// Emit enqueues ev for the next drain tick. It never blocks the caller
// past the queue's buffer: a full queue or a throttled event name is
// reported as an error rather than backing up the emitting job.
func (b *Bus) Emit(ev *event.Event) error {
	if !b.accept.Allow() {
		ulog.Warnf("bus: global event rate exceeded, dropping %q", ev.Name)
		return ErrThrottled{Name: ev.Name}
	}
	if _, ok := b.storm.Allow(ev.Name); !ok {
		ulog.Warnf("bus: event %q storm limit exceeded, dropping", ev.Name)
		return ErrThrottled{Name: ev.Name}
	}
	select {
	case b.queue <- ev:
		return nil
	default:
		ulog.Warnf("bus: queue full, dropping %q", ev.Name)
		return ErrThrottled{Name: ev.Name}
	}
}

// Drain reports the events queued since the last Drain call, in FIFO
// order, up to the queue's current depth; it never blocks.
func (b *Bus) Drain() []*event.Event {
	var out []*event.Event
	for {
		select {
		case ev := <-b.queue:
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Run supervises the bus's own lifecycle (nothing beyond bookkeeping
// today, but kept as a tomb.Tomb so a future control-bus reconnect
// goroutine has somewhere standard to report Kill/Dying/Wait through,
// matching the supervised-goroutine idiom used for the D-Bus reconnect
// loop in internal/control).
func (b *Bus) Run() {
	defer b.t.Done()
	<-b.t.Dying()
}

// Stop tells Run to return and waits for it.
func (b *Bus) Stop() error {
	b.t.Kill(nil)
	return b.t.Wait()
}
