package bus

import (
	"testing"

	"github.com/ubports/upstart-sub001/internal/event"
)

func TestEmitDrainFIFOOrder(t *testing.T) {
	b := New()
	first := event.New("a", nil)
	second := event.New("b", nil)
	if err := b.Emit(first); err != nil {
		t.Fatalf("Emit(first): %v", err)
	}
	if err := b.Emit(second); err != nil {
		t.Fatalf("Emit(second): %v", err)
	}
	got := b.Drain()
	if len(got) != 2 || got[0] != first || got[1] != second {
		t.Fatalf("Drain() = %v, want [first, second] in order", got)
	}
}

func TestDrainIsEmptyWithNothingQueued(t *testing.T) {
	b := New()
	if got := b.Drain(); len(got) != 0 {
		t.Fatalf("Drain() = %v, want empty", got)
	}
}

func TestRunStopsOnStop(t *testing.T) {
	b := New()
	done := make(chan struct{})
	go func() {
		b.Run()
		close(done)
	}()
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	<-done
}
