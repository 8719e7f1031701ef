package bus

import (
	"testing"

	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/job"
)

func TestRunMatchesStartOnAndResets(t *testing.T) {
	b := New()
	class := job.NewClass("foo")
	class.StartOn = event.NewMatch("startup", nil)
	b.Emit(event.New("startup", nil))

	tick := Run(b, []*job.Class{class}, nil)
	if len(tick.StartMatched) != 1 || tick.StartMatched[0] != class {
		t.Fatalf("StartMatched = %v, want [class]", tick.StartMatched)
	}
	if class.StartOn.Value {
		t.Fatal("expected StartOn to be Reset after matching")
	}
}

func TestRunMatchesPerInstanceStopOnIndependently(t *testing.T) {
	b := New()
	class := job.NewClass("foo")
	class.StopOn = event.NewMatch("shutdown", nil)

	a := job.NewInstance(class, "a")
	bInst := job.NewInstance(class, "b")

	emitted := event.New("shutdown", nil)
	b.Emit(emitted)

	tick := Run(b, nil, []*job.Instance{a, bInst})
	if len(tick.StopMatched) != 2 {
		t.Fatalf("StopMatched = %v, want both instances", tick.StopMatched)
	}
	// Each instance's StopOn must be its own copy; resetting one must not
	// disturb the other's independently-tracked Matched state.
	if a.StopOn == bInst.StopOn {
		t.Fatal("expected distinct per-instance StopOn trees")
	}
}

func TestRunDoesNotMatchUnrelatedEvents(t *testing.T) {
	b := New()
	class := job.NewClass("foo")
	class.StartOn = event.NewMatch("startup", nil)
	b.Emit(event.New("something-else", nil))

	tick := Run(b, []*job.Class{class}, nil)
	if len(tick.StartMatched) != 0 {
		t.Fatalf("StartMatched = %v, want none", tick.StartMatched)
	}
}
