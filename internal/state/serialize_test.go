package state

import (
	"os"
	"testing"

	"github.com/ubports/upstart-sub001/internal/event"
	"github.com/ubports/upstart-sub001/internal/job"
)

// fakeParse ignores the collapsed text and always returns a fresh match
// leaf on a fixed event name; the round trip under test cares about
// whether Restore calls it and wires its result back in, not about
// exactly reproducing the original tree text.
func fakeParse(text string) (*event.Operator, error) {
	return event.NewMatch("restored", nil), nil
}

func TestMarshalRestoreRoundTrip(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}

	ev := event.New("startup", event.Env{"FOO=bar"})
	class := job.NewClass("foo")
	class.StartOn = event.NewMatch("startup", nil)
	inst := job.NewInstance(class, "")
	inst.StopOn = event.NewMatch("shutdown", nil)

	go func() {
		defer w.Close()
		if err := Marshal(w, nil, []*event.Event{ev}, []*job.Class{class}, []*job.Instance{inst}); err != nil {
			t.Errorf("Marshal: %v", err)
		}
	}()

	snap, events, err := Restore(r, fakeParse)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if len(events) != 1 || events[0].Name != "startup" {
		t.Fatalf("events = %v, want one restored startup event", events)
	}
	if len(snap.Classes) != 1 || snap.Classes[0].Class.StartOn == nil {
		t.Fatal("expected the restored class to have a non-nil StartOn")
	}
	if len(snap.Instances) != 1 || snap.Instances[0].Instance.StopOn == nil {
		t.Fatal("expected the restored instance to have a non-nil StopOn")
	}
}

func TestRestoreTimesOutOnNoWriter(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer w.Close()
	defer r.Close()

	_, _, err = Restore(r, fakeParse)
	if err == nil {
		t.Fatal("expected Restore to time out when nothing is ever written")
	}
}
