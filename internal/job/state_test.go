package job

import "testing"

func TestNextStateHappyPathStart(t *testing.T) {
	seq := []State{
		StateWaiting, StateStarting, StateSecuritySpawning, StateSecurity,
		StatePreStarting, StatePreStart, StateSpawning, StateSpawned,
		StatePostStarting, StatePostStart, StateRunning,
	}
	s := StateWaiting
	for i := 1; i < len(seq); i++ {
		s = NextState(GoalStart, s)
		if s != seq[i] {
			t.Fatalf("step %d: got %v, want %v", i, s, seq[i])
		}
	}
}

func TestNextStateRunningStaysUntilStopGoal(t *testing.T) {
	if got := NextState(GoalStart, StateRunning); got != StateRunning {
		t.Fatalf("NextState(GoalStart, Running) = %v, want Running (no transition defined)", got)
	}
}

func TestNextStateStopHappyPath(t *testing.T) {
	seq := []State{
		StateRunning, StatePreStopping, StatePreStop, StateStopping,
		StateKilled, StatePostStopping, StatePostStop, StateWaiting,
	}
	s := StateRunning
	for i := 1; i < len(seq); i++ {
		s = NextState(GoalStop, s)
		if s != seq[i] {
			t.Fatalf("step %d: got %v, want %v", i, s, seq[i])
		}
	}
}

func TestNextStateMidStartupCancellation(t *testing.T) {
	starting := []State{
		StateStarting, StateSecuritySpawning, StateSecurity,
		StatePreStarting, StatePreStart, StateSpawning, StateSpawned,
		StatePostStarting, StatePostStart,
	}
	for _, s := range starting {
		if got := NextState(GoalStop, s); got != StateStopping {
			t.Errorf("NextState(GoalStop, %v) = %v, want StateStopping", s, got)
		}
	}
}

func TestStateTerminal(t *testing.T) {
	if !StateWaiting.Terminal() {
		t.Fatal("expected StateWaiting to be terminal")
	}
	if StateRunning.Terminal() {
		t.Fatal("expected StateRunning to not be terminal")
	}
}
