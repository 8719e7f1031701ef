package respawn

import (
	"testing"
	"time"

	"github.com/ubports/upstart-sub001/internal/job"
)

func newRespawningInstance() *job.Instance {
	c := job.NewClass("foo")
	c.Respawn = true
	c.RespawnLimit = 3
	c.RespawnInterval = 5 * time.Second
	inst := job.NewInstance(c, "")
	inst.Goal = job.GoalStart
	return inst
}

func TestEvaluateStopGoalNeverRespawns(t *testing.T) {
	inst := newRespawningInstance()
	inst.Goal = job.GoalStop
	if got := Evaluate(inst, 1, time.Now()); got != DecisionStop {
		t.Fatalf("Evaluate() = %v, want DecisionStop", got)
	}
}

func TestEvaluateNormalExitStops(t *testing.T) {
	inst := newRespawningInstance()
	inst.Class.NormalExitCode(0)
	if got := Evaluate(inst, 0, time.Now()); got != DecisionStop {
		t.Fatalf("Evaluate() = %v, want DecisionStop for a registered normal exit", got)
	}
}

func TestEvaluateNoRespawnStanzaStops(t *testing.T) {
	inst := newRespawningInstance()
	inst.Class.Respawn = false
	if got := Evaluate(inst, 1, time.Now()); got != DecisionStop {
		t.Fatalf("Evaluate() = %v, want DecisionStop without a respawn stanza", got)
	}
}

func TestEvaluateRespawnsWithinLimit(t *testing.T) {
	inst := newRespawningInstance()
	now := time.Now()
	for i := 0; i < inst.Class.RespawnLimit; i++ {
		if got := Evaluate(inst, 1, now); got != DecisionRespawn {
			t.Fatalf("respawn %d: got %v, want DecisionRespawn", i, got)
		}
	}
}

func TestEvaluateFailsAfterExceedingLimit(t *testing.T) {
	inst := newRespawningInstance()
	now := time.Now()
	for i := 0; i < inst.Class.RespawnLimit; i++ {
		Evaluate(inst, 1, now)
	}
	if got := Evaluate(inst, 1, now); got != DecisionFailed {
		t.Fatalf("Evaluate() after exceeding limit = %v, want DecisionFailed", got)
	}
}

func TestEvaluateWindowResetAfterInterval(t *testing.T) {
	inst := newRespawningInstance()
	now := time.Now()
	for i := 0; i < inst.Class.RespawnLimit; i++ {
		Evaluate(inst, 1, now)
	}
	later := now.Add(inst.Class.RespawnInterval + time.Second)
	if got := Evaluate(inst, 1, later); got != DecisionRespawn {
		t.Fatalf("Evaluate() after the window elapsed = %v, want DecisionRespawn", got)
	}
	if inst.RespawnCount != 1 {
		t.Fatalf("RespawnCount = %d, want reset to 1", inst.RespawnCount)
	}
}

func TestKillEscalationCancelOnNilIsSafe(t *testing.T) {
	var k *KillEscalation
	k.Cancel() // must not panic
}

