package job

// State is an instance's current position in the spawn/run/kill pipeline.
// The full set distinguishes "spawning" from "spawned" per script role so
// the asynchronous setup phase (§4.3's error-pipe handshake) is observable.
type State int

const (
	StateWaiting State = iota
	StateStarting
	StateSecuritySpawning
	StateSecurity
	StatePreStarting
	StatePreStart
	StateSpawning
	StateSpawned
	StatePostStarting
	StatePostStart
	StateRunning
	StatePreStopping
	StatePreStop
	StateStopping
	StateKilled
	StatePostStopping
	StatePostStop
)

func (s State) String() string {
	names := [...]string{
		"waiting", "starting", "security-spawning", "security",
		"pre-starting", "pre-start", "spawning", "spawned",
		"post-starting", "post-start", "running",
		"pre-stopping", "pre-stop", "stopping", "killed",
		"post-stopping", "post-stop",
	}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// NextState is the pure (goal, state) -> state transition table of §4.4.
// It encodes the happy-path progression only; process-event-driven
// transitions (spawn success/failure, SIGCHLD, trace events) are applied
// by the reaper and spawner directly onto an Instance's State field and do
// not go through this table.
func NextState(goal Goal, state State) State {
	switch goal {
	case GoalStart, GoalRespawn:
		switch state {
		case StateWaiting:
			return StateStarting
		case StateStarting:
			return StateSecuritySpawning
		case StateSecuritySpawning:
			return StateSecurity
		case StateSecurity:
			return StatePreStarting
		case StatePreStarting:
			return StatePreStart
		case StatePreStart:
			return StateSpawning
		case StateSpawning:
			return StateSpawned
		case StateSpawned:
			return StatePostStarting
		case StatePostStarting:
			return StatePostStart
		case StatePostStart:
			return StateRunning
		case StateStopping:
			return StateKilled
		case StateKilled:
			return StatePostStopping
		case StatePostStopping:
			return StatePostStop
		case StatePostStop:
			return StateWaiting
		default:
			return state
		}
	default: // GoalStop
		switch state {
		case StateRunning:
			return StatePreStopping
		case StatePreStopping:
			return StatePreStop
		case StatePreStop:
			return StateStopping
		// Mid-startup cancellation: any starting state moves directly to
		// killing the role that is currently in flight.
		case StateStarting, StateSecuritySpawning, StateSecurity,
			StatePreStarting, StatePreStart, StateSpawning, StateSpawned,
			StatePostStarting, StatePostStart:
			return StateStopping
		case StateStopping:
			return StateKilled
		case StateKilled:
			return StatePostStopping
		case StatePostStopping:
			return StatePostStop
		case StatePostStop:
			return StateWaiting
		default:
			return state
		}
	}
}

// Terminal reports whether state is WAITING, the state at which an
// instance becomes eligible for destruction one main-loop tick later.
func (s State) Terminal() bool { return s == StateWaiting }

// roleForState reports which process role, if any, is active (spawning or
// spawned) in a given state, used to route a reaped pid's exit back to the
// right transition.
func roleForState(s State) (Role, bool) {
	switch s {
	case StateSecuritySpawning, StateSecurity:
		return RoleSecurity, true
	case StatePreStarting, StatePreStart:
		return RolePreStart, true
	case StateSpawning, StateSpawned:
		return RoleMain, true
	case StatePostStarting, StatePostStart:
		return RolePostStart, true
	case StatePreStopping, StatePreStop:
		return RolePreStop, true
	case StatePostStopping, StatePostStop:
		return RolePostStop, true
	default:
		return RoleMain, false
	}
}
