package supervisor

import "time"

// Service names used for registry keys, log fields, and history rows.
const (
	ServiceInference = "inference"
	ServiceBackend   = "backend"
)

// State is a managed service's position in the startup lifecycle.
type State string

const (
	StateNotChecked State = "not_checked"
	StateDisabled   State = "disabled"
	StateLive       State = "live"
	StateNotLive    State = "not_live"
	StateSpawning   State = "spawning"
	StateSpawned    State = "spawned"
	StateFailed     State = "failed"
	StateTerminated State = "terminated"
)

var transitions = map[State][]State{
	StateNotChecked: {StateLive, StateNotLive, StateDisabled},
	StateNotLive:    {StateSpawning, StateFailed},
	StateSpawning:   {StateSpawned, StateFailed},
	StateSpawned:    {StateTerminated},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Owned reports whether the supervisor started the service and must stop it.
func (s State) Owned() bool {
	return s == StateSpawned
}

// ServiceStatus is a snapshot of one managed service.
type ServiceStatus struct {
	Name    string
	Address string
	State   State
	PID     int
	Path    string
	// Ready is set once the service's port answered after a spawn, or
	// immediately when it was already live.
	Ready     bool
	Detail    string
	UpdatedAt time.Time
}
