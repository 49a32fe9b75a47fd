package runner

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// State is a phase of a run.
type State int

const (
	StateInit State = iota
	StateSetupRunning
	StateAgentsSpawning
	StateAgentsRunning
	StateDraining
	StateTeardownRunning
	StateFinalising
	StateExit
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSetupRunning:
		return "SetupRunning"
	case StateAgentsSpawning:
		return "AgentsSpawning"
	case StateAgentsRunning:
		return "AgentsRunning"
	case StateDraining:
		return "Draining"
	case StateTeardownRunning:
		return "TeardownRunning"
	case StateFinalising:
		return "Finalising"
	case StateExit:
		return "Exit"
	default:
		return "Unknown"
	}
}

type stateTracker struct {
	mu      sync.Mutex
	history []State
	notify  func(State)
}

func newStateTracker(notify func(State)) *stateTracker {
	t := &stateTracker{notify: notify}
	t.enter(StateInit)
	return t
}

func (t *stateTracker) enter(s State) {
	t.mu.Lock()
	t.history = append(t.history, s)
	t.mu.Unlock()
	log.WithField("state", s).Debug("Run state changed")
	if t.notify != nil {
		t.notify(s)
	}
}

func (t *stateTracker) states() []State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]State(nil), t.history...)
}
