package discovery

import (
	"fmt"
	"time"
)

// State is a step of a discovery run.
type State int

const (
	Scanning State = iota
	Selecting
	Loading
	Validating
	Ready
	Failed
)

var stateNames = [...]string{"SCANNING", "SELECTING", "LOADING", "VALIDATING", "READY", "FAILED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	for i, name := range stateNames {
		if name == string(b) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown discovery state %q", b)
}

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool { return s == Ready || s == Failed }

// Transition records entry into a state.
type Transition struct {
	State State     `json:"state"`
	At    time.Time `json:"at"`
}

// Report describes one discovery run.
type Report struct {
	Root        string       `json:"root"`
	Transitions []Transition `json:"transitions"`
	Selection   Selection    `json:"selection"`
	Signature   string       `json:"signature,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// Final returns the last state reached.
func (r Report) Final() State {
	if len(r.Transitions) == 0 {
		return Scanning
	}
	return r.Transitions[len(r.Transitions)-1].State
}

// Started returns when the run began.
func (r Report) Started() time.Time {
	if len(r.Transitions) == 0 {
		return time.Time{}
	}
	return r.Transitions[0].At
}

// Duration is the time from the first to the last transition.
func (r Report) Duration() time.Duration {
	if len(r.Transitions) == 0 {
		return 0
	}
	return r.Transitions[len(r.Transitions)-1].At.Sub(r.Transitions[0].At)
}

func (r *Report) enter(s State) {
	r.Transitions = append(r.Transitions, Transition{State: s, At: time.Now()})
}
