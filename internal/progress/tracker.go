// Package progress tracks the state of a mirror run and reports it to the
// console.
package progress

import (
	"fmt"
	"time"
)

// State is a step of a mirror run.
type State string

const (
	StateInit      State = "INIT"
	StateCloned    State = "CLONED"
	StateWiped     State = "WIPED"
	StateFilled    State = "FILLED"
	StateCommitted State = "COMMITTED"
	StatePushed    State = "PUSHED"
	StateDone      State = "DONE"
	StateFailed    State = "FAILED"
)

// next lists the states each state may advance to. FAILED is reachable
// from every non-terminal state and is not listed.
var next = map[State][]State{
	StateInit:      {StateCloned},
	StateCloned:    {StateWiped},
	StateWiped:     {StateFilled},
	StateFilled:    {StateCommitted},
	StateCommitted: {StatePushed, StateDone},
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StatePushed || s == StateDone || s == StateFailed
}

// Step records when a state was entered.
type Step struct {
	State State
	At    time.Time
}

// Operation represents a tracked run
type Operation struct {
	Name      string
	StartTime time.Time
	State     State
	History   []Step
	Err       error
}

// Duration is the time from start to the last recorded step.
func (o *Operation) Duration() time.Duration {
	if len(o.History) == 0 {
		return 0
	}
	return o.History[len(o.History)-1].At.Sub(o.StartTime)
}

// Tracker drives the state machine of one run and forwards every
// transition to its Reporter.
type Tracker struct {
	reporter Reporter
	current  *Operation
	now      func() time.Time
}

// NewTracker creates a tracker reporting to r. A nil r discards reports.
func NewTracker(r Reporter) *Tracker {
	if r == nil {
		r = Discard
	}
	return &Tracker{reporter: r, now: time.Now}
}

// Start begins tracking a new run in the INIT state.
func (t *Tracker) Start(name string) *Operation {
	now := t.now()
	t.current = &Operation{
		Name:      name,
		StartTime: now,
		State:     StateInit,
		History:   []Step{{State: StateInit, At: now}},
	}
	return t.current
}

// Current returns the run being tracked, nil before Start.
func (t *Tracker) Current() *Operation {
	return t.current
}

// State returns the current state, INIT before Start.
func (t *Tracker) State() State {
	if t.current == nil {
		return StateInit
	}
	return t.current.State
}

// Advance moves the run to state to. Moves the state machine does not allow
// are rejected and leave the run unchanged.
func (t *Tracker) Advance(to State) error {
	if t.current == nil {
		t.Start("")
	}
	from := t.current.State
	if !allowed(from, to) {
		return fmt.Errorf("invalid transition %s -> %s", from, to)
	}
	t.enter(to)
	t.reporter.Transition(from, to)
	return nil
}

// Fail moves the run to FAILED, keeping err. A terminal run is left alone.
func (t *Tracker) Fail(err error) {
	if t.current == nil {
		t.Start("")
	}
	if t.current.State.Terminal() {
		return
	}
	from := t.current.State
	t.current.Err = err
	t.enter(StateFailed)
	t.reporter.Transition(from, StateFailed)
}

func (t *Tracker) enter(s State) {
	t.current.State = s
	t.current.History = append(t.current.History, Step{State: s, At: t.now()})
}

func allowed(from, to State) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
