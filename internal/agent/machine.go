// Package agent implements the in-page blocking agent: the per-document
// overlay state machine and the read-only content signal sampler. One
// Machine exists per page document; its state is never persisted and resets
// with every navigation.
package agent

import (
	"sync"

	"github.com/harees/navguard/internal/delivery"
	"github.com/harees/navguard/internal/verdict"
)

// State is the overlay state of one page document.
type State int

const (
	// StateHidden: no overlay, page fully interactive. Initial state and
	// the terminal state after an unblock.
	StateHidden State = iota
	// StateChecking: overlay visible with a neutral pill while the verdict
	// is pending. All keyboard input is suppressed.
	StateChecking
	// StateWarning: overlay visible with the verdict's severity and reason,
	// offering Leave and Proceed.
	StateWarning
	// StateDiscarded: the user chose Leave; the page instance is gone.
	// No further transitions are possible.
	StateDiscarded
)

func (s State) String() string {
	switch s {
	case StateHidden:
		return "hidden"
	case StateChecking:
		return "checking"
	case StateWarning:
		return "warning"
	case StateDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// UserAction is the notification an agent emits when the user decides on a
// warning. Delivery is at most once with no retry: a lost proceed at worst
// causes redundant re-blocking.
type UserAction struct {
	Action   string           `json:"action"` // "proceed" | "leave"
	URL      string           `json:"url"`
	Severity verdict.Severity `json:"severity"`
	Score    *float64         `json:"score,omitempty"`
	Reason   string           `json:"reason"`
}

// Machine owns the overlay state of a single page document and is the only
// writer of anything it reports back.
type Machine struct {
	mu      sync.Mutex
	state   State
	url     string
	current *verdict.Verdict
	notify  func(UserAction)
}

// NewMachine creates a hidden machine. notify receives user-action
// notifications; nil is allowed and drops them.
func NewMachine(notify func(UserAction)) *Machine {
	if notify == nil {
		notify = func(UserAction) {}
	}
	return &Machine{state: StateHidden, notify: notify}
}

// State returns the current overlay state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the verdict shown in the warning, if any.
func (m *Machine) Current() *verdict.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// InputBlocked reports whether page-level keyboard input must be suppressed.
func (m *Machine) InputBlocked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateChecking || m.state == StateWarning
}

// Apply drives the machine with a coordinator command. Commands with a
// malformed or unknown type are ignored without error, as is anything
// arriving after the page was discarded.
func (m *Machine) Apply(cmd delivery.Command) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateDiscarded {
		return
	}

	switch cmd.Type {
	case delivery.CommandBlock:
		m.state = StateChecking
		m.url = cmd.URL
		m.current = nil
	case delivery.CommandShowWarning:
		if cmd.Verdict == nil {
			return
		}
		m.state = StateWarning
		m.current = cmd.Verdict
		if cmd.Verdict.URL != "" {
			m.url = cmd.Verdict.URL
		}
	case delivery.CommandUnblock:
		m.state = StateHidden
		m.current = nil
	}
}

// Proceed records the user's choice to keep the page: the warning hides and
// a proceed notification is emitted. Ignored outside the warning state.
func (m *Machine) Proceed() {
	m.decide("proceed", StateHidden)
}

// Leave records the user's choice to abandon the page. The page instance is
// terminally discarded; the transport is expected to navigate it away.
func (m *Machine) Leave() {
	m.decide("leave", StateDiscarded)
}

func (m *Machine) decide(action string, next State) {
	m.mu.Lock()
	if m.state != StateWarning {
		m.mu.Unlock()
		return
	}

	ua := UserAction{Action: action, URL: m.url}
	if m.current != nil {
		ua.Severity = m.current.Severity
		ua.Score = m.current.Score
		ua.Reason = m.current.Reason
		if m.current.URL != "" {
			ua.URL = m.current.URL
		}
	} else {
		ua.Severity = verdict.SeverityInfo
	}

	m.state = next
	if next == StateHidden {
		m.current = nil
	}
	notify := m.notify
	m.mu.Unlock()

	notify(ua)
}
