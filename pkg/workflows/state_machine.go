package workflows

import (
	"fmt"
	"slices"
)

// Transitions maps a status to the statuses it may move to. A status
// mapped to an empty slice is terminal.
type Transitions map[string][]string

// StateMachine enforces status transitions for ledger records
type StateMachine struct {
	allowedTransitions Transitions
}

// NewStateMachine creates a new state machine with allowed transitions
func NewStateMachine(transitions Transitions) *StateMachine {
	return &StateMachine{allowedTransitions: transitions}
}

// CanTransition checks if a status transition is allowed
func (sm *StateMachine) CanTransition(from, to string) bool {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return false
	}
	return slices.Contains(allowed, to)
}

// Transition returns an error when from cannot move to to
func (sm *StateMachine) Transition(from, to string) error {
	if !sm.CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	return nil
}

// GetAllowedTransitions returns the allowed next statuses for a given status
func (sm *StateMachine) GetAllowedTransitions(from string) []string {
	allowed, exists := sm.allowedTransitions[from]
	if !exists {
		return []string{}
	}
	return allowed
}

// IsTerminal reports whether status has no outgoing transitions
func (sm *StateMachine) IsTerminal(status string) bool {
	allowed, exists := sm.allowedTransitions[status]
	return exists && len(allowed) == 0
}

// TransitionError describes a rejected status change
type TransitionError struct {
	From string
	To   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
