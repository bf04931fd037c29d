// Package batch drives one matching run across all users: run lifecycle,
// worker fan-out, progress counters and error aggregation.
//
// Valid run status graph:
//
//	PENDING ──► RUNNING ──► COMPLETED
//	                  │ ──► COMPLETED_WITH_ERRORS
//	                  │ ──► FAILED
//	                  └──► CANCELLED
//
// All four right-hand states are terminal.
package batch

import "fmt"

// RunStatus values mirror the batch_status enum in PostgreSQL.
type RunStatus string

const (
	StatusPending             RunStatus = "PENDING"
	StatusRunning             RunStatus = "RUNNING"
	StatusCompleted           RunStatus = "COMPLETED"
	StatusCompletedWithErrors RunStatus = "COMPLETED_WITH_ERRORS"
	StatusFailed              RunStatus = "FAILED"
	StatusCancelled           RunStatus = "CANCELLED"
)

// validTransitions lists every allowed (from → to) pair.
var validTransitions = map[RunStatus][]RunStatus{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusCompletedWithErrors, StatusFailed, StatusCancelled},
	// Terminal states have no outgoing transitions.
}

// ParseRunStatus converts a raw string to a RunStatus, returning an error
// for unknown values.
func ParseRunStatus(s string) (RunStatus, error) {
	st := RunStatus(s)
	switch st {
	case StatusPending, StatusRunning, StatusCompleted,
		StatusCompletedWithErrors, StatusFailed, StatusCancelled:
		return st, nil
	}
	return "", fmt.Errorf("unknown run status %q", s)
}

// IsTransitionAllowed returns true when moving from → to is permitted by
// the run state machine.
func IsTransitionAllowed(from, to RunStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing transitions.
// A run in a terminal state is never picked up again (absent force).
func IsTerminal(s RunStatus) bool {
	_, hasOutgoing := validTransitions[s]
	return !hasOutgoing
}
