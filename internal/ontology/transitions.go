package ontology

import "impactline/internal/domain"

// Transitions is the status matrix. Every cross-state move is allowed so
// finished work can be reopened; tighten here, not in callers.
var Transitions = map[domain.WorkItemStatus][]domain.WorkItemStatus{
	domain.StatusPending: {domain.StatusActive, domain.StatusDone},
	domain.StatusActive:  {domain.StatusPending, domain.StatusDone},
	domain.StatusDone:    {domain.StatusPending, domain.StatusActive},
}

// CanTransition reports whether from -> to is legal. Self moves always are.
func CanTransition(from, to domain.WorkItemStatus) bool {
	if from == to {
		return true
	}
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition reports unknown targets and disallowed moves.
func ValidateTransition(from, to domain.WorkItemStatus) Result {
	var r Result
	if !to.Valid() {
		r.add("status", domain.CodeInvalidStatus, "unknown status %q", to)
		return r
	}
	if !CanTransition(from, to) {
		r.add("status", domain.CodeInvalidTransition, "cannot transition from %s to %s", from, to)
	}
	return r
}
