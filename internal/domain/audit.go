package domain

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	ActionCreated       AuditAction = "created"
	ActionUpdated       AuditAction = "updated"
	ActionDeleted       AuditAction = "deleted"
	ActionStatusChanged AuditAction = "status_changed"
	ActionReassigned    AuditAction = "reassigned"
	ActionLinked        AuditAction = "linked"
	ActionUnlinked      AuditAction = "unlinked"
)

func (a AuditAction) Valid() bool {
	switch a {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionStatusChanged,
		ActionReassigned, ActionLinked, ActionUnlinked:
		return true
	}
	return false
}

// AuditEntry is immutable once appended. A nil state encodes as JSON null.
type AuditEntry struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"item_id"`
	Timestamp     time.Time       `json:"timestamp" format:"date-time"`
	ActorID       string          `json:"actor_id"`
	Action        AuditAction     `json:"action" enum:"created,updated,deleted,status_changed,reassigned,linked,unlinked"`
	PreviousState json.RawMessage `json:"previous_state"`
	NewState      json.RawMessage `json:"new_state"`
	Reason        string          `json:"reason,omitempty"`
	Metadata      RequestMetadata `json:"metadata"`
}

type AuditFilter struct {
	ItemID  string
	ActorID string
	Action  AuditAction
	Since   *time.Time
	Until   *time.Time
	Limit   int
	Offset  int
}

// FieldChange describes one top-level field that differs between snapshots.
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}
