package domain

// FindingKind names a consistency problem the reconciler detects.
type FindingKind string

const (
	FindingMissingMembership FindingKind = "missing_membership"
	FindingOrphanedMember    FindingKind = "orphaned_member"
	FindingMissingCreated    FindingKind = "missing_created_audit"
	FindingVersionMismatch   FindingKind = "version_mismatch"
)

type Finding struct {
	Kind     FindingKind `json:"kind"`
	EntityID string      `json:"entity_id"`
	ParentID string      `json:"parent_id,omitempty"`
	Detail   string      `json:"detail"`
	Fixed    bool        `json:"fixed"`
}
