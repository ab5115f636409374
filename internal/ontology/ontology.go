// Package ontology holds the fixed rules every work item, objective, and
// document must satisfy before a mutation is applied. Nothing here touches
// storage; reference checks go through injected predicates.
package ontology

import (
	"context"
	"fmt"
	"strings"
	"time"

	"impactline/internal/domain"
)

// Result collects field errors and non-blocking warnings.
type Result struct {
	Errors   []domain.FieldError `json:"errors"`
	Warnings []string            `json:"warnings"`
}

func (r Result) Valid() bool { return len(r.Errors) == 0 }

// Err returns a domain.ValidationError when the result holds errors.
func (r Result) Err(entity string) error {
	if r.Valid() {
		return nil
	}
	return domain.ValidationError{Entity: entity, Errors: r.Errors, Warnings: r.Warnings}
}

func (r *Result) add(field, code, format string, args ...any) {
	r.Errors = append(r.Errors, domain.FieldError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *Result) merge(other Result) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

type Limits struct {
	MaxTags        int
	MaxLinkedItems int
	MaxTitleLength int
}

func DefaultLimits() Limits {
	return Limits{MaxTags: 10, MaxLinkedItems: 20, MaxTitleLength: 200}
}

// ExistsFunc answers whether an id resolves.
type ExistsFunc func(ctx context.Context, id string) (bool, error)

// NonEmpty accepts any non-blank id.
func NonEmpty(_ context.Context, id string) (bool, error) {
	return strings.TrimSpace(id) != "", nil
}

type Checks struct {
	ObjectiveExists ExistsFunc
	AssigneeExists  ExistsFunc
}

type Validator struct {
	Limits Limits
	Checks Checks
}

func New(limits Limits, checks Checks) Validator {
	if limits.MaxTags == 0 && limits.MaxLinkedItems == 0 && limits.MaxTitleLength == 0 {
		limits = DefaultLimits()
	}
	return Validator{Limits: limits, Checks: checks}
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// ParseDate accepts RFC 3339 timestamps and plain calendar dates, in UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func emptyEvidence(evidence []string) bool {
	for _, e := range evidence {
		if !blank(e) {
			return false
		}
	}
	return true
}

// ValidateCreate checks a creation request without reference lookups.
func (v Validator) ValidateCreate(req domain.CreateWorkItemRequest) Result {
	var r Result
	if blank(req.ObjectiveID) {
		r.add("objective_id", domain.CodeRequiredField, "objective is required; every task must link to an objective")
	}
	if blank(req.AssigneeID) {
		r.add("assignee_id", domain.CodeRequiredField, "assignee is required; every task must have an owner")
	}
	if blank(req.Deliverable) {
		r.add("deliverable", domain.CodeRequiredField, "deliverable is required; describe the expected output")
	}
	if emptyEvidence(req.Evidence) {
		r.add("evidence", domain.CodeRequiredField, "evidence is required; provide at least one proof of completion")
	}
	start, startOK := v.checkDate(&r, "start_date", req.StartDate, true)
	due, dueOK := v.checkDate(&r, "due_date", req.DueDate, true)
	if startOK && dueOK && start.After(due) {
		r.add("due_date", domain.CodeInvalidDateRange, "due date must be on or after start date")
	}
	r.merge(v.ValidateRelationships(req.Tags, req.LinkedItemIDs))
	return r
}

func (v Validator) checkDate(r *Result, field, raw string, required bool) (time.Time, bool) {
	if blank(raw) {
		if required {
			r.add(field, domain.CodeRequiredField, "%s is required", strings.ReplaceAll(field, "_", " "))
		}
		return time.Time{}, false
	}
	t, err := ParseDate(raw)
	if err != nil {
		r.add(field, domain.CodeInvalidDate, "%s is not a valid date", strings.ReplaceAll(field, "_", " "))
		return time.Time{}, false
	}
	return t, true
}

// ValidateUpdate checks only the fields present in the patch.
func (v Validator) ValidateUpdate(current domain.WorkItem, patch domain.WorkItemPatch) Result {
	var r Result
	if patch.ObjectiveID != nil && blank(*patch.ObjectiveID) {
		r.add("objective_id", domain.CodeRequiredField, "objective cannot be empty")
	}
	if patch.AssigneeID != nil && blank(*patch.AssigneeID) {
		r.add("assignee_id", domain.CodeRequiredField, "assignee cannot be empty")
	}
	if patch.Deliverable != nil && blank(*patch.Deliverable) {
		r.add("deliverable", domain.CodeRequiredField, "deliverable cannot be empty")
	}
	if patch.Evidence != nil && emptyEvidence(*patch.Evidence) {
		r.add("evidence", domain.CodeRequiredField, "evidence cannot be empty")
	}
	if patch.Status != nil {
		r.merge(ValidateTransition(current.Status, *patch.Status))
	}
	var start, due time.Time
	var startOK, dueOK bool
	if patch.StartDate != nil {
		start, startOK = v.checkDate(&r, "start_date", *patch.StartDate, true)
	}
	if patch.DueDate != nil {
		due, dueOK = v.checkDate(&r, "due_date", *patch.DueDate, true)
	}
	if startOK && dueOK && start.After(due) {
		r.add("due_date", domain.CodeInvalidDateRange, "due date must be on or after start date")
	}
	var tags, linked []string
	if patch.Tags != nil {
		tags = *patch.Tags
	}
	if patch.LinkedItemIDs != nil {
		linked = *patch.LinkedItemIDs
	}
	r.merge(v.ValidateRelationships(tags, linked))
	return r
}

// CheckReferences resolves objective and assignee through the injected checks.
// Empty ids are skipped; the structural checks already report them.
func (v Validator) CheckReferences(ctx context.Context, objectiveID, assigneeID string) (Result, error) {
	var r Result
	if v.Checks.ObjectiveExists != nil && !blank(objectiveID) {
		ok, err := v.Checks.ObjectiveExists(ctx, objectiveID)
		if err != nil {
			return r, err
		}
		if !ok {
			r.add("objective_id", domain.CodeInvalidReference, "objective %s does not exist", objectiveID)
		}
	}
	if v.Checks.AssigneeExists != nil && !blank(assigneeID) {
		ok, err := v.Checks.AssigneeExists(ctx, assigneeID)
		if err != nil {
			return r, err
		}
		if !ok {
			r.add("assignee_id", domain.CodeInvalidReference, "assignee %s does not exist", assigneeID)
		}
	}
	return r, nil
}
