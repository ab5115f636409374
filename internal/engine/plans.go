package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"impactline/internal/domain"
	"impactline/internal/ontology"
	"impactline/internal/store"
)

const (
	reasonTrashed   = "Task moved to trash"
	reasonRestored  = "Task restored from trash"
	reasonPurged    = "Task permanently deleted"
	linkedReason    = "Linked to task %s"
	unlinkedReason  = "Unlinked from task %s"
	defaultAudience = "all"
)

func (w worker) planCreate(ctx context.Context, in CreateIntent, actor domain.Actor) (plan, error) {
	req := in.Request
	result := w.validator.ValidateCreate(req)
	if err := result.Err("task"); err != nil {
		return plan{}, rejected(err)
	}
	if w.Options.AutoCreateObjectives {
		if _, err := w.objectives.EnsureExists(ctx, req.ObjectiveID); err != nil {
			return plan{}, err
		}
	}
	refs, err := w.validator.CheckReferences(ctx, req.ObjectiveID, req.AssigneeID)
	if err != nil {
		return plan{}, err
	}
	if err := refs.Err("task"); err != nil {
		return plan{}, rejected(err)
	}
	start, _ := ontology.ParseDate(req.StartDate)
	due, _ := ontology.ParseDate(req.DueDate)
	now := w.now()
	visibility := req.Visibility
	if len(visibility) == 0 {
		visibility = []string{defaultAudience}
	}
	item := domain.WorkItem{
		ID:                 w.IDs.NewID(),
		ObjectiveID:        req.ObjectiveID,
		AssigneeID:         req.AssigneeID,
		StartDate:          start,
		DueDate:            due,
		Status:             domain.StatusPending,
		Deliverable:        req.Deliverable,
		Evidence:           req.Evidence,
		Intent:             req.Intent,
		Version:            1,
		Visibility:         visibility,
		Tags:               orEmpty(req.Tags),
		LinkedItemIDs:      orEmpty(req.LinkedItemIDs),
		RelatedDocumentIDs: orEmpty(req.RelatedDocumentIDs),
		References:         req.References,
		CreatedBy:          actor.ID,
		CreatedAt:          now,
		LastModifiedBy:     actor.ID,
		UpdatedAt:          now,
	}
	return plan{
		itemID:   item.ID,
		action:   domain.ActionCreated,
		after:    item,
		result:   &item,
		warnings: append(result.Warnings, refs.Warnings...),
		steps: []step{
			func(ctx context.Context, w worker) error {
				if err := w.st.Upsert(ctx, Collection, item.ID, item); err != nil {
					return storeErr("create task", err)
				}
				return nil
			},
			func(ctx context.Context, w worker) error {
				return w.objectives.LinkMember(ctx, item.ObjectiveID, item.ID)
			},
		},
	}, nil
}

// merge applies a validated patch; dates were checked by the validator.
func merge(current domain.WorkItem, p domain.WorkItemPatch) domain.WorkItem {
	next := current
	if p.ObjectiveID != nil {
		next.ObjectiveID = *p.ObjectiveID
	}
	if p.AssigneeID != nil {
		next.AssigneeID = *p.AssigneeID
	}
	if p.StartDate != nil {
		next.StartDate, _ = ontology.ParseDate(*p.StartDate)
	}
	if p.DueDate != nil {
		next.DueDate, _ = ontology.ParseDate(*p.DueDate)
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Deliverable != nil {
		next.Deliverable = *p.Deliverable
	}
	if p.Evidence != nil {
		next.Evidence = *p.Evidence
	}
	if p.Intent != nil {
		next.Intent = *p.Intent
	}
	if p.Visibility != nil {
		next.Visibility = orEmpty(*p.Visibility)
	}
	if p.Tags != nil {
		next.Tags = orEmpty(*p.Tags)
	}
	if p.LinkedItemIDs != nil {
		next.LinkedItemIDs = orEmpty(*p.LinkedItemIDs)
	}
	if p.RelatedDocumentIDs != nil {
		next.RelatedDocumentIDs = orEmpty(*p.RelatedDocumentIDs)
	}
	if p.References != nil {
		next.References = *p.References
	}
	return next
}

func updateAction(before, after domain.WorkItem) domain.AuditAction {
	switch {
	case before.Status != after.Status:
		return domain.ActionStatusChanged
	case before.AssigneeID != after.AssigneeID:
		return domain.ActionReassigned
	}
	return domain.ActionUpdated
}

func (w worker) planUpdate(ctx context.Context, in UpdateIntent, actor domain.Actor) (plan, error) {
	current, err := w.load(ctx, in.ID)
	if err != nil {
		return plan{}, err
	}
	result := w.validator.ValidateUpdate(current, in.Patch)
	if err := result.Err("task"); err != nil {
		return plan{}, rejected(err)
	}
	next := merge(current, in.Patch)
	objectiveChanged := next.ObjectiveID != current.ObjectiveID
	var newObjective, newAssignee string
	if objectiveChanged {
		newObjective = next.ObjectiveID
		if w.Options.AutoCreateObjectives {
			if _, err := w.objectives.EnsureExists(ctx, newObjective); err != nil {
				return plan{}, err
			}
		}
	}
	if next.AssigneeID != current.AssigneeID {
		newAssignee = next.AssigneeID
	}
	refs, err := w.validator.CheckReferences(ctx, newObjective, newAssignee)
	if err != nil {
		return plan{}, err
	}
	if err := refs.Err("task"); err != nil {
		return plan{}, rejected(err)
	}
	next.Version = current.Version + 1
	next.UpdatedAt = w.now()
	next.LastModifiedBy = actor.ID

	var steps []step
	if objectiveChanged {
		steps = append(steps,
			func(ctx context.Context, w worker) error {
				return w.objectives.UnlinkMember(ctx, current.ObjectiveID, current.ID)
			},
			func(ctx context.Context, w worker) error {
				return w.objectives.LinkMember(ctx, next.ObjectiveID, next.ID)
			})
	}
	steps = append(steps, func(ctx context.Context, w worker) error {
		if err := w.st.Upsert(ctx, Collection, next.ID, next); err != nil {
			return storeErr("update task", err)
		}
		return nil
	})
	return plan{
		itemID:   current.ID,
		action:   updateAction(current, next),
		reason:   in.Reason,
		before:   current,
		after:    next,
		result:   &next,
		warnings: append(result.Warnings, refs.Warnings...),
		steps:    steps,
	}, nil
}

// planSoftDelete audits before the marker is written so intent survives a
// failed marker write. Deleting a trashed item is a no-op.
func (w worker) planSoftDelete(ctx context.Context, in SoftDeleteIntent, actor domain.Actor) (plan, error) {
	current, err := w.load(ctx, in.ID)
	if err != nil {
		return plan{}, err
	}
	if current.Deleted() {
		return plan{itemID: current.ID, noop: true, result: &current}, nil
	}
	now := w.now()
	next := current
	next.DeletedAt = &now
	next.DeletedBy = actor.ID
	reason := in.Reason
	if reason == "" {
		reason = reasonTrashed
	}
	return plan{
		itemID:     current.ID,
		action:     domain.ActionDeleted,
		reason:     reason,
		before:     current,
		after:      next,
		auditFirst: true,
		result:     &next,
		steps: []step{func(ctx context.Context, w worker) error {
			err := w.st.Update(ctx, Collection, current.ID, store.Patch{Set: map[string]any{
				string(fieldDeletedAt): now,
				string(fieldDeletedBy): actor.ID,
			}})
			if err != nil {
				return storeErr("soft delete task", err)
			}
			return nil
		}},
	}, nil
}

func (w worker) planRestore(ctx context.Context, in RestoreIntent, actor domain.Actor) (plan, error) {
	current, err := w.load(ctx, in.ID)
	if err != nil {
		return plan{}, err
	}
	if !current.Deleted() {
		return plan{itemID: current.ID, noop: true, result: &current}, nil
	}
	next := current
	next.DeletedAt = nil
	next.DeletedBy = ""
	next.UpdatedAt = w.now()
	next.LastModifiedBy = actor.ID
	return plan{
		itemID: current.ID,
		action: domain.ActionStatusChanged,
		reason: reasonRestored,
		before: current,
		after:  next,
		result: &next,
		steps: []step{func(ctx context.Context, w worker) error {
			err := w.st.Update(ctx, Collection, current.ID, store.Patch{
				Set: map[string]any{
					string(fieldUpdatedAt):  next.UpdatedAt,
					string(fieldModifiedBy): actor.ID,
				},
				Unset: []string{string(fieldDeletedAt), string(fieldDeletedBy)},
			})
			if err != nil {
				return storeErr("restore task", err)
			}
			return nil
		}},
	}, nil
}

// planPermanentDelete writes the terminal audit entry first; the trail
// outlives the record.
func (w worker) planPermanentDelete(ctx context.Context, in PermanentDeleteIntent) (plan, error) {
	current, err := w.load(ctx, in.ID)
	if err != nil {
		return plan{}, err
	}
	return plan{
		itemID:     current.ID,
		action:     domain.ActionDeleted,
		reason:     reasonPurged,
		before:     current,
		auditFirst: true,
		steps: []step{
			func(ctx context.Context, w worker) error {
				return w.objectives.UnlinkMember(ctx, current.ObjectiveID, current.ID)
			},
			func(ctx context.Context, w worker) error {
				if err := w.st.Delete(ctx, Collection, current.ID); err != nil {
					return storeErr("delete task", err)
				}
				return nil
			},
		},
	}, nil
}

type linkState struct {
	LinkedItemIDs []string `json:"linked_item_ids"`
}

func (w worker) planLink(ctx context.Context, id, otherID string, link bool, actor domain.Actor) (plan, error) {
	current, err := w.load(ctx, id)
	if err != nil {
		return plan{}, err
	}
	if otherID == "" || otherID == id {
		return plan{}, rejected(domain.ValidationError{Entity: "task", Errors: []domain.FieldError{{
			Field: "linked_item_ids", Code: domain.CodeInvalidReference, Message: "a task must link to another task",
		}}})
	}
	has := slices.Contains(current.LinkedItemIDs, otherID)
	if has == link {
		return plan{itemID: id, noop: true, result: &current}, nil
	}
	if link {
		_, err := w.load(ctx, otherID)
		if err != nil && !errors.Is(err, domain.ErrEntityNotFound) {
			return plan{}, err
		}
		if err != nil {
			return plan{}, rejected(domain.ValidationError{Entity: "task", Errors: []domain.FieldError{{
				Field: "linked_item_ids", Code: domain.CodeInvalidReference, Message: fmt.Sprintf("task %s does not exist", otherID),
			}}})
		}
	}
	next := current
	next.UpdatedAt = w.now()
	next.LastModifiedBy = actor.ID
	patch := store.Patch{Set: map[string]any{
		string(fieldUpdatedAt):  next.UpdatedAt,
		string(fieldModifiedBy): actor.ID,
	}}
	action, reason := domain.ActionLinked, fmt.Sprintf(linkedReason, otherID)
	if link {
		next.LinkedItemIDs = append(slices.Clone(current.LinkedItemIDs), otherID)
		patch.AddToSet = map[string][]string{string(fieldLinkedItemIDs): {otherID}}
	} else {
		next.LinkedItemIDs = slices.DeleteFunc(slices.Clone(current.LinkedItemIDs), func(v string) bool { return v == otherID })
		patch.RemoveFromSet = map[string][]string{string(fieldLinkedItemIDs): {otherID}}
		action, reason = domain.ActionUnlinked, fmt.Sprintf(unlinkedReason, otherID)
	}
	var warnings []string
	if link {
		warnings = w.validator.ValidateRelationships(nil, next.LinkedItemIDs).Warnings
	}
	return plan{
		itemID:   id,
		action:   action,
		reason:   reason,
		before:   linkState{LinkedItemIDs: orEmpty(current.LinkedItemIDs)},
		after:    linkState{LinkedItemIDs: orEmpty(next.LinkedItemIDs)},
		result:   &next,
		warnings: warnings,
		steps: []step{func(ctx context.Context, w worker) error {
			if err := w.st.Update(ctx, Collection, id, patch); err != nil {
				return storeErr("update task links", err)
			}
			return nil
		}},
	}, nil
}
