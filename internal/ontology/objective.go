package ontology

import "impactline/internal/domain"

func (v Validator) ValidateObjectiveCreate(req domain.CreateObjectiveRequest) Result {
	var r Result
	if blank(req.Title) {
		r.add("title", domain.CodeRequiredField, "objective title is required")
	}
	if blank(req.Description) {
		r.add("description", domain.CodeRequiredField, "objective description is required")
	}
	if blank(req.OwnerID) {
		r.add("owner_id", domain.CodeRequiredField, "objective owner is required")
	}
	v.checkTags(&r, req.Tags)
	return r
}

func (v Validator) ValidateObjectiveUpdate(patch domain.ObjectivePatch) Result {
	var r Result
	if patch.Title != nil && blank(*patch.Title) {
		r.add("title", domain.CodeRequiredField, "objective title cannot be empty")
	}
	if patch.Description != nil && blank(*patch.Description) {
		r.add("description", domain.CodeRequiredField, "objective description cannot be empty")
	}
	if patch.OwnerID != nil && blank(*patch.OwnerID) {
		r.add("owner_id", domain.CodeRequiredField, "objective owner cannot be empty")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		r.add("status", domain.CodeInvalidStatus, "unknown status %q", *patch.Status)
	}
	if patch.Tags != nil {
		v.checkTags(&r, *patch.Tags)
	}
	return r
}
