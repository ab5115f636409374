package ontology_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/domain"
	"impactline/internal/ontology"
)

func validRequest() domain.CreateWorkItemRequest {
	return domain.CreateWorkItemRequest{
		ObjectiveID: "proj-x",
		AssigneeID:  "alice",
		StartDate:   "2025-01-01",
		DueDate:     "2025-01-10",
		Deliverable: "draft proposal",
		Evidence:    []string{"doc-url"},
	}
}

func codes(r ontology.Result) map[string]string {
	out := map[string]string{}
	for _, fe := range r.Errors {
		out[fe.Field] = fe.Code
	}
	return out
}

func TestValidateCreateAcceptsCompleteRequest(t *testing.T) {
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})
	r := v.ValidateCreate(validRequest())
	assert.True(t, r.Valid(), "errors: %+v", r.Errors)
	assert.NoError(t, r.Err("task"))
}

func TestValidateCreateRequiredFields(t *testing.T) {
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})
	r := v.ValidateCreate(domain.CreateWorkItemRequest{Evidence: []string{"  "}})
	got := codes(r)
	for _, field := range []string{"objective_id", "assignee_id", "deliverable", "evidence", "start_date", "due_date"} {
		assert.Equal(t, domain.CodeRequiredField, got[field], field)
	}
	err := r.Err("task")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidationFailed))
	var ve domain.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Errors, 6)
}

func TestValidateCreateDates(t *testing.T) {
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})

	req := validRequest()
	req.StartDate = "not-a-date"
	assert.Equal(t, domain.CodeInvalidDate, codes(v.ValidateCreate(req))["start_date"])

	req = validRequest()
	req.StartDate, req.DueDate = "2025-02-01", "2025-01-01"
	assert.Equal(t, domain.CodeInvalidDateRange, codes(v.ValidateCreate(req))["due_date"])

	req = validRequest()
	req.StartDate, req.DueDate = "2025-01-01T09:00:00Z", "2025-01-01T09:00:00Z"
	assert.True(t, v.ValidateCreate(req).Valid())
}

func TestEveryStatusTransitionIsLegal(t *testing.T) {
	for _, from := range domain.WorkItemStatuses {
		for _, to := range domain.WorkItemStatuses {
			assert.True(t, ontology.CanTransition(from, to), "%s -> %s", from, to)
			assert.True(t, ontology.ValidateTransition(from, to).Valid(), "%s -> %s", from, to)
		}
	}
}

func TestUnknownStatusRejected(t *testing.T) {
	r := ontology.ValidateTransition(domain.StatusPending, "Blocked")
	require.False(t, r.Valid())
	assert.Equal(t, domain.CodeInvalidStatus, r.Errors[0].Code)
}

func TestValidateUpdateOnlyChecksPresentFields(t *testing.T) {
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})
	current := domain.WorkItem{Status: domain.StatusPending}
	assert.True(t, v.ValidateUpdate(current, domain.WorkItemPatch{}).Valid())

	empty := ""
	r := v.ValidateUpdate(current, domain.WorkItemPatch{AssigneeID: &empty})
	assert.Equal(t, domain.CodeRequiredField, codes(r)["assignee_id"])

	start, due := "2025-03-01", "2025-02-01"
	r = v.ValidateUpdate(current, domain.WorkItemPatch{StartDate: &start, DueDate: &due})
	assert.Equal(t, domain.CodeInvalidDateRange, codes(r)["due_date"])

	// A single date is checked for format only.
	r = v.ValidateUpdate(current, domain.WorkItemPatch{DueDate: &due})
	assert.True(t, r.Valid())
}

func TestRelationships(t *testing.T) {
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})

	r := v.ValidateRelationships(nil, []string{"a", "b", "a"})
	assert.Equal(t, domain.CodeDuplicateReference, codes(r)["linked_item_ids"])

	r = v.ValidateRelationships([]string{"ok", ""}, nil)
	assert.Equal(t, domain.CodeInvalidTag, codes(r)["tags"])

	var many []string
	for i := 0; i < 21; i++ {
		many = append(many, strings.Repeat("x", i+1))
	}
	r = v.ValidateRelationships(many[:11], many)
	assert.True(t, r.Valid())
	assert.Len(t, r.Warnings, 2)
}

func TestCheckReferences(t *testing.T) {
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{
		ObjectiveExists: func(_ context.Context, id string) (bool, error) { return id == "known", nil },
		AssigneeExists:  ontology.NonEmpty,
	})
	r, err := v.CheckReferences(context.Background(), "missing", "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.CodeInvalidReference, codes(r)["objective_id"])
	assert.True(t, errors.Is(r.Err("task"), domain.ErrReferenceNotFound))

	boom := errors.New("boom")
	v.Checks.AssigneeExists = func(context.Context, string) (bool, error) { return false, boom }
	_, err = v.CheckReferences(context.Background(), "known", "alice")
	assert.ErrorIs(t, err, boom)
}

func TestValidateDocument(t *testing.T) {
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})
	r := v.ValidateDocumentCreate(domain.CreateDocumentRequest{Title: strings.Repeat("t", 201), Category: "memo", IsTemplate: true, Visibility: []string{}})
	got := codes(r)
	assert.Equal(t, domain.CodeMaxLength, got["title"])
	assert.Equal(t, domain.CodeInvalidCategory, got["category"])
	assert.Equal(t, domain.CodeRequiredField, got["content"])
	assert.Len(t, r.Warnings, 2)

	empty := ""
	r = v.ValidateDocumentUpdate(domain.DocumentPatch{Content: &empty})
	assert.Equal(t, domain.CodeRequiredField, codes(r)["content"])
}

func TestValidateObjective(t *testing.T) {
	v := ontology.New(ontology.DefaultLimits(), ontology.Checks{})
	r := v.ValidateObjectiveCreate(domain.CreateObjectiveRequest{Title: "Launch"})
	got := codes(r)
	assert.Equal(t, domain.CodeRequiredField, got["description"])
	assert.Equal(t, domain.CodeRequiredField, got["owner_id"])
	_, hasTitle := got["title"]
	assert.False(t, hasTitle)
}
