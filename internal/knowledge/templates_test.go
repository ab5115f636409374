package knowledge_test

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impactline/internal/domain"
	"impactline/internal/knowledge"
	"impactline/internal/ontology"
)

func TestExtractPlaceholders(t *testing.T) {
	got := ontology.ExtractPlaceholders("Hi {{name}}, see {{link}} or ask {{name}}. {{not valid}}")
	assert.Equal(t, []string{"name", "link"}, got)
	assert.Empty(t, ontology.ExtractPlaceholders("plain"))
}

func TestFill(t *testing.T) {
	tmpl := &domain.TemplateData{DefaultValues: map[string]string{"team": "Platform", "name": "there"}}
	got := knowledge.Fill("Hello {{name}} from {{team}} about {{topic}}", tmpl, map[string]string{"name": "Ana"})
	assert.Equal(t, "Hello Ana from Platform about {{topic}}", got)
}

func TestTemplateLifecycle(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, domain.CreateDocumentRequest{
		Title:    "Incident Review",
		Category: domain.CategoryTemplate,
		Content:  "Incident {{incident}} owned by {{owner}}",
	})

	_, err := env.Svc.Template(env.Ctx, d.ID)
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))

	converted, err := env.Svc.ConvertToTemplate(env.Ctx, d.ID, domain.TemplateData{DefaultValues: map[string]string{"owner": "on-call"}}, "alice")
	require.NoError(t, err)
	assert.Empty(t, converted.Warnings)
	require.NotNil(t, converted.Version)
	assert.Equal(t, 2, converted.Version.Number)
	tmpl := converted.Document
	assert.True(t, tmpl.IsTemplate)
	assert.Equal(t, domain.DocumentPublished, tmpl.Status)
	require.NotNil(t, tmpl.Template)
	assert.Equal(t, []string{"incident", "owner"}, tmpl.Template.Placeholders)
	assert.True(t, env.Svc.Validator.ValidateTemplate(tmpl).Valid())

	versions, err := env.Svc.Versions(env.Ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "Converted to template", versions[0].Reason)
	assert.Contains(t, versions[0].Changes, "Converted to template")

	templates, err := env.Svc.Templates(env.Ctx, "")
	require.NoError(t, err)
	require.Len(t, templates, 1)

	out, err := env.Svc.CreateFromTemplate(env.Ctx, d.ID, domain.FromTemplateRequest{
		Title:  "INC-42 review",
		Values: map[string]string{"incident": "INC-42"},
	}, "bob")
	require.NoError(t, err)
	filled := out.Document
	assert.Equal(t, "Incident INC-42 owned by on-call", filled.Content)
	assert.Equal(t, []string{d.ID}, filled.RelatedDocumentIDs)
	assert.Equal(t, domain.DocumentDraft, filled.Status)
	assert.False(t, filled.IsTemplate)

	stats, err := env.Svc.TemplateStatsFor(env.Ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)
}

func TestConvertWarnsAboutUnusedPlaceholders(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, domain.CreateDocumentRequest{
		Title:    "Runbook",
		Category: domain.CategoryTemplate,
		Content:  "Restart {{service}}",
	})

	out, err := env.Svc.ConvertToTemplate(env.Ctx, d.ID, domain.TemplateData{Placeholders: []string{"service", "region"}}, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{`declared placeholder "region" not found in content`}, out.Warnings)

	filled, err := env.Svc.CreateFromTemplate(env.Ctx, d.ID, domain.FromTemplateRequest{Values: map[string]string{"service": "api"}}, "bob")
	require.NoError(t, err)
	assert.Equal(t, "Restart api", filled.Document.Content)
	assert.Equal(t, out.Warnings, filled.Warnings)
}

func TestTaskRequestFromTemplate(t *testing.T) {
	env := newTestEnv(t)
	long := "Review {{system}} " + strings.Repeat("é", 600)
	d := env.create(t, domain.CreateDocumentRequest{
		Title:      "Quarterly access review",
		Category:   domain.CategoryTemplate,
		Content:    long,
		Tags:       []string{"security"},
		Visibility: []string{"admins"},
	})
	_, err := env.Svc.ConvertToTemplate(env.Ctx, d.ID, domain.TemplateData{}, "alice")
	require.NoError(t, err)

	req, err := env.Svc.TaskRequestFromTemplate(env.Ctx, d.ID, domain.FromTemplateTaskRequest{
		AssigneeID: "bob",
		StartDate:  "2024-06-01",
		DueDate:    "2024-06-30",
		Values:     map[string]string{"system": "billing"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Quarterly access review", req.ObjectiveID)
	assert.Equal(t, []string{knowledge.DefaultTemplateEvidence}, req.Evidence)
	assert.Equal(t, []string{"security", knowledge.TagFromTemplate}, req.Tags)
	assert.Equal(t, []string{"admins"}, req.Visibility)
	assert.Equal(t, []string{d.ID}, req.RelatedDocumentIDs)
	assert.Equal(t, "bob", req.AssigneeID)
	assert.Equal(t, "2024-06-01", req.StartDate)
	assert.Equal(t, "2024-06-30", req.DueDate)
	assert.True(t, strings.HasPrefix(req.Deliverable, "Review billing "))
	assert.Equal(t, knowledge.MaxTemplateDeliverable, utf8.RuneCountInString(req.Deliverable))
	assert.True(t, env.Svc.Validator.ValidateCreate(req).Valid())
}

func TestTaskRequestFromTemplateUsesDefaults(t *testing.T) {
	env := newTestEnv(t)
	d := env.create(t, domain.CreateDocumentRequest{
		Title:    "Release checklist",
		Category: domain.CategoryTemplate,
		Content:  "Ship {{version}}",
	})
	_, err := env.Svc.ConvertToTemplate(env.Ctx, d.ID, domain.TemplateData{DefaultValues: map[string]string{
		"evidence":  "release notes link",
		"objective": "obj-releases",
		"version":   "v1.0",
	}}, "alice")
	require.NoError(t, err)

	req, err := env.Svc.TaskRequestFromTemplate(env.Ctx, d.ID, domain.FromTemplateTaskRequest{AssigneeID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, "obj-releases", req.ObjectiveID)
	assert.Equal(t, []string{"release notes link"}, req.Evidence)
	assert.Equal(t, "Ship v1.0", req.Deliverable)
	assert.Equal(t, []string{knowledge.TagFromTemplate}, req.Tags)

	plain := env.create(t, onboarding())
	_, err = env.Svc.TaskRequestFromTemplate(env.Ctx, plain.ID, domain.FromTemplateTaskRequest{})
	assert.True(t, errors.Is(err, domain.ErrEntityNotFound))
}
