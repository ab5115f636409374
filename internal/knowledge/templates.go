package knowledge

import (
	"context"
	"slices"
	"strings"
	"time"

	"impactline/internal/domain"
	"impactline/internal/ontology"
)

const reasonConverted = "Converted to template"

// Templates lists published templates, optionally in one category.
func (s Service) Templates(ctx context.Context, category domain.DocumentCategory) ([]domain.Document, error) {
	return s.List(ctx, domain.DocumentFilter{
		Category:      category,
		Status:        domain.DocumentPublished,
		TemplatesOnly: true,
	})
}

// Template returns id only if it is marked as a template.
func (s Service) Template(ctx context.Context, id string) (domain.Document, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return domain.Document{}, err
	}
	if !d.IsTemplate {
		return domain.Document{}, domain.NotFoundError{Kind: "template", ID: id}
	}
	return d, nil
}

// Fill replaces {{name}} placeholders. Request values win over template
// defaults; placeholders with no value are left in place.
func Fill(content string, tmpl *domain.TemplateData, values map[string]string) string {
	names := ontology.ExtractPlaceholders(content)
	var defaults map[string]string
	if tmpl != nil {
		defaults = tmpl.DefaultValues
		if len(tmpl.Placeholders) > 0 {
			names = tmpl.Placeholders
		}
	}
	for _, name := range names {
		v := values[name]
		if v == "" {
			v = defaults[name]
		}
		if v != "" {
			content = strings.ReplaceAll(content, "{{"+name+"}}", v)
		}
	}
	return content
}

// CreateFromTemplate creates a draft document from a template and links
// back to it. Template quality warnings ride along on the outcome.
func (s Service) CreateFromTemplate(ctx context.Context, templateID string, req domain.FromTemplateRequest, actorID string) (Outcome, error) {
	tmpl, err := s.Template(ctx, templateID)
	if err != nil {
		return Outcome{}, err
	}
	title := req.Title
	if title == "" {
		title = tmpl.Title
	}
	category := req.Category
	if category == "" {
		category = tmpl.Category
	}
	tags := req.Tags
	if tags == nil {
		tags = tmpl.Tags
	}
	out, err := s.Apply(ctx, CreateIntent{Request: domain.CreateDocumentRequest{
		Title:              title,
		Category:           category,
		Content:            Fill(tmpl.Content, tmpl.Template, req.Values),
		Status:             domain.DocumentDraft,
		Visibility:         tmpl.Visibility,
		Tags:               tags,
		RelatedDocumentIDs: []string{templateID},
	}}, actorID)
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = append(out.Warnings, s.Validator.ValidateTemplate(tmpl).Warnings...)
	return out, nil
}

// ConvertToTemplate marks a document as a published template. Undeclared
// placeholders are taken from the content.
func (s Service) ConvertToTemplate(ctx context.Context, id string, data domain.TemplateData, actorID string) (Outcome, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return Outcome{}, err
	}
	if len(data.Placeholders) == 0 {
		data.Placeholders = ontology.ExtractPlaceholders(cur.Content)
	}
	yes, published := true, domain.DocumentPublished
	out, err := s.Apply(ctx, UpdateIntent{ID: id, Reason: reasonConverted, Patch: domain.DocumentPatch{
		IsTemplate: &yes,
		Template:   &data,
		Status:     &published,
	}}, actorID)
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = append(out.Warnings, s.Validator.ValidateTemplate(out.Document).Warnings...)
	return out, nil
}

const (
	// MaxTemplateDeliverable caps the deliverable taken from template content.
	MaxTemplateDeliverable  = 500
	DefaultTemplateEvidence = "To be provided upon completion"
	TagFromTemplate         = "from-template"
)

// TaskRequestFromTemplate builds a work item request from a template. The
// filled content becomes the deliverable; the evidence and objective
// defaults fall back to a stock phrase and the template title.
func (s Service) TaskRequestFromTemplate(ctx context.Context, id string, req domain.FromTemplateTaskRequest) (domain.CreateWorkItemRequest, error) {
	tmpl, err := s.Template(ctx, id)
	if err != nil {
		return domain.CreateWorkItemRequest{}, err
	}
	var defaults map[string]string
	if tmpl.Template != nil {
		defaults = tmpl.Template.DefaultValues
	}
	evidence := defaults["evidence"]
	if strings.TrimSpace(evidence) == "" {
		evidence = DefaultTemplateEvidence
	}
	objective := defaults["objective"]
	if strings.TrimSpace(objective) == "" {
		objective = tmpl.Title
	}
	deliverable := Fill(tmpl.Content, tmpl.Template, req.Values)
	if r := []rune(deliverable); len(r) > MaxTemplateDeliverable {
		deliverable = string(r[:MaxTemplateDeliverable])
	}
	tags := slices.Clone(tmpl.Tags)
	if !slices.Contains(tags, TagFromTemplate) {
		tags = append(tags, TagFromTemplate)
	}
	return domain.CreateWorkItemRequest{
		ObjectiveID:        objective,
		AssigneeID:         req.AssigneeID,
		StartDate:          req.StartDate,
		DueDate:            req.DueDate,
		Deliverable:        deliverable,
		Evidence:           []string{evidence},
		Visibility:         slices.Clone(tmpl.Visibility),
		Tags:               tags,
		RelatedDocumentIDs: []string{id},
	}, nil
}

type TemplateStats struct {
	Documents int        `json:"documents"`
	LastUsed  *time.Time `json:"last_used,omitempty"`
}

// TemplateStatsFor counts documents created from a template.
func (s Service) TemplateStatsFor(ctx context.Context, id string) (TemplateStats, error) {
	tmpl, err := s.Template(ctx, id)
	if err != nil {
		return TemplateStats{}, err
	}
	docs, err := s.List(ctx, domain.DocumentFilter{IncludeArchived: true})
	if err != nil {
		return TemplateStats{}, err
	}
	var stats TemplateStats
	for _, d := range docs {
		if d.ID != id && slices.Contains(d.RelatedDocumentIDs, id) {
			stats.Documents++
		}
	}
	stats.LastUsed = tmpl.LastViewedAt
	return stats, nil
}
