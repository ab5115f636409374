package ontology

import (
	"regexp"
	"slices"

	"impactline/internal/domain"
)

var placeholderPattern = regexp.MustCompile(`{{(\w+)}}`)

// ExtractPlaceholders returns the distinct {{name}} placeholders in order of
// first appearance.
func ExtractPlaceholders(content string) []string {
	out := []string{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(content, -1) {
		if !slices.Contains(out, m[1]) {
			out = append(out, m[1])
		}
	}
	return out
}

// ValidateTemplate checks that a document is usable as a template.
func (v Validator) ValidateTemplate(doc domain.Document) Result {
	var r Result
	if !doc.IsTemplate {
		r.add("is_template", domain.CodeRequiredField, "document %s is not marked as a template", doc.ID)
	}
	if doc.Template == nil {
		r.warn("template has no template metadata")
	} else {
		used := ExtractPlaceholders(doc.Content)
		if len(used) > 0 && len(doc.Template.Placeholders) == 0 {
			r.warn("content contains placeholders but none are declared: %v", used)
		}
		for _, p := range doc.Template.Placeholders {
			if !slices.Contains(used, p) {
				r.warn("declared placeholder %q not found in content", p)
			}
		}
	}
	if doc.Status != domain.DocumentPublished {
		r.warn("template is not published and will not be offered")
	}
	return r
}
