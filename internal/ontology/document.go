package ontology

import (
	"strings"
	"unicode/utf8"

	"impactline/internal/domain"
)

// ValidateDocumentCreate checks a new knowledge document.
func (v Validator) ValidateDocumentCreate(req domain.CreateDocumentRequest) Result {
	var r Result
	if blank(req.Title) {
		r.add("title", domain.CodeRequiredField, "title is required")
	} else {
		v.checkTitleLength(&r, req.Title)
	}
	if req.Category == "" {
		r.add("category", domain.CodeRequiredField, "category is required")
	} else if !req.Category.Valid() {
		r.add("category", domain.CodeInvalidCategory, "unknown category %q", req.Category)
	}
	if blank(req.Content) {
		r.add("content", domain.CodeRequiredField, "content is required")
	}
	if req.Status != "" && !req.Status.Valid() {
		r.add("status", domain.CodeInvalidStatus, "unknown status %q", req.Status)
	}
	if req.IsTemplate && req.Template == nil {
		r.warn("template documents should include template metadata")
	}
	if req.Visibility != nil && len(req.Visibility) == 0 {
		r.warn("empty visibility; document will not be visible to anyone")
	}
	v.checkTags(&r, req.Tags)
	return r
}

// ValidateDocumentUpdate checks the fields present in a document patch.
func (v Validator) ValidateDocumentUpdate(patch domain.DocumentPatch) Result {
	var r Result
	if patch.Title != nil {
		if blank(*patch.Title) {
			r.add("title", domain.CodeRequiredField, "title cannot be empty")
		} else {
			v.checkTitleLength(&r, *patch.Title)
		}
	}
	if patch.Category != nil && !patch.Category.Valid() {
		r.add("category", domain.CodeInvalidCategory, "unknown category %q", *patch.Category)
	}
	if patch.Content != nil && blank(*patch.Content) {
		r.add("content", domain.CodeRequiredField, "content cannot be empty")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		r.add("status", domain.CodeInvalidStatus, "unknown status %q", *patch.Status)
	}
	if patch.IsTemplate != nil && *patch.IsTemplate && patch.Template == nil {
		r.warn("template documents should include template metadata")
	}
	if patch.Visibility != nil && len(*patch.Visibility) == 0 {
		r.warn("empty visibility; document will not be visible to anyone")
	}
	if patch.Tags != nil {
		v.checkTags(&r, *patch.Tags)
	}
	return r
}

func (v Validator) checkTitleLength(r *Result, title string) {
	limit := v.Limits.MaxTitleLength
	if limit > 0 && utf8.RuneCountInString(title) > limit {
		r.add("title", domain.CodeMaxLength, "title must be %d characters or less", limit)
	}
}

func (v Validator) checkTags(r *Result, tags []string) {
	for _, tag := range tags {
		if strings.TrimSpace(tag) == "" {
			r.add("tags", domain.CodeInvalidTag, "tags cannot be empty strings")
			return
		}
	}
}
