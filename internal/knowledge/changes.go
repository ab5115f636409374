package knowledge

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"impactline/internal/domain"
)

const keywordContentRunes = 500

// Keywords derives the search keyword set: title words over two characters,
// words over three characters from the start of the content, and every tag.
func Keywords(title, content string, tags []string) []string {
	out := []string{}
	add := func(w string) {
		if !slices.Contains(out, w) {
			out = append(out, w)
		}
	}
	for _, w := range strings.Fields(strings.ToLower(title)) {
		if len([]rune(w)) > 2 {
			add(w)
		}
	}
	preview := []rune(content)
	if len(preview) > keywordContentRunes {
		preview = preview[:keywordContentRunes]
	}
	for _, w := range strings.Fields(strings.ToLower(string(preview))) {
		if len([]rune(w)) > 3 {
			add(w)
		}
	}
	for _, t := range tags {
		add(strings.ToLower(t))
	}
	return out
}

func Snapshot(d domain.Document) domain.DocumentSnapshot {
	return domain.DocumentSnapshot{
		Title:              d.Title,
		Category:           d.Category,
		Content:            d.Content,
		Status:             d.Status,
		Visibility:         d.Visibility,
		IsTemplate:         d.IsTemplate,
		Template:           d.Template,
		Tags:               d.Tags,
		RelatedItemIDs:     d.RelatedItemIDs,
		RelatedDocumentIDs: d.RelatedDocumentIDs,
	}
}

// patchFrom turns a snapshot into a patch that reproduces it exactly.
func patchFrom(s domain.DocumentSnapshot) domain.DocumentPatch {
	p := domain.DocumentPatch{
		Title:              &s.Title,
		Category:           &s.Category,
		Content:            &s.Content,
		Status:             &s.Status,
		Visibility:         &s.Visibility,
		IsTemplate:         &s.IsTemplate,
		Template:           s.Template,
		Tags:               &s.Tags,
		RelatedItemIDs:     &s.RelatedItemIDs,
		RelatedDocumentIDs: &s.RelatedDocumentIDs,
	}
	if s.Template == nil {
		p.ClearTemplate = true
	}
	return p
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func merge(cur domain.Document, p domain.DocumentPatch) domain.Document {
	next := cur
	if p.Title != nil {
		next.Title = *p.Title
	}
	if p.Category != nil {
		next.Category = *p.Category
	}
	if p.Content != nil {
		next.Content = *p.Content
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Visibility != nil {
		next.Visibility = orEmpty(*p.Visibility)
	}
	if p.IsTemplate != nil {
		next.IsTemplate = *p.IsTemplate
	}
	if p.Template != nil {
		t := *p.Template
		next.Template = &t
	}
	if p.ClearTemplate {
		next.Template = nil
	}
	if p.Tags != nil {
		next.Tags = orEmpty(*p.Tags)
	}
	if p.RelatedItemIDs != nil {
		next.RelatedItemIDs = orEmpty(*p.RelatedItemIDs)
	}
	if p.RelatedDocumentIDs != nil {
		next.RelatedDocumentIDs = orEmpty(*p.RelatedDocumentIDs)
	}
	if p.Title != nil || p.Content != nil || p.Tags != nil {
		next.SearchKeywords = Keywords(next.Title, next.Content, next.Tags)
	}
	return next
}

// Classify picks the version change type. Status wins over the template
// flag, which wins over metadata; anything else is a content update.
func Classify(cur, next domain.Document) domain.VersionChangeType {
	switch {
	case cur.Status != next.Status && next.Status == domain.DocumentArchived:
		return domain.ChangeArchived
	case cur.Status != next.Status:
		return domain.ChangeStatusChanged
	case cur.IsTemplate != next.IsTemplate:
		return domain.ChangeTemplateModified
	case !slices.Equal(cur.Tags, next.Tags),
		!slices.Equal(cur.RelatedItemIDs, next.RelatedItemIDs),
		!slices.Equal(cur.RelatedDocumentIDs, next.RelatedDocumentIDs),
		!slices.Equal(cur.Visibility, next.Visibility):
		return domain.ChangeMetadataUpdated
	}
	return domain.ChangeContentUpdated
}

// Summarize lists human-readable changes between two snapshots.
func Summarize(old, next domain.DocumentSnapshot) []string {
	changes := []string{}
	if old.Title != next.Title {
		changes = append(changes, fmt.Sprintf("Title changed from %q to %q", old.Title, next.Title))
	}
	if old.Category != next.Category {
		changes = append(changes, fmt.Sprintf("Category changed from %q to %q", old.Category, next.Category))
	}
	if old.Content != next.Content {
		changes = append(changes, "Content updated")
	}
	if old.Status != next.Status {
		changes = append(changes, fmt.Sprintf("Status changed from %q to %q", old.Status, next.Status))
	}
	if !slices.Equal(old.Tags, next.Tags) {
		changes = append(changes, "Tags modified")
	}
	if !slices.Equal(old.RelatedItemIDs, next.RelatedItemIDs) {
		changes = append(changes, "Related tasks updated")
	}
	if !slices.Equal(old.RelatedDocumentIDs, next.RelatedDocumentIDs) {
		changes = append(changes, "Related documents updated")
	}
	switch {
	case old.IsTemplate != next.IsTemplate && next.IsTemplate:
		changes = append(changes, "Converted to template")
	case old.IsTemplate != next.IsTemplate:
		changes = append(changes, "Template status removed")
	case !reflect.DeepEqual(old.Template, next.Template):
		changes = append(changes, "Template settings updated")
	}
	if !slices.Equal(old.Visibility, next.Visibility) {
		changes = append(changes, "Visibility settings updated")
	}
	return changes
}
