package domain

import "time"

type DocumentStatus string

const (
	DocumentDraft     DocumentStatus = "draft"
	DocumentPublished DocumentStatus = "published"
	DocumentArchived  DocumentStatus = "archived"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocumentDraft, DocumentPublished, DocumentArchived:
		return true
	}
	return false
}

type DocumentCategory string

const (
	CategoryProcess   DocumentCategory = "process"
	CategoryGuideline DocumentCategory = "guideline"
	CategoryPolicy    DocumentCategory = "policy"
	CategoryTutorial  DocumentCategory = "tutorial"
	CategoryReference DocumentCategory = "reference"
	CategoryTemplate  DocumentCategory = "template"
	CategoryOther     DocumentCategory = "other"
)

func (c DocumentCategory) Valid() bool {
	switch c {
	case CategoryProcess, CategoryGuideline, CategoryPolicy, CategoryTutorial,
		CategoryReference, CategoryTemplate, CategoryOther:
		return true
	}
	return false
}

type TemplateData struct {
	Placeholders   []string          `json:"placeholders"`
	DefaultValues  map[string]string `json:"default_values,omitempty"`
	RequiredFields []string          `json:"required_fields,omitempty"`
	Instructions   string            `json:"instructions,omitempty"`
}

type Document struct {
	ID                 string           `json:"id"`
	Title              string           `json:"title"`
	Category           DocumentCategory `json:"category" enum:"process,guideline,policy,tutorial,reference,template,other"`
	Content            string           `json:"content"`
	Version            int              `json:"version"`
	Status             DocumentStatus   `json:"status" enum:"draft,published,archived"`
	Visibility         []string         `json:"visibility"`
	IsTemplate         bool             `json:"is_template"`
	Template           *TemplateData    `json:"template,omitempty"`
	Tags               []string         `json:"tags"`
	RelatedItemIDs     []string         `json:"related_item_ids"`
	RelatedDocumentIDs []string         `json:"related_document_ids"`
	ViewCount          int              `json:"view_count"`
	LastViewedAt       *time.Time       `json:"last_viewed_at,omitempty" format:"date-time"`
	SearchKeywords     []string         `json:"search_keywords"`
	CreatedBy          string           `json:"created_by"`
	CreatedAt          time.Time        `json:"created_at" format:"date-time"`
	UpdatedBy          string           `json:"updated_by"`
	UpdatedAt          time.Time        `json:"updated_at" format:"date-time"`
}

// DocumentSnapshot is the versioned subset of a document.
type DocumentSnapshot struct {
	Title              string           `json:"title"`
	Category           DocumentCategory `json:"category"`
	Content            string           `json:"content"`
	Status             DocumentStatus   `json:"status"`
	Visibility         []string         `json:"visibility"`
	IsTemplate         bool             `json:"is_template"`
	Template           *TemplateData    `json:"template,omitempty"`
	Tags               []string         `json:"tags"`
	RelatedItemIDs     []string         `json:"related_item_ids"`
	RelatedDocumentIDs []string         `json:"related_document_ids"`
}

type VersionChangeType string

const (
	ChangeCreated          VersionChangeType = "created"
	ChangeContentUpdated   VersionChangeType = "content_updated"
	ChangeStatusChanged    VersionChangeType = "status_changed"
	ChangeMetadataUpdated  VersionChangeType = "metadata_updated"
	ChangeTemplateModified VersionChangeType = "template_modified"
	ChangeArchived         VersionChangeType = "archived"
)

type DocumentVersion struct {
	ID              string            `json:"id"`
	DocumentID      string            `json:"document_id"`
	Number          int               `json:"number"`
	ChangeType      VersionChangeType `json:"change_type" enum:"created,content_updated,status_changed,metadata_updated,template_modified,archived"`
	Snapshot        DocumentSnapshot  `json:"snapshot"`
	CreatedBy       string            `json:"created_by"`
	CreatedAt       time.Time         `json:"created_at" format:"date-time"`
	Reason          string            `json:"reason,omitempty"`
	PreviousVersion *int              `json:"previous_version,omitempty"`
	Changes         []string          `json:"changes"`
}

type CreateDocumentRequest struct {
	Title              string           `json:"title"`
	Category           DocumentCategory `json:"category"`
	Content            string           `json:"content"`
	Status             DocumentStatus   `json:"status,omitempty"`
	Visibility         []string         `json:"visibility,omitempty"`
	IsTemplate         bool             `json:"is_template,omitempty"`
	Template           *TemplateData    `json:"template,omitempty"`
	Tags               []string         `json:"tags,omitempty"`
	RelatedItemIDs     []string         `json:"related_item_ids,omitempty"`
	RelatedDocumentIDs []string         `json:"related_document_ids,omitempty"`
}

// DocumentPatch holds the fields present in an update. ClearTemplate
// removes template metadata; it wins over Template.
type DocumentPatch struct {
	Title              *string           `json:"title,omitempty"`
	Category           *DocumentCategory `json:"category,omitempty"`
	Content            *string           `json:"content,omitempty"`
	Status             *DocumentStatus   `json:"status,omitempty"`
	Visibility         *[]string         `json:"visibility,omitempty"`
	IsTemplate         *bool             `json:"is_template,omitempty"`
	Template           *TemplateData     `json:"template,omitempty"`
	ClearTemplate      bool              `json:"clear_template,omitempty"`
	Tags               *[]string         `json:"tags,omitempty"`
	RelatedItemIDs     *[]string         `json:"related_item_ids,omitempty"`
	RelatedDocumentIDs *[]string         `json:"related_document_ids,omitempty"`
}

type DocumentFilter struct {
	Category        DocumentCategory
	Status          DocumentStatus
	IncludeArchived bool
	TemplatesOnly   bool
	CreatedBy       string
	Tags            []string
	Query           string
	Limit           int
}

// FromTemplateRequest fills a template; Values override template defaults.
type FromTemplateRequest struct {
	Title    string            `json:"title"`
	Category DocumentCategory  `json:"category,omitempty"`
	Values   map[string]string `json:"values,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
}

// FromTemplateTaskRequest carries the task fields a template cannot supply.
type FromTemplateTaskRequest struct {
	AssigneeID string            `json:"assignee_id"`
	StartDate  string            `json:"start_date"`
	DueDate    string            `json:"due_date"`
	Values     map[string]string `json:"values,omitempty"`
}
