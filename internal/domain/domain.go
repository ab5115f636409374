package domain

import "time"

type WorkItemStatus string

const (
	StatusPending WorkItemStatus = "Pending"
	StatusActive  WorkItemStatus = "Active"
	StatusDone    WorkItemStatus = "Done"
)

// WorkItemStatuses lists every status in display order.
var WorkItemStatuses = []WorkItemStatus{StatusPending, StatusActive, StatusDone}

func (s WorkItemStatus) Valid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDone:
		return true
	}
	return false
}

type Reference struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Kind  string `json:"kind,omitempty" enum:"document,article,video,other"`
}

type WorkItem struct {
	ID                 string         `json:"id"`
	ObjectiveID        string         `json:"objective_id"`
	AssigneeID         string         `json:"assignee_id"`
	StartDate          time.Time      `json:"start_date" format:"date-time"`
	DueDate            time.Time      `json:"due_date" format:"date-time"`
	Status             WorkItemStatus `json:"status" enum:"Pending,Active,Done"`
	Deliverable        string         `json:"deliverable"`
	Evidence           []string       `json:"evidence"`
	Intent             string         `json:"intent,omitempty"`
	Version            int            `json:"version"`
	Visibility         []string       `json:"visibility"`
	Tags               []string       `json:"tags"`
	LinkedItemIDs      []string       `json:"linked_item_ids"`
	RelatedDocumentIDs []string       `json:"related_document_ids"`
	References         []Reference    `json:"references,omitempty"`
	CreatedBy          string         `json:"created_by"`
	CreatedAt          time.Time      `json:"created_at" format:"date-time"`
	LastModifiedBy     string         `json:"last_modified_by"`
	UpdatedAt          time.Time      `json:"updated_at" format:"date-time"`
	DeletedAt          *time.Time     `json:"deleted_at,omitempty" format:"date-time"`
	DeletedBy          string         `json:"deleted_by,omitempty"`
}

// Deleted reports whether the item sits in the trash.
func (w WorkItem) Deleted() bool { return w.DeletedAt != nil }

// Overdue reports whether the item is past due and not finished.
func (w WorkItem) Overdue(now time.Time) bool {
	return w.Status != StatusDone && w.DueDate.Before(now)
}

// CreateWorkItemRequest carries caller input; dates stay raw so the
// validator can report parse failures per field.
type CreateWorkItemRequest struct {
	ObjectiveID        string      `json:"objective_id"`
	AssigneeID         string      `json:"assignee_id"`
	StartDate          string      `json:"start_date"`
	DueDate            string      `json:"due_date"`
	Deliverable        string      `json:"deliverable"`
	Evidence           []string    `json:"evidence"`
	Intent             string      `json:"intent,omitempty"`
	Visibility         []string    `json:"visibility,omitempty"`
	Tags               []string    `json:"tags,omitempty"`
	LinkedItemIDs      []string    `json:"linked_item_ids,omitempty"`
	RelatedDocumentIDs []string    `json:"related_document_ids,omitempty"`
	References         []Reference `json:"references,omitempty"`
}

// WorkItemPatch holds the fields present in an update; nil means absent.
type WorkItemPatch struct {
	ObjectiveID        *string         `json:"objective_id,omitempty"`
	AssigneeID         *string         `json:"assignee_id,omitempty"`
	StartDate          *string         `json:"start_date,omitempty"`
	DueDate            *string         `json:"due_date,omitempty"`
	Status             *WorkItemStatus `json:"status,omitempty"`
	Deliverable        *string         `json:"deliverable,omitempty"`
	Evidence           *[]string       `json:"evidence,omitempty"`
	Intent             *string         `json:"intent,omitempty"`
	Visibility         *[]string       `json:"visibility,omitempty"`
	Tags               *[]string       `json:"tags,omitempty"`
	LinkedItemIDs      *[]string       `json:"linked_item_ids,omitempty"`
	RelatedDocumentIDs *[]string       `json:"related_document_ids,omitempty"`
	References         *[]Reference    `json:"references,omitempty"`
}

type WorkItemFilter struct {
	AssigneeID  string
	ObjectiveID string
	Status      WorkItemStatus
	CreatedBy   string
	Tags        []string
	DueBefore   *time.Time
	DueAfter    *time.Time
	Limit       int
}

type WorkItemStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Active  int `json:"active"`
	Done    int `json:"done"`
	Overdue int `json:"overdue"`
}

// Actor identifies who performs a mutation and from where.
type Actor struct {
	ID       string          `json:"id"`
	Metadata RequestMetadata `json:"metadata"`
}

type RequestMetadata struct {
	OriginAddress string `json:"origin_address,omitempty"`
	ClientID      string `json:"client_id,omitempty"`
}
