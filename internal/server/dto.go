package server

import (
	"time"

	"impactline/internal/domain"
)

// Request payloads. Fields stay optional in the schema so the ontology,
// not the router, reports missing values.

type CreateTaskRequest struct {
	ObjectiveID        string             `json:"objective_id,omitempty"`
	AssigneeID         string             `json:"assignee_id,omitempty"`
	StartDate          string             `json:"start_date,omitempty"`
	DueDate            string             `json:"due_date,omitempty"`
	Deliverable        string             `json:"deliverable,omitempty"`
	Evidence           []string           `json:"evidence,omitempty"`
	Intent             string             `json:"intent,omitempty"`
	Visibility         []string           `json:"visibility,omitempty"`
	Tags               []string           `json:"tags,omitempty"`
	LinkedItemIDs      []string           `json:"linked_item_ids,omitempty"`
	RelatedDocumentIDs []string           `json:"related_document_ids,omitempty"`
	References         []domain.Reference `json:"references,omitempty"`
}

func (r CreateTaskRequest) toDomain() domain.CreateWorkItemRequest {
	return domain.CreateWorkItemRequest{
		ObjectiveID:        r.ObjectiveID,
		AssigneeID:         r.AssigneeID,
		StartDate:          r.StartDate,
		DueDate:            r.DueDate,
		Deliverable:        r.Deliverable,
		Evidence:           r.Evidence,
		Intent:             r.Intent,
		Visibility:         r.Visibility,
		Tags:               r.Tags,
		LinkedItemIDs:      r.LinkedItemIDs,
		RelatedDocumentIDs: r.RelatedDocumentIDs,
		References:         r.References,
	}
}

type UpdateTaskRequest struct {
	domain.WorkItemPatch
	Reason string `json:"reason,omitempty"`
}

type LinkTaskRequest struct {
	TaskID string `json:"task_id"`
}

type CreateObjectiveRequest struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

func (r CreateObjectiveRequest) toDomain() domain.CreateObjectiveRequest {
	return domain.CreateObjectiveRequest{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		OwnerID:     r.OwnerID,
		Tags:        r.Tags,
		DueDate:     r.DueDate,
	}
}

type CreateDocumentRequest struct {
	Title              string               `json:"title,omitempty"`
	Category           string               `json:"category,omitempty"`
	Content            string               `json:"content,omitempty"`
	Status             string               `json:"status,omitempty"`
	Visibility         []string             `json:"visibility,omitempty"`
	IsTemplate         bool                 `json:"is_template,omitempty"`
	Template           *TemplateDataRequest `json:"template,omitempty"`
	Tags               []string             `json:"tags,omitempty"`
	RelatedItemIDs     []string             `json:"related_item_ids,omitempty"`
	RelatedDocumentIDs []string             `json:"related_document_ids,omitempty"`
}

func (r CreateDocumentRequest) toDomain() domain.CreateDocumentRequest {
	return domain.CreateDocumentRequest{
		Title:              r.Title,
		Category:           domain.DocumentCategory(r.Category),
		Content:            r.Content,
		Status:             domain.DocumentStatus(r.Status),
		Visibility:         r.Visibility,
		IsTemplate:         r.IsTemplate,
		Template:           r.Template.toDomain(),
		Tags:               r.Tags,
		RelatedItemIDs:     r.RelatedItemIDs,
		RelatedDocumentIDs: r.RelatedDocumentIDs,
	}
}

type UpdateDocumentRequest struct {
	domain.DocumentPatch
	Reason string `json:"reason,omitempty"`
}

type TemplateDataRequest struct {
	Placeholders   []string          `json:"placeholders,omitempty"`
	DefaultValues  map[string]string `json:"default_values,omitempty"`
	RequiredFields []string          `json:"required_fields,omitempty"`
	Instructions   string            `json:"instructions,omitempty"`
}

func (r *TemplateDataRequest) toDomain() *domain.TemplateData {
	if r == nil {
		return nil
	}
	return &domain.TemplateData{
		Placeholders:   r.Placeholders,
		DefaultValues:  r.DefaultValues,
		RequiredFields: r.RequiredFields,
		Instructions:   r.Instructions,
	}
}

type FromTemplateRequest struct {
	Title    string            `json:"title,omitempty"`
	Category string            `json:"category,omitempty"`
	Values   map[string]string `json:"values,omitempty"`
	Tags     []string          `json:"tags,omitempty"`
}

func (r FromTemplateRequest) toDomain() domain.FromTemplateRequest {
	return domain.FromTemplateRequest{
		Title:    r.Title,
		Category: domain.DocumentCategory(r.Category),
		Values:   r.Values,
		Tags:     r.Tags,
	}
}

type TaskFromTemplateRequest struct {
	AssigneeID string            `json:"assignee_id,omitempty"`
	StartDate  string            `json:"start_date,omitempty"`
	DueDate    string            `json:"due_date,omitempty"`
	Values     map[string]string `json:"values,omitempty"`
}

func (r TaskFromTemplateRequest) toDomain() domain.FromTemplateTaskRequest {
	return domain.FromTemplateTaskRequest{
		AssigneeID: r.AssigneeID,
		StartDate:  r.StartDate,
		DueDate:    r.DueDate,
		Values:     r.Values,
	}
}

type RestoreVersionRequest struct {
	Version int `json:"version"`
}

type DevLoginRequest struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles,omitempty"`
}

// Response payloads

type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func listOf[T any](items []T) ListResponse[T] {
	items = nonNilSlice(items)
	return ListResponse[T]{Items: items, Count: len(items)}
}

type CountResponse struct {
	Count int `json:"count"`
}

type GroupedTasksResponse struct {
	Pending []domain.WorkItem `json:"pending"`
	Active  []domain.WorkItem `json:"active"`
	Done    []domain.WorkItem `json:"done"`
}

func groupedResponse(groups map[domain.WorkItemStatus][]domain.WorkItem) GroupedTasksResponse {
	return GroupedTasksResponse{
		Pending: nonNilSlice(groups[domain.StatusPending]),
		Active:  nonNilSlice(groups[domain.StatusActive]),
		Done:    nonNilSlice(groups[domain.StatusDone]),
	}
}

type WhoAmIResponse struct {
	ActorID string   `json:"actor_id"`
	Roles   []string `json:"roles"`
	Source  string   `json:"source"`
}

type DevLoginResponse struct {
	Token string `json:"token"`
}
