package domain

import "time"

type ObjectiveStatus string

const (
	ObjectiveActive    ObjectiveStatus = "active"
	ObjectiveCompleted ObjectiveStatus = "completed"
	ObjectiveArchived  ObjectiveStatus = "archived"
)

func (s ObjectiveStatus) Valid() bool {
	switch s {
	case ObjectiveActive, ObjectiveCompleted, ObjectiveArchived:
		return true
	}
	return false
}

type Objective struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	OwnerID     string          `json:"owner_id"`
	Status      ObjectiveStatus `json:"status" enum:"active,completed,archived"`
	MemberIDs   []string        `json:"member_ids"`
	Tags        []string        `json:"tags"`
	DueDate     *time.Time      `json:"due_date,omitempty" format:"date-time"`
	CreatedBy   string          `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at" format:"date-time"`
	UpdatedAt   time.Time       `json:"updated_at" format:"date-time"`
}

type CreateObjectiveRequest struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	OwnerID     string     `json:"owner_id"`
	Tags        []string   `json:"tags,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
}

type ObjectivePatch struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	OwnerID     *string          `json:"owner_id,omitempty"`
	Status      *ObjectiveStatus `json:"status,omitempty"`
	Tags        *[]string        `json:"tags,omitempty"`
	DueDate     *time.Time       `json:"due_date,omitempty"`
}

type ObjectiveFilter struct {
	OwnerID string
	Status  ObjectiveStatus
	Tags    []string
}

type ObjectiveStats struct {
	ObjectiveID string        `json:"objective_id"`
	Members     int           `json:"members"`
	Items       WorkItemStats `json:"items"`
}
