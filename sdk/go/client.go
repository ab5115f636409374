package impactlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Impactline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	// ActorID is sent as X-Actor-Id when no token is set; servers accept
	// it only when the legacy header is enabled.
	ActorID    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "v0",
		Timeout:  10 * time.Second,
	}
}

// Task represents the API work item model (partial).
type Task struct {
	ID             string     `json:"id"`
	ObjectiveID    string     `json:"objective_id"`
	AssigneeID     string     `json:"assignee_id"`
	StartDate      time.Time  `json:"start_date"`
	DueDate        time.Time  `json:"due_date"`
	Status         string     `json:"status"`
	Deliverable    string     `json:"deliverable"`
	Evidence       []string   `json:"evidence"`
	Version        int        `json:"version"`
	LinkedItemIDs  []string   `json:"linked_item_ids"`
	CreatedBy      string     `json:"created_by"`
	LastModifiedBy string     `json:"last_modified_by"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// NewTask is the create payload.
type NewTask struct {
	ObjectiveID string   `json:"objective_id"`
	AssigneeID  string   `json:"assignee_id"`
	StartDate   string   `json:"start_date"`
	DueDate     string   `json:"due_date"`
	Deliverable string   `json:"deliverable"`
	Evidence    []string `json:"evidence"`
	Tags        []string `json:"tags,omitempty"`
}

// AuditEntry represents one immutable history record.
type AuditEntry struct {
	ID            string          `json:"id"`
	ItemID        string          `json:"item_id"`
	Timestamp     time.Time       `json:"timestamp"`
	ActorID       string          `json:"actor_id"`
	Action        string          `json:"action"`
	PreviousState json.RawMessage `json:"previous_state"`
	NewState      json.RawMessage `json:"new_state"`
	Reason        string          `json:"reason,omitempty"`
}

// Document represents a knowledge document (partial).
type Document struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Content  string `json:"content"`
	Status   string `json:"status"`
	Version  int    `json:"version"`
}

// DocumentVersion represents one entry of a document's version chain.
type DocumentVersion struct {
	Number     int      `json:"number"`
	ChangeType string   `json:"change_type"`
	Reason     string   `json:"reason,omitempty"`
	Changes    []string `json:"changes"`
}

type list[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateTask creates a work item in Pending.
func (c *Client) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, c.path("tasks"), in, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, c.path("tasks", id), nil, &resp)
	return resp, err
}

// SetTaskStatus updates only the status, recording reason in the audit trail.
func (c *Client) SetTaskStatus(ctx context.Context, id, status, reason string) (Task, error) {
	body := map[string]any{"status": status}
	if reason != "" {
		body["reason"] = reason
	}
	var resp Task
	err := c.do(ctx, http.MethodPatch, c.path("tasks", id), body, &resp)
	return resp, err
}

// DeleteTask moves a task to the trash.
func (c *Client) DeleteTask(ctx context.Context, id, reason string) (Task, error) {
	endpoint := c.path("tasks", id)
	if reason != "" {
		endpoint += "?reason=" + url.QueryEscape(reason)
	}
	var resp Task
	err := c.do(ctx, http.MethodDelete, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) RestoreTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, c.path("tasks", id, "restore"), nil, &resp)
	return resp, err
}

// TaskHistory returns the audit trail of a task, newest first.
func (c *Client) TaskHistory(ctx context.Context, id string) ([]AuditEntry, error) {
	var resp list[AuditEntry]
	err := c.do(ctx, http.MethodGet, c.path("tasks", id, "history"), nil, &resp)
	return resp.Items, err
}

// RecentAudit returns the newest audit entries across all tasks.
func (c *Client) RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	endpoint := c.path("audit", "recent")
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp list[AuditEntry]
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) CreateDocument(ctx context.Context, title, category, content string) (Document, error) {
	body := map[string]any{
		"title":    title,
		"category": category,
		"content":  content,
	}
	var resp Document
	err := c.do(ctx, http.MethodPost, c.path("documents"), body, &resp)
	return resp, err
}

// UpdateDocumentContent writes a new content version.
func (c *Client) UpdateDocumentContent(ctx context.Context, id, content, reason string) (Document, error) {
	body := map[string]any{"content": content}
	if reason != "" {
		body["reason"] = reason
	}
	var resp Document
	err := c.do(ctx, http.MethodPatch, c.path("documents", id), body, &resp)
	return resp, err
}

// DocumentVersions lists a document's versions, newest first.
func (c *Client) DocumentVersions(ctx context.Context, id string) ([]DocumentVersion, error) {
	var resp list[DocumentVersion]
	err := c.do(ctx, http.MethodGet, c.path("documents", id, "versions"), nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.ActorID != "":
		req.Header.Set("X-Actor-Id", c.ActorID)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) path(parts ...string) string {
	escaped := make([]string, 0, len(parts)+1)
	if bp := strings.Trim(c.BasePath, "/"); bp != "" {
		escaped = append(escaped, bp)
	}
	for _, p := range parts {
		escaped = append(escaped, url.PathEscape(p))
	}
	return strings.Join(escaped, "/")
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
