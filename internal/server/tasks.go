package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"impactline/internal/app"
	"impactline/internal/domain"
	"impactline/internal/engine"
)

type taskPath struct {
	ID string `path:"id"`
}

type taskOutput struct {
	Warnings string          `header:"X-Impactline-Warnings"`
	Body     domain.WorkItem `json:"body"`
}

type taskFilterQuery struct {
	AssigneeID  string `query:"assignee_id"`
	ObjectiveID string `query:"objective_id"`
	Status      string `query:"status"`
	CreatedBy   string `query:"created_by"`
	Tags        string `query:"tags" doc:"Comma-separated; any match"`
	DueBefore   string `query:"due_before"`
	DueAfter    string `query:"due_after"`
	Limit       int    `query:"limit"`
}

func (q taskFilterQuery) filter() (domain.WorkItemFilter, huma.StatusError) {
	f := domain.WorkItemFilter{
		AssigneeID:  q.AssigneeID,
		ObjectiveID: q.ObjectiveID,
		Status:      domain.WorkItemStatus(q.Status),
		CreatedBy:   q.CreatedBy,
		Tags:        splitList(q.Tags),
		Limit:       q.Limit,
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, newAPIError(http.StatusBadRequest, "bad_request", "invalid status", map[string]any{"field": "status", "value": q.Status})
	}
	var err huma.StatusError
	if f.DueBefore, err = parseTime("due_before", q.DueBefore); err != nil {
		return f, err
	}
	if f.DueAfter, err = parseTime("due_after", q.DueAfter); err != nil {
		return f, err
	}
	return f, nil
}

var taskMutationErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusNotFound,
	http.StatusUnprocessableEntity,
	http.StatusServiceUnavailable,
	http.StatusInternalServerError,
}

// applyTask runs a work item intent for the request actor.
func applyTask(ctx context.Context, a *app.App, in engine.Intent) (*taskOutput, error) {
	actor, authErr := requestActor(ctx)
	if authErr != nil {
		return nil, authErr
	}
	out, err := a.Engine.Apply(ctx, in, actor)
	if err != nil {
		return nil, handleError(a.Log, err)
	}
	res := &taskOutput{Warnings: strings.Join(out.Warnings, "; ")}
	if out.Item != nil {
		res.Body = *out.Item
	}
	return res, nil
}

func registerTasks(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		return applyTask(ctx, a, engine.CreateIntent{Request: input.Body.toDomain()})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List live tasks, newest first",
	}, func(ctx context.Context, input *taskFilterQuery) (*struct {
		Body ListResponse[domain.WorkItem] `json:"body"`
	}, error) {
		f, qerr := input.filter()
		if qerr != nil {
			return nil, qerr
		}
		items, err := a.Engine.List(ctx, f)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body ListResponse[domain.WorkItem] `json:"body"`
		}{Body: listOf(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-trash",
		Method:      http.MethodGet,
		Path:        "/tasks/trash",
		Summary:     "List soft-deleted tasks, newest deletion first",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ListResponse[domain.WorkItem] `json:"body"`
	}, error) {
		items, err := a.Engine.Trash(ctx)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body ListResponse[domain.WorkItem] `json:"body"`
		}{Body: listOf(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-stats",
		Method:      http.MethodGet,
		Path:        "/tasks/stats",
		Summary:     "Counts by status plus overdue",
	}, func(ctx context.Context, input *taskFilterQuery) (*struct {
		Body domain.WorkItemStats `json:"body"`
	}, error) {
		f, qerr := input.filter()
		if qerr != nil {
			return nil, qerr
		}
		stats, err := a.Engine.Stats(ctx, f)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body domain.WorkItemStats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-overdue",
		Method:      http.MethodGet,
		Path:        "/tasks/overdue",
		Summary:     "List overdue tasks by due date",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ListResponse[domain.WorkItem] `json:"body"`
	}, error) {
		items, err := a.Engine.Overdue(ctx)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body ListResponse[domain.WorkItem] `json:"body"`
		}{Body: listOf(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "group-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks/grouped",
		Summary:     "Live tasks grouped by status",
	}, func(ctx context.Context, input *taskFilterQuery) (*struct {
		Body GroupedTasksResponse `json:"body"`
	}, error) {
		f, qerr := input.filter()
		if qerr != nil {
			return nil, qerr
		}
		groups, err := a.Engine.GroupedByStatus(ctx, f)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body GroupedTasksResponse `json:"body"`
		}{Body: groupedResponse(groups)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task, including trashed ones",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body domain.WorkItem `json:"body"`
	}, error) {
		item, err := a.Engine.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body domain.WorkItem `json:"body"`
		}{Body: item}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task fields",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		return applyTask(ctx, a, engine.UpdateIntent{ID: input.ID, Patch: input.Body.WorkItemPatch, Reason: input.Body.Reason})
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Move task to trash",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Reason string `query:"reason"`
	}) (*taskOutput, error) {
		return applyTask(ctx, a, engine.SoftDeleteIntent{ID: input.ID, Reason: input.Reason})
	})

	huma.Register(api, huma.Operation{
		OperationID: "restore-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/restore",
		Summary:     "Restore task from trash",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *taskPath) (*taskOutput, error) {
		return applyTask(ctx, a, engine.RestoreIntent{ID: input.ID})
	})

	huma.Register(api, huma.Operation{
		OperationID:   "purge-task",
		Method:        http.MethodDelete,
		Path:          "/tasks/{id}/permanent",
		Summary:       "Permanently delete task; history is kept",
		DefaultStatus: http.StatusNoContent,
		Errors:        taskMutationErrors,
	}, func(ctx context.Context, input *taskPath) (*struct{}, error) {
		if _, err := applyTask(ctx, a, engine.PermanentDeleteIntent{ID: input.ID}); err != nil {
			return nil, err
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "link-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/links",
		Summary:     "Link another task",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body LinkTaskRequest `json:"body"`
	}) (*taskOutput, error) {
		return applyTask(ctx, a, engine.LinkIntent{ID: input.ID, OtherID: input.Body.TaskID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "unlink-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}/links/{other_id}",
		Summary:     "Unlink another task",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID      string `path:"id"`
		OtherID string `path:"other_id"`
	}) (*taskOutput, error) {
		return applyTask(ctx, a, engine.UnlinkIntent{ID: input.ID, OtherID: input.OtherID})
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-history",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/history",
		Summary:     "Audit trail for a task, newest first",
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body ListResponse[domain.AuditEntry] `json:"body"`
	}, error) {
		return &struct {
			Body ListResponse[domain.AuditEntry] `json:"body"`
		}{Body: listOf(a.Engine.History(ctx, input.ID))}, nil
	})
}
