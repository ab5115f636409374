package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"impactline/internal/app"
	"impactline/internal/domain"
	"impactline/internal/engine"
	"impactline/internal/knowledge"
)

type documentPath struct {
	ID string `path:"id"`
}

type documentOutput struct {
	Warnings string          `header:"X-Impactline-Warnings"`
	Body     domain.Document `json:"body"`
}

func applyDocument(ctx context.Context, a *app.App, in knowledge.Intent) (*documentOutput, error) {
	actorID, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	out, err := a.Knowledge.Apply(ctx, in, actorID)
	if err != nil {
		return nil, handleError(a.Log, err)
	}
	return &documentOutput{Warnings: strings.Join(out.Warnings, "; "), Body: out.Document}, nil
}

// documentOutcome adapts the knowledge helpers that return a full outcome.
func documentOutcome(ctx context.Context, a *app.App, fn func(actorID string) (knowledge.Outcome, error)) (*documentOutput, error) {
	actorID, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	out, err := fn(actorID)
	if err != nil {
		return nil, handleError(a.Log, err)
	}
	return &documentOutput{Warnings: strings.Join(out.Warnings, "; "), Body: out.Document}, nil
}

// documentCall adapts the knowledge helpers that return only a document.
func documentCall(ctx context.Context, a *app.App, fn func(actorID string) (domain.Document, error)) (*documentOutput, error) {
	actorID, authErr := actorIDFromContext(ctx)
	if authErr != nil {
		return nil, authErr
	}
	d, err := fn(actorID)
	if err != nil {
		return nil, handleError(a.Log, err)
	}
	return &documentOutput{Body: d}, nil
}

func registerDocuments(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-document",
		Method:        http.MethodPost,
		Path:          "/documents",
		Summary:       "Create document at version 1",
		DefaultStatus: http.StatusCreated,
		Errors:        taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateDocumentRequest `json:"body"`
	}) (*documentOutput, error) {
		return applyDocument(ctx, a, knowledge.CreateIntent{Request: input.Body.toDomain()})
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-documents",
		Method:      http.MethodGet,
		Path:        "/documents",
		Summary:     "List documents, most recently updated first",
	}, func(ctx context.Context, input *struct {
		Category        string `query:"category"`
		Status          string `query:"status"`
		IncludeArchived bool   `query:"include_archived"`
		TemplatesOnly   bool   `query:"templates_only"`
		CreatedBy       string `query:"created_by"`
		Tags            string `query:"tags" doc:"Comma-separated; any match"`
		Query           string `query:"q" doc:"Case-insensitive substring over title and content"`
		Limit           int    `query:"limit"`
	}) (*struct {
		Body ListResponse[domain.Document] `json:"body"`
	}, error) {
		docs, err := a.Knowledge.List(ctx, domain.DocumentFilter{
			Category:        domain.DocumentCategory(input.Category),
			Status:          domain.DocumentStatus(input.Status),
			IncludeArchived: input.IncludeArchived,
			TemplatesOnly:   input.TemplatesOnly,
			CreatedBy:       input.CreatedBy,
			Tags:            splitList(input.Tags),
			Query:           input.Query,
			Limit:           input.Limit,
		})
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body ListResponse[domain.Document] `json:"body"`
		}{Body: listOf(docs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document",
		Method:      http.MethodGet,
		Path:        "/documents/{id}",
		Summary:     "Get document",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		d, err := a.Knowledge.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-document",
		Method:      http.MethodPatch,
		Path:        "/documents/{id}",
		Summary:     "Update document; writes one version",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body UpdateDocumentRequest `json:"body"`
	}) (*documentOutput, error) {
		return applyDocument(ctx, a, knowledge.UpdateIntent{ID: input.ID, Patch: input.Body.DocumentPatch, Reason: input.Body.Reason})
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-document",
		Method:      http.MethodDelete,
		Path:        "/documents/{id}",
		Summary:     "Archive document",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *documentPath) (*documentOutput, error) {
		return applyDocument(ctx, a, knowledge.ArchiveIntent{ID: input.ID})
	})

	huma.Register(api, huma.Operation{
		OperationID:   "view-document",
		Method:        http.MethodPost,
		Path:          "/documents/{id}/views",
		Summary:       "Record a document view",
		DefaultStatus: http.StatusNoContent,
		Errors:        []int{http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct{}, error) {
		if err := a.Knowledge.RecordView(ctx, input.ID); err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-document-versions",
		Method:      http.MethodGet,
		Path:        "/documents/{id}/versions",
		Summary:     "Version chain, newest first",
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body ListResponse[domain.DocumentVersion] `json:"body"`
	}, error) {
		versions, err := a.Knowledge.Versions(ctx, input.ID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body ListResponse[domain.DocumentVersion] `json:"body"`
		}{Body: listOf(versions)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-document-version",
		Method:      http.MethodGet,
		Path:        "/documents/{id}/versions/{number}",
		Summary:     "Get one version",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		Number string `path:"number"`
	}) (*struct {
		Body domain.DocumentVersion `json:"body"`
	}, error) {
		n, verr := parseVersion(input.Number)
		if verr != nil {
			return nil, verr
		}
		v, err := a.Knowledge.Version(ctx, input.ID, n)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body domain.DocumentVersion `json:"body"`
		}{Body: v}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "compare-document-versions",
		Method:      http.MethodGet,
		Path:        "/documents/{id}/compare",
		Summary:     "Field changes between two versions",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID   string `path:"id"`
		From string `query:"from"`
		To   string `query:"to"`
	}) (*struct {
		Body knowledge.VersionDiff `json:"body"`
	}, error) {
		from, verr := parseVersion(input.From)
		if verr != nil {
			return nil, verr
		}
		to, verr := parseVersion(input.To)
		if verr != nil {
			return nil, verr
		}
		diff, err := a.Knowledge.CompareVersions(ctx, input.ID, from, to)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body knowledge.VersionDiff `json:"body"`
		}{Body: diff}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "restore-document-version",
		Method:      http.MethodPost,
		Path:        "/documents/{id}/restore",
		Summary:     "Write an old version forward as a new one",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body RestoreVersionRequest `json:"body"`
	}) (*documentOutput, error) {
		return applyDocument(ctx, a, knowledge.RestoreVersionIntent{ID: input.ID, Number: input.Body.Version})
	})

	huma.Register(api, huma.Operation{
		OperationID: "link-document-task",
		Method:      http.MethodPost,
		Path:        "/documents/{id}/tasks",
		Summary:     "Relate a task to the document",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body LinkTaskRequest `json:"body"`
	}) (*documentOutput, error) {
		return documentCall(ctx, a, func(actorID string) (domain.Document, error) {
			return a.Knowledge.LinkTask(ctx, input.ID, input.Body.TaskID, actorID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "unlink-document-task",
		Method:      http.MethodDelete,
		Path:        "/documents/{id}/tasks/{task_id}",
		Summary:     "Remove a related task",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		TaskID string `path:"task_id"`
	}) (*documentOutput, error) {
		return documentCall(ctx, a, func(actorID string) (domain.Document, error) {
			return a.Knowledge.UnlinkTask(ctx, input.ID, input.TaskID, actorID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID: "convert-document",
		Method:      http.MethodPost,
		Path:        "/documents/{id}/template",
		Summary:     "Convert document to a published template",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body TemplateDataRequest `json:"body"`
	}) (*documentOutput, error) {
		data := input.Body.toDomain()
		return documentOutcome(ctx, a, func(actorID string) (knowledge.Outcome, error) {
			return a.Knowledge.ConvertToTemplate(ctx, input.ID, *data, actorID)
		})
	})
}

func registerTemplates(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-templates",
		Method:      http.MethodGet,
		Path:        "/templates",
		Summary:     "List published templates",
	}, func(ctx context.Context, input *struct {
		Category string `query:"category"`
	}) (*struct {
		Body ListResponse[domain.Document] `json:"body"`
	}, error) {
		docs, err := a.Knowledge.Templates(ctx, domain.DocumentCategory(input.Category))
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body ListResponse[domain.Document] `json:"body"`
		}{Body: listOf(docs)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-template",
		Method:      http.MethodGet,
		Path:        "/templates/{id}",
		Summary:     "Get template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body domain.Document `json:"body"`
	}, error) {
		d, err := a.Knowledge.Template(ctx, input.ID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body domain.Document `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "template-stats",
		Method:      http.MethodGet,
		Path:        "/templates/{id}/stats",
		Summary:     "Documents created from a template",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *documentPath) (*struct {
		Body knowledge.TemplateStats `json:"body"`
	}, error) {
		stats, err := a.Knowledge.TemplateStatsFor(ctx, input.ID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body knowledge.TemplateStats `json:"body"`
		}{Body: stats}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-from-template",
		Method:        http.MethodPost,
		Path:          "/templates/{id}/documents",
		Summary:       "Create a draft document by filling a template",
		DefaultStatus: http.StatusCreated,
		Errors:        taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body FromTemplateRequest `json:"body"`
	}) (*documentOutput, error) {
		return documentOutcome(ctx, a, func(actorID string) (knowledge.Outcome, error) {
			return a.Knowledge.CreateFromTemplate(ctx, input.ID, input.Body.toDomain(), actorID)
		})
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task-from-template",
		Method:        http.MethodPost,
		Path:          "/templates/{id}/tasks",
		Summary:       "Create a task whose deliverable is the filled template",
		DefaultStatus: http.StatusCreated,
		Errors:        taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body TaskFromTemplateRequest `json:"body"`
	}) (*taskOutput, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		req, err := a.Knowledge.TaskRequestFromTemplate(ctx, input.ID, input.Body.toDomain())
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return applyTask(ctx, a, engine.CreateIntent{Request: req})
	})
}
