package server

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"impactline/internal/app"
	"impactline/internal/audit"
	"impactline/internal/domain"
	"impactline/internal/engine"
)

// AuditQuery carries the audit filter as query parameters.
type AuditQuery struct {
	ItemID  string `query:"item_id"`
	ActorID string `query:"actor_id"`
	Action  string `query:"action"`
	Since   string `query:"since"`
	Until   string `query:"until"`
	Limit   int    `query:"limit"`
	Offset  int    `query:"offset"`
}

func (q AuditQuery) filter() (domain.AuditFilter, huma.StatusError) {
	f := domain.AuditFilter{
		ItemID:  q.ItemID,
		ActorID: q.ActorID,
		Action:  domain.AuditAction(q.Action),
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	if f.Action != "" && !f.Action.Valid() {
		return f, newAPIError(http.StatusBadRequest, "bad_request", "invalid action", map[string]any{"field": "action", "value": q.Action})
	}
	var err huma.StatusError
	if f.Since, err = parseTime("since", q.Since); err != nil {
		return f, err
	}
	if f.Until, err = parseTime("until", q.Until); err != nil {
		return f, err
	}
	return f, nil
}

type auditList struct {
	Body ListResponse[domain.AuditEntry] `json:"body"`
}

func registerAudit(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-audit",
		Method:      http.MethodGet,
		Path:        "/audit",
		Summary:     "Filtered audit entries, newest first",
	}, func(ctx context.Context, input *AuditQuery) (*auditList, error) {
		f, qerr := input.filter()
		if qerr != nil {
			return nil, qerr
		}
		return &auditList{Body: listOf(a.Audit().Export(ctx, f))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "recent-audit",
		Method:      http.MethodGet,
		Path:        "/audit/recent",
		Summary:     "Most recent audit entries",
	}, func(ctx context.Context, input *struct {
		Limit int `query:"limit"`
	}) (*auditList, error) {
		limit := input.Limit
		if limit <= 0 {
			limit = a.Config.Audit.RecentLimit
		}
		return &auditList{Body: listOf(a.Audit().Recent(ctx, limit))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-by-actor",
		Method:      http.MethodGet,
		Path:        "/audit/actors/{actor_id}",
		Summary:     "Entries written by one actor",
	}, func(ctx context.Context, input *struct {
		ActorID string `path:"actor_id"`
		Limit   int    `query:"limit"`
	}) (*auditList, error) {
		return &auditList{Body: listOf(a.Audit().ByActor(ctx, input.ActorID, input.Limit))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-by-action",
		Method:      http.MethodGet,
		Path:        "/audit/actions/{action}",
		Summary:     "Entries with one action",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Action string `path:"action"`
		Limit  int    `query:"limit"`
	}) (*auditList, error) {
		action := domain.AuditAction(input.Action)
		if !action.Valid() {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid action", map[string]any{"value": input.Action})
		}
		return &auditList{Body: listOf(a.Audit().ByAction(ctx, action, input.Limit))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "audit-by-range",
		Method:      http.MethodGet,
		Path:        "/audit/range",
		Summary:     "Entries in a time window; defaults to the last 30 days",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Since string `query:"since"`
		Until string `query:"until"`
		Limit int    `query:"limit"`
	}) (*auditList, error) {
		since, qerr := parseTime("since", input.Since)
		if qerr != nil {
			return nil, qerr
		}
		until, qerr := parseTime("until", input.Until)
		if qerr != nil {
			return nil, qerr
		}
		return &auditList{Body: listOf(a.Audit().ByRange(ctx, derefTime(since), derefTime(until), input.Limit))}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "count-audit",
		Method:      http.MethodGet,
		Path:        "/audit/count",
		Summary:     "Count entries matching a filter",
	}, func(ctx context.Context, input *AuditQuery) (*struct {
		Body CountResponse `json:"body"`
	}, error) {
		f, qerr := input.filter()
		if qerr != nil {
			return nil, qerr
		}
		return &struct {
			Body CountResponse `json:"body"`
		}{Body: CountResponse{Count: a.Audit().Count(ctx, f)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "export-audit",
		Method:      http.MethodGet,
		Path:        "/audit/export",
		Summary:     "Export entries as JSON or CSV",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		AuditQuery
		Format string `query:"format" enum:"json,csv" default:"json"`
	}) (*struct {
		ContentType        string `header:"Content-Type"`
		ContentDisposition string `header:"Content-Disposition"`
		Body               []byte
	}, error) {
		f, qerr := input.filter()
		if qerr != nil {
			return nil, qerr
		}
		if f.Limit <= 0 {
			f.Limit = a.Config.Audit.ExportLimit
		}
		entries := a.Audit().Export(ctx, f)
		var buf bytes.Buffer
		contentType, name := "application/json", "audit.json"
		var err error
		if input.Format == "csv" {
			err = audit.WriteCSV(&buf, entries)
			contentType, name = "text/csv", "audit.csv"
		} else {
			err = audit.WriteJSON(&buf, entries, f, a.Store.Now())
		}
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			ContentType        string `header:"Content-Type"`
			ContentDisposition string `header:"Content-Disposition"`
			Body               []byte
		}{ContentType: contentType, ContentDisposition: "attachment; filename=" + name, Body: buf.Bytes()}, nil
	})
}

func registerReconcile(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "reconcile-scan",
		Method:      http.MethodGet,
		Path:        "/reconcile",
		Summary:     "Report inconsistencies left by partial writes",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Report `json:"body"`
	}, error) {
		report, err := a.Reconciler.Scan(ctx)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body engine.Report `json:"body"`
		}{Body: report}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reconcile-fix",
		Method:      http.MethodPost,
		Path:        "/reconcile",
		Summary:     "Repair what can be repaired; audit is never fabricated",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.Report `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		report, err := a.Reconciler.Fix(ctx)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body engine.Report `json:"body"`
		}{Body: report}, nil
	})
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
