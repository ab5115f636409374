package server

import (
	"context"
	"net/http"
	"slices"

	"github.com/danielgtaylor/huma/v2"

	"impactline/internal/app"
	"impactline/internal/domain"
)

type objectivePath struct {
	ID string `path:"id"`
}

type objectiveBody struct {
	Body domain.Objective `json:"body"`
}

func registerObjectives(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-objective",
		Method:        http.MethodPost,
		Path:          "/objectives",
		Summary:       "Create objective",
		DefaultStatus: http.StatusCreated,
		Errors:        append(slices.Clone(taskMutationErrors), http.StatusConflict),
	}, func(ctx context.Context, input *struct {
		Body CreateObjectiveRequest `json:"body"`
	}) (*objectiveBody, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := a.Engine.Objectives.Create(ctx, input.Body.toDomain(), actorID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &objectiveBody{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-objectives",
		Method:      http.MethodGet,
		Path:        "/objectives",
		Summary:     "List objectives, newest first",
	}, func(ctx context.Context, input *struct {
		OwnerID string `query:"owner_id"`
		Status  string `query:"status"`
		Tags    string `query:"tags" doc:"Comma-separated; any match"`
	}) (*struct {
		Body ListResponse[domain.Objective] `json:"body"`
	}, error) {
		items, err := a.Engine.Objectives.List(ctx, domain.ObjectiveFilter{
			OwnerID: input.OwnerID,
			Status:  domain.ObjectiveStatus(input.Status),
			Tags:    splitList(input.Tags),
		})
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body ListResponse[domain.Objective] `json:"body"`
		}{Body: listOf(items)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-objective",
		Method:      http.MethodGet,
		Path:        "/objectives/{id}",
		Summary:     "Get objective",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *objectivePath) (*objectiveBody, error) {
		o, err := a.Engine.Objectives.Get(ctx, input.ID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &objectiveBody{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-objective",
		Method:      http.MethodPatch,
		Path:        "/objectives/{id}",
		Summary:     "Update objective",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                `path:"id"`
		Body domain.ObjectivePatch `json:"body"`
	}) (*objectiveBody, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		o, err := a.Engine.Objectives.Update(ctx, input.ID, input.Body)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &objectiveBody{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "archive-objective",
		Method:      http.MethodPost,
		Path:        "/objectives/{id}/archive",
		Summary:     "Archive objective",
		Errors:      taskMutationErrors,
	}, func(ctx context.Context, input *objectivePath) (*objectiveBody, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		o, err := a.Engine.Objectives.Archive(ctx, input.ID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &objectiveBody{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "objective-stats",
		Method:      http.MethodGet,
		Path:        "/objectives/{id}/stats",
		Summary:     "Member count and task counts by status",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *objectivePath) (*struct {
		Body domain.ObjectiveStats `json:"body"`
	}, error) {
		stats, err := a.Engine.ObjectiveStats(ctx, input.ID)
		if err != nil {
			return nil, handleError(a.Log, err)
		}
		return &struct {
			Body domain.ObjectiveStats `json:"body"`
		}{Body: stats}, nil
	})
}
