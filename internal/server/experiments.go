package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hypolab/internal/domain"
	"hypolab/internal/engine"
	"hypolab/internal/store"
)

func registerExperiments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-experiments",
		Method:      http.MethodGet,
		Path:        "/experiments",
		Summary:     "List experiments",
		Tags:        []string{"experiments"},
	}, func(ctx context.Context, input *struct {
		Page         int    `query:"page" default:"1"`
		Limit        int    `query:"limit" default:"10"`
		HypothesisID string `query:"hypothesisId"`
		Status       string `query:"status"`
		Search       string `query:"search"`
	}) (*struct {
		Body Page[domain.Experiment] `json:"body"`
	}, error) {
		items := e.Store.ListExperiments(store.ExperimentFilter{
			HypothesisID: input.HypothesisID,
			Status:       input.Status,
			Search:       input.Search,
		})
		return &struct {
			Body Page[domain.Experiment] `json:"body"`
		}{Body: paginate(items, input.Page, input.Limit)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-experiment",
		Method:        http.MethodPost,
		Path:          "/experiments",
		Summary:       "Create experiment",
		Tags:          []string{"experiments"},
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body ExperimentCreateRequest `json:"body"`
	}) (*struct {
		Body domain.Experiment `json:"body"`
	}, error) {
		b := input.Body
		x, err := e.CreateExperiment(ctx, store.ExperimentInput{
			HypothesisID: b.HypothesisID,
			Name:         b.Name,
			Description:  b.Description,
			Status:       b.Status,
			Owner:        b.Owner,
			StartDate:    b.StartDate,
			EndDate:      b.EndDate,
			Metrics:      b.Metrics,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Experiment `json:"body"`
		}{Body: x}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-experiment",
		Method:      http.MethodGet,
		Path:        "/experiments/{id}",
		Summary:     "Get experiment",
		Tags:        []string{"experiments"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.Experiment `json:"body"`
	}, error) {
		x, err := e.Store.GetExperiment(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Experiment `json:"body"`
		}{Body: x}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-experiment",
		Method:      http.MethodPut,
		Path:        "/experiments/{id}",
		Summary:     "Update experiment",
		Tags:        []string{"experiments"},
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body ExperimentUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Experiment `json:"body"`
	}, error) {
		b := input.Body
		x, err := e.UpdateExperiment(ctx, input.ID, store.ExperimentPatch{
			Name:        b.Name,
			Description: b.Description,
			Status:      b.Status,
			Owner:       b.Owner,
			StartDate:   b.StartDate,
			EndDate:     b.EndDate,
			Metrics:     b.Metrics,
			Results:     b.Results,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Experiment `json:"body"`
		}{Body: x}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-experiment",
		Method:      http.MethodDelete,
		Path:        "/experiments/{id}",
		Summary:     "Delete experiment",
		Tags:        []string{"experiments"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body DeletedResponse `json:"body"`
	}, error) {
		if err := e.DeleteExperiment(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeletedResponse `json:"body"`
		}{Body: DeletedResponse{ID: input.ID, Deleted: true}}, nil
	})
}
