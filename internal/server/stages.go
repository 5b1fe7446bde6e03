package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hypolab/internal/domain"
	"hypolab/internal/engine"
	"hypolab/internal/store"
)

func registerStages(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-stages",
		Method:      http.MethodGet,
		Path:        "/admin/stages",
		Summary:     "List stage definitions in order",
		Tags:        []string{"admin"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Stage `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Stage `json:"body"`
		}{Body: nonNilSlice(e.Store.ListStages())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-stage",
		Method:      http.MethodGet,
		Path:        "/admin/stages/{id}",
		Summary:     "Get stage",
		Tags:        []string{"admin"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID int `path:"id"`
	}) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		st, err := e.Store.GetStage(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-stage",
		Method:      http.MethodPut,
		Path:        "/admin/stages/{id}",
		Summary:     "Update stage",
		Tags:        []string{"admin"},
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   int                `path:"id"`
		Body StageUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Stage `json:"body"`
	}, error) {
		b := input.Body
		st, err := e.UpdateStage(ctx, input.ID, store.StagePatch{
			Name:             b.Name,
			Description:      b.Description,
			IsActive:         b.IsActive,
			RequiresApproval: b.RequiresApproval,
			Color:            b.Color,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Stage `json:"body"`
		}{Body: st}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reorder-stage",
		Method:      http.MethodPut,
		Path:        "/admin/stages/{id}/order",
		Summary:     "Move a stage up or down",
		Tags:        []string{"admin"},
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   int               `path:"id"`
		Body StageOrderRequest `json:"body"`
	}) (*struct {
		Body []domain.Stage `json:"body"`
	}, error) {
		stages, err := e.ReorderStage(ctx, input.ID, input.Body.Direction, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Stage `json:"body"`
		}{Body: stages}, nil
	})
}
