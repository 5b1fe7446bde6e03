package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hypolab/internal/domain"
	"hypolab/internal/engine"
	"hypolab/internal/store"
)

func registerIAM(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/iam/users",
		Summary:     "List users",
		Tags:        []string{"iam"},
	}, func(ctx context.Context, input *struct {
		Page   int    `query:"page" default:"1"`
		Limit  int    `query:"limit" default:"10"`
		Search string `query:"search"`
		Role   string `query:"role"`
		Status string `query:"status"`
	}) (*struct {
		Body Page[domain.User] `json:"body"`
	}, error) {
		items := e.Store.ListUsers(store.UserFilter{Search: input.Search, Role: input.Role, Status: input.Status})
		return &struct {
			Body Page[domain.User] `json:"body"`
		}{Body: paginate(items, input.Page, input.Limit)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/iam/users",
		Summary:       "Create user",
		Tags:          []string{"iam"},
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body UserCreateRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		b := input.Body
		u, err := e.CreateUser(ctx, store.UserInput{
			Email:      b.Email,
			Name:       b.Name,
			Role:       b.Role,
			Department: b.Department,
			Status:     b.Status,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/iam/users/{id}",
		Summary:     "Get user",
		Tags:        []string{"iam"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		u, err := e.Store.GetUser(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user",
		Method:      http.MethodPut,
		Path:        "/iam/users/{id}",
		Summary:     "Update user",
		Tags:        []string{"iam"},
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UserUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		b := input.Body
		u, err := e.UpdateUser(ctx, input.ID, store.UserPatch{
			Email:      b.Email,
			Name:       b.Name,
			Role:       b.Role,
			Department: b.Department,
			Status:     b.Status,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-user",
		Method:      http.MethodDelete,
		Path:        "/iam/users/{id}",
		Summary:     "Delete user",
		Tags:        []string{"iam"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body DeletedResponse `json:"body"`
	}, error) {
		if err := e.DeleteUser(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeletedResponse `json:"body"`
		}{Body: DeletedResponse{ID: input.ID, Deleted: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-roles",
		Method:      http.MethodGet,
		Path:        "/iam/roles",
		Summary:     "List roles",
		Tags:        []string{"iam"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Role `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Role `json:"body"`
		}{Body: store.Roles()}, nil
	})
}
