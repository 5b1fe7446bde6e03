package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hypolab/internal/domain"
	"hypolab/internal/engine"
	"hypolab/internal/store"
)

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List notifications newest first",
		Tags:        []string{"notifications"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Page   int    `query:"page" default:"1"`
		Limit  int    `query:"limit" default:"10"`
		Filter string `query:"filter" default:"all"`
		UserID string `query:"userId"`
	}) (*struct {
		Body Page[domain.Notification] `json:"body"`
	}, error) {
		items, err := e.Store.ListNotifications(input.Filter, input.UserID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body Page[domain.Notification] `json:"body"`
		}{Body: paginate(items, input.Page, input.Limit)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-notification",
		Method:        http.MethodPost,
		Path:          "/notifications",
		Summary:       "Create notification",
		Tags:          []string{"notifications"},
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body NotificationCreateRequest `json:"body"`
	}) (*struct {
		Body domain.Notification `json:"body"`
	}, error) {
		b := input.Body
		n, err := e.CreateNotification(ctx, store.NotificationInput{
			UserID:     b.UserID,
			Type:       b.Type,
			Title:      b.Title,
			Message:    b.Message,
			EntityType: b.EntityType,
			EntityID:   b.EntityID,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Notification `json:"body"`
		}{Body: n}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-count",
		Method:      http.MethodGet,
		Path:        "/notifications/unread-count",
		Summary:     "Count unread notifications",
		Tags:        []string{"notifications"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body UnreadCountResponse `json:"body"`
	}, error) {
		return &struct {
			Body UnreadCountResponse `json:"body"`
		}{Body: UnreadCountResponse{Count: e.Store.UnreadCount()}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "read-all-notifications",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification read",
		Tags:        []string{"notifications"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ReadAllResponse `json:"body"`
	}, error) {
		n := e.MarkAllRead(ctx, actorFromContext(ctx))
		return &struct {
			Body ReadAllResponse `json:"body"`
		}{Body: ReadAllResponse{Count: n}}, nil
	})

	actions := []struct {
		id, path, summary string
		apply             func(context.Context, string, string) (domain.Notification, error)
	}{
		{"read-notification", "/notifications/{id}/read", "Mark notification read", e.MarkRead},
		{"star-notification", "/notifications/{id}/star", "Toggle notification star", e.ToggleStar},
		{"archive-notification", "/notifications/{id}/archive", "Archive notification", e.Archive},
	}
	for _, a := range actions {
		apply := a.apply
		huma.Register(api, huma.Operation{
			OperationID: a.id,
			Method:      http.MethodPost,
			Path:        a.path,
			Summary:     a.summary,
			Tags:        []string{"notifications"},
			Errors:      []int{http.StatusNotFound},
		}, func(ctx context.Context, input *idPath) (*struct {
			Body domain.Notification `json:"body"`
		}, error) {
			n, err := apply(ctx, input.ID, actorFromContext(ctx))
			if err != nil {
				return nil, handleError(err)
			}
			return &struct {
				Body domain.Notification `json:"body"`
			}{Body: n}, nil
		})
	}

	huma.Register(api, huma.Operation{
		OperationID: "delete-notification",
		Method:      http.MethodDelete,
		Path:        "/notifications/{id}",
		Summary:     "Delete notification",
		Tags:        []string{"notifications"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body DeletedResponse `json:"body"`
	}, error) {
		if err := e.DeleteNotification(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeletedResponse `json:"body"`
		}{Body: DeletedResponse{ID: input.ID, Deleted: true}}, nil
	})
}
