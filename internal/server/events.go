package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/danielgtaylor/huma/v2"

	"hypolab/internal/domain"
	"hypolab/internal/engine"
)

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List journaled events newest first",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Type   string `query:"type"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		limit := normalizeLimit(input.Limit)
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Events(ctx, limit+1, cursorID, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-event",
		Method:      http.MethodGet,
		Path:        "/events/{uid}",
		Summary:     "Get a journaled event by envelope id",
		Tags:        []string{"events"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		UID string `path:"uid"`
	}) (*struct {
		Body EventResponse `json:"body"`
	}, error) {
		evt, err := e.Event(ctx, input.UID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body EventResponse `json:"body"`
		}{Body: eventResponse(evt)}, nil
	})
}

func eventResponse(evt domain.Event) EventResponse {
	var payload any = map[string]any{}
	if evt.Payload != "" {
		var decoded any
		if err := json.Unmarshal([]byte(evt.Payload), &decoded); err == nil {
			payload = decoded
		} else {
			payload = evt.Payload
		}
	}
	return EventResponse{
		ID:      evt.ID,
		UID:     evt.UID,
		TS:      evt.TS,
		Type:    evt.Type,
		Payload: payload,
	}
}

func normalizeLimit(in int) int {
	if in <= 0 {
		return 50
	}
	if in > 200 {
		return 200
	}
	return in
}
