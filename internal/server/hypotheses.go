package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"hypolab/internal/domain"
	"hypolab/internal/engine"
	"hypolab/internal/store"
)

var mutationErrors = []int{
	http.StatusBadRequest,
	http.StatusNotFound,
	http.StatusInternalServerError,
}

func registerHypotheses(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-hypotheses",
		Method:      http.MethodGet,
		Path:        "/hypotheses",
		Summary:     "List hypotheses",
		Tags:        []string{"hypotheses"},
	}, func(ctx context.Context, input *struct {
		Page     int    `query:"page" default:"1"`
		Limit    int    `query:"limit" default:"10"`
		Search   string `query:"search"`
		Stage    string `query:"stage"`
		Priority string `query:"priority"`
		Status   string `query:"status"`
		Owner    string `query:"owner"`
	}) (*struct {
		Body Page[domain.Hypothesis] `json:"body"`
	}, error) {
		items := e.Store.ListHypotheses(store.HypothesisFilter{
			Search:   input.Search,
			Stage:    input.Stage,
			Priority: input.Priority,
			Status:   input.Status,
			Owner:    input.Owner,
		})
		return &struct {
			Body Page[domain.Hypothesis] `json:"body"`
		}{Body: paginate(items, input.Page, input.Limit)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-hypothesis",
		Method:        http.MethodPost,
		Path:          "/hypotheses",
		Summary:       "Create hypothesis",
		Tags:          []string{"hypotheses"},
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body HypothesisCreateRequest `json:"body"`
	}) (*struct {
		Body domain.Hypothesis `json:"body"`
	}, error) {
		h, err := e.CreateHypothesis(ctx, input.Body.input(actorFromContext(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Hypothesis `json:"body"`
		}{Body: h}, nil
	})

	// chi matches the static move segment ahead of {id}.
	huma.Register(api, huma.Operation{
		OperationID: "move-hypothesis",
		Method:      http.MethodPost,
		Path:        "/hypotheses/move",
		Summary:     "Move hypothesis to another stage",
		Tags:        []string{"hypotheses"},
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		Body MoveRequest `json:"body"`
	}) (*struct {
		Body domain.Hypothesis `json:"body"`
	}, error) {
		id := strings.TrimSpace(input.Body.HypothesisID)
		stage := strings.TrimSpace(input.Body.NewStage)
		if id == "" || stage == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "hypothesisId and newStage are required", nil)
		}
		h, err := e.MoveHypothesis(ctx, id, stage, store.MoveOptions{
			Actor:   actorFromContext(ctx),
			Comment: input.Body.Comment,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Hypothesis `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-hypothesis",
		Method:      http.MethodGet,
		Path:        "/hypotheses/{id}",
		Summary:     "Get hypothesis with its experiments, comments, files, metrics, risks and timeline",
		Tags:        []string{"hypotheses"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body domain.HypothesisDetail `json:"body"`
	}, error) {
		d, err := e.Store.HypothesisDetail(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.HypothesisDetail `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-hypothesis",
		Method:      http.MethodPut,
		Path:        "/hypotheses/{id}",
		Summary:     "Update hypothesis",
		Tags:        []string{"hypotheses"},
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body HypothesisUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Hypothesis `json:"body"`
	}, error) {
		h, err := e.UpdateHypothesis(ctx, input.ID, input.Body.patch(actorFromContext(ctx)))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Hypothesis `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-hypothesis",
		Method:      http.MethodDelete,
		Path:        "/hypotheses/{id}",
		Summary:     "Delete hypothesis",
		Tags:        []string{"hypotheses"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body DeletedResponse `json:"body"`
	}, error) {
		if err := e.DeleteHypothesis(ctx, input.ID, actorFromContext(ctx)); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body DeletedResponse `json:"body"`
		}{Body: DeletedResponse{ID: input.ID, Deleted: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-comment",
		Method:        http.MethodPost,
		Path:          "/hypotheses/{id}/comments",
		Summary:       "Add comment",
		Tags:          []string{"hypotheses"},
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string         `path:"id"`
		Body CommentRequest `json:"body"`
	}) (*struct {
		Body domain.Comment `json:"body"`
	}, error) {
		author := strings.TrimSpace(input.Body.Author)
		if author == "" {
			author = actorFromContext(ctx)
		}
		if author == "" {
			author = "Anonymous"
		}
		c, err := e.AddComment(ctx, input.ID, author, input.Body.Content)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Comment `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-presentation",
		Method:        http.MethodPost,
		Path:          "/hypotheses/{id}/presentation",
		Summary:       "Request a presentation",
		Tags:          []string{"hypotheses"},
		DefaultStatus: http.StatusCreated,
		Errors:        mutationErrors,
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body *PresentationRequest `json:"body,omitempty"`
	}) (*struct {
		Body domain.Presentation `json:"body"`
	}, error) {
		var req PresentationRequest
		if input.Body != nil {
			req = *input.Body
		}
		p, err := e.CreatePresentation(ctx, input.ID, req.Title, req.Template, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Presentation `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-presentations",
		Method:      http.MethodGet,
		Path:        "/hypotheses/{id}/presentations",
		Summary:     "List presentations",
		Tags:        []string{"hypotheses"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *idPath) (*struct {
		Body []domain.Presentation `json:"body"`
	}, error) {
		items, err := e.Store.ListPresentations(input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Presentation `json:"body"`
		}{Body: nonNilSlice(items)}, nil
	})
}
