package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"hypolab/internal/domain"
	"hypolab/internal/engine"
	"hypolab/internal/store"
)

func registerSettings(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-settings",
		Method:      http.MethodGet,
		Path:        "/settings",
		Summary:     "Get settings",
		Tags:        []string{"settings"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.Settings `json:"body"`
	}, error) {
		return &struct {
			Body domain.Settings `json:"body"`
		}{Body: e.Store.Settings()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-settings",
		Method:      http.MethodPut,
		Path:        "/settings",
		Summary:     "Update settings",
		Tags:        []string{"settings"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body SettingsUpdateRequest `json:"body"`
	}) (*struct {
		Body domain.Settings `json:"body"`
	}, error) {
		b := input.Body
		s, err := e.UpdateSettings(ctx, store.SettingsPatch{
			CompanyName:          b.CompanyName,
			DefaultPriority:      b.DefaultPriority,
			NotificationsEnabled: b.NotificationsEnabled,
			EmailNotifications:   b.EmailNotifications,
			Theme:                b.Theme,
			Language:             b.Language,
		}, actorFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Settings `json:"body"`
		}{Body: s}, nil
	})
}

func registerCEO(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "ceo-metrics",
		Method:      http.MethodGet,
		Path:        "/ceo/metrics",
		Summary:     "Executive summary",
		Tags:        []string{"ceo"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body engine.CEOMetrics `json:"body"`
	}, error) {
		return &struct {
			Body engine.CEOMetrics `json:"body"`
		}{Body: e.CEOMetrics()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ceo-pipeline",
		Method:      http.MethodGet,
		Path:        "/ceo/pipeline",
		Summary:     "Hypothesis count and value per stage",
		Tags:        []string{"ceo"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.PipelineStage `json:"body"`
	}, error) {
		return &struct {
			Body []engine.PipelineStage `json:"body"`
		}{Body: e.Pipeline()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ceo-awaiting-approval",
		Method:      http.MethodGet,
		Path:        "/ceo/awaiting-approval",
		Summary:     "Hypotheses awaiting approval",
		Tags:        []string{"ceo"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.Hypothesis `json:"body"`
	}, error) {
		return &struct {
			Body []domain.Hypothesis `json:"body"`
		}{Body: e.AwaitingApproval()}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ceo-decide",
		Method:      http.MethodPost,
		Path:        "/ceo/approve/{hypothesisId}",
		Summary:     "Approve or reject a hypothesis",
		Tags:        []string{"ceo"},
		Errors:      mutationErrors,
	}, func(ctx context.Context, input *struct {
		HypothesisID string          `path:"hypothesisId"`
		Body         DecisionRequest `json:"body"`
	}) (*struct {
		Body domain.Hypothesis `json:"body"`
	}, error) {
		actor := actorFromContext(ctx)
		if actor == "" {
			actor = "CEO"
		}
		h, err := e.Decide(ctx, input.HypothesisID, input.Body.Action, actor)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Hypothesis `json:"body"`
		}{Body: h}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "kanban",
		Method:      http.MethodGet,
		Path:        "/kanban",
		Summary:     "Active stages in order with their hypotheses",
		Tags:        []string{"hypotheses"},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []engine.KanbanColumn `json:"body"`
	}, error) {
		return &struct {
			Body []engine.KanbanColumn `json:"body"`
		}{Body: e.Kanban()}, nil
	})
}
