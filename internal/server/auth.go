package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"hypolab/internal/domain"
	"hypolab/internal/engine"
	"hypolab/internal/engine/auth"
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

// actorFromContext names the caller for timelines and the journal. Anonymous
// calls yield an empty actor.
func actorFromContext(ctx context.Context) string {
	p, ok := principalFromContext(ctx)
	if !ok {
		return ""
	}
	if p.Name != "" {
		return p.Name
	}
	return p.Email
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// newAuthMiddleware attaches the principal of a valid bearer token. Requests
// without a token stay anonymous; a token that fails verification is
// rejected. Nothing happens when authentication is not configured.
func newAuthMiddleware(basePath string, svc auth.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !svc.Enabled() || !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			authz := strings.TrimSpace(req.Header.Get("Authorization"))
			if authz == "" {
				next.ServeHTTP(w, req)
				return
			}
			token, ok := bearerToken(authz)
			if !ok {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			principal, err := svc.Verify(token)
			if err != nil {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

type LoginRequest struct {
	Email string `json:"email,omitempty" example:"ceo@hypolab.local"`
}

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt" format:"date-time"`
	User      domain.User `json:"user"`
}

func registerAuth(api huma.API, e engine.Engine, svc auth.Service) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Issue a bearer token for a user",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		Body LoginResponse `json:"body"`
	}, error) {
		if !svc.Enabled() {
			return nil, handleError(auth.ErrDisabled)
		}
		email := strings.TrimSpace(input.Body.Email)
		if email == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "Email is required", fieldDetails("email"))
		}
		u, err := e.Store.UserByEmail(email)
		if err != nil {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
		}
		token, exp, err := svc.Issue(u)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body LoginResponse `json:"body"`
		}{Body: LoginResponse{Token: token, ExpiresAt: exp, User: u}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/auth/me",
		Summary:     "Current principal",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body auth.Principal `json:"body"`
	}, error) {
		p, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body auth.Principal `json:"body"`
		}{Body: p}, nil
	})
}
