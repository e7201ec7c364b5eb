package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"bistro/internal/apperrors"
	"bistro/internal/client"
)

// Refresher exchanges a refresh token for new credentials
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (accessToken, newRefreshToken string, err error)
}

// HTTPRefresher calls the backend's refresh endpoint. It must be given the
// raw transport, not the guard, or a failed refresh would try to refresh.
type HTTPRefresher struct {
	Doer client.Doer
	Path string
}

// NewHTTPRefresher uses POST /api/auth/refresh
func NewHTTPRefresher(doer client.Doer) *HTTPRefresher {
	return &HTTPRefresher{Doer: doer, Path: "/api/auth/refresh"}
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (r *HTTPRefresher) Refresh(ctx context.Context, refreshToken string) (string, string, error) {
	req := client.NewRequest(http.MethodPost, r.Path, map[string]string{"refreshToken": refreshToken})
	resp, err := r.Doer.Do(ctx, req)
	if err != nil {
		return "", "", fmt.Errorf("session refresh: %w", err)
	}
	if !resp.OK() {
		return "", "", apperrors.Classify(resp.StatusCode, resp.Body)
	}

	var out refreshResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", "", fmt.Errorf("session refresh: malformed response: %w", err)
	}
	if out.AccessToken == "" {
		return "", "", &apperrors.AuthenticationError{Message: "refresh returned no access token"}
	}
	return out.AccessToken, out.RefreshToken, nil
}
