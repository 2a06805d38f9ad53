package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"habitquest/utils"

	"go.uber.org/zap"
)

// AuthServiceClient talks to the hosted auth provider.
type AuthServiceClient struct {
	BaseURL    string
	ServiceKey string
	Client     *http.Client
}

// AuthUser is the subset of the provider's user object we rely on.
type AuthUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func NewAuthServiceClient(baseURL, serviceKey string) *AuthServiceClient {
	return &AuthServiceClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		ServiceKey: serviceKey,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// ValidateToken asks the provider who accessToken belongs to.
func (c *AuthServiceClient) ValidateToken(ctx context.Context, accessToken string) (*AuthUser, error) {
	if c.BaseURL == "" {
		return nil, fmt.Errorf("%w: auth provider is not configured", ErrNotAuthenticated)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if c.ServiceKey != "" {
		req.Header.Set("apikey", c.ServiceKey)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth provider request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrNotAuthenticated
	case resp.StatusCode != http.StatusOK:
		utils.Logger.Warn("auth_provider_validate_failed",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body),
		)
		return nil, fmt.Errorf("auth validation failed: %d", resp.StatusCode)
	}

	var out AuthUser
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode auth user: %w", err)
	}
	if out.ID == "" {
		return nil, ErrNotAuthenticated
	}
	return &out, nil
}
