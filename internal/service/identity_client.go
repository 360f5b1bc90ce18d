package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/auth"
	"github.com/souravOD/nutri-b2b-backend-sub001/internal/security"
)

// RemoteIdentityClient validates access tokens against the identity
// provider's userinfo endpoint.
type RemoteIdentityClient struct {
	baseURL string
	client  *http.Client
}

func NewRemoteIdentityClient(baseURL string) *RemoteIdentityClient {
	return &RemoteIdentityClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type userinfoResponse struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
}

func (c *RemoteIdentityClient) Validate(ctx context.Context, token string) (*auth.Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/userinfo", nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: identity provider unreachable: %v", auth.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: identity provider returned %d", auth.ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return nil, auth.ErrInvalidToken
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, fmt.Errorf("%w: read userinfo response: %v", auth.ErrUpstreamUnavailable, err)
	}
	var info userinfoResponse
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode userinfo response: %w", err)
	}
	if info.Sub == "" || info.Email == "" {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{SubjectID: info.Sub, Email: info.Email}, nil
}

// LocalIdentityValidator verifies identity tokens offline with a shared
// signing secret. Used in environments without a reachable identity provider.
type LocalIdentityValidator struct {
	secret string
}

func NewLocalIdentityValidator(secret string) *LocalIdentityValidator {
	return &LocalIdentityValidator{secret: secret}
}

func (v *LocalIdentityValidator) Validate(_ context.Context, token string) (*auth.Identity, error) {
	claims, err := security.ParseIdentityToken(token, v.secret)
	if err != nil {
		return nil, auth.ErrInvalidToken
	}
	return &auth.Identity{SubjectID: claims.Subject, Email: claims.Email}, nil
}
