package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/souravOD/nutri-b2b-backend-sub001/internal/auth"
)

// VaultClient talks to the secret vault over HTTP. HMAC signing secrets are
// stored there; the database only ever holds opaque references.
type VaultClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewVaultClient(baseURL, token string) *VaultClient {
	return &VaultClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

type vaultSecretPayload struct {
	Value string `json:"value"`
}

// ResolveSecret fetches the plaintext secret behind ref. The plaintext is
// returned to the caller and never logged.
func (c *VaultClient) ResolveSecret(ctx context.Context, ref string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/secrets/%s", c.baseURL, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: vault unreachable: %v", auth.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: vault returned %d", auth.ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return "", fmt.Errorf("vault rejected secret lookup: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", fmt.Errorf("%w: read vault response: %v", auth.ErrUpstreamUnavailable, err)
	}
	var payload vaultSecretPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("decode vault response: %w", err)
	}
	if payload.Value == "" {
		return "", fmt.Errorf("vault secret %s is empty", ref)
	}
	return payload.Value, nil
}

// StoreSecret writes a new secret under ref, used when provisioning an
// HMAC credential.
func (c *VaultClient) StoreSecret(ctx context.Context, ref, value string) error {
	body, err := json.Marshal(vaultSecretPayload{Value: value})
	if err != nil {
		return fmt.Errorf("encode vault payload: %w", err)
	}
	endpoint := fmt.Sprintf("%s/v1/secrets/%s", c.baseURL, url.PathEscape(ref))
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build vault request: %w", err)
	}
	req.Header.Set("X-Vault-Token", c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: vault unreachable: %v", auth.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: vault returned %d", auth.ErrUpstreamUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("vault rejected secret write: status %d", resp.StatusCode)
	}
}
