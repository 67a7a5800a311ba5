// Package identity wraps the hosted identity provider's admin REST API.
// Every operation here runs with the service-role key, never a user token.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// User is the identity-subsystem account record. AppMetadata is the
// server-controlled metadata bag; the organization id lives there for
// accounts whose profile row is gone or was never created.
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	AppMetadata  map[string]any `json:"app_metadata"`
	UserMetadata map[string]any `json:"user_metadata"`
}

// OrganizationID returns the organization reference held in app metadata, or
// "" when none is present.
func (u *User) OrganizationID() string {
	if u == nil || u.AppMetadata == nil {
		return ""
	}
	if id, ok := u.AppMetadata["organization_id"].(string); ok {
		return id
	}
	return ""
}

type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: http.DefaultClient,
	}
}

func (c *Client) do(ctx context.Context, method, path string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var parsed struct {
		Msg     string `json:"msg"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		for _, msg := range []string{parsed.Msg, parsed.Message, parsed.Error} {
			if msg != "" {
				return fmt.Errorf("identity provider: status %d: %s", resp.StatusCode, msg)
			}
		}
	}
	return fmt.Errorf("identity provider: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

// GetUserByID fetches an account. A missing account returns (nil, nil).
func (c *Client) GetUserByID(ctx context.Context, userID string) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &user, nil
}

// DeleteUser removes the account. Deleting an already-absent account is a
// success.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	resp, err := c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+userID, nil)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeError(resp)
	}
	return nil
}

// UpdateUserByID applies admin updates to an account: top-level attributes
// such as email, plus a user_metadata bag the provider merges in.
func (c *Client) UpdateUserByID(ctx context.Context, userID string, attrs map[string]any) (*User, error) {
	resp, err := c.do(ctx, http.MethodPut, "/auth/v1/admin/users/"+userID, attrs)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, decodeError(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode update response: %w", err)
	}
	return &user, nil
}

// InviteByEmail sends a signup invitation carrying metadata the client app
// reads during onboarding.
func (c *Client) InviteByEmail(ctx context.Context, email string, data map[string]any) (*User, error) {
	payload := map[string]any{"email": email, "data": data}
	resp, err := c.do(ctx, http.MethodPost, "/auth/v1/invite", payload)
	if err != nil {
		return nil, fmt.Errorf("invite user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, decodeError(resp)
	}

	var user User
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return nil, fmt.Errorf("decode invite response: %w", err)
	}
	return &user, nil
}
