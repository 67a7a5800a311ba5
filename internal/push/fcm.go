// Package push delivers notifications through the FCM HTTP v1 API. Delivery
// is fire-and-forget: per-token failures are counted, never retried.
package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenEndpoint  = "https://oauth2.googleapis.com/token"
	messagingScope = "https://www.googleapis.com/auth/firebase.messaging"
)

type serviceAccount struct {
	ProjectID   string `json:"project_id"`
	ClientEmail string `json:"client_email"`
	PrivateKey  string `json:"private_key"`
}

type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

type Client struct {
	account    serviceAccount
	httpClient *http.Client

	mu          sync.Mutex
	accessToken string
	expiresAt   time.Time
}

func NewClient(serviceAccountJSON []byte) (*Client, error) {
	var account serviceAccount
	if err := json.Unmarshal(serviceAccountJSON, &account); err != nil {
		return nil, fmt.Errorf("parse service account: %w", err)
	}
	if account.ProjectID == "" || account.ClientEmail == "" || account.PrivateKey == "" {
		return nil, fmt.Errorf("service account is missing project_id, client_email or private_key")
	}
	return &Client{
		account:    account,
		httpClient: http.DefaultClient,
	}, nil
}

// getAccessToken exchanges a self-signed service-account assertion for an
// OAuth2 access token, caching it until shortly before expiry.
func (c *Client) getAccessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.expiresAt.Add(-time.Minute)) {
		return c.accessToken, nil
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(c.account.PrivateKey))
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":   c.account.ClientEmail,
		"scope": messagingScope,
		"aud":   tokenEndpoint,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}

	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:jwt-bearer")
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		tokenEndpoint,
		strings.NewReader(form.Encode()),
	)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("exchange token: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}

	c.accessToken = parsed.AccessToken
	c.expiresAt = now.Add(time.Duration(parsed.ExpiresIn) * time.Second)
	return c.accessToken, nil
}

// Send posts one message per token and returns how many were accepted.
func (c *Client) Send(ctx context.Context, tokens []string, msg Message) (int, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	accessToken, err := c.getAccessToken(ctx)
	if err != nil {
		return 0, err
	}

	sendURL := fmt.Sprintf(
		"https://fcm.googleapis.com/v1/projects/%s/messages:send",
		c.account.ProjectID,
	)

	success := 0
	for _, token := range tokens {
		payload := map[string]any{
			"message": map[string]any{
				"token": token,
				"notification": map[string]string{
					"title": msg.Title,
					"body":  TruncateBody(msg.Body),
				},
				"data": msg.Data,
			},
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return success, fmt.Errorf("marshal message: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, sendURL, bytes.NewReader(raw))
		if err != nil {
			return success, fmt.Errorf("build send request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}
		if resp.StatusCode == http.StatusOK {
			success++
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		resp.Body.Close()
	}

	return success, nil
}

// TruncateBody trims notification bodies the same way the mobile client's
// preview does.
func TruncateBody(body string) string {
	runes := []rune(body)
	if len(runes) <= 100 {
		return body
	}
	return string(runes[:97]) + "..."
}
