package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Provider supplies bearer tokens for the Taskie API, refreshing the access
// token against the auth endpoint when it expires. It implements
// api.TokenProvider.
type Provider struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	tokens *TokenData
}

func NewProvider(baseURL string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Provider{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// Token returns a valid access token, refreshing it first when needed.
func (p *Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.tokens == nil {
		tokens, err := LoadTokens()
		if err != nil {
			return "", err
		}
		if tokens == nil {
			return "", fmt.Errorf("not logged in; run 'taskie login' first")
		}
		p.tokens = tokens
	}

	if !p.tokens.IsExpired() {
		return p.tokens.AccessToken, nil
	}

	refreshed, err := p.refresh(ctx, p.tokens.RefreshToken)
	if err != nil {
		return "", err
	}
	p.tokens = refreshed
	if err := SaveTokens(refreshed); err != nil {
		p.logger.Error("saving refreshed tokens", "error", err)
	}
	return refreshed.AccessToken, nil
}

func (p *Provider) refresh(ctx context.Context, refreshToken string) (*TokenData, error) {
	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return nil, fmt.Errorf("marshaling refresh request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/auth/refresh", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	p.logger.Debug("refreshing access token")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading refresh response: %w", err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("session expired; run 'taskie login' to sign in again")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("token refresh failed (status %d): %s", resp.StatusCode, string(respBody))
	}

	var tr tokenResponse
	if err := json.Unmarshal(respBody, &tr); err != nil {
		return nil, fmt.Errorf("parsing refresh response: %w", err)
	}
	if tr.RefreshToken == "" {
		tr.RefreshToken = refreshToken
	}

	return &TokenData{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second),
	}, nil
}

// Login stores an initial refresh token obtained out of band (e.g. from the
// web app's settings page) so the next API call can mint an access token.
func Login(refreshToken string) error {
	return SaveTokens(&TokenData{
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now(), // force a refresh on first use
	})
}
