package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danchu1411/taskie-cli/internal/config"
)

const tokenFile = "tokens.json"

// TokenData holds the bearer credentials for the Taskie API.
type TokenData struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired reports whether the access token has expired or is about
// to. A 5 minute margin avoids sending a token that dies mid-request.
func (t *TokenData) IsExpired() bool {
	return time.Until(t.ExpiresAt) < 5*time.Minute
}

// LoadTokens reads the cached credentials. A missing file is not an
// error: it simply means nobody has logged in yet.
func LoadTokens() (*TokenData, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, tokenFile))
	switch {
	case os.IsNotExist(err):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	tokens := &TokenData{}
	if err := json.Unmarshal(data, tokens); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return tokens, nil
}

// SaveTokens persists credentials with 0600 permissions, writing a
// temp file first so a crash never leaves a half-written token file.
func SaveTokens(tokens *TokenData) error {
	if err := config.EnsureConfigDir(); err != nil {
		return err
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, tokenFile)

	data, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding tokens: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing token file: %w", err)
	}
	return nil
}
