// Package anilist implements the typed AniList GraphQL client (C7).
// Every query and mutation method degrades to a zero value on failure
// and never surfaces errors across the API; callers only see
// optionality, per §4.7 and §7's "auth missing or expired" policy.
// Authenticate, the interactive OAuth flow behind `anilist auth`, is
// the one method that returns an error.
package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/browser"
)

const (
	apiURL   = "https://graphql.anilist.co"
	oauthURL = "https://anilist.co/api/v2/oauth"
)

// Token is the persisted OAuth session (§6: anilist_token.json).
type Token struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	UserID       int       `json:"user_id"`
}

// Client is the AniList GraphQL client.
type Client struct {
	token        *Token
	tokenPath    string
	clientID     string
	clientSecret string
	redirectPort int
	httpClient   *http.Client
	endpoint     string // overridable in tests; defaults to apiURL
}

// Config carries the OAuth application credentials and redirect port
// (§6 environment overrides: ANIMECORE__ANILIST__CLIENT_ID etc).
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectPort int
}

// NewClient constructs a Client whose token is persisted under
// tokenDir/anilist_token.json. The token is loaded lazily at
// construction, matching §4.7's "reads are lazy at construction"
// requirement.
func NewClient(tokenDir string, cfg Config) *Client {
	if cfg.RedirectPort == 0 {
		cfg.RedirectPort = 8000
	}
	c := &Client{
		tokenPath:    filepath.Join(tokenDir, "anilist_token.json"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectPort: cfg.RedirectPort,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		endpoint:     apiURL,
	}
	_ = c.loadToken()
	return c
}

func (c *Client) redirectURI() string {
	return fmt.Sprintf("http://localhost:%d/oauth/callback", c.redirectPort)
}

// IsAuthenticated reports whether the client holds a non-expired
// access token.
func (c *Client) IsAuthenticated() bool {
	return c.token != nil && c.token.AccessToken != "" && time.Now().Before(c.token.ExpiresAt)
}

func (c *Client) loadToken() error {
	data, err := os.ReadFile(c.tokenPath)
	if err != nil {
		return err
	}
	var token Token
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	c.token = &token
	return nil
}

// saveToken writes the token atomically (temp file + rename), matching
// the history/identity/preferences whole-file-rewrite discipline (§5).
func (c *Client) saveToken() error {
	data, err := json.MarshalIndent(c.token, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal token: %w", err)
	}

	dir := filepath.Dir(c.tokenPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("token dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".anilist-token-*.json.tmp")
	if err != nil {
		return fmt.Errorf("token: create temp: %w", err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil || closeErr != nil {
		os.Remove(tmpName)
		if writeErr != nil {
			return fmt.Errorf("token: write: %w", writeErr)
		}
		return fmt.Errorf("token: close: %w", closeErr)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("token: chmod: %w", err)
	}
	if err := os.Rename(tmpName, c.tokenPath); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("token: rename: %w", err)
	}
	return nil
}

func (c *Client) refreshToken(ctx context.Context) error {
	if c.token == nil || c.token.RefreshToken == "" {
		return fmt.Errorf("no refresh token available")
	}

	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("refresh_token", c.token.RefreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthURL+"/token", strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("refresh token failed: %s (%d)", string(body), resp.StatusCode)
	}

	var newToken Token
	if err := json.NewDecoder(resp.Body).Decode(&newToken); err != nil {
		return err
	}
	newToken.ExpiresAt = time.Now().Add(time.Duration(newToken.ExpiresIn) * time.Second)
	newToken.UserID = c.token.UserID
	c.token = &newToken
	return c.saveToken()
}

// Authenticate runs the OAuth authorization-code flow: opens the
// user's browser, runs a localhost callback server, exchanges the
// code for a token, validates it with a Viewer query, and persists it
// only if that validation succeeds. This is the only method in the
// package that talks to a browser/subprocess boundary (§1 Non-goals:
// "the OAuth browser flow" is otherwise external).
func (c *Client) Authenticate(ctx context.Context) error {
	if c.IsAuthenticated() {
		return nil
	}
	if c.token != nil && c.token.RefreshToken != "" {
		if err := c.refreshToken(ctx); err == nil {
			return nil
		}
	}

	callbackCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{
		Addr: fmt.Sprintf(":%d", c.redirectPort),
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/oauth/callback" {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			code := r.URL.Query().Get("code")
			if code == "" {
				errCh <- fmt.Errorf("no code in callback")
				http.Error(w, "no code received", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body><h1>Authentication successful</h1><p>You can close this window.</p><script>window.close()</script></body></html>")
			callbackCh <- code
		}),
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	defer srv.Shutdown(ctx)

	authURL := fmt.Sprintf("%s/authorize?client_id=%s&redirect_uri=%s&response_type=code",
		oauthURL, c.clientID, url.QueryEscape(c.redirectURI()))
	if err := browser.OpenURL(authURL); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	var code string
	select {
	case code = <-callbackCh:
	case err := <-errCh:
		return fmt.Errorf("authentication failed: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}

	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("client_id", c.clientID)
	data.Set("client_secret", c.clientSecret)
	data.Set("redirect_uri", c.redirectURI())
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, oauthURL+"/token", strings.NewReader(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("token exchange failed: %s (%d)", string(body), resp.StatusCode)
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return err
	}
	token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	c.token = &token

	viewer, err := c.doViewer(ctx)
	if err != nil {
		c.token = nil
		return fmt.Errorf("validate token: %w", err)
	}
	if viewer == nil {
		c.token = nil
		return fmt.Errorf("validate token: no viewer returned")
	}
	c.token.UserID = viewer.ID

	return c.saveToken()
}

// graphqlRequest performs one HTTP POST with {query, variables}. Any
// non-2xx response, or a body containing an "errors" key, is reported
// as a failure; retries once after a token refresh on 401.
func (c *Client) graphqlRequest(ctx context.Context, query string, variables map[string]interface{}) ([]byte, error) {
	reqBody := struct {
		Query     string                 `json:"query"`
		Variables map[string]interface{} `json:"variables,omitempty"`
	}{Query: query, Variables: variables}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	do := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(jsonBody))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.token != nil && c.token.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
		}
		return c.httpClient.Do(req)
	}

	resp, err := do()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized && c.token != nil && c.token.RefreshToken != "" {
		if err := c.refreshToken(ctx); err == nil {
			resp2, err2 := do()
			if err2 != nil {
				return nil, err2
			}
			defer resp2.Body.Close()
			resp = resp2
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("anilist: status %d", resp.StatusCode)
	}

	var errorResp struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(body, &errorResp); err == nil && len(errorResp.Errors) > 0 {
		msgs := make([]string, len(errorResp.Errors))
		for i, e := range errorResp.Errors {
			msgs[i] = e.Message
		}
		return nil, fmt.Errorf("anilist graphql errors: %s", strings.Join(msgs, "; "))
	}

	return body, nil
}

func idToString(id int) string { return strconv.Itoa(id) }
