package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgellow/authfront/internal/log"
	"golang.org/x/oauth2"
)

// Client talks to a GoTrue-compatible auth API. It holds no per-user
// state; user-scoped calls take the session explicitly.
type Client struct {
	baseURL    string
	anonKey    string
	httpClient *http.Client
	timeout    time.Duration
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every provider call. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

// NewClient creates a client for the provider at providerURL, for example
// https://<project>.supabase.co
func NewClient(providerURL, anonKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(providerURL, "/") + "/auth/v1",
		anonKey:    anonKey,
		httpClient: http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a user. When the provider auto-confirms, the returned
// session is non-nil; otherwise only the pending user is returned.
func (c *Client) SignUp(ctx context.Context, email, password, redirectTo string) (*User, *Session, error) {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	var raw json.RawMessage
	if err := c.do(ctx, nil, http.MethodPost, "/signup", query, credentials{email, password}, &raw); err != nil {
		return nil, nil, err
	}

	var probe struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, nil, fmt.Errorf("failed to decode sign-up response: %w", err)
	}

	if probe.AccessToken != "" {
		var session Session
		if err := json.Unmarshal(raw, &session); err != nil {
			return nil, nil, fmt.Errorf("failed to decode session: %w", err)
		}
		return session.User, &session, nil
	}

	var user User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, nil, fmt.Errorf("failed to decode user: %w", err)
	}
	return &user, nil, nil
}

// SignInWithPassword exchanges email and password for a session
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	query := url.Values{"grant_type": {"password"}}
	var session Session
	if err := c.do(ctx, nil, http.MethodPost, "/token", query, credentials{email, password}, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// AuthorizeURL is where the browser is sent to sign in with an external
// OAuth provider. The provider redirects back to redirectTo with ?code=.
func (c *Client) AuthorizeURL(provider, redirectTo, codeChallenge string) string {
	query := url.Values{"provider": {provider}}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	if codeChallenge != "" {
		query.Set("code_challenge", codeChallenge)
		query.Set("code_challenge_method", "s256")
	}
	return c.baseURL + "/authorize?" + query.Encode()
}

// ExchangeCode completes a PKCE flow
func (c *Client) ExchangeCode(ctx context.Context, authCode, codeVerifier string) (*Session, error) {
	query := url.Values{"grant_type": {"pkce"}}
	body := map[string]string{
		"auth_code":     authCode,
		"code_verifier": codeVerifier,
	}
	var session Session
	if err := c.do(ctx, nil, http.MethodPost, "/token", query, body, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Recover asks the provider to email a password reset link
func (c *Client) Recover(ctx context.Context, email, redirectTo, codeChallenge string) error {
	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}
	body := map[string]string{"email": email}
	if codeChallenge != "" {
		body["code_challenge"] = codeChallenge
		body["code_challenge_method"] = "s256"
	}
	return c.do(ctx, nil, http.MethodPost, "/recover", query, body, nil)
}

// GetUser returns the user owning session
func (c *Client) GetUser(ctx context.Context, session *Session) (*User, error) {
	var user User
	if err := c.do(ctx, session, http.MethodGet, "/user", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser changes attributes of the user owning session
func (c *Client) UpdateUser(ctx context.Context, session *Session, attrs UserAttributes) (*User, error) {
	var user User
	if err := c.do(ctx, session, http.MethodPut, "/user", nil, attrs, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Logout revokes session. A session the provider no longer knows is
// already signed out, so 401, 403 and 404 are not errors.
func (c *Client) Logout(ctx context.Context, session *Session) error {
	query := url.Values{"scope": {"global"}}
	err := c.do(ctx, session, http.MethodPost, "/logout", query, nil, nil)

	var perr *Error
	if errors.As(err, &perr) {
		switch perr.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil
		}
	}
	return err
}

// httpClientFor returns a client that authenticates as session, or as the
// anonymous project key when session is nil
func (c *Client) httpClientFor(ctx context.Context, session *Session) *http.Client {
	if session == nil {
		return c.httpClient
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(session.Token()))
}

func (c *Client) do(ctx context.Context, session *Session, method, path string, query url.Values, in, out any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Client-Info", "authfront")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if session == nil {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	start := time.Now()
	resp, err := c.httpClientFor(ctx, session).Do(req)
	if err != nil {
		return fmt.Errorf("provider request %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	log.LogTraceWithFields("idp", "Provider call", map[string]any{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
