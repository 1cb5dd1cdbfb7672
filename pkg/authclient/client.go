package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Error codes returned by the identity service.
const (
	codeInvalidCredentials  = "invalid_credentials"
	codeInvalidRefreshToken = "invalid_refresh_token"
	codeInvalidToken        = "invalid_token"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Client is the HTTP Provider for the eduro identity service. It holds the
// active session in memory and emits auth-state events from its own
// operations, so a Manager subscribed to it sees every transition.
type Client struct {
	baseURL string
	http    *http.Client

	mu      sync.Mutex
	session *Session
	subs    map[int]func(Event)
	nextSub int
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds a provider client for the identity service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 15 * time.Second},
		subs:    make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignIn authenticates with email and password, stores the issued session,
// and emits a signed-in event.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &session); err != nil {
		return nil, err
	}
	c.setSession(&session)
	c.emit(Event{Type: EventSignedIn, Session: &session})
	return &session, nil
}

// CurrentSession returns the locally held session after confirming it with
// the service. A rejected token clears the local session and reports
// ErrNoSession; transport failures are returned as-is so callers can fall
// back to their own cache.
func (c *Client) CurrentSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return nil, ErrNoSession
	}

	var confirmed Session
	err := c.do(ctx, http.MethodGet, "/auth/session", session.AccessToken, nil, &confirmed)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			c.setSession(nil)
			return nil, ErrNoSession
		}
		return nil, err
	}

	// The service does not echo tokens back; carry the local pair forward.
	confirmed.AccessToken = session.AccessToken
	confirmed.RefreshToken = session.RefreshToken
	if confirmed.ExpiresAt.IsZero() {
		confirmed.ExpiresAt = session.ExpiresAt
	}
	c.setSession(&confirmed)
	return &confirmed, nil
}

// Refresh rotates the token pair and emits a token-refreshed event.
func (c *Client) Refresh(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil || session.RefreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	body := map[string]string{"refresh_token": session.RefreshToken}
	var refreshed Session
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", "", body, &refreshed); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == codeInvalidRefreshToken {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRefreshToken, apiErr.Message)
		}
		return nil, err
	}
	c.setSession(&refreshed)
	c.emit(Event{Type: EventTokenRefreshed, Session: &refreshed})
	return &refreshed, nil
}

// SignOut revokes the session server-side, clears the local copy, and emits a
// signed-out event. The local state is cleared even when the revocation call
// fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	var err error
	if session != nil {
		err = c.do(ctx, http.MethodPost, "/auth/logout", session.AccessToken, nil, nil)
	}
	c.setSession(nil)
	c.emit(Event{Type: EventSignedOut})
	return err
}

// Subscribe registers fn for auth-state events.
func (c *Client) Subscribe(fn func(Event)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

func (c *Client) setSession(s *Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *Client) emit(e Event) {
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()
	for _, fn := range fns {
		fn(e)
	}
}

func (c *Client) do(ctx context.Context, method, path, bearer string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var payload errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		return &APIError{Status: resp.StatusCode, Code: payload.Error, Message: payload.Message}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// APIError is a non-2xx response from the identity service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("identity service: %d %s", e.Status, e.Code)
}
