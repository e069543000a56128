// Package session is a Go client for the admin API that keeps a user logged in,
// refreshing the access token at most once per expiry however many requests
// hit the 401 at the same time.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"lighthouse-api/logger"
	"lighthouse-api/model"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// ErrSessionExpired is returned once a refresh has failed. The session stays
// expired until the next successful Login or Register.
var ErrSessionExpired = errors.New("session expired, please log in again")

type State int

const (
	Idle State = iota
	Refreshing
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Refreshing:
		return "refreshing"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// APIError is a non-2xx response decoded from the server's error body.
type APIError struct {
	StatusCode int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

const defaultRefreshTimeout = 30 * time.Second

type Client struct {
	baseURL        string
	http           *http.Client
	store          TokenStore
	refreshTimeout time.Duration

	group singleflight.Group
	mu    sync.Mutex
	state State
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

// WithRefreshTimeout bounds a single refresh call shared by all waiters.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) { c.refreshTimeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &http.Client{Timeout: 30 * time.Second},
		store:          NewMemoryStore(Tokens{}),
		refreshTimeout: defaultRefreshTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Tokens returns the currently stored credentials.
func (c *Client) Tokens() (Tokens, error) {
	return c.store.Load()
}

func (c *Client) Login(ctx context.Context, usernameOrEmail, password string) (*model.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/login", model.LoginRequest{
		UsernameOrEmail: usernameOrEmail,
		Password:        password,
	})
}

func (c *Client) Register(ctx context.Context, email, username, password string) (*model.AuthResponse, error) {
	return c.authenticate(ctx, "/auth/register", model.RegisterRequest{
		Email:    email,
		Username: username,
		Password: password,
	})
}

func (c *Client) authenticate(ctx context.Context, path string, body interface{}) (*model.AuthResponse, error) {
	var resp model.AuthResponse
	if err := c.send(ctx, http.MethodPost, path, body, "", &resp); err != nil {
		return nil, err
	}
	if err := c.store.Save(Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	c.setState(Idle)
	return &resp, nil
}

// Logout revokes the refresh token on the server. Local tokens are cleared even
// when the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	tokens, err := c.store.Load()
	if err != nil {
		return err
	}

	var callErr error
	if tokens.RefreshToken != "" && c.State() != Failed {
		callErr = c.Do(ctx, http.MethodPost, "/auth/logout",
			model.RefreshTokenRequest{RefreshToken: tokens.RefreshToken}, nil)
	}

	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("clear tokens: %w", err)
	}
	return callErr
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.send(ctx, http.MethodPost, "/auth/forgot-password", model.ForgotPasswordRequest{Email: email}, "", nil)
}

func (c *Client) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	return c.send(ctx, http.MethodPost, "/auth/reset-password", model.ResetPasswordRequest{
		Token:       resetToken,
		NewPassword: newPassword,
	}, "", nil)
}

func (c *Client) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	return c.Do(ctx, http.MethodPost, "/auth/change-password", model.ChangePasswordRequest{
		CurrentPassword: currentPassword,
		NewPassword:     newPassword,
	}, nil)
}

func (c *Client) Me(ctx context.Context) (*model.UserSummary, error) {
	var me model.UserSummary
	if err := c.Do(ctx, http.MethodGet, "/auth/me", nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// Do sends an authenticated request and decodes a JSON response into out when
// out is non-nil. A 401 triggers one refresh and one retry.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	if c.State() == Failed {
		return ErrSessionExpired
	}

	tokens, err := c.store.Load()
	if err != nil {
		return err
	}

	err = c.send(ctx, method, path, body, tokens.AccessToken, out)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		return err
	}
	if tokens.RefreshToken == "" {
		// Tokens may have been cleared by a refresh that failed meanwhile.
		if c.State() == Failed {
			return ErrSessionExpired
		}
		return err
	}

	access, err := c.refresh(ctx, tokens.AccessToken)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, body, access, out)
}

// refresh returns a usable access token for a request that was rejected with
// stale. Callers holding the same stale token share one refresh call.
func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	ch := c.group.DoChan("refresh:"+stale, func() (interface{}, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
		defer cancel()
		return c.refreshFrom(rctx, stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) refreshFrom(ctx context.Context, stale string) (string, error) {
	if c.State() == Failed {
		return "", ErrSessionExpired
	}

	current, err := c.store.Load()
	if err != nil {
		return "", err
	}
	// Another flight already replaced the token this request was sent with.
	if current.AccessToken != "" && current.AccessToken != stale {
		return current.AccessToken, nil
	}
	if current.RefreshToken == "" {
		c.fail(errors.New("no refresh token stored"))
		return "", ErrSessionExpired
	}

	c.setState(Refreshing)

	var resp model.TokenResponse
	err = c.send(ctx, http.MethodPost, "/auth/refresh",
		model.RefreshTokenRequest{RefreshToken: current.RefreshToken}, "", &resp)
	if err == nil && resp.AccessToken == "" {
		err = errors.New("refresh response carried no access token")
	}
	if err != nil {
		c.fail(err)
		return "", ErrSessionExpired
	}

	next := Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if err := c.store.Save(next); err != nil {
		c.fail(err)
		return "", ErrSessionExpired
	}

	c.setState(Idle)
	logger.Log.Debug("Session access token refreshed")
	return next.AccessToken, nil
}

func (c *Client) fail(cause error) {
	logger.Log.WithFields(logrus.Fields{
		"error": cause.Error(),
	}).Warn("Session refresh failed, clearing tokens")

	c.setState(Failed)
	if err := c.store.Clear(); err != nil {
		logger.Log.WithError(err).Error("Failed to clear session tokens")
	}
}

func (c *Client) send(ctx context.Context, method, path string, body interface{}, bearer string, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: res.StatusCode}
		if err := json.NewDecoder(res.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		apiErr.StatusCode = res.StatusCode
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
