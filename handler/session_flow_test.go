package handler_test

import (
	"context"
	"lighthouse-api/session"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionServer(t *testing.T, s *testServer) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var refreshes atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/auth/refresh" {
			refreshes.Add(1)
		}
		s.router.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv, &refreshes
}

func TestSessionClient_ExpiredAccessToken_RefreshesOnce(t *testing.T) {
	s := newTestServer(t)
	srv, refreshes := newSessionServer(t, s)
	ctx := context.Background()

	store := session.NewFileStore(filepath.Join(t.TempDir(), "tokens.json"))
	c := session.New(srv.URL, session.WithHTTPClient(srv.Client()), session.WithTokenStore(store))

	_, err := c.Register(ctx, "admin@example.com", "admin", "secret1")
	require.NoError(t, err)
	before, err := store.Load()
	require.NoError(t, err)

	s.clock.Advance(16 * time.Minute)

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			me, err := c.Me(ctx)
			if err == nil && me.Username != "admin" {
				err = assert.AnError
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), refreshes.Load())

	after, err := store.Load()
	require.NoError(t, err)
	assert.NotEqual(t, before.AccessToken, after.AccessToken)
	assert.Equal(t, before.RefreshToken, after.RefreshToken)
}

func TestSessionClient_LogoutThenExpiry_FailsSession(t *testing.T) {
	s := newTestServer(t)
	srv, refreshes := newSessionServer(t, s)
	ctx := context.Background()

	c := session.New(srv.URL, session.WithHTTPClient(srv.Client()))
	_, err := c.Register(ctx, "admin@example.com", "admin", "secret1")
	require.NoError(t, err)
	tokens, err := c.Tokens()
	require.NoError(t, err)

	// Revoke the refresh token out of band, then let the access token lapse.
	rr := s.do(t, http.MethodPost, "/auth/logout", tokens.AccessToken, map[string]string{"refreshToken": tokens.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	s.clock.Advance(16 * time.Minute)

	_, err = c.Me(ctx)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Equal(t, session.Failed, c.State())
	assert.Equal(t, int32(1), refreshes.Load())

	_, err = c.Login(ctx, "admin", "secret1")
	require.NoError(t, err)
	me, err := c.Me(ctx)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", me.Email)
}

func TestSessionClient_ChangePasswordAndLogout(t *testing.T) {
	s := newTestServer(t)
	srv, _ := newSessionServer(t, s)
	ctx := context.Background()

	c := session.New(srv.URL, session.WithHTTPClient(srv.Client()))
	_, err := c.Register(ctx, "admin@example.com", "admin", "secret1")
	require.NoError(t, err)

	err = c.ChangePassword(ctx, "wrong-password", "secret2")
	var apiErr *session.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	require.NoError(t, c.ChangePassword(ctx, "secret1", "secret2"))
	require.NoError(t, c.Logout(ctx))

	tokens, err := c.Tokens()
	require.NoError(t, err)
	assert.Empty(t, tokens.AccessToken)

	_, err = c.Login(ctx, "admin@example.com", "secret2")
	assert.NoError(t, err)
}
