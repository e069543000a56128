package session

import (
	"context"
	"encoding/json"
	"io"
	"lighthouse-api/logger"
	"lighthouse-api/model"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	logger.Log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeAPI serves the subset of the auth routes the client talks to.
type fakeAPI struct {
	mu            sync.Mutex
	validAccess   string
	refreshStatus int
	refreshResp   model.TokenResponse
	refreshDelay  time.Duration
	logoutStatus  int

	refreshCalls atomic.Int32
	meCalls      atomic.Int32
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *fakeAPI) bearerOK(r *http.Request) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") == a.validAccess
}

func (a *fakeAPI) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.validAccess = "access-login"
		a.mu.Unlock()
		writeJSON(w, http.StatusOK, model.AuthResponse{
			AccessToken:  "access-login",
			RefreshToken: "refresh-login",
			User:         model.UserSummary{ID: 1, Email: "admin@example.com", Username: "admin", Role: "admin"},
		})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		a.refreshCalls.Add(1)
		time.Sleep(a.refreshDelay)
		if a.refreshStatus != 0 && a.refreshStatus != http.StatusOK {
			writeJSON(w, a.refreshStatus, map[string]interface{}{"code": a.refreshStatus, "message": "Invalid refresh token"})
			return
		}
		a.mu.Lock()
		a.validAccess = a.refreshResp.AccessToken
		a.mu.Unlock()
		writeJSON(w, http.StatusOK, a.refreshResp)
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		a.meCalls.Add(1)
		if !a.bearerOK(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"code": 401, "message": "Token has expired"})
			return
		}
		writeJSON(w, http.StatusOK, model.UserSummary{ID: 1, Email: "admin@example.com", Username: "admin", Role: "admin"})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		if a.logoutStatus != 0 {
			writeJSON(w, a.logoutStatus, map[string]interface{}{"code": a.logoutStatus, "message": "Internal server error"})
			return
		}
		writeJSON(w, http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
	})
	mux.HandleFunc("POST /auth/forgot-password", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"code": 400, "message": "Failed to send reset email"})
	})
	return mux
}

func newClient(t *testing.T, api *fakeAPI, initial Tokens) (*Client, *MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(api.handler())
	t.Cleanup(srv.Close)
	store := NewMemoryStore(initial)
	return New(srv.URL, WithTokenStore(store), WithHTTPClient(srv.Client())), store
}

func TestClient_Login_StoresTokens(t *testing.T) {
	api := &fakeAPI{}
	c, store := newClient(t, api, Tokens{})

	resp, err := c.Login(context.Background(), "admin", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "admin", resp.User.Username)

	tokens, _ := store.Load()
	assert.Equal(t, Tokens{AccessToken: "access-login", RefreshToken: "refresh-login"}, tokens)

	me, err := c.Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, me.ID)
	assert.Equal(t, int32(0), api.refreshCalls.Load())
}

func TestClient_ConcurrentExpiry_SingleRefresh(t *testing.T) {
	api := &fakeAPI{
		validAccess:  "access-new",
		refreshResp:  model.TokenResponse{AccessToken: "access-new"},
		refreshDelay: 50 * time.Millisecond,
	}
	c, store := newClient(t, api, Tokens{AccessToken: "access-old", RefreshToken: "refresh-1"})

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Me(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), api.refreshCalls.Load())
	assert.Equal(t, Idle, c.State())

	tokens, _ := store.Load()
	assert.Equal(t, "access-new", tokens.AccessToken)
	assert.Equal(t, "refresh-1", tokens.RefreshToken, "refresh token kept when the response omits one")
}

func TestClient_Refresh_UsesRotatedRefreshToken(t *testing.T) {
	api := &fakeAPI{
		validAccess: "access-new",
		refreshResp: model.TokenResponse{AccessToken: "access-new", RefreshToken: "refresh-2"},
	}
	c, store := newClient(t, api, Tokens{AccessToken: "access-old", RefreshToken: "refresh-1"})

	_, err := c.Me(context.Background())
	require.NoError(t, err)

	tokens, _ := store.Load()
	assert.Equal(t, Tokens{AccessToken: "access-new", RefreshToken: "refresh-2"}, tokens)
}

func TestClient_RefreshFailure_ExpiresSession(t *testing.T) {
	api := &fakeAPI{
		validAccess:   "unreachable",
		refreshStatus: http.StatusUnauthorized,
		refreshDelay:  30 * time.Millisecond,
	}
	c, store := newClient(t, api, Tokens{AccessToken: "access-old", RefreshToken: "refresh-1"})

	const callers = 10
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Me(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.ErrorIs(t, err, ErrSessionExpired)
	}
	assert.Equal(t, int32(1), api.refreshCalls.Load())
	assert.Equal(t, Failed, c.State())

	tokens, _ := store.Load()
	assert.Equal(t, Tokens{}, tokens)

	// Fails fast without touching the server until the next login.
	before := api.meCalls.Load()
	_, err := c.Me(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.Equal(t, before, api.meCalls.Load())

	_, err = c.Login(context.Background(), "admin", "secret1")
	require.NoError(t, err)
	assert.Equal(t, Idle, c.State())

	_, err = c.Me(context.Background())
	assert.NoError(t, err)
}

func TestClient_Refresh_SkipsWhenTokenAlreadyReplaced(t *testing.T) {
	api := &fakeAPI{validAccess: "access-new"}
	c, _ := newClient(t, api, Tokens{AccessToken: "access-new", RefreshToken: "refresh-1"})

	access, err := c.refresh(context.Background(), "access-old")
	require.NoError(t, err)
	assert.Equal(t, "access-new", access)
	assert.Equal(t, int32(0), api.refreshCalls.Load())
}

func TestClient_Unauthorized_WithoutRefreshToken(t *testing.T) {
	api := &fakeAPI{validAccess: "access-new"}
	c, _ := newClient(t, api, Tokens{AccessToken: "access-old"})

	_, err := c.Me(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Token has expired", apiErr.Message)
	assert.Equal(t, int32(0), api.refreshCalls.Load())
	assert.Equal(t, Idle, c.State())
}

func TestClient_Logout_ClearsTokensWhenServerFails(t *testing.T) {
	api := &fakeAPI{validAccess: "access-1", logoutStatus: http.StatusInternalServerError}
	c, store := newClient(t, api, Tokens{AccessToken: "access-1", RefreshToken: "refresh-1"})

	err := c.Logout(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)

	tokens, _ := store.Load()
	assert.Equal(t, Tokens{}, tokens)
}

func TestClient_ForgotPassword_SurfacesServerMessage(t *testing.T) {
	c, _ := newClient(t, &fakeAPI{}, Tokens{})

	err := c.ForgotPassword(context.Background(), "admin@example.com")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Failed to send reset email", apiErr.Message)
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lighthouse", "tokens.json")
	store := NewFileStore(path)

	empty, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, Tokens{}, empty)

	want := Tokens{AccessToken: "a", RefreshToken: "r"}
	require.NoError(t, store.Save(want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := NewFileStore(path).Load()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	require.NoError(t, store.Clear())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	require.NoError(t, store.Clear())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokens.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Load()
	assert.ErrorContains(t, err, "decode token file")
}
