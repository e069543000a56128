package handler_test

import (
	"encoding/json"
	"errors"
	"lighthouse-api/model"
	"lighthouse-api/token"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	s := newTestServer(t)

	t.Run("created without exposing the password", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "a@x.com", "username": "alice", "password": "secret1",
		})
		require.Equal(t, http.StatusCreated, rr.Code)

		body := decode[map[string]interface{}](t, rr)
		assert.NotEmpty(t, body["accessToken"])
		assert.NotEmpty(t, body["refreshToken"])
		user := body["user"].(map[string]interface{})
		assert.Equal(t, "alice", user["username"])
		assert.Equal(t, "admin", user["role"])
		assert.NotContains(t, user, "password")
		assert.NotContains(t, rr.Body.String(), "secret1")
	})

	t.Run("duplicate email or username", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "other@x.com", "username": "alice", "password": "secret1",
		})
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("validation failure", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "not-an-email", "username": "al", "password": "123",
		})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		appErr := decode[map[string]interface{}](t, rr)
		assert.Contains(t, appErr["message"], "Email must be a valid email")
	})
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)
	reg := s.register(t, "a@x.com", "alice", "secret1")

	t.Run("by username", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "secret1"})
		require.Equal(t, http.StatusOK, rr.Code)
		resp := decode[model.AuthResponse](t, rr)
		assert.Equal(t, reg.User, resp.User)
	})

	t.Run("by email", func(t *testing.T) {
		rr := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "a@x.com", "password": "secret1"})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("wrong password and unknown user are indistinguishable", func(t *testing.T) {
		wrong := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "secret2"})
		unknown := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "bob", "password": "secret2"})
		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.JSONEq(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("deactivated account", func(t *testing.T) {
		s.repo.update(reg.User.ID, func(u *model.User) { u.IsActive = false })
		defer s.repo.update(reg.User.ID, func(u *model.User) { u.IsActive = true })

		rr := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "secret1"})
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestRegisterLoginLogoutRefresh(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "alice", "secret1")

	rr := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "secret1"})
	require.Equal(t, http.StatusOK, rr.Code)
	pair := decode[model.AuthResponse](t, rr)

	rr = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	refreshed := decode[map[string]interface{}](t, rr)
	assert.NotEmpty(t, refreshed["accessToken"])
	assert.NotContains(t, refreshed, "refreshToken")

	rr = s.do(t, http.MethodPost, "/auth/logout", "", map[string]string{"refreshToken": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code, "logout requires a bearer token")

	rr = s.do(t, http.MethodPost, "/auth/logout", pair.AccessToken, map[string]string{"refreshToken": pair.RefreshToken})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"message":"Logged out successfully"}`, rr.Body.String())

	rr = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": pair.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	// Access tokens are stateless and keep working until they expire.
	rr = s.do(t, http.MethodGet, "/auth/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestBearerAuthentication(t *testing.T) {
	s := newTestServer(t)
	reg := s.register(t, "a@x.com", "alice", "secret1")

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + reg.AccessToken},
		{"refresh token as bearer", "Bearer " + reg.RefreshToken},
		{"garbage", "Bearer not.a.jwt"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rr := httptest.NewRecorder()
			s.router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusUnauthorized, rr.Code)
		})
	}

	t.Run("expired access token", func(t *testing.T) {
		s.clock.Advance(16 * time.Minute)
		defer s.clock.Advance(-16 * time.Minute)

		rr := s.do(t, http.MethodGet, "/auth/me", reg.AccessToken, nil)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Contains(t, rr.Body.String(), "Token has expired")
	})
}

func TestMeAndProfile(t *testing.T) {
	s := newTestServer(t)
	reg := s.register(t, "a@x.com", "alice", "secret1")

	rr := s.do(t, http.MethodGet, "/auth/me", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, reg.User, decode[model.UserSummary](t, rr))

	rr = s.do(t, http.MethodGet, "/auth/profile", reg.AccessToken, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	profile := decode[map[string]interface{}](t, rr)
	assert.Equal(t, "a@x.com", profile["email"])
	assert.Equal(t, true, profile["isActive"])
	assert.NotContains(t, profile, "password")
	assert.NotContains(t, profile, "resetToken")

	s.repo.delete(reg.User.ID)
	rr = s.do(t, http.MethodGet, "/auth/profile", reg.AccessToken, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestForgotAndResetPassword(t *testing.T) {
	const forgotMessage = `{"message":"If the email exists, a password reset link has been sent"}`

	t.Run("unknown email gets the same answer and changes nothing", func(t *testing.T) {
		s := newTestServer(t)
		reg := s.register(t, "a@x.com", "alice", "secret1")
		before := s.repo.snapshot(reg.User.ID)

		rr := s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "unknown@x.com"})
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, forgotMessage, rr.Body.String())
		assert.Equal(t, before, s.repo.snapshot(reg.User.ID))

		rr = s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "a@x.com"})
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, forgotMessage, rr.Body.String())
	})

	t.Run("reset token is single use", func(t *testing.T) {
		s := newTestServer(t)
		s.register(t, "a@x.com", "alice", "secret1")
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "a@x.com"}).Code)
		resetToken := s.mailer.resetTokenFor("a@x.com")
		require.Len(t, resetToken, 64)

		body := map[string]string{"token": resetToken, "newPassword": "brand-new"}
		rr := s.do(t, http.MethodPost, "/auth/reset-password", "", body)
		require.Equal(t, http.StatusOK, rr.Code)

		rr = s.do(t, http.MethodPost, "/auth/reset-password", "", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)

		rr = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "brand-new"})
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("expired token is cleared", func(t *testing.T) {
		s := newTestServer(t)
		reg := s.register(t, "a@x.com", "alice", "secret1")
		require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "a@x.com"}).Code)
		resetToken := s.mailer.resetTokenFor("a@x.com")

		s.clock.Advance(time.Hour + time.Second)
		body := map[string]string{"token": resetToken, "newPassword": "brand-new"}

		rr := s.do(t, http.MethodPost, "/auth/reset-password", "", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "reset token has expired")

		stored := s.repo.snapshot(reg.User.ID)
		assert.Nil(t, stored.ResetToken)
		assert.Nil(t, stored.ResetTokenExpiry)

		rr = s.do(t, http.MethodPost, "/auth/reset-password", "", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "invalid or expired reset token")
	})

	t.Run("send failure leaves no live token", func(t *testing.T) {
		s := newTestServer(t)
		reg := s.register(t, "a@x.com", "alice", "secret1")
		s.mailer.err = errors.New("smtp unavailable")

		rr := s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "a@x.com"})
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.NotContains(t, rr.Body.String(), "smtp unavailable")

		stored := s.repo.snapshot(reg.User.ID)
		assert.Nil(t, stored.ResetToken)
		assert.Nil(t, stored.ResetTokenExpiry)
	})
}

func TestChangePassword(t *testing.T) {
	s := newTestServer(t)
	reg := s.register(t, "a@x.com", "alice", "secret1")

	rr := s.do(t, http.MethodPost, "/auth/change-password", reg.AccessToken, map[string]string{"currentPassword": "wrong", "newPassword": "secret2"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPost, "/auth/change-password", "", map[string]string{"currentPassword": "secret1", "newPassword": "secret2"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(t, http.MethodPost, "/auth/change-password", reg.AccessToken, map[string]string{"currentPassword": "secret1", "newPassword": "secret2"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "secret2"})
	assert.Equal(t, http.StatusOK, rr.Code)

	// Existing tokens stay valid after a password change.
	rr = s.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refreshToken": reg.RefreshToken})
	assert.Equal(t, http.StatusOK, rr.Code)

	s.repo.delete(reg.User.ID)
	rr = s.do(t, http.MethodPost, "/auth/change-password", reg.AccessToken, map[string]string{"currentPassword": "secret2", "newPassword": "secret3"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestMultibytePasswordOverBcryptLimit(t *testing.T) {
	// 40 characters, 80 bytes.
	long := strings.Repeat("é", 40)

	s := newTestServer(t)
	reg := s.register(t, "a@x.com", "alice", "secret1")

	rr := s.do(t, http.MethodPost, "/auth/register", "", map[string]string{"email": "b@x.com", "username": "bob", "password": long})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "at most 72 bytes")

	rr = s.do(t, http.MethodPost, "/auth/change-password", reg.AccessToken, map[string]string{"currentPassword": "secret1", "newPassword": long})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "at most 72 bytes")

	require.Equal(t, http.StatusOK, s.do(t, http.MethodPost, "/auth/forgot-password", "", map[string]string{"email": "a@x.com"}).Code)
	resetToken := s.mailer.resetTokenFor("a@x.com")

	rr = s.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{"token": resetToken, "newPassword": long})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// The rejected attempt must not burn the token.
	rr = s.do(t, http.MethodPost, "/auth/reset-password", "", map[string]string{"token": resetToken, "newPassword": "brand-new"})
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "brand-new"})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestConcurrentLogins(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "a@x.com", "alice", "secret1")

	var wg sync.WaitGroup
	tokens := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rr := s.do(t, http.MethodPost, "/auth/login", "", map[string]string{"usernameOrEmail": "alice", "password": "secret1"})
			var resp model.AuthResponse
			if rr.Code == http.StatusOK && json.Unmarshal(rr.Body.Bytes(), &resp) == nil {
				tokens <- resp.RefreshToken
			}
		}()
	}
	wg.Wait()
	close(tokens)

	seen := map[string]bool{}
	for tok := range tokens {
		seen[tok] = true
		_, err := s.issuer.Verify(tok, token.Refresh)
		assert.NoError(t, err)
	}
	assert.Len(t, seen, 10)
}
