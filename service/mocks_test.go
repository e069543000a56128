package service

import (
	"context"
	"lighthouse-api/model"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type mockUserRepo struct{ mock.Mock }

func (m *mockUserRepo) user(args mock.Arguments) (*model.User, error) {
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *mockUserRepo) CreateUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}
func (m *mockUserRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Error(1)
}
func (m *mockUserRepo) GetUserByID(ctx context.Context, id int) (*model.User, error) {
	return m.user(m.Called(ctx, id))
}
func (m *mockUserRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return m.user(m.Called(ctx, email))
}
func (m *mockUserRepo) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.user(m.Called(ctx, username))
}
func (m *mockUserRepo) GetUserByResetToken(ctx context.Context, token string) (*model.User, error) {
	return m.user(m.Called(ctx, token))
}
func (m *mockUserRepo) SetResetToken(ctx context.Context, userID int, token string, expiry time.Time) error {
	args := m.Called(ctx, userID, token, expiry)
	return args.Error(0)
}
func (m *mockUserRepo) ClearResetToken(ctx context.Context, userID int) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}
func (m *mockUserRepo) UpdatePassword(ctx context.Context, userID int, passwordHash string) error {
	args := m.Called(ctx, userID, passwordHash)
	return args.Error(0)
}
func (m *mockUserRepo) ResetPassword(ctx context.Context, userID int, token, passwordHash string) (bool, error) {
	args := m.Called(ctx, userID, token, passwordHash)
	return args.Bool(0), args.Error(1)
}

type sentMail struct {
	kind     string
	to       string
	username string
	token    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) SendWelcome(_ context.Context, to, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: "welcome", to: to, username: username})
	return f.err
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, resetToken, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind: "reset", to: to, username: username, token: resetToken})
	return f.err
}

func (f *fakeMailer) messages() []sentMail {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMail(nil), f.sent...)
}
