package application

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucasbm92/go-auth-service/internal/domain/entity"
	repo "github.com/lucasbm92/go-auth-service/internal/domain/repository"
)

// memRepo is an in-memory UserRepository with the same uniqueness and
// atomicity guarantees as the postgres implementation.
type memRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*entity.User
}

func newMemRepo() *memRepo {
	return &memRepo{users: make(map[string]*entity.User)}
}

func (m *memRepo) clone(u *entity.User) *entity.User {
	c := *u
	if u.ResetToken != nil {
		t := *u.ResetToken
		c.ResetToken = &t
	}
	if u.ResetTokenExpiry != nil {
		e := *u.ResetTokenExpiry
		c.ResetTokenExpiry = &e
	}
	if u.LastLoginAt != nil {
		l := *u.LastLoginAt
		c.LastLoginAt = &l
	}
	return &c
}

func (m *memRepo) Create(_ context.Context, u *entity.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.users {
		if e.Username == u.Username {
			return repo.ErrDuplicateUsername
		}
		if u.Email != "" && e.Email == u.Email {
			return repo.ErrDuplicateEmail
		}
	}
	m.seq++
	u.ID = "u" + strconv.Itoa(m.seq)
	u.CreatedAt = time.Now()
	m.users[u.ID] = m.clone(u)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return m.clone(u), nil
	}
	return nil, repo.ErrNotFound
}

func (m *memRepo) GetByUsername(_ context.Context, username string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return m.clone(u), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memRepo) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email != "" && u.Email == email {
			return m.clone(u), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memRepo) GetByResetToken(_ context.Context, token string) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ResetToken != nil && *u.ResetToken == token {
			return m.clone(u), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (m *memRepo) UpdatePassword(_ context.Context, id string, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (m *memRepo) SetResetToken(_ context.Context, id string, token string, expiry time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.ResetToken = &token
	u.ResetTokenExpiry = &expiry
	return nil
}

func (m *memRepo) ClearResetToken(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.ResetToken = nil
	u.ResetTokenExpiry = nil
	return nil
}

func (m *memRepo) RedeemResetToken(_ context.Context, token string, hash string, now time.Time) (*entity.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ResetToken == nil || *u.ResetToken != token {
			continue
		}
		if u.ResetTokenExpiry == nil || !u.ResetTokenExpiry.After(now) {
			return nil, repo.ErrTokenExpired
		}
		u.PasswordHash = hash
		u.ResetToken = nil
		u.ResetTokenExpiry = nil
		return m.clone(u), nil
	}
	return nil, repo.ErrTokenNotFound
}

func (m *memRepo) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

func (m *memRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

var _ repo.UserRepository = (*memRepo)(nil)

func newTestService(r repo.UserRepository) *Service {
	return NewService(r, nil, nil, nil, time.Hour, 6, true)
}

func TestRegisterAndAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepo())

	u, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)
	assert.Equal(t, "alice", u.Username)
	assert.NotEqual(t, "secret123", u.PasswordHash)

	got, err := svc.Authenticate(ctx, "alice", "secret123")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	require.NotNil(t, got.LastLoginAt)

	_, err = svc.Authenticate(ctx, "alice", "wrongpass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateUsername(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "alice", "other@example.com", "secret456")
	assert.ErrorIs(t, err, ErrDuplicateUsername)
	assert.Equal(t, 1, r.count())
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, err = svc.Register(ctx, "bob", "alice@example.com", "secret456")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Equal(t, 1, r.count())
}

func TestRegisterShortPassword(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	_, err := svc.Register(ctx, "alice", "alice@example.com", "abc")
	assert.ErrorIs(t, err, ErrPasswordPolicy)
	assert.Equal(t, 0, r.count())
}

func TestRegisterEmailOptionalMode(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()

	svc := newTestService(r)
	_, err := svc.Register(ctx, "alice", "", "secret123")
	assert.ErrorIs(t, err, ErrEmailRequired)

	svc.RequireEmail = false
	_, err = svc.Register(ctx, "alice", "", "secret123")
	require.NoError(t, err)

	// A second email-less account must not trip the email uniqueness check.
	_, err = svc.Register(ctx, "bob", "", "secret456")
	require.NoError(t, err)
	assert.Equal(t, 2, r.count())
}

func TestAuthenticateUnknownUserSameError(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepo())

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	_, errUnknown := svc.Authenticate(ctx, "nobody", "secret123")
	_, errWrongPwd := svc.Authenticate(ctx, "alice", "badpass")
	assert.ErrorIs(t, errUnknown, ErrInvalidCredentials)
	assert.ErrorIs(t, errWrongPwd, ErrInvalidCredentials)
	assert.Equal(t, errUnknown, errWrongPwd)
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newMemRepo())

	u, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, u.ID, "wrongpass", "newsecret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	err = svc.ChangePassword(ctx, u.ID, "secret123", "abc")
	assert.ErrorIs(t, err, ErrPasswordPolicy)

	err = svc.ChangePassword(ctx, u.ID, "secret123", "newsecret")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "alice", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "alice", "newsecret")
	assert.NoError(t, err)
}

func TestRequestResetUnknownEmail(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	res, err := svc.RequestReset(ctx, "nobody@example.com")
	assert.NoError(t, err)
	assert.Nil(t, res)
	assert.Equal(t, 0, r.count())
}

func TestRequestResetIssuesToken(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return base }

	u, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	res, err := svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, u.ID, res.User.ID)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, base.Add(time.Hour), res.ExpiresAt)

	stored, err := r.GetByResetToken(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, stored.ID)
	assert.True(t, stored.HasPendingReset())
}

func TestResetPasswordRedeemsExactlyOnce(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	res, err := svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)

	u, err := svc.ResetPassword(ctx, res.Token, "newsecret")
	require.NoError(t, err)
	assert.False(t, u.HasPendingReset())

	_, err = svc.Authenticate(ctx, "alice", "newsecret")
	require.NoError(t, err)

	// Second redemption must fail and must not change the password again.
	_, err = svc.ResetPassword(ctx, res.Token, "othersecret")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = svc.Authenticate(ctx, "alice", "newsecret")
	assert.NoError(t, err)
}

func TestResetPasswordExpiredToken(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return base }

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	res, err := svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)

	// Exactly at expiry the token is already stale.
	svc.Now = func() time.Time { return base.Add(time.Hour) }
	_, err = svc.ResetPassword(ctx, res.Token, "newsecret")
	assert.ErrorIs(t, err, ErrExpiredToken)

	svc.Now = func() time.Time { return base.Add(2 * time.Hour) }
	_, err = svc.ResetPassword(ctx, res.Token, "newsecret")
	assert.ErrorIs(t, err, ErrExpiredToken)

	// Old credentials still work.
	_, err = svc.Authenticate(ctx, "alice", "secret123")
	assert.NoError(t, err)
}

func TestSecondResetRequestInvalidatesFirst(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)

	first, err := svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)
	second, err := svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotEqual(t, first.Token, second.Token)

	_, err = svc.ResetPassword(ctx, first.Token, "newsecret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.ResetPassword(ctx, second.Token, "newsecret")
	require.NoError(t, err)
}

func TestResetPasswordPolicyLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	_, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	res, err := svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)

	_, err = svc.ResetPassword(ctx, res.Token, "abc")
	assert.ErrorIs(t, err, ErrPasswordPolicy)

	// Token survives and the password is untouched.
	_, err = svc.Authenticate(ctx, "alice", "secret123")
	require.NoError(t, err)
	_, err = svc.ResetPassword(ctx, res.Token, "newsecret")
	require.NoError(t, err)
}

func TestResetPasswordEmptyToken(t *testing.T) {
	svc := newTestService(newMemRepo())
	_, err := svc.ResetPassword(context.Background(), "", "newsecret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestInvalidateReset(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	u, err := svc.Register(ctx, "alice", "alice@example.com", "secret123")
	require.NoError(t, err)
	res, err := svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateReset(ctx, u.ID))
	_, err = svc.ResetPassword(ctx, res.Token, "newsecret")
	assert.ErrorIs(t, err, ErrInvalidToken)

	assert.ErrorIs(t, svc.InvalidateReset(ctx, "missing"), ErrUserNotFound)
}

// Full lifecycle: register, forget password, reset, log in with the new one.
func TestResetLifecycle(t *testing.T) {
	ctx := context.Background()
	r := newMemRepo()
	svc := newTestService(r)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return base }

	_, err := svc.Register(ctx, "alice", "alice@example.com", "originalpw")
	require.NoError(t, err)

	res, err := svc.RequestReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, res)

	// Thirty minutes later the token is still live.
	svc.Now = func() time.Time { return base.Add(30 * time.Minute) }
	u, err := svc.ResetPassword(ctx, res.Token, "replacedpw")
	require.NoError(t, err)
	assert.Nil(t, u.ResetToken)
	assert.Nil(t, u.ResetTokenExpiry)

	_, err = svc.Authenticate(ctx, "alice", "originalpw")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	got, err := svc.Authenticate(ctx, "alice", "replacedpw")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}
