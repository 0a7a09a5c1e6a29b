package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/lucasbm92/go-auth-service/internal/domain/entity"
	repo "github.com/lucasbm92/go-auth-service/internal/domain/repository"
	"github.com/lucasbm92/go-auth-service/pkg/helpers"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidToken       = errors.New("invalid reset token")
	ErrExpiredToken       = errors.New("reset token expired")
	ErrPasswordPolicy     = errors.New("password does not meet policy")
	ErrEmailRequired      = errors.New("email is required")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// Service implements registration, login, password change and the reset
// token lifecycle on top of the credential store.
type Service struct {
	Repo   repo.UserRepository
	JWT    *helpers.JWTManager
	Redis  *redis.Client
	Logger *logrus.Logger

	ResetTokenTTL     time.Duration
	PasswordMinLength int
	RequireEmail      bool

	// Now is the clock used for token issuance and expiry checks.
	// Overridable in tests.
	Now func() time.Time
}

func NewService(r repo.UserRepository, jwt *helpers.JWTManager, rdb *redis.Client, logger *logrus.Logger, resetTTL time.Duration, minPasswordLen int, requireEmail bool) *Service {
	if resetTTL <= 0 {
		resetTTL = time.Hour
	}
	if minPasswordLen <= 0 {
		minPasswordLen = 6
	}
	return &Service{
		Repo:              r,
		JWT:               jwt,
		Redis:             rdb,
		Logger:            logger,
		ResetTokenTTL:     resetTTL,
		PasswordMinLength: minPasswordLen,
		RequireEmail:      requireEmail,
		Now:               time.Now,
	}
}

func sessionKey(userID string) string {
	return "user:session:" + userID
}

// Register creates a new user. Uniqueness is enforced by the store's unique
// constraints so two concurrent registrations can never both succeed.
func (s *Service) Register(ctx context.Context, username, email, password string) (*entity.User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(email)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.RequireEmail && email == "" {
		return nil, ErrEmailRequired
	}
	if err := s.checkPolicy(password); err != nil {
		return nil, err
	}

	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &entity.User{Username: username, Email: email, PasswordHash: hash}
	if err := s.Repo.Create(ctx, u); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicateUsername):
			return nil, ErrDuplicateUsername
		case errors.Is(err, repo.ErrDuplicateEmail):
			return nil, ErrDuplicateEmail
		default:
			return nil, s.storeFault("create user", err)
		}
	}
	if s.Logger != nil {
		s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user registered")
	}
	return u, nil
}

// Authenticate validates username/password and returns the user. The same
// error is returned whether the user is unknown or the password is wrong.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*entity.User, error) {
	u, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrUnavailable) {
			return nil, s.storeFault("lookup user", err)
		}
		return nil, ErrInvalidCredentials
	}
	if !helpers.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	now := s.Now()
	if err := s.Repo.TouchLastLogin(ctx, u.ID, now); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("update last login failed")
	}
	u.LastLoginAt = &now
	return u, nil
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type LoginResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// IssueTokens generates access/refresh tokens and records a session in Redis.
func (s *Service) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		return TokenPair{}, err
	}

	if s.Redis != nil {
		key := sessionKey(u.ID)
		pipe := s.Redis.Pipeline()
		pipe.HSet(ctx, key, map[string]any{
			"user_id":    u.ID,
			"username":   u.Username,
			"email":      u.Email,
			"sid":        sid,
			"created_at": s.Now().UTC().Format(time.RFC3339Nano),
		})
		pipe.Expire(ctx, key, 24*time.Hour)
		if _, rErr := pipe.Exec(ctx); rErr != nil && s.Logger != nil {
			s.Logger.WithError(rErr).WithField("key", key).Warn("redis pipeline failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (*LoginResponse, TokenPair, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return &LoginResponse{UserID: u.ID, Username: u.Username, Email: u.Email}, pair, nil
}

// Logout drops the server-side session. Cookie clearing is the handler's job.
func (s *Service) Logout(ctx context.Context, userID string) {
	if s.Redis == nil || userID == "" {
		return
	}
	if err := s.Redis.Del(ctx, sessionKey(userID)).Err(); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", userID).Warn("session delete failed")
	}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrUnavailable) {
			return nil, s.storeFault("lookup user", err)
		}
		return nil, ErrUserNotFound
	}
	return u, nil
}

// ChangePassword verifies the current password and replaces the hash.
// Outstanding reset tokens are left alone.
func (s *Service) ChangePassword(ctx context.Context, userID, current, newPassword string) error {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repo.ErrUnavailable) {
			return s.storeFault("lookup user", err)
		}
		return ErrUserNotFound
	}
	if !helpers.CheckPassword(u.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	if err := s.checkPolicy(newPassword); err != nil {
		return err
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, u.ID, hash); err != nil {
		return s.storeFault("update password", err)
	}
	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("password changed")
	}
	return nil
}

// ResetRequest carries a freshly issued token back to the gateway so it can
// be delivered out-of-band. The token itself is never logged.
type ResetRequest struct {
	User      *entity.User
	Token     string
	ExpiresAt time.Time
}

// RequestReset issues a reset token for the account with the given email.
// An unknown email yields (nil, nil): the gateway responds identically
// either way so account existence cannot be probed. Issuing a new token
// replaces any outstanding one.
func (s *Service) RequestReset(ctx context.Context, email string) (*ResetRequest, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrUnavailable) {
			return nil, s.storeFault("lookup user", err)
		}
		return nil, nil
	}

	token, err := helpers.NewResetToken(helpers.ResetTokenBytes)
	if err != nil {
		return nil, err
	}
	expiry := s.Now().Add(s.ResetTokenTTL)
	if err := s.Repo.SetResetToken(ctx, u.ID, token, expiry); err != nil {
		return nil, s.storeFault("set reset token", err)
	}
	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("reset token issued")
	}
	return &ResetRequest{User: u, Token: token, ExpiresAt: expiry}, nil
}

// ResetPassword redeems a token exactly once: the hash is replaced and both
// token fields are cleared in the same atomic update.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (*entity.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	if err := s.checkPolicy(newPassword); err != nil {
		return nil, err
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	u, err := s.Repo.RedeemResetToken(ctx, token, hash, s.Now())
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrTokenNotFound):
			return nil, ErrInvalidToken
		case errors.Is(err, repo.ErrTokenExpired):
			return nil, ErrExpiredToken
		default:
			return nil, s.storeFault("redeem reset token", err)
		}
	}
	if s.Logger != nil {
		s.Logger.WithField("user_id", u.ID).Info("password reset completed")
	}
	return u, nil
}

// InvalidateReset clears an outstanding token without touching the password.
func (s *Service) InvalidateReset(ctx context.Context, userID string) error {
	if err := s.Repo.ClearResetToken(ctx, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.storeFault("clear reset token", err)
	}
	return nil
}

func (s *Service) checkPolicy(password string) error {
	if len(password) < s.PasswordMinLength {
		return ErrPasswordPolicy
	}
	return nil
}

// storeFault logs the underlying datastore failure and returns the generic
// fault so driver detail never reaches the gateway.
func (s *Service) storeFault(op string, err error) error {
	if s.Logger != nil {
		s.Logger.WithError(err).WithField("op", op).Error("credential store failure")
	}
	return ErrStoreUnavailable
}
