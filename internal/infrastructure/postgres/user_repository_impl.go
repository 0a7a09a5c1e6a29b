package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lucasbm92/go-auth-service/internal/domain/entity"
	"github.com/lucasbm92/go-auth-service/internal/domain/repository"
)

const userColumns = `id, username, COALESCE(email, ''), password_hash, reset_token, reset_token_expiry, created_at, last_login_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	// Empty email is stored as NULL so the unique index only applies to
	// deployments that actually collect email addresses.
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING id, created_at
	`, u.Username, u.Email, u.PasswordHash)

	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		return mapWriteError(err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getBy(ctx, "id = $1", id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getBy(ctx, "username = $1", username)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getBy(ctx, "email = $1", email)
}

func (r *UserRepository) GetByResetToken(ctx context.Context, token string) (*entity.User, error) {
	return r.getBy(ctx, "reset_token = $1", token)
}

func (r *UserRepository) getBy(ctx context.Context, where string, arg any) (*entity.User, error) {
	u := &entity.User{}
	row := r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.ResetToken, &u.ResetTokenExpiry, &u.CreatedAt, &u.LastLoginAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, unavailable(err)
	}
	return u, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id string, hash string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET password_hash = $1 WHERE id = $2
	`, hash, id)
	if err != nil {
		return unavailable(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetResetToken(ctx context.Context, id string, token string, expiry time.Time) error {
	// Single UPDATE: replacing an outstanding token is last-write-wins, so
	// at most one token per user is ever live.
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token = $1, reset_token_expiry = $2 WHERE id = $3
	`, token, expiry, id)
	if err != nil {
		return unavailable(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) ClearResetToken(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `
		UPDATE users SET reset_token = NULL, reset_token_expiry = NULL WHERE id = $1
	`, id)
	if err != nil {
		return unavailable(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) RedeemResetToken(ctx context.Context, token string, hash string, now time.Time) (*entity.User, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, unavailable(err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	u := &entity.User{}
	row := tx.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE reset_token = $1 FOR UPDATE
	`, token)
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		&u.ResetToken, &u.ResetTokenExpiry, &u.CreatedAt, &u.LastLoginAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrTokenNotFound
		}
		return nil, unavailable(err)
	}
	if u.ResetTokenExpiry == nil || !u.ResetTokenExpiry.After(now) {
		// Token is left in place; a fresh request overwrites it.
		return nil, repository.ErrTokenExpired
	}

	if _, err := tx.Exec(ctx, `
		UPDATE users
		SET password_hash = $1, reset_token = NULL, reset_token_expiry = NULL
		WHERE id = $2
	`, hash, u.ID); err != nil {
		return nil, unavailable(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, unavailable(err)
	}

	u.PasswordHash = hash
	u.ResetToken = nil
	u.ResetTokenExpiry = nil
	return u, nil
}

func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	if _, err := r.pool.Exec(ctx, `
		UPDATE users SET last_login_at = $1 WHERE id = $2
	`, at, id); err != nil {
		return unavailable(err)
	}
	return nil
}

// mapWriteError turns a unique-constraint violation into the matching
// duplicate error by constraint name.
func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		if strings.Contains(pgErr.ConstraintName, "email") {
			return repository.ErrDuplicateEmail
		}
		return repository.ErrDuplicateUsername
	}
	return unavailable(err)
}

// unavailable hides driver-level failure detail behind the generic
// store-unavailable fault.
func unavailable(err error) error {
	return fmt.Errorf("%w: %v", repository.ErrUnavailable, err)
}

var _ repository.UserRepository = (*UserRepository)(nil)
