package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/gabpaderog/maxicoffee-server/internal/domain/user"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

const (
	userColumns = `id, name, email, password_hash, role, is_verified, created_at, updated_at`

	createUserSQL = `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	getUserSQL = `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	getUserByEmailSQL = `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	updateUserSQL = `UPDATE users SET name = $2, email = $3, password_hash = $4, role = $5,
		is_verified = $6, updated_at = $7 WHERE id = $1`

	userExistsSQL = `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`

	countUsersSQL = `SELECT COUNT(*) FROM users`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	querier
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool txn.DB) *UserRepository {
	return &UserRepository{querier{pool: pool}}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	_, err := r.db(ctx).Exec(ctx, createUserSQL,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsVerified, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *UserRepository) Get(ctx context.Context, id string) (*user.User, error) {
	return r.getOne(ctx, getUserSQL, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, getUserByEmailSQL, email)
}

func (r *UserRepository) getOne(ctx context.Context, sql, arg string) (*user.User, error) {
	rows, err := r.db(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[user.User])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) Update(ctx context.Context, u *user.User) error {
	tag, err := r.db(ctx).Exec(ctx, updateUserSQL,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsVerified, u.UpdatedAt,
	)
	if err != nil {
		if hasCode(err, codeUniqueViolation) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("updating user %q: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	var ok bool
	if err := r.db(ctx).QueryRow(ctx, userExistsSQL, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking user %q: %w", id, err)
	}
	return ok, nil
}

func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db(ctx).QueryRow(ctx, countUsersSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}
