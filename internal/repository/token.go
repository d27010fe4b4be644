package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/gabpaderog/maxicoffee-server/internal/auth"
	"github.com/gabpaderog/maxicoffee-server/internal/domain/user"
	"github.com/gabpaderog/maxicoffee-server/internal/txn"
)

const (
	createTokenSQL = `INSERT INTO tokens (id, user_id, token, type, expires_at) VALUES ($1, $2, $3, $4, $5)`

	findTokenSQL = `SELECT id, user_id, token, type, expires_at FROM tokens
		WHERE token = $1 AND type = $2 AND expires_at > $3`

	deleteTokenSQL = `DELETE FROM tokens WHERE id = $1`

	deleteUserTokensSQL = `DELETE FROM tokens WHERE user_id = $1 AND type = $2`
)

var _ user.TokenRepository = (*TokenRepository)(nil)

// TokenRepository implements user.TokenRepository backed by PostgreSQL.
type TokenRepository struct {
	querier
}

// NewTokenRepository returns a TokenRepository that uses the given pool.
func NewTokenRepository(pool txn.DB) *TokenRepository {
	return &TokenRepository{querier{pool: pool}}
}

func (r *TokenRepository) Create(ctx context.Context, t *user.Token) error {
	_, err := r.db(ctx).Exec(ctx, createTokenSQL, t.ID, t.UserID, t.Token, string(t.Type), t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("creating %s token: %w", t.Type, err)
	}
	return nil
}

func (r *TokenRepository) Find(ctx context.Context, token string, typ auth.TokenType, now time.Time) (*user.Token, error) {
	rows, err := r.db(ctx).Query(ctx, findTokenSQL, token, string(typ), now)
	if err != nil {
		return nil, fmt.Errorf("finding %s token: %w", typ, err)
	}

	t, err := pgx.CollectExactlyOneRow(rows, scanToken)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrTokenNotFound
		}
		return nil, fmt.Errorf("finding %s token: %w", typ, err)
	}
	return &t, nil
}

func (r *TokenRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db(ctx).Exec(ctx, deleteTokenSQL, id); err != nil {
		return fmt.Errorf("deleting token: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteForUser(ctx context.Context, userID string, typ auth.TokenType) error {
	if _, err := r.db(ctx).Exec(ctx, deleteUserTokensSQL, userID, string(typ)); err != nil {
		return fmt.Errorf("deleting %s tokens of user %q: %w", typ, userID, err)
	}
	return nil
}

func scanToken(row pgx.CollectableRow) (user.Token, error) {
	var (
		t   user.Token
		typ string
	)
	err := row.Scan(&t.ID, &t.UserID, &t.Token, &typ, &t.ExpiresAt)
	t.Type = auth.TokenType(typ)
	return t, err
}
