package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// TokenStore persists refresh tokens by hash.
type TokenStore interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// TokenRepo is the MySQL TokenStore. Only the SHA-256 of a token reaches
// the table.
type TokenRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewTokenRepo(db *sql.DB) *TokenRepo {
	return &TokenRepo{DB: db, now: func() time.Time { return time.Now().UTC() }}
}

const (
	insertRefreshSQL = `INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`
	liveRefreshSQL   = `SELECT user_id FROM refresh_tokens
		WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > ?
		LIMIT 1`
	revokeHashSQL = `UPDATE refresh_tokens SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL`
	revokeUserSQL = `UPDATE refresh_tokens SET revoked_at = ? WHERE user_id = ? AND revoked_at IS NULL`
)

func (r *TokenRepo) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx, insertRefreshSQL, userID, tokenHash, exp.UTC())
	return err
}

// ValidateRefresh returns the owner of a live token. Revoked, expired and
// unknown hashes all come back as ErrNotFound.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
	var owner string
	err := r.DB.QueryRowContext(ctx, liveRefreshSQL, tokenHash, r.now()).Scan(&owner)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", ErrNotFound
	case err != nil:
		return "", err
	}
	return owner, nil
}

func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx, revokeHashSQL, r.now(), tokenHash)
	return err
}

// RevokeAllForUser is used by logout without a specific token.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.DB.ExecContext(ctx, revokeUserSQL, r.now(), userID)
	return err
}
