package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/clinicore/access-control/internal/model"
)

// TokenRepo persists refresh tokens (hash only, never the raw value).
// State transitions go through compare-and-set UPDATEs keyed on the
// current status, so two requests racing on one token resolve to
// exactly one winner at the database.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh token row in the ACTIVE state.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, chainID, tokenHash string, exp time.Time) error {
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, chain_id, token_hash, status, expires_at) VALUES (?,?,?,?,?)",
		userID, chainID, tokenHash, model.TokenStatusActive, exp)
	return err
}

// FindByHash returns the token row for a hash regardless of its state.
// The token service needs terminal rows too: presenting a ROTATED
// token is the replay signal that tears down the whole chain.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error) {
	var t model.RefreshToken
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,user_id,chain_id,token_hash,status,expires_at,created_at FROM refresh_tokens WHERE token_hash=? LIMIT 1",
		tokenHash).
		Scan(&t.ID, &t.UserID, &t.ChainID, &t.TokenHash, &t.Status, &t.ExpiresAt, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return model.RefreshToken{}, ErrNotFound
	}
	return t, err
}

// MarkRotated flips a token from ACTIVE to ROTATED. The WHERE clause
// on status is the atomicity guarantee: of two concurrent refreshes
// only one UPDATE matches a row, the loser gets ErrTokenConsumed.
func (r *TokenRepo) MarkRotated(ctx context.Context, tokenHash string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET status=? WHERE token_hash=? AND status=?",
		model.TokenStatusRotated, tokenHash, model.TokenStatusActive)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTokenConsumed
	}
	return nil
}

// RevokeChain marks every still-ACTIVE token in a rotation chain as
// REVOKED. Terminal rows are left untouched, so the operation is
// idempotent.
func (r *TokenRepo) RevokeChain(ctx context.Context, chainID string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET status=? WHERE chain_id=? AND status=?",
		model.TokenStatusRevoked, chainID, model.TokenStatusActive)
	return err
}

// RevokeAllForUser revokes every ACTIVE token across all of a user's
// chains (logout-all / compromise response).
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET status=? WHERE user_id=? AND status=?",
		model.TokenStatusRevoked, userID, model.TokenStatusActive)
	return err
}

// DeleteExpired removes rows whose lifetime passed before the cutoff.
// Terminal rows stay until expiry so replay detection keeps working.
func (r *TokenRepo) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
