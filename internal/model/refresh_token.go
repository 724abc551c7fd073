package model

import "time"

// Refresh token states as stored in refresh_tokens.status. A token is
// born ACTIVE and moves to exactly one terminal state: ROTATED when it
// is consumed by a refresh, or REVOKED when its chain is torn down.
// Expiry is derived from ExpiresAt rather than stored as a status so
// that the clock, not a background job, decides it.
const (
	TokenStatusActive  = "ACTIVE"
	TokenStatusRotated = "ROTATED"
	TokenStatusRevoked = "REVOKED"
)

// RefreshToken models a row in the `refresh_tokens` table. The plain
// token value is returned to the client once and never stored; only
// its SHA-256 hash is kept. ChainID groups every token descended from
// a single login so that replay of a consumed token can revoke the
// whole lineage at once.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  ChainID   – rotation chain the token belongs to (UUID).
//  TokenHash – SHA-256 hex digest of the token value.
//  Status    – ACTIVE, ROTATED or REVOKED.
//  ExpiresAt – expiration timestamp of the token.
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
	ID        uint64    // refresh_tokens.id
	UserID    uint64    // refresh_tokens.user_id
	ChainID   string    // refresh_tokens.chain_id
	TokenHash string    // refresh_tokens.token_hash
	Status    string    // refresh_tokens.status
	ExpiresAt time.Time // refresh_tokens.expires_at
	CreatedAt time.Time // refresh_tokens.created_at
}

// Expired reports whether the token's lifetime has passed at the given
// instant.
func (t RefreshToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// Terminal reports whether the token can never be used again.
func (t RefreshToken) Terminal() bool {
	return t.Status != TokenStatusActive
}
