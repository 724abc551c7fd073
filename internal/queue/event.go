// Package queue defines message payloads exchanged over the message
// broker and the background consumer that records them.
package queue

// Security event types published to the auth.security queue.
const (
	// EventTokenReuse fires when a consumed refresh token is presented
	// again and its rotation chain is revoked in response.
	EventTokenReuse = "token_reuse"
	// EventUserRevoked fires when every chain of a user is revoked
	// (logout-all or compromise response).
	EventUserRevoked = "user_revoked"
)

// SecurityEvent is published when the token service takes a defensive
// action. It carries enough information for downstream consumers to
// alert or investigate without querying the primary database.
type SecurityEvent struct {
	Type    string `json:"type"`
	UserID  uint64 `json:"user_id"`
	ChainID string `json:"chain_id,omitempty"`
	At      string `json:"at"`
	Detail  string `json:"detail,omitempty"`
}
