package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/access-control/internal/model"
	"github.com/clinicore/access-control/internal/obs"
	"github.com/clinicore/access-control/internal/queue"
	"github.com/clinicore/access-control/internal/repository"
	"github.com/clinicore/access-control/internal/utils"
)

// ErrInvalidRefresh covers every refresh failure a client may see:
// unknown, expired, revoked or replayed token. The ledger knows the
// difference; the response must not reveal it.
var ErrInvalidRefresh = errors.New("invalid refresh token")

// TokenStore is the slice of the refresh token ledger the service
// needs. *repository.TokenRepo satisfies it.
type TokenStore interface {
	Store(ctx context.Context, userID uint64, chainID, tokenHash string, exp time.Time) error
	FindByHash(ctx context.Context, tokenHash string) (model.RefreshToken, error)
	MarkRotated(ctx context.Context, tokenHash string) error
	RevokeChain(ctx context.Context, chainID string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// UserLookup resolves token owners. *repository.UserRepo satisfies it.
type UserLookup interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenPair bundles the two credentials returned to a client.
type TokenPair struct {
	Access  utils.AccessToken
	Refresh utils.RefreshToken
	ChainID string
}

// TokenService implements the token lifecycle: stateless HS256 access
// tokens plus a stateful, rotating refresh ledger with replay
// detection.
type TokenService struct {
	tokens TokenStore
	users  UserLookup

	secret         string
	accessTTLMin   int
	refreshTTLDays int

	notify func(context.Context, queue.SecurityEvent)
	now    func() time.Time
}

// TokenOption configures optional TokenService behavior.
type TokenOption func(*TokenService)

// WithNotifier installs a security event sink (normally the RabbitMQ
// publisher). Events fire on replay detection and chain revocation.
func WithNotifier(fn func(context.Context, queue.SecurityEvent)) TokenOption {
	return func(s *TokenService) { s.notify = fn }
}

// WithClock overrides the time source (tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(s *TokenService) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewTokenService wires the token lifecycle over a ledger and a user
// lookup.
func NewTokenService(tokens TokenStore, users UserLookup, secret string, accessTTLMin, refreshTTLDays int, opts ...TokenOption) *TokenService {
	s := &TokenService{
		tokens:         tokens,
		users:          users,
		secret:         secret,
		accessTTLMin:   accessTTLMin,
		refreshTTLDays: refreshTTLDays,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue mints a fresh token pair for a user and opens a new rotation
// chain. Called on login and registration.
func (s *TokenService) Issue(ctx context.Context, u model.User) (TokenPair, error) {
	access, err := utils.NewAccessToken(s.secret, u.ID, u.Role, u.TenantID, s.accessTTLMin)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := utils.NewRefreshToken(s.refreshTTLDays)
	if err != nil {
		return TokenPair{}, err
	}
	chainID := uuid.NewString()
	if err := s.tokens.Store(ctx, u.ID, chainID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return TokenPair{}, err
	}
	obs.TokenOp("issue", "ok")
	return TokenPair{Access: access, Refresh: refresh, ChainID: chainID}, nil
}

// ValidateAccess checks signature and expiry of an access token. Pure
// passthrough to the stateless verifier; no I/O on this path.
func (s *TokenService) ValidateAccess(raw string) (utils.AccessClaims, error) {
	return utils.ParseAccessToken(s.secret, raw)
}

// Refresh rotates a refresh token: the presented token moves to
// ROTATED, a successor is minted in the same chain and a fresh access
// token is signed. A token that is already consumed is treated as
// stolen: the whole chain is revoked and the request still fails.
func (s *TokenService) Refresh(ctx context.Context, raw string) (TokenPair, model.User, error) {
	hash := utils.HashRefreshRaw(raw)
	rec, err := s.tokens.FindByHash(ctx, hash)
	if err != nil {
		obs.TokenOp("refresh", "unknown")
		return TokenPair{}, model.User{}, ErrInvalidRefresh
	}
	if rec.Expired(s.now().UTC()) {
		obs.TokenOp("refresh", "expired")
		return TokenPair{}, model.User{}, ErrInvalidRefresh
	}
	if rec.Status == model.TokenStatusRotated {
		// Second use of a consumed token: replay. Fail closed and
		// invalidate the entire lineage.
		s.revokeOnReuse(ctx, rec)
		return TokenPair{}, model.User{}, ErrInvalidRefresh
	}
	if rec.Terminal() {
		obs.TokenOp("refresh", "revoked")
		return TokenPair{}, model.User{}, ErrInvalidRefresh
	}

	if err := s.tokens.MarkRotated(ctx, hash); err != nil {
		if errors.Is(err, repository.ErrTokenConsumed) {
			// Lost a race with a concurrent refresh carrying the same
			// token: from here it is indistinguishable from replay.
			s.revokeOnReuse(ctx, rec)
			return TokenPair{}, model.User{}, ErrInvalidRefresh
		}
		return TokenPair{}, model.User{}, err
	}

	u, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return TokenPair{}, model.User{}, ErrInvalidRefresh
	}

	access, err := utils.NewAccessToken(s.secret, u.ID, u.Role, u.TenantID, s.accessTTLMin)
	if err != nil {
		return TokenPair{}, model.User{}, err
	}
	successor, err := utils.NewRefreshToken(s.refreshTTLDays)
	if err != nil {
		return TokenPair{}, model.User{}, err
	}
	if err := s.tokens.Store(ctx, u.ID, rec.ChainID, utils.HashRefreshRaw(successor.Raw), successor.Exp); err != nil {
		return TokenPair{}, model.User{}, err
	}
	obs.TokenOp("refresh", "ok")
	return TokenPair{Access: access, Refresh: successor, ChainID: rec.ChainID}, u, nil
}

func (s *TokenService) revokeOnReuse(ctx context.Context, rec model.RefreshToken) {
	obs.TokenOp("refresh", "reuse")
	_ = s.tokens.RevokeChain(ctx, rec.ChainID)
	if s.notify != nil {
		s.notify(ctx, queue.SecurityEvent{
			Type:    queue.EventTokenReuse,
			UserID:  rec.UserID,
			ChainID: rec.ChainID,
			At:      s.now().UTC().Format(time.RFC3339),
			Detail:  "refresh token replayed; rotation chain revoked",
		})
	}
}

// RevokeChain tears down one rotation chain (single-session logout).
func (s *TokenService) RevokeChain(ctx context.Context, chainID string) error {
	obs.TokenOp("revoke_chain", "ok")
	return s.tokens.RevokeChain(ctx, chainID)
}

// RevokeByRefresh revokes the rotation chain of a presented refresh
// token (single-session logout). The token itself need not be ACTIVE;
// logging out with an already rotated token is harmless.
func (s *TokenService) RevokeByRefresh(ctx context.Context, raw string) error {
	rec, err := s.tokens.FindByHash(ctx, utils.HashRefreshRaw(raw))
	if err != nil {
		return ErrInvalidRefresh
	}
	return s.RevokeChain(ctx, rec.ChainID)
}

// RevokeUser tears down every chain a user owns (logout-all or
// compromise response).
func (s *TokenService) RevokeUser(ctx context.Context, userID uint64) error {
	err := s.tokens.RevokeAllForUser(ctx, userID)
	if err == nil {
		obs.TokenOp("revoke_user", "ok")
		if s.notify != nil {
			s.notify(ctx, queue.SecurityEvent{
				Type:   queue.EventUserRevoked,
				UserID: userID,
				At:     s.now().UTC().Format(time.RFC3339),
				Detail: "all refresh chains revoked",
			})
		}
	}
	return err
}
